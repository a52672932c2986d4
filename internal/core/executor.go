package core

import (
	"context"
	"errors"
	"time"

	"github.com/JonMunkholm/contactimport/internal/logging"
)

// DefaultDuplicateSearchLimit is how many matches the duplicate check asks for.
const DefaultDuplicateSearchLimit = 1

// DuplicateSkippedError is the result error for rows skipped as duplicates.
const DuplicateSkippedError = "Duplicate email - skipped"

// ContactDirectory is the store the executor writes through.
type ContactDirectory interface {
	SearchContactsByEmail(ctx context.Context, email string, limit int) ([]Contact, error)
	CreateDSP(ctx context.Context, in NewDSP) (DSP, error)
	CreateContact(ctx context.Context, in ContactInput) (Contact, error)
}

// Refresher is told once per run that cached contact and DSP views are stale.
type Refresher interface {
	RefreshContacts(ctx context.Context)
	RefreshDSPs(ctx context.Context)
}

// DSPCreationCache maps code + "_" + name to the id of a DSP created in
// this run. It is owned by a single run and is not safe for concurrent use.
type DSPCreationCache map[string]string

func dspCacheKey(code, name string) string {
	return code + "_" + name
}

// Executor persists accepted candidates one at a time.
type Executor struct {
	Directory ContactDirectory

	// Catalogs, when set, receives DSPs created during the run.
	Catalogs *Catalogs

	// Refresher, when set, is signalled once after the last row.
	Refresher Refresher

	// SearchLimit bounds the duplicate lookup. Zero means
	// DefaultDuplicateSearchLimit.
	SearchLimit int

	// OnProgress is called after every row.
	OnProgress ProgressCallback
}

// Run imports candidates in order and returns one result per candidate.
// A row failure never stops the run. ctx is passed to the directory only;
// timeouts are the directory's concern.
func (e *Executor) Run(ctx context.Context, candidates []Candidate, policy DuplicatePolicy) []ImportResult {
	logger := logging.FromContext(ctx)
	start := time.Now()

	results := make([]ImportResult, 0, len(candidates))
	cache := make(DSPCreationCache)
	progress := ImportProgress{Phase: PhaseImporting, Total: len(candidates)}

	for _, cand := range candidates {
		res := e.importOne(ctx, cand, policy, cache)
		results = append(results, res)

		progress.Processed++
		if res.Success {
			progress.Succeeded++
		} else {
			progress.Failed++
		}
		if e.OnProgress != nil {
			e.OnProgress(progress)
		}
	}

	if e.Refresher != nil {
		e.Refresher.RefreshContacts(ctx)
		e.Refresher.RefreshDSPs(ctx)
	}

	logger.Info("import run finished",
		"rows", len(candidates),
		"succeeded", progress.Succeeded,
		"failed", progress.Failed,
		"dsps_created", len(cache),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return results
}

// importOne runs a single row through duplicate check, DSP resolution and
// persistence.
func (e *Executor) importOne(ctx context.Context, cand Candidate, policy DuplicatePolicy, cache DSPCreationCache) ImportResult {
	contact := cand.Contact

	// Update is not implemented and behaves like create.
	if policy == DuplicateSkip && contact.Email != "" {
		limit := e.SearchLimit
		if limit <= 0 {
			limit = DefaultDuplicateSearchLimit
		}
		existing, err := e.Directory.SearchContactsByEmail(ctx, contact.Email, limit)
		if err != nil {
			return failedResult(cand.Row, contact, err)
		}
		if len(existing) > 0 {
			return ImportResult{
				Success: false,
				Row:     cand.Row,
				Data:    contact,
				Error:   DuplicateSkippedError,
				Code:    MapError(errDuplicateSkipped).Code,
			}
		}
	}

	if contact.DSPID == "" && (cand.Hints.DSPName != "" || cand.Hints.DSPCode != "") {
		e.resolveDSP(ctx, cand, &contact, cache)
	}

	created, err := e.Directory.CreateContact(ctx, contact)
	if err != nil {
		return failedResult(cand.Row, contact, err)
	}

	return ImportResult{
		Success: true,
		Row:     cand.Row,
		Data:    contact,
		Created: &created,
	}
}

// resolveDSP links the contact to a DSP created earlier in the run, or
// creates one when the row names it. Creation failure is logged and the
// row continues without a DSP.
func (e *Executor) resolveDSP(ctx context.Context, cand Candidate, contact *ContactInput, cache DSPCreationCache) {
	key := dspCacheKey(cand.Hints.DSPCode, cand.Hints.DSPName)
	if id, ok := cache[key]; ok {
		contact.setDSP(id)
		return
	}

	// A code alone is not enough to create a DSP.
	if cand.Hints.DSPName == "" {
		return
	}

	dsp, err := e.Directory.CreateDSP(ctx, NewDSP{
		Code:      cand.Hints.DSPCode,
		Name:      cand.Hints.DSPName,
		StationID: contact.StationID,
		IsActive:  true,
	})
	if err == nil && dsp.ID == "" {
		err = errors.New("create dsp returned no id")
	}
	if err != nil {
		logging.FromContext(ctx).Warn("dsp creation failed, importing contact without dsp",
			"row", cand.Row,
			"dsp_code", cand.Hints.DSPCode,
			"dsp_name", cand.Hints.DSPName,
			"error", err,
		)
		return
	}

	contact.setDSP(dsp.ID)
	cache[key] = dsp.ID
	if e.Catalogs != nil {
		e.Catalogs.AddDSP(dsp)
	}
}

var errDuplicateSkipped = errors.New("duplicate email skipped")

func failedResult(row int, contact ContactInput, err error) ImportResult {
	return ImportResult{
		Success: false,
		Row:     row,
		Data:    contact,
		Error:   err.Error(),
		Code:    MapError(err).Code,
	}
}
