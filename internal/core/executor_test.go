package core

import (
	"context"
	"errors"
	"testing"
)

func candidate(rowNum int, c ContactInput, h StagingHints) Candidate {
	if c.Status == "" {
		c.Status = StatusNew
	}
	return Candidate{Row: rowNum, Contact: c, Hints: h}
}

func TestExecutor_SameBatchDSPCreatedOnce(t *testing.T) {
	store := newFakeStore()
	catalogs := testCatalogs()
	exec := &Executor{Directory: store, Catalogs: catalogs}

	hints := StagingHints{DSPName: "Thunder Express"}
	cands := []Candidate{
		candidate(1, ContactInput{Email: "a@example.com"}, hints),
		candidate(2, ContactInput{Email: "b@example.com"}, hints),
		candidate(3, ContactInput{Email: "c@example.com"}, hints),
	}

	results := exec.Run(context.Background(), cands, DuplicateCreate)

	if len(store.dspCalls) != 1 {
		t.Fatalf("CreateDSP called %d times, want 1", len(store.dspCalls))
	}
	want := NewDSP{Code: "", Name: "Thunder Express", IsActive: true}
	if store.dspCalls[0] != want {
		t.Errorf("CreateDSP payload = %+v, want %+v", store.dspCalls[0], want)
	}

	dspID := results[0].Data.DSPID
	if dspID == "" {
		t.Fatal("first row has no DSP id")
	}
	for _, r := range results {
		if !r.Success {
			t.Errorf("row %d failed: %s", r.Row, r.Error)
		}
		if r.Data.DSPID != dspID {
			t.Errorf("row %d DSPID = %q, want %q", r.Row, r.Data.DSPID, dspID)
		}
	}

	if _, ok := catalogs.DSPByName("Thunder Express"); !ok {
		t.Error("created DSP not added to catalogs")
	}
}

func TestExecutor_DSPCacheKeyIncludesCode(t *testing.T) {
	store := newFakeStore()
	exec := &Executor{Directory: store}

	cands := []Candidate{
		candidate(1, ContactInput{Email: "a@example.com"}, StagingHints{DSPCode: "T1", DSPName: "Thunder"}),
		candidate(2, ContactInput{Email: "b@example.com"}, StagingHints{DSPCode: "T2", DSPName: "Thunder"}),
		candidate(3, ContactInput{Email: "c@example.com"}, StagingHints{DSPCode: "T1", DSPName: "Thunder"}),
	}
	results := exec.Run(context.Background(), cands, DuplicateCreate)

	if len(store.dspCalls) != 2 {
		t.Errorf("CreateDSP called %d times, want 2", len(store.dspCalls))
	}
	if results[0].Data.DSPID != results[2].Data.DSPID || results[0].Data.DSPID == results[1].Data.DSPID {
		t.Errorf("DSP ids = %q %q %q, want rows 1 and 3 shared", results[0].Data.DSPID, results[1].Data.DSPID, results[2].Data.DSPID)
	}
}

func TestExecutor_DSPCreationPayload(t *testing.T) {
	store := newFakeStore()
	exec := &Executor{Directory: store}

	cand := candidate(1, ContactInput{Email: "a@example.com", StationID: "st-lax", MarketID: "m-west"},
		StagingHints{DSPCode: "TX9", DSPName: "Thunder Express", StationRef: "LAX3", DSPRef: "ignored"})
	exec.Run(context.Background(), []Candidate{cand}, DuplicateCreate)

	want := NewDSP{Code: "TX9", Name: "Thunder Express", StationID: "st-lax", IsActive: true}
	if len(store.dspCalls) != 1 || store.dspCalls[0] != want {
		t.Errorf("CreateDSP calls = %+v, want [%+v]", store.dspCalls, want)
	}
}

func TestExecutor_CodeAloneDoesNotCreate(t *testing.T) {
	store := newFakeStore()
	exec := &Executor{Directory: store}

	results := exec.Run(context.Background(), []Candidate{
		candidate(1, ContactInput{Email: "a@example.com"}, StagingHints{DSPCode: "NEW1"}),
	}, DuplicateCreate)

	if len(store.dspCalls) != 0 {
		t.Errorf("CreateDSP called %d times, want 0", len(store.dspCalls))
	}
	if !results[0].Success || results[0].Data.DSPID != "" {
		t.Errorf("result = %+v, want success without DSP", results[0])
	}
}

func TestExecutor_ResolvedDSPNotRecreated(t *testing.T) {
	store := newFakeStore()
	exec := &Executor{Directory: store}

	exec.Run(context.Background(), []Candidate{
		candidate(1, ContactInput{Email: "a@example.com", DSPID: "d-light"}, StagingHints{DSPName: "Lightning Logistics"}),
	}, DuplicateCreate)

	if len(store.dspCalls) != 0 {
		t.Errorf("CreateDSP called %d times, want 0", len(store.dspCalls))
	}
}

func TestExecutor_DSPFailureIsSoft(t *testing.T) {
	store := newFakeStore()
	store.dspErr = errBoom
	exec := &Executor{Directory: store}

	hints := StagingHints{DSPName: "Thunder Express"}
	results := exec.Run(context.Background(), []Candidate{
		candidate(1, ContactInput{Email: "a@example.com"}, hints),
		candidate(2, ContactInput{Email: "b@example.com"}, hints),
	}, DuplicateCreate)

	for _, r := range results {
		if !r.Success || r.Data.DSPID != "" {
			t.Errorf("row %d = %+v, want success without DSP", r.Row, r)
		}
	}
	// Failures are not cached, so the second row tries again.
	if len(store.dspCalls) != 2 {
		t.Errorf("CreateDSP called %d times, want 2", len(store.dspCalls))
	}
}

func TestExecutor_SkipDuplicates(t *testing.T) {
	store := newFakeStore()
	store.contacts = []Contact{{ID: "existing", ContactInput: ContactInput{Email: "taken@example.com"}}}
	exec := &Executor{Directory: store}

	cands := []Candidate{
		candidate(1, ContactInput{Email: "taken@example.com"}, StagingHints{DSPName: "Thunder Express"}),
		candidate(2, ContactInput{Email: "new@example.com"}, StagingHints{}),
		candidate(3, ContactInput{FirstName: "No", LastName: "Email"}, StagingHints{}),
	}
	results := exec.Run(context.Background(), cands, DuplicateSkip)

	if results[0].Success || results[0].Error != DuplicateSkippedError {
		t.Errorf("row 1 = %+v, want duplicate skip", results[0])
	}
	if results[0].Code != "IMP001" {
		t.Errorf("row 1 code = %q, want IMP001", results[0].Code)
	}
	if !results[1].Success || !results[2].Success {
		t.Errorf("rows 2 and 3 should succeed: %+v %+v", results[1], results[2])
	}

	for _, c := range store.contactCalls {
		if c.Email == "taken@example.com" {
			t.Error("CreateContact called for skipped duplicate")
		}
	}
	if len(store.dspCalls) != 0 {
		t.Error("CreateDSP called for skipped duplicate")
	}
	if len(store.searchCalls) != 2 {
		t.Errorf("search called %d times, want 2 (rows with email only)", len(store.searchCalls))
	}
}

func TestExecutor_CreateAndUpdateBypassSearch(t *testing.T) {
	for _, policy := range []DuplicatePolicy{DuplicateCreate, DuplicateUpdate} {
		store := newFakeStore()
		store.contacts = []Contact{{ID: "existing", ContactInput: ContactInput{Email: "taken@example.com"}}}
		exec := &Executor{Directory: store}

		results := exec.Run(context.Background(), []Candidate{
			candidate(1, ContactInput{Email: "taken@example.com"}, StagingHints{}),
		}, policy)

		if !results[0].Success {
			t.Errorf("%s: result = %+v, want success", policy, results[0])
		}
		if len(store.searchCalls) != 0 {
			t.Errorf("%s: search called %d times, want 0", policy, len(store.searchCalls))
		}
	}
}

func TestExecutor_ContactFailureIsolated(t *testing.T) {
	store := newFakeStore()
	store.contactErrs["bad@example.com"] = errors.New(`ERROR: duplicate key value violates unique constraint "contacts_email_key"`)
	exec := &Executor{Directory: store}

	results := exec.Run(context.Background(), []Candidate{
		candidate(1, ContactInput{Email: "ok1@example.com"}, StagingHints{}),
		candidate(5, ContactInput{Email: "bad@example.com"}, StagingHints{}),
		candidate(9, ContactInput{Email: "ok2@example.com"}, StagingHints{}),
	}, DuplicateCreate)

	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	bad := results[1]
	if bad.Success || bad.Row != 5 || bad.Code != "DB001" || bad.Error == "" {
		t.Errorf("failed row = %+v, want row 5 failure with DB001", bad)
	}
	if !results[0].Success || !results[2].Success || results[2].Created == nil {
		t.Errorf("other rows should succeed: %+v %+v", results[0], results[2])
	}
}

func TestExecutor_SearchErrorFailsRow(t *testing.T) {
	store := newFakeStore()
	store.searchErr = errors.New("dial tcp: connection refused")
	exec := &Executor{Directory: store}

	results := exec.Run(context.Background(), []Candidate{
		candidate(1, ContactInput{Email: "a@example.com"}, StagingHints{}),
		candidate(2, ContactInput{Phone: "555-0100"}, StagingHints{}),
	}, DuplicateSkip)

	if results[0].Success || results[0].Code != "DB004" {
		t.Errorf("row 1 = %+v, want DB004 failure", results[0])
	}
	if !results[1].Success {
		t.Errorf("row 2 = %+v, want success", results[1])
	}
}

func TestExecutor_ProgressAndRefresh(t *testing.T) {
	store := newFakeStore()
	store.contactErrs["bad@example.com"] = errBoom

	var seen []ImportProgress
	exec := &Executor{
		Directory:  store,
		Refresher:  store,
		OnProgress: func(p ImportProgress) { seen = append(seen, p) },
	}

	exec.Run(context.Background(), []Candidate{
		candidate(1, ContactInput{Email: "a@example.com"}, StagingHints{}),
		candidate(2, ContactInput{Email: "bad@example.com"}, StagingHints{}),
		candidate(3, ContactInput{Email: "c@example.com"}, StagingHints{}),
		candidate(4, ContactInput{Email: "d@example.com"}, StagingHints{}),
	}, DuplicateCreate)

	if len(seen) != 4 {
		t.Fatalf("progress callbacks = %d, want 4", len(seen))
	}
	wantPercent := []int{25, 50, 75, 100}
	for i, p := range seen {
		if p.Percent() != wantPercent[i] {
			t.Errorf("progress[%d] = %d%%, want %d%%", i, p.Percent(), wantPercent[i])
		}
	}
	last := seen[3]
	if last.Succeeded != 3 || last.Failed != 1 {
		t.Errorf("final progress = %+v, want 3 succeeded 1 failed", last)
	}
	if store.refreshedContacts != 1 || store.refreshedDSPs != 1 {
		t.Errorf("refresh calls = %d/%d, want 1/1", store.refreshedContacts, store.refreshedDSPs)
	}
}

func TestExecutor_EmptyBatch(t *testing.T) {
	store := newFakeStore()
	exec := &Executor{Directory: store, Refresher: store}

	if results := exec.Run(context.Background(), nil, DuplicateSkip); len(results) != 0 {
		t.Errorf("Run(nil) = %v, want no results", results)
	}
	if store.refreshedContacts != 1 {
		t.Errorf("refresh calls = %d, want 1", store.refreshedContacts)
	}
}
