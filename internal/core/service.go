package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/contactimport/internal/logging"
	"github.com/JonMunkholm/contactimport/internal/tabular"
)

var (
	// ErrSessionNotFound is returned for unknown or expired import ids.
	ErrSessionNotFound = errors.New("import not found")

	// ErrAlreadyStarted is returned when an import is run or remapped twice.
	ErrAlreadyStarted = errors.New("import already started")

	// ErrNotFinished is returned when a report is requested before the run ends.
	ErrNotFinished = errors.New("import not finished")
)

// Default service settings.
const (
	DefaultRunTimeout = 10 * time.Minute
	DefaultSessionTTL = 30 * time.Minute
)

// Store is everything the service needs from persistence.
type Store interface {
	ContactDirectory
	CatalogSource
	ContactLister
}

// ServiceConfig tunes the import service.
type ServiceConfig struct {
	MaxConcurrent int
	MaxWait       time.Duration
	RunTimeout    time.Duration
	SessionTTL    time.Duration
	SearchLimit   int
	DefaultPolicy DuplicatePolicy
	Suggestions   SuggestionTable // nil means DefaultSuggestions
}

// Service manages import sessions: upload, mapping, prepare, preview, run
// and report.
type Service struct {
	store     Store
	refresher Refresher
	engine    *MappingEngine
	limiter   *ImportLimiter
	cfg       ServiceConfig

	mu      sync.RWMutex
	imports map[string]*activeImport

	running sync.WaitGroup
}

type activeImport struct {
	ID        string
	FileName  string
	Headers   []string
	Rows      []RawRow
	CreatedAt time.Time

	mu       sync.Mutex
	Mappings Mappings
	Prepared *Prepared
	Catalogs *Catalogs
	Progress ImportProgress
	Report   *RunReport
	Started  bool

	Done       chan struct{}
	finishOnce sync.Once

	ListenerMu sync.Mutex
	Listeners  []chan ImportProgress
}

// ImportSession is a snapshot of an import for callers.
type ImportSession struct {
	ID        string         `json:"id"`
	FileName  string         `json:"file_name"`
	Headers   []string       `json:"headers"`
	Mappings  Mappings       `json:"mappings"`
	RowCount  int            `json:"row_count"`
	Phase     ImportPhase    `json:"phase"`
	Progress  ImportProgress `json:"progress"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewService creates a Service. refresher may be nil.
func NewService(store Store, refresher Refresher, cfg ServiceConfig) *Service {
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = DefaultRunTimeout
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = DefaultDuplicateSearchLimit
	}
	if cfg.DefaultPolicy == "" {
		cfg.DefaultPolicy = DuplicateSkip
	}
	suggestions := cfg.Suggestions
	if suggestions == nil {
		suggestions = DefaultSuggestions()
	}

	return &Service{
		store:     store,
		refresher: refresher,
		engine:    NewMappingEngine(suggestions),
		limiter:   NewImportLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		cfg:       cfg,
		imports:   make(map[string]*activeImport),
	}
}

// Engine returns the mapping engine used for new imports.
func (s *Service) Engine() *MappingEngine { return s.engine }

// LimiterStatus reports how many runs are in flight.
func (s *Service) LimiterStatus() ImportLimiterStatus { return s.limiter.Status() }

// DefaultPolicy is the policy used when a run does not name one.
func (s *Service) DefaultPolicy() DuplicatePolicy { return s.cfg.DefaultPolicy }

// StartImport decodes a file and opens a session with suggested mappings.
func (s *Service) StartImport(ctx context.Context, fileName string, r io.Reader) (ImportSession, error) {
	table, err := tabular.Parse(fileName, r)
	if err != nil {
		return ImportSession{}, fmt.Errorf("parse %s: %w", fileName, err)
	}

	id := uuid.New().String()
	imp := &activeImport{
		ID:        id,
		FileName:  fileName,
		Headers:   table.Headers,
		Rows:      table.Rows,
		CreatedAt: time.Now(),
		Mappings:  s.engine.Suggest(nonEmpty(table.Headers)),
		Progress: ImportProgress{
			ImportID: id,
			Phase:    PhaseMapping,
			FileName: fileName,
			Total:    len(table.Rows),
		},
		Done: make(chan struct{}),
	}

	s.mu.Lock()
	s.imports[id] = imp
	s.mu.Unlock()

	s.expireIfIdle(id, s.cfg.SessionTTL)

	logging.WithFields(ctx, "import_id", id, "file", fileName).Info("import session opened",
		"columns", len(table.Headers),
		"rows", len(table.Rows),
	)

	return imp.snapshot(), nil
}

// GetImport returns the current state of a session.
func (s *Service) GetImport(id string) (ImportSession, error) {
	imp, err := s.get(id)
	if err != nil {
		return ImportSession{}, err
	}
	return imp.snapshot(), nil
}

// UpdateMapping overwrites the target of the named columns. Any earlier
// preparation is discarded.
func (s *Service) UpdateMapping(id string, changes map[string]string) (ImportSession, error) {
	imp, err := s.get(id)
	if err != nil {
		return ImportSession{}, err
	}

	imp.mu.Lock()
	defer imp.mu.Unlock()

	if imp.Started {
		return ImportSession{}, ErrAlreadyStarted
	}

	next := imp.Mappings.Clone()
	for column, target := range changes {
		f, err := ParseTargetField(target)
		if err != nil {
			return ImportSession{}, err
		}
		next.Set(column, f)
	}
	if err := ValidateMappings(imp.Headers, next); err != nil {
		return ImportSession{}, err
	}

	imp.Mappings = next
	imp.Prepared = nil
	imp.Progress.Phase = PhaseMapping
	return imp.snapshotLocked(), nil
}

// Prepare transforms and gates every row against freshly loaded catalogs.
func (s *Service) Prepare(ctx context.Context, id string) (*Prepared, error) {
	imp, err := s.get(id)
	if err != nil {
		return nil, err
	}

	imp.mu.Lock()
	defer imp.mu.Unlock()

	if imp.Started {
		return imp.Prepared, nil
	}
	if err := s.prepareLocked(ctx, imp); err != nil {
		return nil, err
	}
	return imp.Prepared, nil
}

func (s *Service) prepareLocked(ctx context.Context, imp *activeImport) error {
	catalogs, err := LoadCatalogs(ctx, s.store)
	if err != nil {
		return fmt.Errorf("load catalogs: %w", err)
	}

	prepared := Prepare(ctx, imp.Rows, imp.Mappings, NewTransformer(catalogs))
	imp.Catalogs = catalogs
	imp.Prepared = &prepared
	imp.Progress.Phase = PhaseReview
	imp.Progress.Total = len(prepared.Candidates)

	logging.WithFields(ctx, "import_id", imp.ID).Info("import prepared",
		"rows", prepared.TotalRows,
		"accepted", len(prepared.Candidates),
		"rejected", prepared.Rejected,
		"dropped", prepared.Dropped,
		"issues", len(prepared.Issues),
	)
	return nil
}

// Preview analyzes the prepared candidates without writing anything.
func (s *Service) Preview(ctx context.Context, id string) (*PreviewResponse, error) {
	imp, err := s.get(id)
	if err != nil {
		return nil, err
	}

	imp.mu.Lock()
	if imp.Prepared == nil {
		if err := s.prepareLocked(ctx, imp); err != nil {
			imp.mu.Unlock()
			return nil, err
		}
	}
	candidates := imp.Prepared.Candidates
	catalogs := imp.Catalogs
	imp.mu.Unlock()

	existing, err := s.store.ListContacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}

	return AnalyzeImport(candidates, catalogs, existing), nil
}

// Run starts importing the prepared candidates in the background. It waits
// for a free slot and returns ErrTooManyImports if none frees up in time.
func (s *Service) Run(ctx context.Context, id string, policy DuplicatePolicy) error {
	imp, err := s.get(id)
	if err != nil {
		return err
	}
	if policy == "" {
		policy = s.cfg.DefaultPolicy
	}

	imp.mu.Lock()
	if imp.Started {
		imp.mu.Unlock()
		return ErrAlreadyStarted
	}
	if imp.Prepared == nil {
		if err := s.prepareLocked(ctx, imp); err != nil {
			imp.mu.Unlock()
			return err
		}
	}
	imp.mu.Unlock()

	if err := s.limiter.Acquire(ctx); err != nil {
		return err
	}

	imp.mu.Lock()
	if imp.Started {
		imp.mu.Unlock()
		s.limiter.Release()
		return ErrAlreadyStarted
	}
	imp.Started = true
	prepared := *imp.Prepared
	catalogs := imp.Catalogs
	imp.Progress.Phase = PhaseImporting
	imp.mu.Unlock()
	imp.notifyProgress()

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.RunTimeout)

	s.running.Add(1)
	go func() {
		defer s.running.Done()
		defer s.limiter.Release()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in import",
					"import_id", id,
					"panic", r,
				)
				imp.finish(ImportProgress{Phase: PhaseFailed, Error: fmt.Sprintf("internal error: %v", r)}, nil)
				s.cleanup(id, s.cfg.SessionTTL)
			}
		}()
		s.execute(runCtx, imp, prepared, catalogs, policy)
	}()

	return nil
}

func (s *Service) execute(ctx context.Context, imp *activeImport, prepared Prepared, catalogs *Catalogs, policy DuplicatePolicy) {
	ctx = logging.ContextWithLogger(ctx, logging.WithFields(ctx, "import_id", imp.ID, "file", imp.FileName))
	started := time.Now()

	exec := &Executor{
		Directory:   s.store,
		Catalogs:    catalogs,
		Refresher:   s.refresher,
		SearchLimit: s.cfg.SearchLimit,
		OnProgress: func(p ImportProgress) {
			imp.mu.Lock()
			imp.Progress.Processed = p.Processed
			imp.Progress.Succeeded = p.Succeeded
			imp.Progress.Failed = p.Failed
			imp.mu.Unlock()
			imp.notifyProgress()
		},
	}

	results := exec.Run(ctx, prepared.Candidates, policy)
	report := NewRunReport(imp.ID, imp.FileName, policy, prepared, results, started, time.Now())

	imp.finish(ImportProgress{Phase: PhaseComplete}, &report)
	s.cleanup(imp.ID, s.cfg.SessionTTL)
}

// SubscribeProgress returns a channel of progress updates. The channel is
// closed when the run ends.
func (s *Service) SubscribeProgress(id string) (<-chan ImportProgress, error) {
	imp, err := s.get(id)
	if err != nil {
		return nil, err
	}

	ch := make(chan ImportProgress, 10)

	imp.ListenerMu.Lock()
	defer imp.ListenerMu.Unlock()

	ch <- imp.currentProgress()
	select {
	case <-imp.Done:
		close(ch)
	default:
		imp.Listeners = append(imp.Listeners, ch)
	}
	return ch, nil
}

// GetProgress returns the current progress without blocking.
func (s *Service) GetProgress(id string) (ImportProgress, error) {
	imp, err := s.get(id)
	if err != nil {
		return ImportProgress{}, err
	}
	return imp.currentProgress(), nil
}

// GetReport returns the report of a finished run, or ErrNotFinished.
func (s *Service) GetReport(id string) (*RunReport, error) {
	imp, err := s.get(id)
	if err != nil {
		return nil, err
	}
	select {
	case <-imp.Done:
	default:
		return nil, ErrNotFinished
	}
	imp.mu.Lock()
	defer imp.mu.Unlock()
	if imp.Report == nil {
		return nil, fmt.Errorf("import failed: %s", imp.Progress.Error)
	}
	return imp.Report, nil
}

// WaitReport blocks until the run ends or ctx is done.
func (s *Service) WaitReport(ctx context.Context, id string) (*RunReport, error) {
	imp, err := s.get(id)
	if err != nil {
		return nil, err
	}
	select {
	case <-imp.Done:
		return s.GetReport(id)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// WaitForImports blocks until every running import has finished or ctx is
// done. Used during graceful shutdown.
func (s *Service) WaitForImports(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) get(id string) (*activeImport, error) {
	s.mu.RLock()
	imp, ok := s.imports[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return imp, nil
}

// cleanup removes the import from tracking after a delay.
func (s *Service) cleanup(id string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.imports, id)
		s.mu.Unlock()
	})
}

// expireIfIdle drops a session that was never run once ttl passes. Started
// sessions are cleaned up when their run ends.
func (s *Service) expireIfIdle(id string, ttl time.Duration) {
	time.AfterFunc(ttl, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		imp, ok := s.imports[id]
		if !ok {
			return
		}
		imp.mu.Lock()
		started := imp.Started
		imp.mu.Unlock()
		if !started {
			delete(s.imports, id)
		}
	})
}

func (imp *activeImport) snapshot() ImportSession {
	imp.mu.Lock()
	defer imp.mu.Unlock()
	return imp.snapshotLocked()
}

func (imp *activeImport) snapshotLocked() ImportSession {
	return ImportSession{
		ID:        imp.ID,
		FileName:  imp.FileName,
		Headers:   imp.Headers,
		Mappings:  imp.Mappings.Clone(),
		RowCount:  len(imp.Rows),
		Phase:     imp.Progress.Phase,
		Progress:  imp.Progress,
		CreatedAt: imp.CreatedAt,
	}
}

func (imp *activeImport) currentProgress() ImportProgress {
	imp.mu.Lock()
	defer imp.mu.Unlock()
	return imp.Progress
}

// finish records the final phase and report, closes listeners and wakes
// waiters. Counts already in Progress are kept. Only the first call counts.
func (imp *activeImport) finish(final ImportProgress, report *RunReport) {
	imp.finishOnce.Do(func() {
		imp.mu.Lock()
		imp.Progress.Phase = final.Phase
		imp.Progress.Error = final.Error
		imp.Report = report
		imp.mu.Unlock()

		imp.notifyProgress()

		imp.ListenerMu.Lock()
		defer imp.ListenerMu.Unlock()
		for _, ch := range imp.Listeners {
			close(ch)
		}
		imp.Listeners = nil
		close(imp.Done)
	})
}

// notifyProgress sends the current progress to all listeners.
func (imp *activeImport) notifyProgress() {
	p := imp.currentProgress()

	imp.ListenerMu.Lock()
	defer imp.ListenerMu.Unlock()

	for _, ch := range imp.Listeners {
		select {
		case ch <- p:
		default:
			// Listener is slow, skip this update
		}
	}
}

func nonEmpty(headers []string) []string {
	out := make([]string, 0, len(headers))
	for _, h := range headers {
		if h != "" {
			out = append(out, h)
		}
	}
	return out
}
