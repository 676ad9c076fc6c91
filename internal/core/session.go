package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Default timeouts for the asynchronous calls of a session.
const (
	DefaultLoadTimeout   = 2 * time.Minute
	DefaultSubmitTimeout = time.Minute
)

// SessionConfig bounds the asynchronous work of one session.
type SessionConfig struct {
	LoadTimeout   time.Duration
	SubmitTimeout time.Duration
	MaxRows       int // 0 means unlimited
}

// Session is one user's import. All commands are safe for concurrent use;
// they are applied one at a time in arrival order.
type Session struct {
	id        string
	submitter Submitter
	cfg       SessionConfig
	logger    *slog.Logger

	mu           sync.Mutex
	state        State
	version      uint64
	lastActive   time.Time
	loadCancel   context.CancelFunc
	submitCancel context.CancelFunc

	listenerMu sync.Mutex
	listeners  map[chan View]struct{}
	closed     bool

	wg sync.WaitGroup
}

// NewSession creates an idle session. A nil logger uses slog.Default.
func NewSession(id string, submitter Submitter, cfg SessionConfig, logger *slog.Logger) *Session {
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = DefaultLoadTimeout
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = DefaultSubmitTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{
		id:         id,
		submitter:  submitter,
		cfg:        cfg,
		logger:     logger,
		state:      NewState(),
		lastActive: time.Now(),
		listeners:  make(map[chan View]struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Snapshot returns the current view.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// State returns a copy of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Open shows the import dialog.
func (s *Session) Open() View {
	v, _ := s.apply(OpenDialog{})
	return v
}

// StartLoad supersedes any running load and parses a new file in the background.
// ctx supplies request values for logging; its cancellation does not stop the load.
func (s *Session) StartLoad(ctx context.Context, load LoadFunc) (View, error) {
	s.mu.Lock()
	next, err := Reduce(s.state, LoadStarted{})
	if err != nil {
		v := s.viewLocked()
		s.mu.Unlock()
		return v, err
	}
	s.commitLocked(next)

	if s.loadCancel != nil {
		s.loadCancel()
	}
	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.LoadTimeout)
	s.loadCancel = cancel
	gen := next.loadGen

	v := s.viewLocked()
	s.wg.Add(1)
	s.mu.Unlock()

	s.broadcast(v)
	s.logger.Info("file load started", "generation", gen)

	go s.runLoad(loadCtx, cancel, gen, load)
	return v, nil
}

// RejectLoad records a file that failed before parsing could start. It has the
// same effect as a load that failed: the working set is cleared, any running
// load is superseded and LoadError carries err.
func (s *Session) RejectLoad(err error) (View, error) {
	s.mu.Lock()
	started, rerr := Reduce(s.state, LoadStarted{})
	if rerr != nil {
		v := s.viewLocked()
		s.mu.Unlock()
		return v, rerr
	}
	next, rerr := Reduce(started, LoadFailed{Gen: started.loadGen, Err: err})
	if rerr != nil {
		v := s.viewLocked()
		s.mu.Unlock()
		return v, rerr
	}
	s.commitLocked(next)
	if s.loadCancel != nil {
		s.loadCancel()
		s.loadCancel = nil
	}
	v := s.viewLocked()
	s.mu.Unlock()

	s.broadcast(v)
	s.logger.Warn("file rejected", "generation", next.loadGen, "error", err)
	return v, nil
}

func (s *Session) runLoad(ctx context.Context, cancel context.CancelFunc, gen uint64, load LoadFunc) {
	defer s.wg.Done()
	defer cancel()

	start := time.Now()
	raw, err := s.safeLoad(ctx, load)
	if err == nil && s.cfg.MaxRows > 0 && len(raw) > s.cfg.MaxRows {
		err = fmt.Errorf("%w: %d rows exceeds limit of %d", ErrTooManyRows, len(raw), s.cfg.MaxRows)
	}

	if err != nil {
		if _, ok := s.resolve(LoadFailed{Gen: gen, Err: err}); ok {
			s.logger.Warn("file load failed", "generation", gen, "error", err)
		}
		return
	}

	if v, ok := s.resolve(LoadSucceeded{Gen: gen, Rows: ingest(raw)}); ok {
		s.logger.Info("file loaded",
			"generation", gen,
			"rows", len(v.Rows),
			"invalid_rows", v.InvalidCount,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// safeLoad turns a parser panic into a load error.
func (s *Session) safeLoad(ctx context.Context, load LoadFunc) (rows []RawRow, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in file load", "panic", r)
			err = fmt.Errorf("internal error: %v", r)
		}
	}()
	return load(ctx)
}

// ingest assigns fresh ids to parsed rows.
func ingest(raw []RawRow) []WorkingRow {
	rows := make([]WorkingRow, len(raw))
	for i, r := range raw {
		rows[i] = WorkingRow{
			ID:          uuid.NewString(),
			Date:        r.Date,
			Amount:      r.Amount,
			Description: r.Description,
			Category:    r.Category,
			CategoryID:  r.CategoryID,
			Receipt:     r.Receipt,
		}
	}
	return rows
}

// EditRow sets one field of a row and re-validates that row.
func (s *Session) EditRow(id, field, value string) (View, error) {
	return s.apply(EditRow{ID: id, Field: field, Value: value})
}

// DeleteRow removes a row from the working set.
func (s *Session) DeleteRow(id string) (View, error) {
	return s.apply(DeleteRow{ID: id})
}

// AttachReceipt stores the attachment validator's outcome for a row.
// A non-nil validationErr is shown on the row and drops any earlier receipt.
func (s *Session) AttachReceipt(id string, receipt *Receipt, validationErr error) (View, error) {
	a := AttachReceipt{ID: id, Receipt: receipt}
	if validationErr != nil {
		a.Err = validationErr.Error()
	}
	return s.apply(a)
}

// Submit sends the working set to the batch endpoint in display order.
// The response is reconciled in the background; watch the session for the outcome.
func (s *Session) Submit(ctx context.Context) (View, error) {
	s.mu.Lock()
	next, err := Reduce(s.state, SubmitStarted{})
	if err != nil {
		v := s.viewLocked()
		s.mu.Unlock()
		return v, err
	}
	s.commitLocked(next)

	rows := next.submission()
	submitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.SubmitTimeout)
	s.submitCancel = cancel
	gen := next.submitGen

	v := s.viewLocked()
	s.wg.Add(1)
	s.mu.Unlock()

	s.broadcast(v)
	s.logger.Info("batch submit started", "generation", gen, "rows", len(rows))

	go s.runSubmit(submitCtx, cancel, gen, rows)
	return v, nil
}

func (s *Session) runSubmit(ctx context.Context, cancel context.CancelFunc, gen uint64, rows []SubmitRow) {
	defer s.wg.Done()
	defer cancel()

	start := time.Now()
	resp, err := s.submitter.Submit(ctx, rows)
	if err != nil {
		if _, ok := s.resolve(SubmitFailed{Gen: gen, Err: err}); ok {
			s.logger.Warn("batch submit failed", "generation", gen, "error", err)
		}
		return
	}

	v, ok := s.resolve(SubmitResponded{Gen: gen, Response: resp})
	if !ok {
		return
	}
	if v.SubmitError != nil {
		s.logger.Warn("batch response rejected", "generation", gen, "code", v.SubmitError.Code)
		return
	}
	s.logger.Info("batch reconciled",
		"generation", gen,
		"imported", len(rows)-len(v.ImportErrors),
		"errored", len(v.ImportErrors),
		"phase", v.Phase,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// ClearImportErrors dismisses server-reported row errors.
func (s *Session) ClearImportErrors() View {
	v, _ := s.apply(ClearImportErrors{})
	return v
}

// Close abandons the import: in-flight calls are cancelled and their results ignored.
func (s *Session) Close() View {
	s.mu.Lock()
	v := s.closeLocked()
	s.mu.Unlock()

	s.broadcast(v)
	return v
}

// expireIfIdle closes the session if it has not changed since before cutoff
// and no submission is in flight. A submit racing with it either wins the
// lock first, and the session is kept, or finds the session closed.
func (s *Session) expireIfIdle(cutoff time.Time) bool {
	s.mu.Lock()
	if s.state.Saving || !s.lastActive.Before(cutoff) {
		s.mu.Unlock()
		return false
	}
	v := s.closeLocked()
	s.mu.Unlock()

	s.broadcast(v)
	return true
}

func (s *Session) closeLocked() View {
	next, _ := Reduce(s.state, CloseDialog{})
	s.commitLocked(next)
	if s.loadCancel != nil {
		s.loadCancel()
		s.loadCancel = nil
	}
	if s.submitCancel != nil {
		s.submitCancel()
		s.submitCancel = nil
	}
	return s.viewLocked()
}

// Wait blocks until no load or submit goroutine is running.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Subscribe returns a channel that receives the current view and every later one.
// Slow readers miss intermediate views; compare View.Version to order them.
// The channel is closed when ctx is done or the session is removed.
func (s *Session) Subscribe(ctx context.Context) <-chan View {
	ch := make(chan View, 16)

	s.listenerMu.Lock()
	if s.closed {
		s.listenerMu.Unlock()
		close(ch)
		return ch
	}
	s.listeners[ch] = struct{}{}
	ch <- s.Snapshot()
	s.listenerMu.Unlock()

	go func() {
		<-ctx.Done()
		s.unsubscribe(ch)
	}()

	return ch
}

func (s *Session) unsubscribe(ch chan View) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	if _, ok := s.listeners[ch]; ok {
		delete(s.listeners, ch)
		close(ch)
	}
}

func (s *Session) broadcast(v View) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	for ch := range s.listeners {
		select {
		case ch <- v:
		default:
			// Listener is slow, skip this update
		}
	}
}

// shutdown closes every listener. The session must not be used afterwards.
func (s *Session) shutdown() {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	s.closed = true
	for ch := range s.listeners {
		close(ch)
	}
	s.listeners = make(map[chan View]struct{})
}

// apply reduces a and broadcasts the new view.
func (s *Session) apply(a Action) (View, error) {
	s.mu.Lock()
	next, err := Reduce(s.state, a)
	if err != nil {
		v := s.viewLocked()
		s.mu.Unlock()
		return v, err
	}
	s.commitLocked(next)
	v := s.viewLocked()
	s.mu.Unlock()

	s.broadcast(v)
	return v, nil
}

// resolve applies an async result. Stale results are logged and dropped; ok is false for them.
func (s *Session) resolve(a Action) (View, bool) {
	v, err := s.apply(a)
	if errors.Is(err, ErrStale) {
		s.logger.Debug("discarding stale result", "action", a.actionName())
		return v, false
	}
	if err != nil {
		s.logger.Error("apply async result", "action", a.actionName(), "error", err)
		return v, false
	}
	return v, true
}

func (s *Session) commitLocked(next State) {
	s.state = next
	s.version++
	s.lastActive = time.Now()
}

func (s *Session) viewLocked() View {
	return buildView(s.id, s.version, s.state)
}
