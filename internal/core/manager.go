package core

// manager.go keeps the live import sessions and retires idle ones on a cron
// schedule. A session with a submission in flight is never swept.

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/JonMunkholm/txnimport/internal/logging"
)

// Manager defaults.
const (
	DefaultIdleTTL       = 30 * time.Minute
	DefaultSweepSchedule = "@every 1m"
)

// ManagerConfig configures session lifetime and limits.
type ManagerConfig struct {
	Session       SessionConfig
	IdleTTL       time.Duration
	SweepSchedule string
	MaxSessions   int // 0 means unlimited
}

// Manager is the registry of import sessions.
type Manager struct {
	submitter Submitter
	limiter   *ParseLimiter
	cfg       ManagerConfig
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session

	cron *cron.Cron
}

// NewManager creates a manager. A nil limiter gets the default limits.
func NewManager(submitter Submitter, limiter *ParseLimiter, cfg ManagerConfig) *Manager {
	if limiter == nil {
		limiter = NewParseLimiter(DefaultMaxConcurrentLoads, DefaultMaxWaitTime)
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	if cfg.SweepSchedule == "" {
		cfg.SweepSchedule = DefaultSweepSchedule
	}

	return &Manager{
		submitter: submitter,
		limiter:   limiter,
		cfg:       cfg,
		now:       time.Now,
		sessions:  make(map[string]*Session),
	}
}

// Create starts a new session with the import dialog open.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.MaxSessions > 0 && len(m.sessions) >= m.cfg.MaxSessions {
		return nil, fmt.Errorf("%w: limit is %d", ErrTooManySessions, m.cfg.MaxSessions)
	}

	id := uuid.NewString()
	s := NewSession(id, m.submitter, m.cfg.Session, logging.WithFields(ctx, "session_id", id))
	s.Open()
	m.sessions[id] = s

	return s, nil
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Remove closes a session and forgets it.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.Close()
	s.shutdown()
	return nil
}

// Load starts a file load on s that waits for a shared parse slot.
func (m *Manager) Load(ctx context.Context, s *Session, load LoadFunc) (View, error) {
	return s.StartLoad(ctx, m.limiter.Wrap(load))
}

// Limiter returns the shared parse limiter.
func (m *Manager) Limiter() *ParseLimiter {
	return m.limiter
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep removes sessions idle for longer than the configured TTL and returns how many.
// Each session is checked and closed under its own lock, so a submission that
// starts during the sweep keeps its session alive.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.cfg.IdleTTL)

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.expireIfIdle(cutoff) {
			delete(m.sessions, id)
			expired = append(expired, s)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.shutdown()
	}
	return len(expired)
}

// StartSweeper schedules Sweep on the configured cron schedule.
func (m *Manager) StartSweeper() error {
	c := cron.New()
	_, err := c.AddFunc(m.cfg.SweepSchedule, func() {
		if n := m.Sweep(); n > 0 {
			slog.Info("swept idle import sessions", "removed", n, "remaining", m.Count())
		}
	})
	if err != nil {
		return fmt.Errorf("schedule session sweeper %q: %w", m.cfg.SweepSchedule, err)
	}

	c.Start()
	m.cron = c
	slog.Info("session sweeper started", "schedule", m.cfg.SweepSchedule, "idle_ttl", m.cfg.IdleTTL)
	return nil
}

// Shutdown stops the sweeper, closes every session and waits for their goroutines.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.cron != nil {
		<-m.cron.Stop().Done()
	}

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
		s.shutdown()
	}

	done := make(chan struct{})
	go func() {
		for _, s := range sessions {
			s.Wait()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return m.limiter.WaitForDrain(ctx)
}
