package register

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pos/internal/obs"
)

const defaultIdleTTL = 12 * time.Hour

type slot struct {
	mu      sync.Mutex
	session *Session
	closed  bool
}

// Manager owns the open register sessions. Operations on one session are
// serialised; different sessions proceed independently.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*slot
	taxRate  decimal.Decimal
	idleTTL  time.Duration
	now      func() time.Time
	logger   zerolog.Logger
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	TaxRate decimal.Decimal
	IdleTTL time.Duration
	Now     func() time.Time
	Logger  zerolog.Logger
}

// NewManager constructs a Manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaultIdleTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.TaxRate.IsNegative() {
		cfg.TaxRate = decimal.Zero
	}
	return &Manager{
		sessions: make(map[string]*slot),
		taxRate:  cfg.TaxRate,
		idleTTL:  cfg.IdleTTL,
		now:      cfg.Now,
		logger:   cfg.Logger,
	}
}

// Open starts a new session with an empty cart.
func (m *Manager) Open() State {
	s := newSession(uuid.NewString(), m.taxRate, m.now())
	m.mu.Lock()
	m.sessions[s.ID] = &slot{session: s}
	n := len(m.sessions)
	m.mu.Unlock()

	obs.SetOpenSessions(n)
	m.logger.Info().Str("session_id", s.ID).Msg("register_opened")
	return s.State()
}

// With runs fn with exclusive access to the session.
func (m *Manager) With(id string, fn func(*Session) error) error {
	m.mu.Lock()
	sl, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.closed {
		return ErrSessionNotFound
	}
	sl.session.LastActive = m.now()
	return fn(sl.session)
}

// Close ends the session and discards its cart.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	sl, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	n := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	sl.mu.Lock()
	sl.closed = true
	sl.mu.Unlock()

	obs.SetOpenSessions(n)
	m.logger.Info().Str("session_id", id).Msg("register_closed")
	return nil
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep closes sessions idle since before now minus the idle TTL. Sessions
// busy in With are skipped and reconsidered on the next sweep.
func (m *Manager) Sweep(now time.Time) int {
	cutoff := now.Add(-m.idleTTL)
	m.mu.Lock()
	removed := 0
	for id, sl := range m.sessions {
		if !sl.mu.TryLock() {
			continue
		}
		if sl.session.LastActive.Before(cutoff) {
			sl.closed = true
			delete(m.sessions, id)
			removed++
		}
		sl.mu.Unlock()
	}
	n := len(m.sessions)
	m.mu.Unlock()

	if removed > 0 {
		obs.SetOpenSessions(n)
		m.logger.Info().Int("expired", removed).Int("open", n).Msg("register_sessions_expired")
	}
	return removed
}

// Run sweeps idle sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(m.now())
		}
	}
}
