package service

import (
	"context"
	"sync"
	"time"

	"github.com/boddenberg/globalsend-bfa-go/internal/domain"
	"github.com/boddenberg/globalsend-bfa-go/internal/infra/cache"
	"github.com/boddenberg/globalsend-bfa-go/internal/infra/observability"
	"github.com/boddenberg/globalsend-bfa-go/internal/port"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionConfig holds the timings of a session.
type SessionConfig struct {
	BalanceRefresh  time.Duration
	RatesStaleAfter time.Duration
	IdleTTL         time.Duration
}

// Session is everything one authenticated principal owns: its entity cache,
// the accessors and mutations bound to it, and its open drafts. It exists
// between login and logout.
type Session struct {
	Store   *cache.Store
	Reader  *Reader
	Mutator *Mutator

	metrics *observability.Metrics
	logger  *zap.Logger

	mu        sync.Mutex
	principal domain.Principal
	drafts    map[string]*TransferWizard
	lastSeen  time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

func newSession(p domain.Principal, ledger port.Ledger, cfg SessionConfig, metrics *observability.Metrics, logger *zap.Logger, now time.Time) *Session {
	logger = logger.With(zap.String("principal", p.ID))
	store := cache.New(append(
		CachePolicies(cfg.BalanceRefresh, cfg.RatesStaleAfter),
		cache.WithRecorder(metrics),
		cache.WithLogger(logger),
	)...)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		Store:     store,
		Reader:    NewReader(ledger, store, logger),
		Mutator:   NewMutator(ledger, store, metrics, logger),
		metrics:   metrics,
		logger:    logger,
		principal: p,
		drafts:    make(map[string]*TransferWizard),
		lastSeen:  now,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go s.pollBalance(ctx, cfg.BalanceRefresh)
	return s
}

// Principal returns the identity the session acts for.
func (s *Session) Principal() domain.Principal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.principal
}

// Context attaches the session's principal to ctx.
func (s *Session) Context(ctx context.Context) context.Context {
	return domain.WithPrincipal(ctx, s.Principal())
}

// NewDraft opens a send-money draft.
func (s *Session) NewDraft() *TransferWizard {
	id := uuid.NewString()
	w := NewTransferWizard(id, s.Reader, s.Mutator, s.metrics, s.logger)

	s.mu.Lock()
	s.drafts[id] = w
	s.mu.Unlock()

	s.logger.Debug("draft opened", zap.String("draft_id", id))
	return w
}

// Draft returns an open draft.
func (s *Session) Draft(id string) (*TransferWizard, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.drafts[id]
	return w, ok
}

// DiscardDraft drops a draft, whatever its step.
func (s *Session) DiscardDraft(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.drafts[id]
	delete(s.drafts, id)
	return ok
}

// FinishDraft closes a draft that reached Result and discards it.
func (s *Session) FinishDraft(id string) error {
	w, ok := s.Draft(id)
	if !ok {
		return &domain.ErrNotFound{Resource: "draft", ID: id}
	}
	if err := w.Done(); err != nil {
		return err
	}
	s.DiscardDraft(id)
	return nil
}

// DraftCount returns the number of open drafts.
func (s *Session) DraftCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.drafts)
}

func (s *Session) touch(p domain.Principal, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = now
	if p.Token != "" {
		s.principal = p
	}
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// pollBalance keeps the balance refreshing while the session lives.
func (s *Session) pollBalance(ctx context.Context, every time.Duration) {
	defer close(s.done)
	if every <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Store.Invalidate(KeyBalance)
			s.Reader.PeekBalance(s.Context(ctx))
		}
	}
}

func (s *Session) close() {
	s.cancel()
	<-s.done

	s.mu.Lock()
	s.drafts = make(map[string]*TransferWizard)
	s.mu.Unlock()

	s.Store.Reset()
}

// SessionManager creates a Session on login and tears it down on logout or
// after it has been idle too long.
type SessionManager struct {
	ledger  port.Ledger
	cfg     SessionConfig
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionManager creates a SessionManager.
func NewSessionManager(ledger port.Ledger, cfg SessionConfig, metrics *observability.Metrics, logger *zap.Logger) *SessionManager {
	return &SessionManager{
		ledger:   ledger,
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Open returns the principal's session, creating it on first login.
func (m *SessionManager) Open(p domain.Principal) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[p.ID]; ok {
		s.touch(p, m.now())
		return s
	}
	s := newSession(p, m.ledger, m.cfg, m.metrics, m.logger, m.now())
	m.sessions[p.ID] = s
	m.metrics.SessionOpened()
	m.logger.Info("session opened", zap.String("principal", p.ID))
	return s
}

// Get returns an existing session and marks it as active.
func (m *SessionManager) Get(p domain.Principal) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[p.ID]
	if ok {
		s.touch(p, m.now())
	}
	return s, ok
}

// Close tears down the principal's session. It reports whether one existed.
func (m *SessionManager) Close(principalID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[principalID]
	delete(m.sessions, principalID)
	m.mu.Unlock()

	if !ok {
		return false
	}
	s.close()
	m.metrics.SessionClosed()
	m.logger.Info("session closed", zap.String("principal", principalID))
	return true
}

// Len returns the number of open sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// EvictIdle closes every session idle for longer than the configured TTL and
// returns how many were closed.
func (m *SessionManager) EvictIdle() int {
	if m.cfg.IdleTTL <= 0 {
		return 0
	}
	now := m.now()

	m.mu.Lock()
	var idle []string
	for id, s := range m.sessions {
		if s.idleSince(now) > m.cfg.IdleTTL {
			idle = append(idle, id)
		}
	}
	m.mu.Unlock()

	n := 0
	for _, id := range idle {
		if m.Close(id) {
			n++
		}
	}
	if n > 0 {
		m.logger.Info("idle sessions evicted", zap.Int("count", n))
	}
	return n
}

// Run evicts idle sessions until ctx is done, then closes all of them.
func (m *SessionManager) Run(ctx context.Context) {
	every := m.cfg.IdleTTL / 2
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.CloseAll()
			return
		case <-ticker.C:
			m.EvictIdle()
		}
	}
}

// CloseAll tears down every session.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Close(id)
	}
}
