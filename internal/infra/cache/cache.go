// Package cache provides the session-scoped store of remote ledger entities.
// Entries track freshness, concurrent loads of one key are collapsed into a
// single remote call, and writes elsewhere invalidate or patch entries.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/boddenberg/globalsend-bfa-go/internal/port"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Key identifies one cached entity kind.
type Key string

// State is the freshness of a cache entry.
type State int

const (
	StateEmpty State = iota
	StateLoading
	StateReady
	StateStale
	StateError
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateStale:
		return "stale"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is a point-in-time copy of an entry. Value is the last successfully
// loaded (or Set) value and survives Stale, Loading and Error states.
type Snapshot struct {
	Key       Key
	State     State
	Value     any
	HasValue  bool
	FetchedAt time.Time
	Err       error
}

// Loader fetches the value of one key from the remote side.
type Loader func(ctx context.Context) (any, error)

type entry struct {
	value     any
	hasValue  bool
	fetchedAt time.Time
	state     State // Empty, Ready, Stale or Error
	loading   bool
	err       error
	gen       uint64
}

// Store is a thread-safe keyed store of remote entities.
type Store struct {
	mu     sync.Mutex
	items  map[Key]*entry
	maxAge map[Key]time.Duration
	seq    uint64

	flights  singleflight.Group
	recorder port.CacheRecorder
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithMaxAge makes Ready entries of key report Stale once older than d.
func WithMaxAge(key Key, d time.Duration) Option {
	return func(s *Store) { s.maxAge[key] = d }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithRecorder reports hits, misses and loads.
func WithRecorder(r port.CacheRecorder) Option {
	return func(s *Store) { s.recorder = r }
}

// WithLogger sets the logger used for load diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		items:    make(map[Key]*entry),
		maxAge:   make(map[Key]time.Duration),
		recorder: nopRecorder{},
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the current snapshot of key without loading anything.
func (s *Store) Get(key Key) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(key, s.items[key])
}

// Fetch returns a fresh entry for key, calling load only when needed. Callers
// arriving while a load for the same key is in flight wait for that load.
// The load is detached from ctx: if ctx ends first, Fetch returns the current
// snapshot with ctx.Err() and the load still completes and updates the store.
// A load superseded by Invalidate or Set does not count: Fetch follows on to
// the load that replaced it, or returns the entry Set left behind.
func (s *Store) Fetch(ctx context.Context, key Key, load Loader) (Snapshot, error) {
	for {
		ch, snap, hit := s.start(ctx, key, load)
		if hit {
			return snap, nil
		}
		select {
		case res := <-ch:
			out, _ := res.Val.(loadResult)
			if out.superseded {
				continue
			}
			return out.snap, res.Err
		case <-ctx.Done():
			return s.Get(key), ctx.Err()
		}
	}
}

// Refresh starts a background load if key is not fresh and returns at once.
// The returned snapshot may carry the previous value as a placeholder.
func (s *Store) Refresh(ctx context.Context, key Key, load Loader) Snapshot {
	_, snap, _ := s.start(ctx, key, load)
	return snap
}

// Invalidate marks key Stale. Loads already in flight can no longer make it
// Ready; the next Fetch calls its loader.
func (s *Store) Invalidate(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[key]
	if !ok {
		return
	}
	if e.hasValue {
		e.state = StateStale
	} else {
		e.state = StateEmpty
	}
	e.loading = false
	e.gen = s.nextGenLocked()
}

// Set stores value under key as Ready, without a remote round trip.
func (s *Store) Set(key Key, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[key]
	if !ok {
		e = &entry{}
		s.items[key] = e
	}
	e.value = value
	e.hasValue = true
	e.fetchedAt = s.now()
	e.state = StateReady
	e.loading = false
	e.err = nil
	e.gen = s.nextGenLocked()
}

// Reset drops every entry. In-flight loads finish without effect.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[Key]*entry)
}

// start marks key Loading and launches (or joins) its load. hit is true when
// the entry was fresh and no load was needed.
func (s *Store) start(ctx context.Context, key Key, load Loader) (<-chan singleflight.Result, Snapshot, bool) {
	s.mu.Lock()
	e, ok := s.items[key]
	if ok && s.freshLocked(key, e) {
		snap := s.snapshotLocked(key, e)
		s.mu.Unlock()
		s.recorder.IncrCacheHit(string(key))
		return nil, snap, true
	}
	if !ok {
		e = &entry{state: StateEmpty, gen: s.nextGenLocked()}
		s.items[key] = e
	}
	e.loading = true
	gen := e.gen
	snap := s.snapshotLocked(key, e)
	s.mu.Unlock()

	s.recorder.IncrCacheMiss(string(key))

	loadCtx := context.WithoutCancel(ctx)
	flight := fmt.Sprintf("%s#%d", key, gen)
	ch := s.flights.DoChan(flight, func() (any, error) {
		return s.load(loadCtx, key, gen, load)
	})
	return ch, snap, false
}

// loadResult is what a flight hands its waiters. superseded is set when the
// entry moved to a newer generation while the load ran.
type loadResult struct {
	snap       Snapshot
	superseded bool
}

func (s *Store) load(ctx context.Context, key Key, gen uint64, load Loader) (loadResult, error) {
	start := time.Now()
	value, err := load(ctx)
	s.recorder.RecordCacheLoad(string(key), time.Since(start), err)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[key]
	if !ok {
		// Reset dropped the entry; nobody is waiting for a newer load.
		return loadResult{snap: s.snapshotLocked(key, nil)}, err
	}
	if e.gen != gen {
		s.logger.Debug("cache load superseded",
			zap.String("key", string(key)),
			zap.Error(err),
		)
		return loadResult{snap: s.snapshotLocked(key, e), superseded: true}, err
	}

	e.loading = false
	if err != nil {
		e.state = StateError
		e.err = err
		s.logger.Debug("cache load failed",
			zap.String("key", string(key)),
			zap.Bool("has_previous", e.hasValue),
			zap.Error(err),
		)
		return loadResult{snap: s.snapshotLocked(key, e)}, err
	}

	e.value = value
	e.hasValue = true
	e.fetchedAt = s.now()
	e.state = StateReady
	e.err = nil
	return loadResult{snap: s.snapshotLocked(key, e)}, nil
}

func (s *Store) freshLocked(key Key, e *entry) bool {
	return e.state == StateReady && !s.expiredLocked(key, e)
}

func (s *Store) expiredLocked(key Key, e *entry) bool {
	maxAge, ok := s.maxAge[key]
	if !ok || maxAge <= 0 {
		return false
	}
	return s.now().Sub(e.fetchedAt) > maxAge
}

func (s *Store) snapshotLocked(key Key, e *entry) Snapshot {
	if e == nil {
		return Snapshot{Key: key, State: StateEmpty}
	}
	st := e.state
	if st == StateReady && s.expiredLocked(key, e) {
		st = StateStale
	}
	if e.loading {
		st = StateLoading
	}
	return Snapshot{
		Key:       key,
		State:     st,
		Value:     e.value,
		HasValue:  e.hasValue,
		FetchedAt: e.fetchedAt,
		Err:       e.err,
	}
}

func (s *Store) nextGenLocked() uint64 {
	s.seq++
	return s.seq
}

type nopRecorder struct{}

func (nopRecorder) IncrCacheHit(string) {}
func (nopRecorder) IncrCacheMiss(string) {}
func (nopRecorder) RecordCacheLoad(string, time.Duration, error) {}
