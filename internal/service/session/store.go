package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/mana-voice/backend/internal/analysis/language"
	"github.com/zhouzirui/mana-voice/backend/internal/model/session"
	"github.com/zhouzirui/mana-voice/backend/pkg/errorsx"
)

var (
	ErrSessionNotFound      = errorsx.New(errorsx.KindSessionNotFound, "session not found")
	ErrSessionAlreadyClosed = errorsx.New(errorsx.KindSessionAlreadyClosed, "session already closed")
	ErrInvalidLanguage      = errorsx.New(errorsx.KindInvalidInput, "unsupported session language")
	ErrInvalidTurn          = errorsx.New(errorsx.KindInvalidInput, "turn role and language are required")
)

// entry pairs a session with its turn lock. turn is a one-slot semaphore: holding it
// means a turn (or close) is in flight for this session.
type entry struct {
	mu      sync.RWMutex
	session session.Session
	turn    chan struct{}
}

// Store keeps sessions in memory, one entry per id. Nothing is persisted.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	now      func() time.Time
}

// NewStore bootstraps an empty in-memory store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*entry),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create provisions an anonymous session with a declared language.
func (s *Store) Create(_ context.Context, lang language.Tag) (session.Session, error) {
	if !lang.Valid() {
		return session.Session{}, fmt.Errorf("%w: %q", ErrInvalidLanguage, lang)
	}

	now := s.now()
	sess := session.Session{
		ID:           uuid.NewString(),
		Language:     lang,
		Turns:        make([]session.Turn, 0, 16),
		CreatedAt:    now,
		LastActiveAt: now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = &entry{session: sess, turn: make(chan struct{}, 1)}
	s.mu.Unlock()

	return sess.Clone(), nil
}

func (s *Store) lookup(id string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e, nil
}

// Acquire takes the per-session turn lock, waiting until the in-flight turn finishes or
// ctx is done. The returned release must be called exactly once.
func (s *Store) Acquire(ctx context.Context, id string) (func(), error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if e.closed() {
		return nil, ErrSessionAlreadyClosed
	}

	select {
	case e.turn <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	release := func() {
		once.Do(func() { <-e.turn })
	}

	// The session may have been closed while we waited.
	if e.closed() {
		release()
		return nil, ErrSessionAlreadyClosed
	}
	return release, nil
}

func (e *entry) closed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.session.Closed
}

// Append adds a turn to the end of the session log. The store assigns the turn id and,
// when unset, its timestamp.
func (s *Store) Append(_ context.Context, id string, turn session.Turn) (session.Turn, error) {
	if turn.Role != session.RoleUser && turn.Role != session.RoleAssistant {
		return session.Turn{}, ErrInvalidTurn
	}
	if !turn.Language.Valid() {
		return session.Turn{}, ErrInvalidTurn
	}

	e, err := s.lookup(id)
	if err != nil {
		return session.Turn{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session.Closed {
		return session.Turn{}, ErrSessionAlreadyClosed
	}

	now := s.now()
	turn.ID = uuid.NewString()
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = now
	}
	e.session.Turns = append(e.session.Turns, turn)
	e.session.LastActiveAt = now
	return turn, nil
}

// Get returns a deep copy of the session.
func (s *Store) Get(_ context.Context, id string) (session.Session, error) {
	e, err := s.lookup(id)
	if err != nil {
		return session.Session{}, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.session.Clone(), nil
}

// Summary summarises a session without closing it.
func (s *Store) Summary(ctx context.Context, id string) (session.Summary, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return session.Summary{}, err
	}
	return session.Summarize(sess, s.now()), nil
}

// Close marks the session closed and returns its summary. It waits for an in-flight
// turn to finish first. Closing twice fails with ErrSessionAlreadyClosed.
func (s *Store) Close(ctx context.Context, id string) (session.Summary, error) {
	release, err := s.Acquire(ctx, id)
	if err != nil {
		return session.Summary{}, err
	}
	defer release()

	e, err := s.lookup(id)
	if err != nil {
		return session.Summary{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session.Closed {
		return session.Summary{}, ErrSessionAlreadyClosed
	}

	now := s.now()
	e.session.Closed = true
	e.session.ClosedAt = &now
	e.session.LastActiveAt = now
	return session.Summarize(e.session, now), nil
}

// Sweep evicts sessions idle for longer than maxIdle, closed or not, and returns how
// many were removed. Sessions with a turn in flight are skipped.
func (s *Store) Sweep(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.sessions {
		select {
		case e.turn <- struct{}{}:
		default:
			continue
		}

		e.mu.RLock()
		idle := e.session.LastActiveAt.Before(cutoff)
		e.mu.RUnlock()

		if idle {
			delete(s.sessions, id)
			removed++
		}
		<-e.turn
	}
	return removed
}

// ActiveCount returns the number of sessions that are not closed.
func (s *Store) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, e := range s.sessions {
		if !e.closed() {
			n++
		}
	}
	return n
}
