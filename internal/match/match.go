package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"ctchen222/Tic-Tac-Toe-Referee/internal/player"
	"ctchen222/Tic-Tac-Toe-Referee/internal/session"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("match")

var ErrShuttingDown = errors.New("matchmaker is shutting down")

// IDGenerator hands out session ids.
type IDGenerator interface {
	Next() uint64
}

// Sequence is an IDGenerator counting up from 1.
type Sequence struct {
	n atomic.Uint64
}

func NewSequence() *Sequence {
	return &Sequence{}
}

func (s *Sequence) Next() uint64 {
	return s.n.Add(1)
}

// Matchmaker seats players into the oldest session that still has room.
type Matchmaker struct {
	ids         IDGenerator
	sessionOpts []session.Option
	runCtx      context.Context

	mu       sync.Mutex
	sessions []*session.Session // creation order
	byID     map[uint64]*session.Session
	closed   bool
}

type Option func(*Matchmaker)

// WithSessionOptions applies opts to every session the matchmaker creates.
func WithSessionOptions(opts ...session.Option) Option {
	return func(m *Matchmaker) { m.sessionOpts = append(m.sessionOpts, opts...) }
}

// WithRunContext sets the parent context of referee goroutines.
func WithRunContext(ctx context.Context) Option {
	return func(m *Matchmaker) { m.runCtx = ctx }
}

func NewMatchmaker(ids IDGenerator, opts ...Option) *Matchmaker {
	m := &Matchmaker{
		ids:    ids,
		runCtx: context.Background(),
		byID:   make(map[uint64]*session.Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Place seats p in the first session with a free seat, creating one if none
// exists. A waiting session whose lone player has hung up is closed instead of
// being matched. When p fills a session its referee is started. No connection
// is written to while the pool lock is held.
func (m *Matchmaker) Place(ctx context.Context, p *player.Player) (*session.Session, error) {
	ctx, span := tracer.Start(ctx, "match.Place", trace.WithAttributes(
		attribute.String("conn.id", p.ConnID),
	))
	defer span.End()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrShuttingDown
	}

	var (
		chosen    *session.Session
		started   bool
		abandoned []*session.Session
	)
	for _, s := range m.sessions {
		if !s.Available() {
			continue
		}
		if s.Abandoned() {
			abandoned = append(abandoned, s)
			continue
		}
		ok, err := s.Seat(ctx, p)
		if err != nil {
			// Closed or filled since the check; try the next one.
			continue
		}
		chosen, started = s, ok
		break
	}
	if chosen == nil {
		s := m.newSessionLocked(ctx)
		ok, err := s.Seat(ctx, p)
		if err != nil {
			m.mu.Unlock()
			m.closeAbandoned(ctx, abandoned)
			return nil, fmt.Errorf("seat player in new session %d: %w", s.ID(), err)
		}
		chosen, started = s, ok
	}
	m.mu.Unlock()

	// Close takes the pool lock through the removal hook.
	m.closeAbandoned(ctx, abandoned)

	span.SetAttributes(attribute.Int64("session.id", int64(chosen.ID())), attribute.Int("player.id", p.ID))
	chosen.Announce(ctx, p)
	if started {
		slog.InfoContext(ctx, "Matchmaker: session full, starting referee", "session.id", chosen.ID())
		go chosen.Run(m.runCtx)
	}
	return chosen, nil
}

func (m *Matchmaker) closeAbandoned(ctx context.Context, sessions []*session.Session) {
	for _, s := range sessions {
		slog.InfoContext(ctx, "Matchmaker: waiting player gone, closing session", "session.id", s.ID())
		s.Close(ctx, session.ReasonDisconnect)
	}
}

// PlaceAgainst seats p and opponent together in a fresh session, bypassing the
// shared pool, and starts its referee.
func (m *Matchmaker) PlaceAgainst(ctx context.Context, p, opponent *player.Player) (*session.Session, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrShuttingDown
	}
	s := m.newSessionLocked(ctx)
	if _, err := s.Seat(ctx, p); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if _, err := s.Seat(ctx, opponent); err != nil {
		m.mu.Unlock()
		s.Close(ctx, session.ReasonDisconnect)
		return nil, err
	}
	m.mu.Unlock()

	s.Announce(ctx, p)
	go s.Run(m.runCtx)
	return s, nil
}

// newSessionLocked creates and registers a session. Caller holds m.mu.
func (m *Matchmaker) newSessionLocked(ctx context.Context) *session.Session {
	id := m.ids.Next()
	opts := append(slices.Clone(m.sessionOpts), session.WithCloseHook(m.remove))
	s := session.New(ctx, id, opts...)
	m.sessions = append(m.sessions, s)
	m.byID[id] = s
	slog.InfoContext(ctx, "Matchmaker: created session", "session.id", id)
	return s
}

func (m *Matchmaker) remove(s *session.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[s.ID()]; !ok {
		return
	}
	delete(m.byID, s.ID())
	m.sessions = slices.DeleteFunc(m.sessions, func(other *session.Session) bool { return other == s })
}

// Get returns the open session with id.
func (m *Matchmaker) Get(id uint64) (*session.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	return s, ok
}

func (m *Matchmaker) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sessions snapshots every open session in creation order.
func (m *Matchmaker) Sessions() []session.Snapshot {
	m.mu.Lock()
	sessions := slices.Clone(m.sessions)
	m.mu.Unlock()

	snaps := make([]session.Snapshot, 0, len(sessions))
	for _, s := range sessions {
		snaps = append(snaps, s.Snapshot())
	}
	return snaps
}

// ShutdownAll refuses new players, closes every session, then releases the pool.
func (m *Matchmaker) ShutdownAll(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	sessions := slices.Clone(m.sessions)
	m.mu.Unlock()

	slog.InfoContext(ctx, "Matchmaker: shutting down sessions", "count", len(sessions))
	for _, s := range sessions {
		s.Close(ctx, session.ReasonShutdown)
	}

	var err error
	for _, s := range sessions {
		select {
		case <-s.Done():
		case <-ctx.Done():
			err = fmt.Errorf("waiting for session %d: %w", s.ID(), ctx.Err())
		}
		if err != nil {
			break
		}
	}

	m.mu.Lock()
	m.sessions = nil
	clear(m.byID)
	m.mu.Unlock()
	return err
}
