package session

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"ctchen222/Tic-Tac-Toe-Referee/internal/events"
	"ctchen222/Tic-Tac-Toe-Referee/internal/game"
	"ctchen222/Tic-Tac-Toe-Referee/internal/metrics"
	"ctchen222/Tic-Tac-Toe-Referee/internal/player"
	"ctchen222/Tic-Tac-Toe-Referee/pkg/proto"

	"go.opentelemetry.io/otel"
)

// MaxPlayers is the capacity of a session.
const MaxPlayers = 2

var tracer = otel.Tracer("session")

var (
	ErrSessionFull   = errors.New("session is full")
	ErrSessionClosed = errors.New("session is closed")
	ErrNotActive     = errors.New("session is not active")
	ErrNotFinished   = errors.New("session has no finished game")
	ErrOutOfTurn     = errors.New("move out of turn")
	ErrUnknownPlayer = errors.New("player is not seated in this session")
	ErrRejectedMove  = errors.New("move rejected")
)

// Session is one match: a board, up to two players and the turn state machine.
// All fields below mu are guarded by it.
type Session struct {
	id        uint64
	createdAt time.Time

	coin        func() game.Mark
	publisher   events.Publisher
	metrics     *metrics.Recorder
	replayOnWin bool
	onClose     func(*Session)

	mu       sync.Mutex
	board    game.Board
	players  []*player.Player
	state    State
	turn     game.Mark
	starting game.Mark
	result   Result
	games    int
	opened   bool
	closing  bool
	reason   Reason

	done chan struct{}
}

type Option func(*Session)

// WithCoin replaces the starting-mark coin flip.
func WithCoin(coin func() game.Mark) Option {
	return func(s *Session) { s.coin = coin }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Session) { s.publisher = p }
}

func WithMetrics(r *metrics.Recorder) Option {
	return func(s *Session) { s.metrics = r }
}

// WithReplayOnWin offers a replay after a win as well as after a draw.
func WithReplayOnWin(enabled bool) Option {
	return func(s *Session) { s.replayOnWin = enabled }
}

// WithCloseHook registers f to run once, after the session is closed and unlocked.
func WithCloseHook(f func(*Session)) Option {
	return func(s *Session) { s.onClose = f }
}

func New(ctx context.Context, id uint64, opts ...Option) *Session {
	s := &Session{
		id:        id,
		createdAt: time.Now(),
		coin:      game.CoinFlip,
		publisher: events.NopPublisher{},
		players:   make([]*player.Player, 0, MaxPlayers),
		state:     StateWaiting,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics.SessionOpened(ctx)
	return s
}

// AddPlayer seats p and sends the join notifications. The second player starts
// the first game and the call reports started=true; the caller is then
// expected to run the referee.
func (s *Session) AddPlayer(ctx context.Context, p *player.Player) (started bool, err error) {
	started, err = s.Seat(ctx, p)
	if err != nil {
		return false, err
	}
	s.Announce(ctx, p)
	return started, nil
}

// Seat assigns p an id and mark without writing to any connection, so it is
// safe to call while holding the matchmaker's pool lock. The second seat
// moves the session to Active. Announce must follow.
func (s *Session) Seat(ctx context.Context, p *player.Player) (started bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed || s.closing {
		return false, ErrSessionClosed
	}
	if s.state != StateWaiting || len(s.players) >= MaxPlayers {
		return false, ErrSessionFull
	}

	p.ID = len(s.players) + 1
	p.Mark = game.X
	if p.ID == 2 {
		p.Mark = game.O
	}
	s.players = append(s.players, p)
	s.metrics.PlayerJoined(ctx)

	slog.InfoContext(ctx, "Player joined session",
		"session.id", s.id, "player.id", p.ID, "conn.id", p.ConnID, "remote.addr", p.RemoteAddr())

	if len(s.players) < MaxPlayers {
		return false, nil
	}
	s.start()
	return true, nil
}

// Announce sends what p is owed after Seat: the waiting notice while alone,
// or the opening notifications once the session is Active. The opening is
// sent once whichever caller gets here first.
func (s *Session) Announce(ctx context.Context, p *player.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.closing:
	case s.state == StateWaiting:
		s.notify(ctx, p, proto.Waiting(s.id))
	default:
		s.announceStart(ctx)
	}
}

// Abandoned reports whether the session is waiting on a player whose
// connection has already gone away.
func (s *Session) Abandoned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateWaiting || s.closing || len(s.players) != 1 {
		return false
	}
	return !s.players[0].Connected()
}

func (s *Session) ID() uint64 { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Turn is the mark expected to move next, None outside Active.
func (s *Session) Turn() game.Mark {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return game.None
	}
	return s.turn
}

// Starting is the mark that opened the current game.
func (s *Session) Starting() game.Mark {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starting
}

func (s *Session) Result() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Board returns a copy of the current board.
func (s *Session) Board() game.Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board
}

func (s *Session) Players() []*player.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.players)
}

// Available reports whether a new player could still be seated.
func (s *Session) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateWaiting && !s.closing && len(s.players) < MaxPlayers
}

func (s *Session) Reason() Reason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Done is closed once the session reaches Closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Snapshot is a read-only view for the admin API.
type Snapshot struct {
	ID        uint64       `json:"id"`
	State     string       `json:"state"`
	Players   []PlayerInfo `json:"players"`
	Turn      string       `json:"turn,omitempty"`
	Board     string       `json:"board"`
	Result    string       `json:"result,omitempty"`
	Games     int          `json:"games"`
	CreatedAt time.Time    `json:"created_at"`
}

type PlayerInfo struct {
	ID         int    `json:"id"`
	Mark       string `json:"mark"`
	ConnID     string `json:"conn_id"`
	RemoteAddr string `json:"remote_addr"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:        s.id,
		State:     s.state.String(),
		Board:     s.board.String(),
		Games:     s.games,
		CreatedAt: s.createdAt,
	}
	if s.state == StateActive {
		snap.Turn = string(s.turn)
	}
	if s.result.Decided() {
		snap.Result = s.result.String()
	}
	for _, p := range s.players {
		snap.Players = append(snap.Players, PlayerInfo{
			ID:         p.ID,
			Mark:       string(p.Mark),
			ConnID:     p.ConnID,
			RemoteAddr: p.RemoteAddr(),
		})
	}
	return snap
}
