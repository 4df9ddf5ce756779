package player

//go:generate mockgen -source=player.go -destination=mock/mock_player.go -package=mock

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"ctchen222/Tic-Tac-Toe-Referee/internal/game"
	"ctchen222/Tic-Tac-Toe-Referee/pkg/proto"

	"github.com/google/uuid"
)

var ErrReleased = errors.New("player released")

// Connection abstracts a line-oriented client connection (TCP, websocket).
type Connection interface {
	ReadLine() (string, error)
	WriteLine(line string) error
	Close() error
	RemoteAddr() string
}

// LivenessChecker is implemented by connections that can check the peer is still
// there without consuming any input.
type LivenessChecker interface {
	CheckAlive() error
}

// Turn describes the position a MoveSource is asked to play.
type Turn struct {
	SessionID uint64
	Mark      game.Mark
	Board     game.Board
}

// MoveSource produces the next move for a player. Reads block until a move is
// available or the source is closed.
type MoveSource interface {
	NextMove(turn Turn) (game.Move, error)
	NextVote() (bool, error)
}

// Player is a session's handle on one participant.
type Player struct {
	ID     int
	ConnID string
	Mark   game.Mark
	Conn   Connection
	Source MoveSource

	alive       atomic.Bool
	releaseOnce sync.Once
	releaseErr  error
}

// New creates a handle reading moves from source and writing notifications to conn.
func New(conn Connection, source MoveSource) *Player {
	p := &Player{
		ConnID: uuid.NewString(),
		Conn:   conn,
		Source: source,
	}
	p.alive.Store(true)
	return p
}

// NewRemote creates a handle whose moves are decoded from the connection itself.
func NewRemote(conn Connection) *Player {
	return New(conn, NewRemoteSource(conn))
}

func (p *Player) Alive() bool {
	return p.alive.Load()
}

// Connected reports whether the handle is unreleased and, when the connection
// can be checked, whether the peer is still reachable.
func (p *Player) Connected() bool {
	if !p.Alive() {
		return false
	}
	if lc, ok := p.Conn.(LivenessChecker); ok {
		return lc.CheckAlive() == nil
	}
	return true
}

// Notify renders n for this player's mark and writes it as one line.
func (p *Player) Notify(n proto.Notification) error {
	if !p.Alive() {
		return ErrReleased
	}
	return p.Conn.WriteLine(proto.Encode(n, p.Mark))
}

func (p *Player) NextMove(turn Turn) (game.Move, error) {
	if !p.Alive() {
		return game.Move{}, ErrReleased
	}
	return p.Source.NextMove(turn)
}

func (p *Player) NextVote() (bool, error) {
	if !p.Alive() {
		return false, ErrReleased
	}
	return p.Source.NextVote()
}

// Release closes the connection and, when it is closable, the move source.
// Only the first call does any work; later calls return the same error.
func (p *Player) Release() error {
	p.releaseOnce.Do(func() {
		p.alive.Store(false)
		err := p.Conn.Close()
		if c, ok := p.Source.(io.Closer); ok {
			err = errors.Join(err, c.Close())
		}
		p.releaseErr = err
	})
	return p.releaseErr
}

// RemoteAddr is a printable peer address for logs.
func (p *Player) RemoteAddr() string {
	if p.Conn == nil {
		return ""
	}
	return p.Conn.RemoteAddr()
}
