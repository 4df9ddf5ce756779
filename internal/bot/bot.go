package bot

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"ctchen222/Tic-Tac-Toe-Referee/internal/game"
	"ctchen222/Tic-Tac-Toe-Referee/internal/player"
)

var ErrNoMove = errors.New("bot has no legal move")

// Source is a player.MoveSource that computes moves from the board it is shown.
type Source struct {
	difficulty Difficulty
	thinkTime  time.Duration

	done      chan struct{}
	closeOnce sync.Once
}

func NewSource(difficulty Difficulty, thinkTime time.Duration) *Source {
	return &Source{
		difficulty: difficulty,
		thinkTime:  thinkTime,
		done:       make(chan struct{}),
	}
}

func (s *Source) NextMove(turn player.Turn) (game.Move, error) {
	if err := s.wait(s.thinkTime); err != nil {
		return game.Move{}, err
	}
	mv, ok := CalculateNextMove(turn.Board, turn.Mark, s.difficulty)
	if !ok {
		return game.Move{}, ErrNoMove
	}
	slog.Debug("Bot move", "session.id", turn.SessionID, "mark", turn.Mark, "row", mv.Row, "col", mv.Col)
	return mv, nil
}

// NextVote always accepts a rematch.
func (s *Source) NextVote() (bool, error) {
	if err := s.wait(0); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Source) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

// wait simulates thinking time. It fails once the source is closed.
func (s *Source) wait(d time.Duration) error {
	if d <= 0 {
		select {
		case <-s.done:
			return io.EOF
		default:
			return nil
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-s.done:
		return io.EOF
	}
}

// Connection is the bot's notification sink. The bot learns the position from
// each player.Turn, so notifications are dropped.
type Connection struct {
	difficulty Difficulty
	closed     atomic.Bool
}

func NewConnection(difficulty Difficulty) *Connection {
	return &Connection{difficulty: difficulty}
}

func (c *Connection) ReadLine() (string, error) {
	return "", io.EOF
}

func (c *Connection) WriteLine(string) error {
	if c.closed.Load() {
		return net.ErrClosed
	}
	return nil
}

func (c *Connection) Close() error {
	c.closed.Store(true)
	return nil
}

func (c *Connection) RemoteAddr() string {
	return "bot:" + string(c.difficulty)
}

// NewPlayer builds a bot player handle.
func NewPlayer(difficulty Difficulty, thinkTime time.Duration) *player.Player {
	return player.New(NewConnection(difficulty), NewSource(difficulty, thinkTime))
}
