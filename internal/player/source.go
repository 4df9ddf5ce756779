package player

import (
	"errors"
	"io"
	"sync"

	"ctchen222/Tic-Tac-Toe-Referee/internal/game"
	"ctchen222/Tic-Tac-Toe-Referee/pkg/proto"
)

// RemoteSource reads moves as text lines from a client connection.
type RemoteSource struct {
	conn Connection
}

func NewRemoteSource(conn Connection) *RemoteSource {
	return &RemoteSource{conn: conn}
}

// NextMove blocks for one line. A line that does not decode returns an error
// wrapping proto.ErrMalformedMove and leaves the connection usable.
func (s *RemoteSource) NextMove(Turn) (game.Move, error) {
	line, err := s.conn.ReadLine()
	if err != nil {
		return game.Move{}, err
	}
	return proto.DecodeMove(line)
}

func (s *RemoteSource) NextVote() (bool, error) {
	line, err := s.conn.ReadLine()
	if err != nil {
		return false, err
	}
	return proto.DecodeReplayVote(line)
}

var ErrInputClosed = errors.New("local input closed")

// LocalInput is a MoveSource fed in-process, e.g. by a UI event handler.
// Once closed, pending reads fail with io.EOF.
type LocalInput struct {
	moves     chan game.Move
	votes     chan bool
	done      chan struct{}
	closeOnce sync.Once
}

func NewLocalInput() *LocalInput {
	return &LocalInput{
		moves: make(chan game.Move, 9),
		votes: make(chan bool, 2),
		done:  make(chan struct{}),
	}
}

// Submit queues a zero-based move. It blocks while the queue is full.
func (in *LocalInput) Submit(m game.Move) error {
	select {
	case <-in.done:
		return ErrInputClosed
	default:
	}
	select {
	case in.moves <- m:
		return nil
	case <-in.done:
		return ErrInputClosed
	}
}

func (in *LocalInput) Vote(yes bool) error {
	select {
	case <-in.done:
		return ErrInputClosed
	default:
	}
	select {
	case in.votes <- yes:
		return nil
	case <-in.done:
		return ErrInputClosed
	}
}

func (in *LocalInput) NextMove(Turn) (game.Move, error) {
	select {
	case m := <-in.moves:
		return m, nil
	case <-in.done:
		return game.Move{}, io.EOF
	}
}

func (in *LocalInput) NextVote() (bool, error) {
	select {
	case v := <-in.votes:
		return v, nil
	case <-in.done:
		return false, io.EOF
	}
}

func (in *LocalInput) Close() error {
	in.closeOnce.Do(func() { close(in.done) })
	return nil
}
