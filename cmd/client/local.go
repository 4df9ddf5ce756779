package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"ctchen222/Tic-Tac-Toe-Referee/internal/player"
	"ctchen222/Tic-Tac-Toe-Referee/internal/session"
	"ctchen222/Tic-Tac-Toe-Referee/pkg/proto"
)

// console is the terminal shared by both seats in a local game. Lines both
// seats receive in a row, such as board updates, are printed once.
type console struct {
	mu   sync.Mutex
	out  io.Writer
	last string
}

func (c *console) print(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if line == c.last {
		return nil
	}
	c.last = line
	_, err := fmt.Fprintln(c.out, line)
	return err
}

// seat is one player's view of the console.
type seat struct {
	console *console
}

func (s seat) ReadLine() (string, error) { return "", io.EOF }
func (s seat) WriteLine(line string) error { return s.console.print(line) }
func (s seat) Close() error                { return nil }
func (s seat) RemoteAddr() string          { return "local" }

// runLocal plays both sides on one terminal. Both seats share a LocalInput,
// so each typed move goes to whichever seat the referee is waiting on. A yes
// or no answers the replay offer for both seats.
func runLocal(ctx context.Context, in io.Reader, out io.Writer, opts ...session.Option) error {
	term := &console{out: out}
	input := player.NewLocalInput()
	defer input.Close()

	s := session.New(ctx, 1, opts...)
	for range session.MaxPlayers {
		if _, err := s.AddPlayer(ctx, player.New(seat{console: term}, input)); err != nil {
			return err
		}
	}
	go s.Run(ctx)

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-s.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-s.Done():
			return nil
		case line, ok := <-lines:
			if !ok || proto.IsExit(line) {
				s.Close(ctx, session.ReasonDisconnect)
				<-s.Done()
				return nil
			}
			if err := feed(s, input, term, line); err != nil {
				return err
			}
		}
	}
}

// feed routes one typed line to the shared input. Unparseable lines are
// answered on the console and dropped.
func feed(s *session.Session, input *player.LocalInput, term *console, line string) error {
	if s.State() == session.StateFinished {
		yes, err := proto.DecodeReplayVote(line)
		if err != nil {
			return term.print("Answer yes or no.")
		}
		for range session.MaxPlayers {
			if err := input.Vote(yes); err != nil {
				return ignoreClosed(err)
			}
		}
		return nil
	}

	mv, err := proto.DecodeMove(line)
	if err != nil {
		slog.Debug("local input rejected", "line", line, "error", err)
		return term.print("Invalid move: enter row and column as two numbers from 1 to 3.")
	}
	return ignoreClosed(input.Submit(mv))
}

// ignoreClosed drops the error a finished session leaves on its input.
func ignoreClosed(err error) error {
	if errors.Is(err, player.ErrInputClosed) {
		return nil
	}
	return err
}
