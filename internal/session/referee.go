package session

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"ctchen222/Tic-Tac-Toe-Referee/internal/player"
	"ctchen222/Tic-Tac-Toe-Referee/pkg/proto"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Run is the referee loop. It reads moves only from the player holding the
// turn, never while holding s.mu, and returns once the session is closed.
// Cancelling ctx closes the session.
func (s *Session) Run(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "session.Run", trace.WithAttributes(
		attribute.Int64("session.id", int64(s.id)),
	))
	defer span.End()

	stop := context.AfterFunc(ctx, func() {
		s.Close(context.WithoutCancel(ctx), ReasonShutdown)
	})
	defer stop()

	s.mu.Lock()
	if !s.closing {
		s.announceStart(ctx)
	}
	s.mu.Unlock()

	for {
		var more bool
		switch s.State() {
		case StateActive:
			more = s.playTurn(ctx)
		case StateFinished:
			more = s.settle(ctx)
		default:
			more = false
		}
		if !more {
			return
		}
	}
}

// playTurn reads and applies one move. It returns false once the session is closed.
func (s *Session) playTurn(ctx context.Context) bool {
	s.mu.Lock()
	if s.closing || s.state != StateActive {
		open := s.state != StateClosed
		s.mu.Unlock()
		return open
	}
	current := s.playerByMark(s.turn)
	turn := player.Turn{SessionID: s.id, Mark: s.turn, Board: s.board}
	s.mu.Unlock()

	if current == nil {
		s.Close(ctx, ReasonProtocolViolation)
		return false
	}

	mv, err := current.NextMove(turn)
	if err != nil {
		if errors.Is(err, proto.ErrMalformedMove) {
			s.reprompt(ctx, current, proto.InvalidMove(rejectionReason(err)), proto.TurnPrompt(turn.Mark))
			return true
		}
		s.readFailed(ctx, current, err)
		return false
	}

	_, err = s.Submit(ctx, current.ID, mv)
	switch {
	case err == nil, errors.Is(err, ErrRejectedMove):
		return true
	case errors.Is(err, ErrOutOfTurn):
		slog.WarnContext(ctx, "Out of turn move, closing session", "session.id", s.id, "player.id", current.ID, "error", err)
		s.Close(ctx, ReasonProtocolViolation)
		return false
	default:
		return s.State() != StateClosed
	}
}

// settle handles a finished game: either close, or collect replay votes.
func (s *Session) settle(ctx context.Context) bool {
	s.mu.Lock()
	if s.closing || s.state != StateFinished {
		open := s.state != StateClosed
		s.mu.Unlock()
		return open
	}
	offer := s.result.Draw || s.replayOnWin
	players := slices.Clone(s.players)
	if offer {
		s.broadcast(ctx, proto.ReplayOffer())
	}
	s.mu.Unlock()

	if !offer {
		s.Close(ctx, ReasonGameOver)
		return false
	}

	for _, p := range players {
		yes, err := s.readVote(ctx, p)
		if err != nil {
			s.readFailed(ctx, p, err)
			return false
		}
		if !yes {
			slog.InfoContext(ctx, "Replay declined", "session.id", s.id, "player.id", p.ID)
			s.Close(ctx, ReasonReplayDeclined)
			return false
		}
	}

	if err := s.Replay(ctx); err != nil {
		return s.State() != StateClosed
	}
	return true
}

func (s *Session) readVote(ctx context.Context, p *player.Player) (bool, error) {
	for {
		yes, err := p.NextVote()
		if errors.Is(err, proto.ErrMalformedVote) {
			if !s.reprompt(ctx, p, proto.InvalidMove("answer yes or no"), proto.ReplayOffer()) {
				return false, ErrSessionClosed
			}
			continue
		}
		return yes, err
	}
}

// reprompt sends ns to p unless teardown has started.
func (s *Session) reprompt(ctx context.Context, p *player.Player, ns ...proto.Notification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	for _, n := range ns {
		s.notify(ctx, p, n)
	}
	return true
}

// readFailed closes the session after a failed read. A failure caused by our
// own teardown is expected and not reported.
func (s *Session) readFailed(ctx context.Context, p *player.Player, err error) {
	s.mu.Lock()
	closing := s.closing
	s.mu.Unlock()
	if closing {
		return
	}

	if errors.Is(err, proto.ErrQuit) {
		slog.InfoContext(ctx, "Player left", "session.id", s.id, "player.id", p.ID)
	} else {
		slog.WarnContext(ctx, "Player connection error", "session.id", s.id, "player.id", p.ID, "conn.id", p.ConnID, "error", err)
	}
	s.Close(ctx, ReasonDisconnect)
}
