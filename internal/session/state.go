package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ctchen222/Tic-Tac-Toe-Referee/internal/events"
	"ctchen222/Tic-Tac-Toe-Referee/internal/game"
	"ctchen222/Tic-Tac-Toe-Referee/pkg/proto"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// start enters Active for the first game. Caller holds s.mu.
func (s *Session) start() {
	s.starting = s.coin()
	s.turn = s.starting
	s.state = StateActive
	s.games = 1
}

// announceStart sends the opening of the first game once. Caller holds s.mu.
func (s *Session) announceStart(ctx context.Context) {
	if s.opened || s.games == 0 {
		return
	}
	s.opened = true

	for _, p := range s.players {
		s.notify(ctx, p, proto.Assigned(s.id, p.ID, p.Mark))
	}
	s.broadcast(ctx, proto.BoardUpdate(s.board.String()))
	s.broadcast(ctx, proto.TurnPrompt(s.turn))

	ids := make([]string, 0, len(s.players))
	for _, p := range s.players {
		ids = append(ids, p.ConnID)
	}
	s.publish(ctx, events.TypeSessionStarted, events.SessionStartedPayload{
		SessionID: s.id,
		PlayerIDs: ids,
		Starting:  string(s.starting),
	})
	slog.InfoContext(ctx, "Session active", "session.id", s.id, "starting", s.starting)
}

// Submit applies a move for the player seated as playerID. A rejected
// placement re-prompts that player and leaves board and turn unchanged.
func (s *Session) Submit(ctx context.Context, playerID int, mv game.Move) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "session.Submit", trace.WithAttributes(
		attribute.Int64("session.id", int64(s.id)),
		attribute.Int("player.id", playerID),
		attribute.Int("move.row", mv.Row),
		attribute.Int("move.col", mv.Col),
	))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return OutcomeContinue, ErrNotActive
	}
	p := s.playerByID(playerID)
	if p == nil {
		return OutcomeContinue, ErrUnknownPlayer
	}
	if p.Mark != s.turn {
		span.SetStatus(codes.Error, "move out of turn")
		return OutcomeContinue, fmt.Errorf("%w: player %d (%s) moved on %s's turn", ErrOutOfTurn, p.ID, p.Mark, s.turn)
	}

	if err := s.board.Place(mv.Row, mv.Col, p.Mark); err != nil {
		s.metrics.MoveApplied(ctx, false)
		s.notify(ctx, p, proto.InvalidMove(rejectionReason(err)))
		s.notify(ctx, p, proto.TurnPrompt(s.turn))
		span.RecordError(err)
		return OutcomeContinue, fmt.Errorf("%w: %w", ErrRejectedMove, err)
	}
	s.metrics.MoveApplied(ctx, true)
	s.broadcast(ctx, proto.BoardUpdate(s.board.String()))

	if s.board.WinningLine(mv.Row, mv.Col, p.Mark) {
		s.finish(ctx, Result{Winner: p.Mark})
		s.broadcast(ctx, proto.Win(p.Mark))
		return OutcomeWin, nil
	}
	if s.board.IsFull() {
		s.finish(ctx, Result{Draw: true})
		s.broadcast(ctx, proto.Draw())
		return OutcomeDraw, nil
	}

	s.turn = s.turn.Opponent()
	s.broadcast(ctx, proto.TurnPrompt(s.turn))
	return OutcomeContinue, nil
}

// finish freezes the game with result. Caller holds s.mu.
func (s *Session) finish(ctx context.Context, result Result) {
	s.state = StateFinished
	s.result = result

	label := "win"
	if result.Draw {
		label = "draw"
	}
	s.metrics.GameFinished(ctx, label)
	s.publish(ctx, events.TypeGameFinished, events.GameFinishedPayload{
		SessionID: s.id,
		Game:      s.games,
		Winner:    string(result.Winner),
		Draw:      result.Draw,
	})
	slog.InfoContext(ctx, "Game finished", "session.id", s.id, "game", s.games, "result", result.String())
}

// Replay starts a new game after a finished one. The opening mark is the
// opponent of the previous game's opening mark.
func (s *Session) Replay(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "session.Replay", trace.WithAttributes(
		attribute.Int64("session.id", int64(s.id)),
	))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateFinished {
		return ErrNotFinished
	}

	s.board.Reset()
	s.starting = s.starting.Opponent()
	s.turn = s.starting
	s.result = Result{}
	s.state = StateActive
	s.games++

	s.broadcast(ctx, proto.NewGame(s.starting))
	s.broadcast(ctx, proto.BoardUpdate(s.board.String()))
	s.broadcast(ctx, proto.TurnPrompt(s.turn))
	slog.InfoContext(ctx, "Session replaying", "session.id", s.id, "game", s.games, "starting", s.starting)
	return nil
}

// Close moves the session to Closed from any state and releases both players.
// It reports whether this call performed the transition.
func (s *Session) Close(ctx context.Context, reason Reason) bool {
	ctx, span := tracer.Start(ctx, "session.Close", trace.WithAttributes(
		attribute.Int64("session.id", int64(s.id)),
		attribute.String("close.reason", string(reason)),
	))
	defer span.End()

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return false
	}
	from := s.state
	s.closing = true
	s.state = StateClosed
	s.reason = reason

	s.broadcast(ctx, proto.Closed(s.id, string(reason)))
	for _, p := range s.players {
		if err := p.Release(); err != nil {
			slog.WarnContext(ctx, "Failed to release player connection",
				"session.id", s.id, "player.id", p.ID, "conn.id", p.ConnID, "error", err)
			span.RecordError(err)
		}
		s.metrics.PlayerLeft(ctx)
	}
	s.metrics.SessionClosed(ctx, string(reason))
	s.publish(ctx, events.TypeSessionClosed, events.SessionClosedPayload{
		SessionID: s.id,
		Reason:    string(reason),
	})
	hook := s.onClose
	s.mu.Unlock()

	close(s.done)
	slog.InfoContext(ctx, "Session closed", "session.id", s.id, "from", from.String(), "reason", reason)
	if hook != nil {
		hook(s)
	}
	return true
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, game.ErrOccupied):
		return "cell already occupied"
	case errors.Is(err, game.ErrOutOfRange):
		return "cell outside the board"
	case errors.Is(err, proto.ErrMalformedMove):
		return "enter row and column as two numbers from 1 to 3"
	default:
		return "move not allowed"
	}
}
