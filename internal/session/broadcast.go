package session

import (
	"context"
	"log/slog"

	"ctchen222/Tic-Tac-Toe-Referee/internal/events"
	"ctchen222/Tic-Tac-Toe-Referee/internal/game"
	"ctchen222/Tic-Tac-Toe-Referee/internal/player"
	"ctchen222/Tic-Tac-Toe-Referee/pkg/proto"
)

// The helpers below expect s.mu to be held.

// notify writes n to p. A failed write is only logged: the referee learns
// about a dead peer from its next read.
func (s *Session) notify(ctx context.Context, p *player.Player, n proto.Notification) {
	if !p.Alive() {
		return
	}
	if err := p.Notify(n); err != nil {
		slog.WarnContext(ctx, "error writing message to player",
			"session.id", s.id, "player.id", p.ID, "notification", n.Kind, "error", err)
	}
}

func (s *Session) broadcast(ctx context.Context, n proto.Notification) {
	for _, p := range s.players {
		s.notify(ctx, p, n)
	}
}

func (s *Session) publish(ctx context.Context, eventType string, payload any) {
	e, err := events.NewEvent(eventType, payload)
	if err != nil {
		slog.ErrorContext(ctx, "error building event", "session.id", s.id, "error", err)
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		slog.WarnContext(ctx, "failed to publish event", "session.id", s.id, "event.type", eventType, "error", err)
	}
}

func (s *Session) playerByID(id int) *player.Player {
	for _, p := range s.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *Session) playerByMark(mark game.Mark) *player.Player {
	for _, p := range s.players {
		if p.Mark == mark {
			return p
		}
	}
	return nil
}
