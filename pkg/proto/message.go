package proto

import (
	"fmt"

	"ctchen222/Tic-Tac-Toe-Referee/internal/game"
)

// Kind tags a server to client notification.
type Kind string

const (
	KindWaiting     Kind = "waiting"
	KindAssigned    Kind = "assigned"
	KindTurnPrompt  Kind = "turn"
	KindBoard       Kind = "board"
	KindResult      Kind = "result"
	KindInvalidMove Kind = "invalid_move"
	KindReplayOffer Kind = "replay_offer"
	KindNewGame     Kind = "new_game"
	KindClosed      Kind = "closed"
)

// Notification is a structured server to client message. It is rendered to a
// single text line by Encode.
type Notification struct {
	Kind      Kind
	SessionID uint64
	PlayerID  int
	Mark      game.Mark
	Draw      bool
	Board     string
	Reason    string
}

func Waiting(sessionID uint64) Notification {
	return Notification{Kind: KindWaiting, SessionID: sessionID}
}

func Assigned(sessionID uint64, playerID int, mark game.Mark) Notification {
	return Notification{Kind: KindAssigned, SessionID: sessionID, PlayerID: playerID, Mark: mark}
}

func TurnPrompt(mark game.Mark) Notification {
	return Notification{Kind: KindTurnPrompt, Mark: mark}
}

func BoardUpdate(board string) Notification {
	return Notification{Kind: KindBoard, Board: board}
}

func Win(mark game.Mark) Notification {
	return Notification{Kind: KindResult, Mark: mark}
}

func Draw() Notification {
	return Notification{Kind: KindResult, Draw: true}
}

func InvalidMove(reason string) Notification {
	return Notification{Kind: KindInvalidMove, Reason: reason}
}

func ReplayOffer() Notification {
	return Notification{Kind: KindReplayOffer}
}

func NewGame(starting game.Mark) Notification {
	return Notification{Kind: KindNewGame, Mark: starting}
}

func Closed(sessionID uint64, reason string) Notification {
	return Notification{Kind: KindClosed, SessionID: sessionID, Reason: reason}
}

// Encode renders n as one human-readable line, without the trailing newline.
// The recipient's mark personalises turn prompts and results.
func Encode(n Notification, recipient game.Mark) string {
	switch n.Kind {
	case KindWaiting:
		return fmt.Sprintf("Joined room %d. Waiting for an opponent...", n.SessionID)
	case KindAssigned:
		return fmt.Sprintf("Game is starting! You are player %d (%s).", n.PlayerID, n.Mark)
	case KindTurnPrompt:
		if recipient == n.Mark {
			return fmt.Sprintf("Your turn (%s). Enter row and column (1-3), e.g. 2 3", n.Mark)
		}
		return fmt.Sprintf("Waiting for %s to move...", n.Mark)
	case KindBoard:
		return "Board: " + n.Board
	case KindResult:
		if n.Draw {
			return "The game is a draw!"
		}
		if recipient == n.Mark {
			return fmt.Sprintf("You win! %s takes the game.", n.Mark)
		}
		return fmt.Sprintf("%s wins the game.", n.Mark)
	case KindInvalidMove:
		return fmt.Sprintf("Invalid move: %s. Try again.", n.Reason)
	case KindReplayOffer:
		return "Play again? (yes/no)"
	case KindNewGame:
		return fmt.Sprintf("New game! %s moves first.", n.Mark)
	case KindClosed:
		return fmt.Sprintf("Room %d closed: %s.", n.SessionID, n.Reason)
	default:
		return string(n.Kind)
	}
}
