package session

import "ctchen222/Tic-Tac-Toe-Referee/internal/game"

// State is the lifecycle state of a session.
type State int

const (
	StateWaiting State = iota
	StateActive
	StateFinished
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateActive:
		return "active"
	case StateFinished:
		return "finished"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Reason records why a session was closed.
type Reason string

const (
	ReasonDisconnect        Reason = "player disconnected"
	ReasonProtocolViolation Reason = "protocol violation"
	ReasonReplayDeclined    Reason = "replay declined"
	ReasonGameOver          Reason = "game over"
	ReasonShutdown          Reason = "server shutting down"
)

// Outcome is the effect of an accepted move.
type Outcome int

const (
	OutcomeContinue Outcome = iota
	OutcomeWin
	OutcomeDraw
)

// Result of a finished game. The zero value means undecided.
type Result struct {
	Winner game.Mark
	Draw   bool
}

func (r Result) Decided() bool {
	return r.Draw || r.Winner != game.None
}

func (r Result) String() string {
	switch {
	case r.Draw:
		return "draw"
	case r.Winner != game.None:
		return "win:" + string(r.Winner)
	default:
		return "undecided"
	}
}
