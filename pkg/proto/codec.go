package proto

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"ctchen222/Tic-Tac-Toe-Referee/internal/game"
	"ctchen222/Tic-Tac-Toe-Referee/internal/validator"
)

// ExitCommand stops a client from sending further input. It is never a move.
const ExitCommand = "exit"

var (
	ErrMalformedMove = errors.New("malformed move")
	ErrMalformedVote = errors.New("malformed replay answer")
	// ErrQuit is returned when a peer sends the exit command.
	ErrQuit = errors.New("player quit")
)

// MoveMessage is the 1-based move as typed by a player.
type MoveMessage struct {
	Row int `json:"row" validate:"min=1,max=3"`
	Col int `json:"col" validate:"min=1,max=3"`
}

// IsExit reports whether line is the client-local exit command.
func IsExit(line string) bool {
	return strings.EqualFold(strings.TrimSpace(line), ExitCommand)
}

// DecodeMove parses "row col" (1-based, each in [1,3]) into a zero-based move.
func DecodeMove(line string) (game.Move, error) {
	if IsExit(line) {
		return game.Move{}, ErrQuit
	}

	fields := strings.Fields(line)
	if len(fields) != 2 {
		return game.Move{}, fmt.Errorf("%w: want two numbers, got %q", ErrMalformedMove, strings.TrimSpace(line))
	}

	row, err := strconv.Atoi(fields[0])
	if err != nil {
		return game.Move{}, fmt.Errorf("%w: row %q is not a number", ErrMalformedMove, fields[0])
	}
	col, err := strconv.Atoi(fields[1])
	if err != nil {
		return game.Move{}, fmt.Errorf("%w: column %q is not a number", ErrMalformedMove, fields[1])
	}

	msg := MoveMessage{Row: row, Col: col}
	if err := validator.GetValidator().Struct(msg); err != nil {
		return game.Move{}, fmt.Errorf("%w: row and column must be between 1 and 3", ErrMalformedMove)
	}

	return game.Move{Row: msg.Row - 1, Col: msg.Col - 1}, nil
}

// EncodeMove renders a zero-based move in the 1-based wire form.
func EncodeMove(m game.Move) string {
	return fmt.Sprintf("%d %d", m.Row+1, m.Col+1)
}

// DecodeReplayVote parses an answer to the replay offer.
func DecodeReplayVote(line string) (bool, error) {
	answer := strings.ToLower(strings.TrimSpace(line))
	switch answer {
	case "yes", "y":
		return true, nil
	case "no", "n":
		return false, nil
	case ExitCommand:
		return false, ErrQuit
	default:
		return false, fmt.Errorf("%w: %q, answer yes or no", ErrMalformedVote, answer)
	}
}
