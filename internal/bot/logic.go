package bot

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"ctchen222/Tic-Tac-Toe-Referee/internal/game"
)

// Difficulty selects the bot's strategy.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// ParseDifficulty accepts easy, medium or hard; empty means easy.
func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(s); d {
	case "":
		return Easy, nil
	case Easy, Medium, Hard:
		return d, nil
	default:
		return "", fmt.Errorf("unknown difficulty %q", s)
	}
}

var (
	corners = []game.Move{{Row: 0, Col: 0}, {Row: 0, Col: 2}, {Row: 2, Col: 0}, {Row: 2, Col: 2}}
	sides   = []game.Move{{Row: 0, Col: 1}, {Row: 1, Col: 0}, {Row: 1, Col: 2}, {Row: 2, Col: 1}}
	center  = game.Move{Row: 1, Col: 1}
)

// CalculateNextMove picks a move for mark on board. ok is false on a full board.
func CalculateNextMove(board game.Board, mark game.Mark, difficulty Difficulty) (game.Move, bool) {
	switch difficulty {
	case Easy:
		return easyMove(board)
	case Medium:
		return mediumMove(board, mark)
	default:
		return hardMove(board, mark)
	}
}

// easyMove makes a completely random move.
func easyMove(board game.Board) (game.Move, bool) {
	free := board.EmptyCells()
	if len(free) == 0 {
		return game.Move{}, false
	}
	return free[rand.IntN(len(free))], true
}

// mediumMove will win if it can, block if it must, otherwise move randomly.
func mediumMove(board game.Board, mark game.Mark) (game.Move, bool) {
	if mv, ok := findWinningMove(board, mark); ok {
		return mv, true
	}
	if mv, ok := findWinningMove(board, mark.Opponent()); ok {
		return mv, true
	}
	return easyMove(board)
}

// hardMove: win, block, center, a random corner, then a random side.
func hardMove(board game.Board, mark game.Mark) (game.Move, bool) {
	if mv, ok := findWinningMove(board, mark); ok {
		return mv, true
	}
	if mv, ok := findWinningMove(board, mark.Opponent()); ok {
		return mv, true
	}
	if board.Cell(center.Row, center.Col) == game.None {
		return center, true
	}
	if mv, ok := randomFree(board, corners); ok {
		return mv, true
	}
	return randomFree(board, sides)
}

// findWinningMove returns an empty cell that completes a line for mark.
func findWinningMove(board game.Board, mark game.Mark) (game.Move, bool) {
	for _, mv := range board.EmptyCells() {
		trial := board
		if trial.Place(mv.Row, mv.Col, mark) == nil && trial.WinningLine(mv.Row, mv.Col, mark) {
			return mv, true
		}
	}
	return game.Move{}, false
}

func randomFree(board game.Board, candidates []game.Move) (game.Move, bool) {
	free := slices.DeleteFunc(slices.Clone(candidates), func(mv game.Move) bool {
		return board.Cell(mv.Row, mv.Col) != game.None
	})
	if len(free) == 0 {
		return game.Move{}, false
	}
	return free[rand.IntN(len(free))], true
}
