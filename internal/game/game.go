package game

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
)

// Mark is the symbol a player places, or None for an empty cell.
type Mark string

const (
	None Mark = ""
	X    Mark = "X"
	O    Mark = "O"

	// Board boundaries
	BorderMin = 0
	BorderMax = 2
)

var (
	ErrRejected    = errors.New("move rejected")
	ErrOutOfRange  = fmt.Errorf("%w: cell outside the board", ErrRejected)
	ErrOccupied    = fmt.Errorf("%w: cell already occupied", ErrRejected)
	ErrInvalidMark = fmt.Errorf("%w: not a player mark", ErrRejected)
)

// Opponent returns the other player's mark. None has no opponent.
func (m Mark) Opponent() Mark {
	switch m {
	case X:
		return O
	case O:
		return X
	default:
		return None
	}
}

func (m Mark) String() string {
	if m == None {
		return "."
	}
	return string(m)
}

// Move is a zero-based board coordinate.
type Move struct {
	Row int
	Col int
}

func (m Move) InBounds() bool {
	return m.Row >= BorderMin && m.Row <= BorderMax && m.Col >= BorderMin && m.Col <= BorderMax
}

// Board is a 3x3 grid. The zero value is an empty board.
type Board struct {
	cells [3][3]Mark
}

// Place sets the cell at (row, col) to mark. A rejected placement leaves the
// board untouched.
func (b *Board) Place(row, col int, mark Mark) error {
	if !(Move{Row: row, Col: col}).InBounds() {
		return ErrOutOfRange
	}
	if mark != X && mark != O {
		return ErrInvalidMark
	}
	if b.cells[row][col] != None {
		return ErrOccupied
	}
	b.cells[row][col] = mark
	return nil
}

// WinningLine reports whether the move just played at (row, col) completed
// three in a row for mark. Only lines through that cell are inspected.
func (b *Board) WinningLine(row, col int, mark Mark) bool {
	if mark == None || !(Move{Row: row, Col: col}).InBounds() {
		return false
	}
	c := &b.cells

	if c[row][0] == mark && c[row][1] == mark && c[row][2] == mark {
		return true
	}
	if c[0][col] == mark && c[1][col] == mark && c[2][col] == mark {
		return true
	}
	if row == col && c[0][0] == mark && c[1][1] == mark && c[2][2] == mark {
		return true
	}
	if row+col == BorderMax && c[0][2] == mark && c[1][1] == mark && c[2][0] == mark {
		return true
	}
	return false
}

// IsFull reports whether no empty cell remains.
func (b *Board) IsFull() bool {
	for r := range [3]int{} {
		for c := range [3]int{} {
			if b.cells[r][c] == None {
				return false
			}
		}
	}
	return true
}

func (b *Board) Reset() {
	b.cells = [3][3]Mark{}
}

// Cell returns the mark at (row, col), or None when out of range.
func (b *Board) Cell(row, col int) Mark {
	if !(Move{Row: row, Col: col}).InBounds() {
		return None
	}
	return b.cells[row][col]
}

// Cells returns a copy of the grid.
func (b *Board) Cells() [3][3]Mark {
	return b.cells
}

// EmptyCells lists the free cells in row-major order.
func (b *Board) EmptyCells() []Move {
	var moves []Move
	for r := range [3]int{} {
		for c := range [3]int{} {
			if b.cells[r][c] == None {
				moves = append(moves, Move{Row: r, Col: c})
			}
		}
	}
	return moves
}

// String renders the board as three rows separated by slashes, e.g. "X.O/.X./..O".
func (b *Board) String() string {
	var sb strings.Builder
	for r := range [3]int{} {
		if r > 0 {
			sb.WriteByte('/')
		}
		for c := range [3]int{} {
			sb.WriteString(b.cells[r][c].String())
		}
	}
	return sb.String()
}

// ParseBoard builds a board from the String form. Useful in tests and tools.
func ParseBoard(s string) (Board, error) {
	var b Board
	rows := strings.Split(s, "/")
	if len(rows) != 3 {
		return b, fmt.Errorf("parse board %q: want 3 rows, got %d", s, len(rows))
	}
	for r, row := range rows {
		if len(row) != 3 {
			return b, fmt.Errorf("parse board %q: row %d has %d cells", s, r+1, len(row))
		}
		for c, ch := range row {
			switch ch {
			case 'X':
				b.cells[r][c] = X
			case 'O':
				b.cells[r][c] = O
			case '.':
			default:
				return b, fmt.Errorf("parse board %q: unexpected %q", s, ch)
			}
		}
	}
	return b, nil
}

// CoinFlip picks X or O with equal probability.
func CoinFlip() Mark {
	if rand.IntN(2) == 0 {
		return X
	}
	return O
}
