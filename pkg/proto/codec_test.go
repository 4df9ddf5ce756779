package proto

import (
	"testing"

	"ctchen222/Tic-Tac-Toe-Referee/internal/game"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMove(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    game.Move
		wantErr error
	}{
		{name: "top left", line: "1 1", want: game.Move{Row: 0, Col: 0}},
		{name: "bottom right", line: "3 3", want: game.Move{Row: 2, Col: 2}},
		{name: "extra whitespace and CR", line: "  2\t3 \r", want: game.Move{Row: 1, Col: 2}},
		{name: "zero is out of range", line: "0 1", wantErr: ErrMalformedMove},
		{name: "four is out of range", line: "1 4", wantErr: ErrMalformedMove},
		{name: "negative", line: "-1 2", wantErr: ErrMalformedMove},
		{name: "single number", line: "2", wantErr: ErrMalformedMove},
		{name: "three numbers", line: "1 2 3", wantErr: ErrMalformedMove},
		{name: "not numbers", line: "a b", wantErr: ErrMalformedMove},
		{name: "empty line", line: "", wantErr: ErrMalformedMove},
		{name: "exit", line: "exit", wantErr: ErrQuit},
		{name: "exit with case and spaces", line: " EXIT ", wantErr: ErrQuit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeMove(tt.line)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeMove(t *testing.T) {
	assert.Equal(t, "1 3", EncodeMove(game.Move{Row: 0, Col: 2}))

	m, err := DecodeMove(EncodeMove(game.Move{Row: 2, Col: 1}))
	require.NoError(t, err)
	assert.Equal(t, game.Move{Row: 2, Col: 1}, m)
}

func TestDecodeReplayVote(t *testing.T) {
	tests := []struct {
		line    string
		want    bool
		wantErr error
	}{
		{line: "yes", want: true},
		{line: "Y", want: true},
		{line: " no ", want: false},
		{line: "n", want: false},
		{line: "maybe", wantErr: ErrMalformedVote},
		{line: "exit", wantErr: ErrQuit},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := DecodeReplayVote(tt.line)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name      string
		n         Notification
		recipient game.Mark
		want      string
	}{
		{name: "waiting", n: Waiting(7), recipient: game.X, want: "Joined room 7. Waiting for an opponent..."},
		{name: "assigned", n: Assigned(7, 2, game.O), recipient: game.O, want: "Game is starting! You are player 2 (O)."},
		{name: "own turn", n: TurnPrompt(game.X), recipient: game.X, want: "Your turn (X). Enter row and column (1-3), e.g. 2 3"},
		{name: "opponent turn", n: TurnPrompt(game.X), recipient: game.O, want: "Waiting for X to move..."},
		{name: "board", n: BoardUpdate("X../.O./..."), recipient: game.X, want: "Board: X../.O./..."},
		{name: "winner", n: Win(game.O), recipient: game.O, want: "You win! O takes the game."},
		{name: "loser", n: Win(game.O), recipient: game.X, want: "O wins the game."},
		{name: "draw", n: Draw(), recipient: game.X, want: "The game is a draw!"},
		{name: "invalid", n: InvalidMove("cell already occupied"), recipient: game.X, want: "Invalid move: cell already occupied. Try again."},
		{name: "replay offer", n: ReplayOffer(), recipient: game.X, want: "Play again? (yes/no)"},
		{name: "new game", n: NewGame(game.O), recipient: game.X, want: "New game! O moves first."},
		{name: "closed", n: Closed(3, "opponent disconnected"), recipient: game.X, want: "Room 3 closed: opponent disconnected."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Encode(tt.n, tt.recipient))
		})
	}
}

func TestIsExit(t *testing.T) {
	assert.True(t, IsExit("exit\n"))
	assert.False(t, IsExit("exit now"))
	assert.False(t, IsExit("1 1"))
}
