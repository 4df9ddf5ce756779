package main

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"ctchen222/Tic-Tac-Toe-Referee/internal/game"
	"ctchen222/Tic-Tac-Toe-Referee/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func xFirst() session.Option {
	return session.WithCoin(func() game.Mark { return game.X })
}

// startLocal runs a local game fed from the returned writer.
func startLocal(t *testing.T, out io.Writer) (*io.PipeWriter, <-chan error) {
	t.Helper()
	pr, pw := io.Pipe()
	t.Cleanup(func() { pw.Close() })

	done := make(chan error, 1)
	go func() { done <- runLocal(context.Background(), pr, out, xFirst()) }()
	return pw, done
}

func waitLocal(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("local game did not finish")
	}
}

func TestRunLocal_TopRowWin(t *testing.T) {
	var out syncBuffer
	in, done := startLocal(t, &out)

	// When: both seats are played from one input stream
	_, err := io.WriteString(in, "1 1\n2 1\n1 2\n2 2\n1 3\n")
	require.NoError(t, err)

	// Then: the referee alternates the seats and X takes the top row
	waitLocal(t, done)
	got := out.String()
	assert.Contains(t, got, "Game is starting! You are player 1 (X).")
	assert.Contains(t, got, "Game is starting! You are player 2 (O).")
	assert.Contains(t, got, "Board: XXX/OO./...")
	assert.Contains(t, got, "You win! X takes the game.")
	assert.Contains(t, got, "Room 1 closed: game over.")
	assert.Equal(t, 1, strings.Count(got, "Board: XXX/OO./..."))
}

func TestRunLocal_RejectsMalformedMove(t *testing.T) {
	var out syncBuffer
	in, done := startLocal(t, &out)

	// Given: a line that is not a move
	_, err := io.WriteString(in, "middle\n")
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Invalid move: enter row and column")
	}, time.Second, 10*time.Millisecond)

	// When: the player quits
	_, err = io.WriteString(in, "exit\n")
	require.NoError(t, err)

	// Then: the game closes without a move being played
	waitLocal(t, done)
	got := out.String()
	assert.Contains(t, got, "Room 1 closed: player disconnected.")
	assert.NotContains(t, got, "Board: X")
}
