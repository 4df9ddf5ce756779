package transport

import (
	"bufio"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ctchen222/Tic-Tac-Toe-Referee/internal/player"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ player.Connection = (*TCPConn)(nil)
	_ player.Connection = (*WSConn)(nil)
	_ player.LivenessChecker     = (*TCPConn)(nil)
)

func TestTCPConn_ReadLine(t *testing.T) {
	server, client := net.Pipe()
	conn := NewTCPConn(server, time.Second)
	defer conn.Close()

	go func() {
		_, _ = io.WriteString(client, "1 1\r\n2 2\n3 3")
		client.Close()
	}()

	for _, want := range []string{"1 1", "2 2", "3 3"} {
		got, err := conn.ReadLine()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := conn.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
}

func TestTCPConn_WriteLine(t *testing.T) {
	server, client := net.Pipe()
	conn := NewTCPConn(server, time.Second)
	defer conn.Close()

	go func() { _ = conn.WriteLine("Board: .../.../...") }()

	line, err := bufio.NewReader(client).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "Board: .../.../...\n", line)
}

func TestTCPConn_WriteTimesOutWithoutReader(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	conn := NewTCPConn(server, 20*time.Millisecond)
	defer conn.Close()

	err := conn.WriteLine("nobody is listening")
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}

func TestTCPConn_CloseUnblocksRead(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	conn := NewTCPConn(server, 0)

	errCh := make(chan error, 1)
	go func() {
		_, err := conn.ReadLine()
		errCh <- err
	}()

	require.NoError(t, conn.Close())
	assert.NoError(t, conn.Close())
	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("ReadLine did not return after Close")
	}
}

func TestTCPConn_RejectsOverlongLine(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	conn := NewTCPConn(server, time.Second)
	defer conn.Close()

	// Given: a peer streaming bytes without ever sending a newline
	go func() { _, _ = io.WriteString(client, strings.Repeat("1", 4*MaxLineLength)) }()

	// When: a line is read
	_, err := conn.ReadLine()

	// Then: the read fails instead of buffering without bound
	assert.ErrorIs(t, err, ErrLineTooLong)
}

func TestTCPConn_CheckAliveKeepsPendingInput(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	conn := NewTCPConn(server, time.Second)
	defer conn.Close()

	go func() { _, _ = io.WriteString(client, "2 2\n") }()

	assert.NoError(t, conn.CheckAlive())
	line, err := conn.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "2 2", line)

	// A silent but connected peer is still present.
	assert.NoError(t, conn.CheckAlive())
}

func TestTCPConn_CheckAliveDetectsHangup(t *testing.T) {
	server, client := net.Pipe()
	conn := NewTCPConn(server, time.Second)
	defer conn.Close()

	require.NoError(t, client.Close())

	assert.ErrorIs(t, conn.CheckAlive(), io.EOF)
}

func TestWSConn_RoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	serverConn := make(chan *WSConn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverConn <- NewWSConn(c, time.Second)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer client.Close()

	conn := <-serverConn
	require.NoError(t, client.WriteMessage(websocket.BinaryMessage, []byte{0x1}))
	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("2 3\n")))

	line, err := conn.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "2 3", line)

	require.NoError(t, conn.WriteLine("Your turn (X). Enter row and column (1-3), e.g. 2 3"))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "Your turn (X). Enter row and column (1-3), e.g. 2 3", string(data))
	assert.NotEmpty(t, conn.RemoteAddr())

	require.NoError(t, conn.Close())
	_, _, err = client.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}
