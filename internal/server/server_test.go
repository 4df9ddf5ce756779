package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"ctchen222/Tic-Tac-Toe-Referee/internal/game"
	"ctchen222/Tic-Tac-Toe-Referee/internal/match"
	"ctchen222/Tic-Tac-Toe-Referee/internal/metrics"
	"ctchen222/Tic-Tac-Toe-Referee/internal/player"
	"ctchen222/Tic-Tac-Toe-Referee/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newMatchmaker(opts ...session.Option) *match.Matchmaker {
	opts = append([]session.Option{session.WithCoin(func() game.Mark { return game.X })}, opts...)
	return match.NewMatchmaker(match.NewSequence(), match.WithSessionOptions(opts...))
}

// idleConn never sends a line until closed.
type idleConn struct {
	done chan struct{}
	once sync.Once
}

func newIdleConn() *idleConn { return &idleConn{done: make(chan struct{})} }

func (c *idleConn) ReadLine() (string, error) {
	<-c.done
	return "", net.ErrClosed
}
func (c *idleConn) WriteLine(string) error { return nil }
func (c *idleConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}
func (c *idleConn) RemoteAddr() string { return "idle" }

type client struct {
	t     *testing.T
	conn  net.Conn
	lines chan string
}

func dial(t *testing.T, addr string) *client {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	c := &client{t: t, conn: conn, lines: make(chan string, 64)}
	go func() {
		defer close(c.lines)
		sc := bufio.NewScanner(conn)
		for sc.Scan() {
			c.lines <- sc.Text()
		}
	}()
	return c
}

func (c *client) send(lines ...string) {
	c.t.Helper()
	for _, l := range lines {
		_, err := c.conn.Write([]byte(l + "\n"))
		require.NoError(c.t, err)
	}
}

// waitFor reads until a line containing want arrives.
func (c *client) waitFor(want string) string {
	c.t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case l, ok := <-c.lines:
			if !ok {
				c.t.Fatalf("connection closed before %q", want)
			}
			if strings.Contains(l, want) {
				return l
			}
		case <-timeout:
			c.t.Fatalf("timed out waiting for %q", want)
		}
	}
}

// drain reads until the server closes the connection.
func (c *client) drain() []string {
	c.t.Helper()
	var seen []string
	timeout := time.After(3 * time.Second)
	for {
		select {
		case l, ok := <-c.lines:
			if !ok {
				return seen
			}
			seen = append(seen, l)
		case <-timeout:
			c.t.Fatal("timed out waiting for the server to close the connection")
		}
	}
}

func startTCP(t *testing.T, mm *match.Matchmaker) *TCPServer {
	t.Helper()
	srv := NewTCPServer("127.0.0.1:0", time.Second, mm)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(srv.Stop)
	return srv
}

func TestTCPServer_TopRowGame(t *testing.T) {
	mm := newMatchmaker()
	srv := startTCP(t, mm)

	// Given: two players joined in order
	a := dial(t, srv.Addr().String())
	a.waitFor("Joined room 1")
	b := dial(t, srv.Addr().String())

	assert.Equal(t, "Game is starting! You are player 1 (X).", a.waitFor("Game is starting"))
	assert.Equal(t, "Game is starting! You are player 2 (O).", b.waitFor("Game is starting"))

	// When: X takes the top row
	a.send("1 1", "1 2", "1 3")
	b.send("2 1", "2 2")

	// Then: both are told the result and disconnected
	aLines := a.drain()
	bLines := b.drain()
	assert.Contains(t, aLines, "You win! X takes the game.")
	assert.Contains(t, bLines, "X wins the game.")
	assert.Contains(t, aLines, "Room 1 closed: game over.")
	assert.Contains(t, bLines, "Board: XXX/OO./...")

	assert.Eventually(t, func() bool { return mm.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestTCPServer_DisconnectClosesPeer(t *testing.T) {
	mm := newMatchmaker()
	srv := startTCP(t, mm)

	a := dial(t, srv.Addr().String())
	a.waitFor("Joined room")
	b := dial(t, srv.Addr().String())
	a.waitFor("Your turn")
	b.waitFor("Waiting for X")

	// When: the player to move hangs up
	require.NoError(t, a.conn.Close())

	// Then: the opponent is told and torn down
	assert.Contains(t, b.drain(), "Room 1 closed: player disconnected.")
}

func TestTCPServer_WaitingPlayerHangsUpBeforeMatch(t *testing.T) {
	mm := newMatchmaker()
	srv := startTCP(t, mm)

	// Given: a waiting player who disconnects before an opponent arrives
	a := dial(t, srv.Addr().String())
	a.waitFor("Joined room 1")
	require.NoError(t, a.conn.Close())
	time.Sleep(50 * time.Millisecond) // let the FIN reach the server socket

	// When: the next player connects
	b := dial(t, srv.Addr().String())

	// Then: they are not paired with the departed player
	assert.Equal(t, "Joined room 2. Waiting for an opponent...", b.waitFor("Joined room"))
	assert.Eventually(t, func() bool { return mm.Len() == 1 }, time.Second, 10*time.Millisecond)
	_, ok := mm.Get(1)
	assert.False(t, ok)
}

func TestTCPServer_RejectsAfterShutdown(t *testing.T) {
	mm := newMatchmaker()
	srv := startTCP(t, mm)
	require.NoError(t, mm.ShutdownAll(context.Background()))

	c := dial(t, srv.Addr().String())
	assert.Empty(t, c.drain())
}

func TestTCPServer_StopBeforeStart(t *testing.T) {
	srv := NewTCPServer("127.0.0.1:0", time.Second, newMatchmaker())
	assert.Nil(t, srv.Addr())
	srv.Stop()
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestServer_HealthAndSessions(t *testing.T) {
	mm := newMatchmaker()
	srv := NewServer(mm, nil)

	// Given: one waiting player
	_, err := mm.Place(context.Background(), player.NewRemote(newIdleConn()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mm.ShutdownAll(context.Background()) })

	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decodeBody(t, w)["extras"].(map[string]any)["sessions"])

	w = httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions", nil))
	require.Equal(t, http.StatusOK, w.Code)
	extras := decodeBody(t, w)["extras"].(map[string]any)
	assert.EqualValues(t, 1, extras["count"])
	first := extras["list"].([]any)[0].(map[string]any)
	assert.Equal(t, "waiting", first["state"])

	w = httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions/1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decodeBody(t, w)["extras"].(map[string]any)["id"])
}

func TestServer_GetSessionErrors(t *testing.T) {
	srv := NewServer(newMatchmaker(), nil)

	tests := []struct {
		path string
		code int
	}{
		{path: "/sessions/abc", code: http.StatusBadRequest},
		{path: "/sessions/42", code: http.StatusNotFound},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		srv.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
		assert.Equal(t, tt.code, w.Code, tt.path)
		assert.Equal(t, false, decodeBody(t, w)["success"])
	}
}

func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := metrics.NewRecorder(reg)
	require.NoError(t, err)

	mm := newMatchmaker(session.WithMetrics(rec))
	srv := NewServer(mm, reg)
	_, err = mm.Place(context.Background(), player.NewRemote(newIdleConn()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mm.ShutdownAll(context.Background()) })

	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tictactoe_sessions_open 1")
}

func TestServer_WebSocketRejectsBadQuery(t *testing.T) {
	srv := NewServer(newMatchmaker(), nil)

	for _, q := range []string{"?mode=bot&difficulty=impossible", "?mode=spectator"} {
		w := httptest.NewRecorder()
		srv.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws"+q, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestServer_WebSocketAgainstBot(t *testing.T) {
	mm := newMatchmaker()
	srv := NewServer(mm, nil, WithBotThinkTime(0), WithWriteTimeout(time.Second))
	ts := httptest.NewServer(srv.Engine())
	t.Cleanup(ts.Close)
	t.Cleanup(func() { _ = mm.ShutdownAll(context.Background()) })

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?mode=bot&difficulty=hard"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func(want string) {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
		for {
			_, data, err := conn.ReadMessage()
			require.NoError(t, err)
			if strings.Contains(string(data), want) {
				return
			}
		}
	}

	// Player 1 is X and the coin favors X.
	read("You are player 1 (X)")
	read("Your turn (X)")
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("2 2")))

	// The bot answers and the prompt comes back.
	read("Board: ")
	read("Your turn (X)")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("exit")))
	read("closed: player disconnected")
	assert.Eventually(t, func() bool { return mm.Len() == 0 }, time.Second, 10*time.Millisecond)
}
