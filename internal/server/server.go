package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"ctchen222/Tic-Tac-Toe-Referee/internal/api/response"
	"ctchen222/Tic-Tac-Toe-Referee/internal/bot"
	"ctchen222/Tic-Tac-Toe-Referee/internal/match"
	"ctchen222/Tic-Tac-Toe-Referee/internal/player"
	"ctchen222/Tic-Tac-Toe-Referee/internal/session"
	"ctchen222/Tic-Tac-Toe-Referee/internal/transport"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Server is the HTTP side of the referee: health, session inspection,
// Prometheus scraping and a websocket entry point speaking the same line
// protocol as the TCP listener.
type Server struct {
	mm           *match.Matchmaker
	gatherer     prometheus.Gatherer
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	botThinkTime time.Duration
	engine       *gin.Engine
}

type Option func(*Server)

// WithWriteTimeout bounds every websocket write.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) { s.writeTimeout = d }
}

func WithBotThinkTime(d time.Duration) Option {
	return func(s *Server) { s.botThinkTime = d }
}

func NewServer(mm *match.Matchmaker, gatherer prometheus.Gatherer, opts ...Option) *Server {
	s := &Server{
		mm:       mm,
		gatherer: gatherer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		writeTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	s.engine = engine
	s.RegisterHandlers()
	return s
}

// Engine exposes the router for http.Server and tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterHandlers() {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/sessions", s.handleListSessions)
	s.engine.GET("/sessions/:id", s.handleGetSession)
	if s.gatherer != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}
	s.engine.GET("/ws", s.handleWebSocket)
}

func (s *Server) handleHealth(c *gin.Context) {
	response.SuccessResponse(c, gin.H{
		"status":   "ok",
		"sessions": s.mm.Len(),
	})
}

func (s *Server) handleListSessions(c *gin.Context) {
	response.SuccessResponseList[session.Snapshot](c, s.mm.Sessions())
}

func (s *Server) handleGetSession(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, "session id must be a positive integer")
		return
	}
	sess, ok := s.mm.Get(id)
	if !ok {
		response.ErrorResponse(c, http.StatusNotFound, "session not found")
		return
	}
	response.SuccessResponse(c, sess.Snapshot())
}

// handleWebSocket upgrades the connection and seats the player, either in the
// shared pool or, with mode=bot, against a computer opponent.
func (s *Server) handleWebSocket(c *gin.Context) {
	r := c.Request
	ctx, span := tracer.Start(context.WithoutCancel(r.Context()), "server.handleWebSocket", trace.WithAttributes(
		attribute.String("http.url", r.URL.String()),
		attribute.String("http.method", r.Method),
	))
	defer span.End()

	mode := c.DefaultQuery("mode", "human")
	var difficulty bot.Difficulty
	switch mode {
	case "human":
	case "bot":
		d, err := bot.ParseDifficulty(c.Query("difficulty"))
		if err != nil {
			response.ErrorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
		difficulty = d
	default:
		response.ErrorResponse(c, http.StatusBadRequest, "mode must be human or bot")
		return
	}
	span.SetAttributes(attribute.String("game.mode", mode), attribute.String("game.difficulty", string(difficulty)))

	conn, err := s.upgrader.Upgrade(c.Writer, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		slog.WarnContext(ctx, "Failed to upgrade connection", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to upgrade connection")
		return
	}

	p := player.NewRemote(transport.NewWSConn(conn, s.writeTimeout))
	slog.InfoContext(ctx, "websocket client connected", "addr", p.RemoteAddr(), "conn.id", p.ConnID, "game.mode", mode)

	var sess *session.Session
	if mode == "bot" {
		sess, err = s.mm.PlaceAgainst(ctx, p, bot.NewPlayer(difficulty, s.botThinkTime))
	} else {
		sess, err = s.mm.Place(ctx, p)
	}
	if err != nil {
		slog.WarnContext(ctx, "could not seat websocket player", "conn.id", p.ConnID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to seat player")
		if err := p.Release(); err != nil {
			slog.WarnContext(ctx, "error releasing rejected player", "conn.id", p.ConnID, "error", err)
		}
		return
	}
	span.SetAttributes(attribute.Int64("session.id", int64(sess.ID())))
}
