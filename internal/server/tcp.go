package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"ctchen222/Tic-Tac-Toe-Referee/internal/match"
	"ctchen222/Tic-Tac-Toe-Referee/internal/player"
	"ctchen222/Tic-Tac-Toe-Referee/internal/transport"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("server")

// TCPServer accepts line-protocol players and hands each one to the matchmaker.
type TCPServer struct {
	addr         string
	writeTimeout time.Duration
	mm           *match.Matchmaker

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

func NewTCPServer(addr string, writeTimeout time.Duration, mm *match.Matchmaker) *TCPServer {
	return &TCPServer{
		addr:         addr,
		writeTimeout: writeTimeout,
		mm:           mm,
	}
}

// Start binds the listener and serves connections in the background.
func (s *TCPServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.wg.Add(1)
	go s.acceptLoop(ctx, ln)

	slog.InfoContext(ctx, "TCP server started", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *TCPServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and waits for the accept loop and any in-flight
// placements to finish. Seated players are left to the matchmaker's shutdown.
func (s *TCPServer) Stop() {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()

	if ln != nil {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			slog.Warn("error closing TCP listener", "error", err)
		}
	}
	s.wg.Wait()
	slog.Info("TCP server stopped")
}

func (s *TCPServer) acceptLoop(ctx context.Context, ln net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			slog.ErrorContext(ctx, "accept failed", "error", err)
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(ctx, conn)
		}()
	}
}

func (s *TCPServer) handle(ctx context.Context, conn net.Conn) {
	ctx, span := tracer.Start(ctx, "server.handleTCP", trace.WithAttributes(
		attribute.String("net.peer.addr", conn.RemoteAddr().String()),
	))
	defer span.End()

	p := player.NewRemote(transport.NewTCPConn(conn, s.writeTimeout))
	slog.InfoContext(ctx, "client connected", "addr", p.RemoteAddr(), "conn.id", p.ConnID)

	sess, err := s.mm.Place(ctx, p)
	if err != nil {
		slog.WarnContext(ctx, "could not seat player", "conn.id", p.ConnID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to seat player")
		if err := p.Release(); err != nil {
			slog.WarnContext(ctx, "error releasing rejected player", "conn.id", p.ConnID, "error", err)
		}
		return
	}
	span.SetAttributes(attribute.Int64("session.id", int64(sess.ID())), attribute.Int("player.id", p.ID))
}
