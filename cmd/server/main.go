package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"ctchen222/Tic-Tac-Toe-Referee/internal/config"
	"ctchen222/Tic-Tac-Toe-Referee/internal/db"
	"ctchen222/Tic-Tac-Toe-Referee/internal/events"
	"ctchen222/Tic-Tac-Toe-Referee/internal/logger"
	"ctchen222/Tic-Tac-Toe-Referee/internal/match"
	"ctchen222/Tic-Tac-Toe-Referee/internal/metrics"
	"ctchen222/Tic-Tac-Toe-Referee/internal/server"
	"ctchen222/Tic-Tac-Toe-Referee/internal/session"
	"ctchen222/Tic-Tac-Toe-Referee/internal/telemetry"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	defaultPath := os.Getenv("CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = "config.yml"
	}
	configPath := flag.String("config", defaultPath, "path to the YAML config file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)
	logger.Init(cfg.Log.SlogLevel(), cfg.Log.Format, cfg.Telemetry.Enabled)

	if err := run(cfg); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize telemetry
	shutdown, err := telemetry.InitOtel(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			slog.Error("Error shutting down telemetry", "error", err)
		}
	}()

	// Metrics registry shared by the recorder and /metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec, err := metrics.NewRecorder(reg)
	if err != nil {
		return err
	}

	sessionOpts := []session.Option{
		session.WithMetrics(rec),
		session.WithReplayOnWin(cfg.Game.ReplayOnWin),
	}

	// Optional Redis event feed
	if cfg.Redis.Enabled {
		rdb, err := db.NewRedisClient(ctx, cfg.Redis.Addr)
		if err != nil {
			return err
		}
		defer rdb.Close()

		pub := events.NewRedisPublisher(ctx, rdb, cfg.Redis.Channel, cfg.Redis.Buffer)
		defer func() {
			if err := pub.Close(); err != nil {
				slog.Error("Error closing event publisher", "error", err)
			}
		}()
		sessionOpts = append(sessionOpts, session.WithPublisher(pub))
		slog.Info("publishing session events", "redis.addr", cfg.Redis.Addr, "redis.channel", cfg.Redis.Channel)
	}

	// Referee runs outlive the signal context; ShutdownAll closes them.
	mm := match.NewMatchmaker(match.NewSequence(),
		match.WithSessionOptions(sessionOpts...),
		match.WithRunContext(context.WithoutCancel(ctx)),
	)

	tcpServer := server.NewTCPServer(cfg.TCP.Addr(), cfg.TCP.WriteTimeout, mm)
	if err := tcpServer.Start(ctx); err != nil {
		return err
	}

	var httpServer *http.Server
	if cfg.HTTP.Enabled {
		srv := server.NewServer(mm, reg,
			server.WithWriteTimeout(cfg.TCP.WriteTimeout),
			server.WithBotThinkTime(cfg.Game.BotThinkTime),
		)
		httpServer = &http.Server{
			Addr:    cfg.HTTP.Addr,
			Handler: otelhttp.NewHandler(srv.Engine(), "admin-http"),
		}
		go func() {
			slog.Info("http server started", "addr", cfg.HTTP.Addr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("ListenAndServe failed", "error", err)
				stop()
			}
		}()
	}

	<-ctx.Done()
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	tcpServer.Stop()
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server forced to shutdown", "error", err)
		}
	}
	if err := mm.ShutdownAll(shutdownCtx); err != nil {
		slog.Error("Sessions did not close in time", "error", err)
	}

	slog.Info("Server exiting")
	return nil
}
