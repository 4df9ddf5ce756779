package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	namespace = "tictactoe"
	meterName = "ctchen222/Tic-Tac-Toe-Referee/metrics"
)

// Recorder fans each observation out to Prometheus collectors (scraped from
// /metrics) and to OpenTelemetry instruments (pushed over OTLP).
// A nil *Recorder records nothing.
type Recorder struct {
	playersConnected prometheus.Gauge
	sessionsActive   prometheus.Gauge
	sessionsClosed   *prometheus.CounterVec
	moves            *prometheus.CounterVec
	games            *prometheus.CounterVec

	otelPlayers  metric.Int64UpDownCounter
	otelSessions metric.Int64UpDownCounter
	otelMoves    metric.Int64Counter
	otelGames    metric.Int64Counter
}

func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		playersConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "players_connected",
			Help:      "Players currently seated in a session.",
		}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_open",
			Help:      "Sessions that have not been closed yet.",
		}),
		sessionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_closed_total",
			Help:      "Closed sessions by reason.",
		}, []string{"reason"}),
		moves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moves_total",
			Help:      "Submitted moves by result.",
		}, []string{"result"}),
		games: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_finished_total",
			Help:      "Finished games by result.",
		}, []string{"result"}),
	}

	for _, c := range []prometheus.Collector{r.playersConnected, r.sessionsActive, r.sessionsClosed, r.moves, r.games} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}

	meter := otel.Meter(meterName)
	var err error
	if r.otelPlayers, err = meter.Int64UpDownCounter("tictactoe.players.connected",
		metric.WithDescription("Players currently seated in a session.")); err != nil {
		return nil, err
	}
	if r.otelSessions, err = meter.Int64UpDownCounter("tictactoe.sessions.open",
		metric.WithDescription("Sessions that have not been closed yet.")); err != nil {
		return nil, err
	}
	if r.otelMoves, err = meter.Int64Counter("tictactoe.moves",
		metric.WithDescription("Submitted moves by result.")); err != nil {
		return nil, err
	}
	if r.otelGames, err = meter.Int64Counter("tictactoe.games.finished",
		metric.WithDescription("Finished games by result.")); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Recorder) PlayerJoined(ctx context.Context) {
	if r == nil {
		return
	}
	r.playersConnected.Inc()
	r.otelPlayers.Add(ctx, 1)
}

func (r *Recorder) PlayerLeft(ctx context.Context) {
	if r == nil {
		return
	}
	r.playersConnected.Dec()
	r.otelPlayers.Add(ctx, -1)
}

func (r *Recorder) SessionOpened(ctx context.Context) {
	if r == nil {
		return
	}
	r.sessionsActive.Inc()
	r.otelSessions.Add(ctx, 1)
}

func (r *Recorder) SessionClosed(ctx context.Context, reason string) {
	if r == nil {
		return
	}
	r.sessionsActive.Dec()
	r.sessionsClosed.WithLabelValues(reason).Inc()
	r.otelSessions.Add(ctx, -1)
}

// MoveApplied counts a submitted move as accepted or rejected.
func (r *Recorder) MoveApplied(ctx context.Context, accepted bool) {
	if r == nil {
		return
	}
	result := "rejected"
	if accepted {
		result = "accepted"
	}
	r.moves.WithLabelValues(result).Inc()
	r.otelMoves.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// GameFinished counts a finished game; result is "win" or "draw".
func (r *Recorder) GameFinished(ctx context.Context, result string) {
	if r == nil {
		return
	}
	r.games.WithLabelValues(result).Inc()
	r.otelGames.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
