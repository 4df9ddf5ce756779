package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	ctx := context.Background()
	r, err := NewRecorder(prometheus.NewRegistry())
	require.NoError(t, err)

	r.SessionOpened(ctx)
	r.PlayerJoined(ctx)
	r.PlayerJoined(ctx)
	r.MoveApplied(ctx, true)
	r.MoveApplied(ctx, true)
	r.MoveApplied(ctx, false)
	r.GameFinished(ctx, "draw")
	r.PlayerLeft(ctx)
	r.PlayerLeft(ctx)
	r.SessionClosed(ctx, "replay declined")

	assert.Equal(t, 0.0, testutil.ToFloat64(r.playersConnected))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.sessionsActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.moves.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.moves.WithLabelValues("rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.games.WithLabelValues("draw")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.sessionsClosed.WithLabelValues("replay declined")))
}

func TestRecorder_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewRecorder(reg)
	require.NoError(t, err)

	_, err = NewRecorder(reg)
	assert.Error(t, err)
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.PlayerJoined(context.Background())
		r.MoveApplied(context.Background(), true)
		r.SessionClosed(context.Background(), "shutdown")
	})
}
