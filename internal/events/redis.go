package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("events")

var (
	ErrQueueFull       = errors.New("event queue full")
	ErrPublisherClosed = errors.New("event publisher closed")
)

// RedisPublisher publishes events to a Redis Pub/Sub channel from a single
// background goroutine. Publish only enqueues.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	queue   chan Event

	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// NewRedisPublisher starts the publishing goroutine. Call Close to flush and stop it.
func NewRedisPublisher(ctx context.Context, rdb *redis.Client, channel string, buffer int) *RedisPublisher {
	if channel == "" {
		channel = EventsChannel
	}
	if buffer <= 0 {
		buffer = 64
	}
	p := &RedisPublisher{
		rdb:     rdb,
		channel: channel,
		queue:   make(chan Event, buffer),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go p.run(context.WithoutCancel(ctx))
	return p
}

func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	select {
	case <-p.done:
		return ErrPublisherClosed
	default:
	}

	select {
	case p.queue <- e:
		return nil
	default:
		slog.WarnContext(ctx, "event queue full, dropping event", "event.type", e.Type)
		return ErrQueueFull
	}
}

// Close stops accepting events and waits for queued ones to be sent.
func (p *RedisPublisher) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	<-p.stopped
	return nil
}

func (p *RedisPublisher) run(ctx context.Context) {
	defer close(p.stopped)
	for {
		select {
		case e := <-p.queue:
			p.send(ctx, e)
		case <-p.done:
			for {
				select {
				case e := <-p.queue:
					p.send(ctx, e)
				default:
					return
				}
			}
		}
	}
}

func (p *RedisPublisher) send(ctx context.Context, e Event) {
	ctx, span := tracer.Start(ctx, "events.Publish", trace.WithAttributes(
		attribute.String("event.type", e.Type),
		attribute.String("redis.channel", p.channel),
	))
	defer span.End()

	data, err := json.Marshal(e)
	if err != nil {
		slog.ErrorContext(ctx, "error marshalling event", "event.type", e.Type, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Error marshalling event")
		return
	}

	if err := p.rdb.Publish(ctx, p.channel, data).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to publish event", "event.type", e.Type, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to publish event")
		return
	}
	slog.DebugContext(ctx, "event published", "event.type", e.Type, "redis.channel", p.channel)
}
