package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

// ChatMetrics groups the chat relay instruments. A nil *ChatMetrics is valid
// and records nothing.
type ChatMetrics struct {
	messagesReceived otelmetric.Int64Counter
	messagesRejected otelmetric.Int64Counter
	deliveries       otelmetric.Int64Counter
	dropped          otelmetric.Int64Counter
	activeSessions   otelmetric.Int64UpDownCounter
	botReplies       otelmetric.Int64Counter
	botLatency       otelmetric.Float64Histogram
}

// NewChatMetrics creates the chat instruments on the given meter provider
func NewChatMetrics(mp otelmetric.MeterProvider) (*ChatMetrics, error) {
	meter := mp.Meter("radiance/backend/chat")
	m := &ChatMetrics{}
	var err error

	if m.messagesReceived, err = meter.Int64Counter("chat_messages_received_total",
		otelmetric.WithDescription("Inbound chat messages accepted and persisted")); err != nil {
		return nil, err
	}
	if m.messagesRejected, err = meter.Int64Counter("chat_messages_rejected_total",
		otelmetric.WithDescription("Inbound chat messages dropped, by reason")); err != nil {
		return nil, err
	}
	if m.deliveries, err = meter.Int64Counter("chat_deliveries_total",
		otelmetric.WithDescription("Events handed to connected sessions")); err != nil {
		return nil, err
	}
	if m.dropped, err = meter.Int64Counter("chat_deliveries_dropped_total",
		otelmetric.WithDescription("Events not delivered because a session buffer was full or closed")); err != nil {
		return nil, err
	}
	if m.activeSessions, err = meter.Int64UpDownCounter("chat_active_sessions",
		otelmetric.WithDescription("Open chat sessions")); err != nil {
		return nil, err
	}
	if m.botReplies, err = meter.Int64Counter("chat_bot_replies_total",
		otelmetric.WithDescription("Bot reply tasks, by outcome")); err != nil {
		return nil, err
	}
	if m.botLatency, err = meter.Float64Histogram("chat_bot_reply_seconds",
		otelmetric.WithDescription("Bot reply generation latency"),
		otelmetric.WithUnit("s")); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *ChatMetrics) MessageReceived(ctx context.Context) {
	if m == nil {
		return
	}
	m.messagesReceived.Add(ctx, 1)
}

func (m *ChatMetrics) MessageRejected(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.messagesRejected.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("reason", reason)))
}

func (m *ChatMetrics) Delivered(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.deliveries.Add(ctx, int64(n))
}

func (m *ChatMetrics) Dropped(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.dropped.Add(ctx, int64(n))
}

func (m *ChatMetrics) SessionOpened(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeSessions.Add(ctx, 1)
}

func (m *ChatMetrics) SessionClosed(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeSessions.Add(ctx, -1)
}

// BotReply records one finished reply task. outcome is "sent", "failed",
// "timeout" or "dropped".
func (m *ChatMetrics) BotReply(ctx context.Context, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	attrs := otelmetric.WithAttributes(attribute.String("outcome", outcome))
	m.botReplies.Add(ctx, 1, attrs)
	if took > 0 {
		m.botLatency.Record(ctx, took.Seconds(), attrs)
	}
}
