// Package broadcast sends group messages on a best-effort basis. A failed
// send is logged and counted; it never reaches the caller.
package broadcast

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/spec-kit/storefront-realtime/internal/channels"
)

var sendFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storefront_broadcast_failures_total",
		Help: "Group sends that failed and were discarded.",
	},
	[]string{"event"},
)

func init() {
	prometheus.MustRegister(sendFailures)
}

// Broadcaster wraps a channel layer with fire-and-forget semantics.
type Broadcaster struct {
	layer   channels.Layer
	logger  *zap.Logger
	timeout time.Duration
}

// New creates a Broadcaster. A zero timeout means no per-send deadline.
func New(layer channels.Layer, logger *zap.Logger, timeout time.Duration) *Broadcaster {
	return &Broadcaster{layer: layer, logger: logger, timeout: timeout}
}

// Send delivers msg to group and swallows any failure.
func (b *Broadcaster) Send(ctx context.Context, group string, msg channels.Message) {
	if b == nil || b.layer == nil {
		return
	}
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			sendFailures.WithLabelValues(string(msg.Type)).Inc()
			b.logger.Error("broadcast panicked", zap.String("group", group), zap.String("event", string(msg.Type)), zap.Any("panic", r))
		}
	}()
	if err := b.layer.GroupSend(ctx, group, msg); err != nil {
		sendFailures.WithLabelValues(string(msg.Type)).Inc()
		b.logger.Warn("broadcast failed",
			zap.String("group", group),
			zap.String("event", string(msg.Type)),
			zap.Error(err))
	}
}

// SendMany sends the same message to several groups.
func (b *Broadcaster) SendMany(ctx context.Context, groups []string, msg channels.Message) {
	for _, group := range groups {
		b.Send(ctx, group, msg)
	}
}
