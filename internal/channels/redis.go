package channels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisLayer fans group messages out across processes. Membership stays
// local; GroupSend publishes to redis and every process delivers the
// message to its own members when it comes back on the subscription.
type RedisLayer struct {
	local  *MemoryLayer
	client *redis.Client
	prefix string
	logger *zap.Logger

	minBackoff time.Duration
	maxBackoff time.Duration
	subscribed atomic.Bool
}

// ErrNotSubscribed is reported by Ping while the subscription is down.
var ErrNotSubscribed = errors.New("channels: redis subscription not established")

// NewRedisLayer builds a layer publishing on "<prefix><group>" channels.
// maxBackoff caps the wait between subscribe attempts.
func NewRedisLayer(client *redis.Client, prefix string, maxBackoff time.Duration, logger *zap.Logger) *RedisLayer {
	minBackoff := 100 * time.Millisecond
	if maxBackoff < minBackoff {
		maxBackoff = minBackoff
	}
	return &RedisLayer{
		local:      NewMemoryLayer(),
		client:     client,
		prefix:     prefix,
		logger:     logger,
		minBackoff: minBackoff,
		maxBackoff: maxBackoff,
	}
}

// GroupAdd joins member locally.
func (l *RedisLayer) GroupAdd(ctx context.Context, group string, member Member) error {
	return l.local.GroupAdd(ctx, group, member)
}

// GroupDiscard leaves group locally.
func (l *RedisLayer) GroupDiscard(ctx context.Context, group string, channelName string) error {
	return l.local.GroupDiscard(ctx, group, channelName)
}

// GroupSend publishes msg for every process subscribed to the prefix.
func (l *RedisLayer) GroupSend(ctx context.Context, group string, msg Message) error {
	if group == "" {
		return ErrInvalidGroup
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("channels: marshal message: %w", err)
	}
	if err := l.client.Publish(ctx, l.prefix+group, data).Err(); err != nil {
		return fmt.Errorf("channels: redis publish: %w", err)
	}
	return nil
}

// Ping reports whether the subscription feeding local members is live.
func (l *RedisLayer) Ping(context.Context) error {
	if !l.subscribed.Load() {
		return ErrNotSubscribed
	}
	return nil
}

// Run consumes the redis subscription until ctx is cancelled. A failed or
// dropped subscription is retried with exponential backoff.
func (l *RedisLayer) Run(ctx context.Context) error {
	backoff := l.minBackoff
	for {
		subscribed, err := l.consume(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if subscribed {
			backoff = l.minBackoff
		}
		subscribeFailures.Inc()
		l.logger.Warn("channel layer subscription failed, retrying",
			zap.Duration("backoff", backoff), zap.Error(err))

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		backoff = min(backoff*2, l.maxBackoff)
	}
}

// consume runs one subscription. subscribed reports whether PSUBSCRIBE
// was acknowledged before it ended.
func (l *RedisLayer) consume(ctx context.Context) (subscribed bool, err error) {
	sub := l.client.PSubscribe(ctx, l.prefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return false, fmt.Errorf("channels: redis subscribe: %w", err)
	}
	l.subscribed.Store(true)
	defer l.subscribed.Store(false)
	l.logger.Info("channel layer subscribed", zap.String("pattern", l.prefix+"*"))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return true, nil
		case rm, ok := <-ch:
			if !ok {
				return true, errors.New("channels: redis subscription closed")
			}
			group, msg, err := decodeEnvelope(l.prefix, rm.Channel, rm.Payload)
			if err != nil {
				l.logger.Warn("dropping malformed channel message", zap.String("channel", rm.Channel), zap.Error(err))
				continue
			}
			_ = l.local.GroupSend(ctx, group, msg)
		}
	}
}

func decodeEnvelope(prefix, channel, payload string) (string, Message, error) {
	group := strings.TrimPrefix(channel, prefix)
	if group == channel || group == "" {
		return "", Message{}, fmt.Errorf("channel %q outside prefix %q", channel, prefix)
	}
	var msg Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return "", Message{}, err
	}
	if msg.Type == "" {
		return "", Message{}, fmt.Errorf("message without type")
	}
	return group, msg, nil
}
