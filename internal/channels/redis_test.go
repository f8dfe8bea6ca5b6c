package channels

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func TestRedisLayerRetriesSubscribeUntilCancelled(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	layer := NewRedisLayer(client, "channels:", time.Millisecond, zap.NewNop())
	layer.minBackoff = time.Millisecond
	before := testutil.ToFloat64(subscribeFailures)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- layer.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for testutil.ToFloat64(subscribeFailures)-before < 3 {
		select {
		case err := <-done:
			t.Fatalf("Run returned while redis was unreachable: %v", err)
		default:
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected repeated subscribe attempts, saw %v", testutil.ToFloat64(subscribeFailures)-before)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := layer.Ping(context.Background()); !errors.Is(err, ErrNotSubscribed) {
		t.Fatalf("expected ErrNotSubscribed, got %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run after cancel: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestNewRedisLayerClampsBackoff(t *testing.T) {
	layer := NewRedisLayer(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), "channels:", 0, zap.NewNop())
	if layer.maxBackoff < layer.minBackoff {
		t.Fatalf("max backoff %s below min %s", layer.maxBackoff, layer.minBackoff)
	}
}
