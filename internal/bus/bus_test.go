package bus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

func waitFor(t *testing.T, wg *sync.WaitGroup, timeout time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatal("timeout waiting for messages")
	}
}

func TestChannelBus(t *testing.T) {
	bus := NewChannelBus(100)
	defer bus.Close()

	ctx := context.Background()

	t.Run("PublishAndSubscribe", func(t *testing.T) {
		var got atomic.Pointer[domain.Message]
		var wg sync.WaitGroup
		wg.Add(1)

		_, err := bus.Subscribe(ctx, domain.TopicAlert, func(ctx context.Context, msg *domain.Message) error {
			got.Store(msg)
			wg.Done()
			return nil
		})
		if err != nil {
			t.Fatalf("subscribe failed: %v", err)
		}

		if err := bus.Publish(ctx, domain.TopicAlert, []byte("hello")); err != nil {
			t.Fatalf("publish failed: %v", err)
		}
		waitFor(t, &wg, time.Second)

		msg := got.Load()
		if string(msg.Payload) != "hello" {
			t.Errorf("expected payload 'hello', got '%s'", string(msg.Payload))
		}
		if msg.Topic != domain.TopicAlert {
			t.Errorf("expected topic %s, got %s", domain.TopicAlert, msg.Topic)
		}
		if msg.ID == "" {
			t.Error("expected message ID to be set")
		}
	})

	t.Run("TopicIsolation", func(t *testing.T) {
		var cases, blacklists atomic.Int32
		var wg sync.WaitGroup
		wg.Add(1)

		_, _ = bus.Subscribe(ctx, domain.TopicCase, func(ctx context.Context, msg *domain.Message) error {
			cases.Add(1)
			wg.Done()
			return nil
		})
		_, _ = bus.Subscribe(ctx, domain.TopicBlacklist, func(ctx context.Context, msg *domain.Message) error {
			blacklists.Add(1)
			return nil
		})

		_ = bus.Publish(ctx, domain.TopicCase, []byte("case"))
		waitFor(t, &wg, time.Second)
		time.Sleep(20 * time.Millisecond)

		if cases.Load() != 1 {
			t.Errorf("expected 1 case message, got %d", cases.Load())
		}
		if blacklists.Load() != 0 {
			t.Errorf("expected no blacklist messages, got %d", blacklists.Load())
		}
	})

	t.Run("MultipleSubscribers", func(t *testing.T) {
		var count atomic.Int32
		var wg sync.WaitGroup
		wg.Add(3)

		for i := 0; i < 3; i++ {
			_, _ = bus.Subscribe(ctx, "multi.topic", func(ctx context.Context, msg *domain.Message) error {
				count.Add(1)
				wg.Done()
				return nil
			})
		}

		_ = bus.Publish(ctx, "multi.topic", []byte("fanout"))
		waitFor(t, &wg, time.Second)

		if count.Load() != 3 {
			t.Errorf("expected 3 deliveries, got %d", count.Load())
		}
	})

	t.Run("Unsubscribe", func(t *testing.T) {
		var count atomic.Int32

		sub, _ := bus.Subscribe(ctx, "unsub.topic", func(ctx context.Context, msg *domain.Message) error {
			count.Add(1)
			return nil
		})
		if sub.Topic() != "unsub.topic" {
			t.Errorf("expected topic unsub.topic, got %s", sub.Topic())
		}

		if err := sub.Unsubscribe(); err != nil {
			t.Fatalf("unsubscribe failed: %v", err)
		}

		_ = bus.Publish(ctx, "unsub.topic", []byte("ignored"))
		time.Sleep(20 * time.Millisecond)

		if count.Load() != 0 {
			t.Errorf("expected no deliveries after unsubscribe, got %d", count.Load())
		}
	})

	t.Run("HandlerPanicIsContained", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(2)

		_, _ = bus.Subscribe(ctx, "panic.topic", func(ctx context.Context, msg *domain.Message) error {
			defer wg.Done()
			if string(msg.Payload) == "boom" {
				panic("handler exploded")
			}
			return nil
		})

		_ = bus.Publish(ctx, "panic.topic", []byte("boom"))
		_ = bus.Publish(ctx, "panic.topic", []byte("fine"))
		waitFor(t, &wg, time.Second)
	})

	t.Run("RequestReply", func(t *testing.T) {
		_, _ = bus.Subscribe(ctx, "echo", func(ctx context.Context, msg *domain.Message) error {
			return nil
		})

		reqCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		_, err := bus.Request(reqCtx, "echo", []byte("ping"))
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded without a replier, got %v", err)
		}
	})
}

func TestChannelBusFullBuffer(t *testing.T) {
	bus := NewChannelBus(1)
	defer bus.Close()

	ctx := context.Background()
	release := make(chan struct{})
	started := make(chan struct{}, 1)

	_, _ = bus.Subscribe(ctx, "slow", func(ctx context.Context, msg *domain.Message) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	})

	_ = bus.Publish(ctx, "slow", []byte("1"))
	<-started
	_ = bus.Publish(ctx, "slow", []byte("2")) // buffered
	_ = bus.Publish(ctx, "slow", []byte("3")) // dropped

	if bus.Dropped() != 1 {
		t.Errorf("expected 1 dropped message, got %d", bus.Dropped())
	}
	close(release)
}

func TestChannelBusClose(t *testing.T) {
	bus := NewChannelBus(10)
	ctx := context.Background()

	if err := bus.Ping(ctx); err != nil {
		t.Fatalf("ping before close failed: %v", err)
	}

	if err := bus.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if err := bus.Publish(ctx, "topic", []byte("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from publish, got %v", err)
	}
	if _, err := bus.Subscribe(ctx, "topic", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from subscribe, got %v", err)
	}
	if err := bus.Ping(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from ping, got %v", err)
	}

	// Idempotent
	if err := bus.Close(); err != nil {
		t.Errorf("second close failed: %v", err)
	}
}

func TestNewBus(t *testing.T) {
	t.Run("ChannelType", func(t *testing.T) {
		b, err := New(domain.EventBusConfig{Type: "channel", ChannelBufferSize: 10})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer b.Close()

		if _, ok := b.(*ChannelBus); !ok {
			t.Error("expected ChannelBus for channel type")
		}
	})

	t.Run("KafkaRequiresBrokers", func(t *testing.T) {
		if _, err := New(domain.EventBusConfig{Type: "kafka"}); err == nil {
			t.Error("expected error without brokers")
		}
	})

	t.Run("KafkaIsLazy", func(t *testing.T) {
		b, err := New(domain.EventBusConfig{Type: "kafka", KafkaBrokers: []string{"localhost:9092"}})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if _, err := b.Request(context.Background(), "x", nil); !errors.Is(err, ErrRequestUnsupported) {
			t.Errorf("expected ErrRequestUnsupported, got %v", err)
		}
		if err := b.Close(); err != nil {
			t.Errorf("close failed: %v", err)
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		if _, err := New(domain.EventBusConfig{Type: "rabbitmq"}); err == nil {
			t.Error("expected error for unsupported type")
		}
	})
}

func TestSubjectFor(t *testing.T) {
	cases := map[string]string{
		domain.TopicAlert: "harrier.fraud.alert",
		"custom.topic":    "harrier.custom.topic",
	}
	for topic, want := range cases {
		if got := subjectFor(topic); got != want {
			t.Errorf("subjectFor(%q) = %q, want %q", topic, got, want)
		}
	}
}
