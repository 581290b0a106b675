package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/harrier/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// KafkaBus implements EventBus on Kafka topics. Writers are created lazily
// per topic; each subscription owns a consumer-group reader.
type KafkaBus struct {
	mu      sync.Mutex
	brokers []string
	groupID string
	writers map[string]*kafkago.Writer
	readers map[string]*kafkaSubscription
	logger  *slog.Logger
	closed  bool
}

type kafkaSubscription struct {
	id     string
	topic  string
	reader *kafkago.Reader
	cancel context.CancelFunc
	done   chan struct{}
	bus    *KafkaBus
}

// NewKafkaBus creates a Kafka-backed bus. No connection is made until the
// first publish or subscribe.
func NewKafkaBus(cfg domain.EventBusConfig, logger *slog.Logger) (*KafkaBus, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	groupID := cfg.KafkaGroupID
	if groupID == "" {
		groupID = "harrier"
	}

	return &KafkaBus{
		brokers: cfg.KafkaBrokers,
		groupID: groupID,
		writers: make(map[string]*kafkago.Writer),
		readers: make(map[string]*kafkaSubscription),
		logger:  logger.With("component", "kafka_bus"),
	}, nil
}

// Publish writes an enveloped message keyed by its ID.
func (b *KafkaBus) Publish(ctx context.Context, topic string, payload []byte) error {
	w, err := b.writer(topic)
	if err != nil {
		return err
	}

	msg := newMessage(topic, payload)
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := w.WriteMessages(ctx, kafkago.Message{Key: []byte(msg.ID), Value: data}); err != nil {
		return fmt.Errorf("kafka publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe starts a consumer-group reader for the topic. Messages are
// committed after the handler returns, including on handler error; a
// poison message must not stall the partition.
func (b *KafkaBus) Subscribe(ctx context.Context, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  b.brokers,
		Topic:    topic,
		GroupID:  b.groupID,
		MinBytes: 1,
		MaxBytes: 10 * 1024 * 1024,
	})

	subCtx, cancel := context.WithCancel(ctx)
	sub := &kafkaSubscription{
		id:     uuid.New().String(),
		topic:  topic,
		reader: reader,
		cancel: cancel,
		done:   make(chan struct{}),
		bus:    b,
	}
	b.readers[sub.id] = sub

	go b.consume(subCtx, sub, handler)
	return sub, nil
}

func (b *KafkaBus) consume(ctx context.Context, sub *kafkaSubscription, handler domain.MessageHandler) {
	defer close(sub.done)

	b.logger.Info("consumer starting", "topic", sub.topic, "group", b.groupID)
	for {
		m, err := sub.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				b.logger.Info("consumer stopping", "topic", sub.topic)
				return
			}
			b.logger.Error("fetch error", "topic", sub.topic, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		var msg domain.Message
		if err := json.Unmarshal(m.Value, &msg); err != nil {
			b.logger.Error("failed to unmarshal kafka message",
				"topic", m.Topic,
				"offset", m.Offset,
				"error", err,
			)
		} else if err := handler(ctx, &msg); err != nil {
			b.logger.Error("handler error",
				"topic", m.Topic,
				"partition", m.Partition,
				"offset", m.Offset,
				"message_id", msg.ID,
				"error", err,
			)
		}

		if err := sub.reader.CommitMessages(ctx, m); err != nil {
			b.logger.Error("commit error",
				"topic", m.Topic,
				"partition", m.Partition,
				"offset", m.Offset,
				"error", err,
			)
		}
	}
}

// Request is not offered over Kafka.
func (b *KafkaBus) Request(ctx context.Context, topic string, payload []byte) ([]byte, error) {
	return nil, ErrRequestUnsupported
}

// Ping dials the first reachable broker.
func (b *KafkaBus) Ping(ctx context.Context) error {
	var lastErr error
	for _, broker := range b.brokers {
		conn, err := kafkago.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	return fmt.Errorf("no kafka broker reachable: %w", lastErr)
}

// Close stops all readers and flushes all writers.
func (b *KafkaBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	var firstErr error
	for id, sub := range b.readers {
		sub.cancel()
		<-sub.done
		if err := sub.reader.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing reader for topic %s: %w", sub.topic, err)
		}
		delete(b.readers, id)
	}
	for topic, w := range b.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing writer for topic %s: %w", topic, err)
		}
	}
	b.writers = make(map[string]*kafkago.Writer)
	return firstErr
}

func (b *KafkaBus) writer(topic string) (*kafkago.Writer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	if w, ok := b.writers[topic]; ok {
		return w, nil
	}

	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(b.brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.LeastBytes{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	b.writers[topic] = w
	return w, nil
}

// Unsubscribe stops the reader goroutine and closes the reader.
func (s *kafkaSubscription) Unsubscribe() error {
	s.bus.mu.Lock()
	_, live := s.bus.readers[s.id]
	delete(s.bus.readers, s.id)
	s.bus.mu.Unlock()

	if !live {
		return nil
	}
	s.cancel()
	<-s.done
	return s.reader.Close()
}

// Topic returns the subscribed topic.
func (s *kafkaSubscription) Topic() string {
	return s.topic
}
