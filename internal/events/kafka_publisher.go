package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"storefront/internal/config"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher buffers events in memory and writes them from a single goroutine.
// When the buffer is full the event is dropped and logged.
type KafkaPublisher struct {
	w       messageWriter
	inbox   chan kafka.Message
	closeCh chan struct{}
	onDrop  func(eventType string)
	logger  zerolog.Logger

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// NewKafkaPublisher creates a publisher for the configured topic. onDrop may be nil.
func NewKafkaPublisher(cfg config.KafkaConfig, onDrop func(eventType string), logger zerolog.Logger) *KafkaPublisher {
	logger = logger.With().Str("component", "kafka-publisher").Str("topic", cfg.Topic).Logger()

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error().Err(err).Int("messages", len(messages)).Msg("failed to deliver order events")
			}
		},
	}

	return newKafkaPublisher(w, cfg.Buffer, onDrop, logger)
}

func newKafkaPublisher(w messageWriter, buffer int, onDrop func(string), logger zerolog.Logger) *KafkaPublisher {
	if onDrop == nil {
		onDrop = func(string) {}
	}
	return &KafkaPublisher{
		w:       w,
		inbox:   make(chan kafka.Message, buffer),
		closeCh: make(chan struct{}),
		onDrop:  onDrop,
		logger:  logger,
	}
}

// Start runs the write loop until ctx is cancelled or Close is called. Buffered events are flushed before exit.
func (p *KafkaPublisher) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		for {
			select {
			case <-ctx.Done():
				p.Close()
				for m := range p.inbox {
					p.write(m)
				}
				p.closeWriter()
				return
			case m, ok := <-p.inbox:
				if !ok {
					p.closeWriter()
					return
				}
				p.write(m)
			}
		}
	}()
}

// Publish enqueues event without blocking.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) {
	value, err := json.Marshal(event)
	if err != nil {
		p.logger.Error().Err(err).Str("type", event.Type).Msg("failed to encode order event")
		return
	}

	msg := kafka.Message{
		Key:   []byte(event.OrderID.String()),
		Value: value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.drop(event, "publisher closed")
		return
	}

	select {
	case p.inbox <- msg:
	default:
		p.drop(event, "buffer full")
	}
}

// Close stops accepting events. The write loop flushes what is buffered and exits.
func (p *KafkaPublisher) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.inbox)
		p.mu.Unlock()
	})
}

// WaitClosed blocks until the write loop has exited.
func (p *KafkaPublisher) WaitClosed() {
	<-p.closeCh
}

func (p *KafkaPublisher) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		p.logger.Error().Err(err).Str("key", string(m.Key)).Msg("failed to write order event")
	}
}

func (p *KafkaPublisher) closeWriter() {
	if err := p.w.Close(); err != nil {
		p.logger.Error().Err(err).Msg("failed to close kafka writer")
	}
}

func (p *KafkaPublisher) drop(event Event, reason string) {
	p.logger.Warn().
		Str("type", event.Type).
		Str("order_id", event.OrderID.String()).
		Str("reason", reason).
		Msg("dropping order event")
	p.onDrop(event.Type)
}
