package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Sink receives OAuth security and lifecycle events. Implementations are
// best-effort: a sink never blocks or fails the calling flow.
type Sink interface {
	LogOAuthEvent(eventType string, metadata map[string]any)
}

// Event is the payload published for every OAuth event.
type Event struct {
	Type     string         `json:"type"`
	Metadata map[string]any `json:"metadata,omitempty"`
	At       time.Time      `json:"at"`
}

// AMQPSink publishes events to a topic exchange, one routing key per event
// type. Publish failures are logged and swallowed.
type AMQPSink struct {
	log      *slog.Logger
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// NewAMQPSink connects to the broker and declares the exchange.
func NewAMQPSink(log *slog.Logger, url, exchange string) (*AMQPSink, error) {
	const op = "audit.NewAMQPSink"
	logger := log.With(slog.String("op", op))

	conn, err := amqp.Dial(url)
	if err != nil {
		logger.Error("failed to connect to broker", "error", err)
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		logger.Error("failed to open channel", "error", err)
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		logger.Error("failed to declare exchange", "error", err)
		return nil, err
	}
	logger.Info("audit sink connected", slog.String("exchange", exchange))
	return &AMQPSink{log: log, conn: conn, ch: ch, exchange: exchange}, nil
}

// LogOAuthEvent publishes the event without blocking the caller. Errors are
// logged only; the owning flow never sees them.
func (s *AMQPSink) LogOAuthEvent(eventType string, metadata map[string]any) {
	event := Event{Type: eventType, Metadata: metadata, At: time.Now()}
	go func() {
		body, err := json.Marshal(event)
		if err != nil {
			s.log.Error("failed to marshal audit event", "error", err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = s.ch.PublishWithContext(ctx, s.exchange, "oauth."+eventType, false, false, amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   event.At,
		})
		if err != nil {
			s.log.Error("failed to publish audit event", "type", eventType, "error", err)
		}
	}()
}

// Close shuts the channel and connection down.
func (s *AMQPSink) Close() error {
	if err := s.ch.Close(); err != nil {
		return err
	}
	return s.conn.Close()
}

// SlogSink writes events to the application log. Used when no broker is
// configured and in tests.
type SlogSink struct {
	log *slog.Logger
}

// NewSlogSink creates a log-only sink.
func NewSlogSink(log *slog.Logger) *SlogSink {
	return &SlogSink{log: log}
}

// LogOAuthEvent logs the event.
func (s *SlogSink) LogOAuthEvent(eventType string, metadata map[string]any) {
	s.log.Info("oauth event", slog.String("type", eventType), slog.Any("metadata", metadata))
}
