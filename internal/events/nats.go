package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/docpub/internal/config"
)

// NATSPublisher publishes run events to a NATS JetStream subject.
type NATSPublisher struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	subject string
}

// NewNATSPublisher connects to NATS and prepares a JetStream context.
func NewNATSPublisher(cfg *config.EventsConfig) (*NATSPublisher, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, fmt.Errorf("events are disabled")
	}

	conn, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	slog.Info("NATS event publisher initialized",
		"url", cfg.NATSURL,
		"subject", cfg.Subject)

	return &NATSPublisher{conn: conn, js: js, subject: cfg.Subject}, nil
}

// PublishRunStarted publishes a run started event.
func (p *NATSPublisher) PublishRunStarted(event *RunStartedEvent) error {
	event.Timestamp = time.Now()
	return p.publish(p.subject+".started", event)
}

// PublishRunFinished publishes a run finished event.
func (p *NATSPublisher) PublishRunFinished(event *RunFinishedEvent) error {
	event.Timestamp = time.Now()
	return p.publish(p.subject+".finished", event)
}

func (p *NATSPublisher) publish(subject string, event any) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	slog.Debug("Published run event", "subject", subject)
	return nil
}

// Close drains the NATS connection.
func (p *NATSPublisher) Close() error {
	if p.conn != nil {
		p.conn.Close()
	}
	return nil
}
