// Package amqp delivers change messages to the registry's topic exchange.
//
// The registry never answers a change message. Each publish opens its own
// connection, declares an exclusive reply queue and watches it for a short
// grace period; anything arriving there is an error report.
package amqp

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"sdmox/internal/core/apperror"
	"sdmox/internal/domain/orgunit"
	"sdmox/pkg/logger"
)

const target = "amqp"

// Config configures the publisher.
type Config struct {
	Host        string
	Port        int
	VirtualHost string
	Username    string
	Password    string
	Exchange    string
	RoutingKey  string
	ReplyGrace  time.Duration
}

// URI renders the broker address.
func (c Config) URI() string {
	return amqp.URI{
		Scheme:   "amqp",
		Host:     c.Host,
		Port:     c.Port,
		Username: c.Username,
		Password: c.Password,
		Vhost:    c.VirtualHost,
	}.String()
}

// Publisher implements orgunit.Publisher.
type Publisher struct {
	cfg  Config
	dial func(url string) (*amqp.Connection, error)
}

var _ orgunit.Publisher = (*Publisher)(nil)

// NewPublisher creates a publisher. No connection is opened until Publish.
func NewPublisher(cfg Config) *Publisher {
	if cfg.RoutingKey == "" {
		cfg.RoutingKey = "#"
	}
	return &Publisher{cfg: cfg, dial: amqp.Dial}
}

// Publish sends body and waits out the reply grace period.
func (p *Publisher) Publish(ctx context.Context, body []byte) error {
	conn, err := p.dial(p.cfg.URI())
	if err != nil {
		return apperror.NewTransport(target, err).AtStage(apperror.StagePreSubmission)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return apperror.NewTransport(target, fmt.Errorf("open channel: %w", err)).AtStage(apperror.StagePreSubmission)
	}
	defer ch.Close()

	replyQueue, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return apperror.NewTransport(target, fmt.Errorf("declare reply queue: %w", err)).AtStage(apperror.StagePreSubmission)
	}
	replies, err := ch.Consume(replyQueue.Name, "", true, true, false, false, nil)
	if err != nil {
		return apperror.NewTransport(target, fmt.Errorf("consume reply queue: %w", err)).AtStage(apperror.StagePreSubmission)
	}

	err = ch.PublishWithContext(ctx, p.cfg.Exchange, p.cfg.RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/xml",
		DeliveryMode: amqp.Persistent,
		ReplyTo:      replyQueue.Name,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return apperror.NewTransport(target, fmt.Errorf("publish: %w", err)).AtStage(apperror.StageSubmission)
	}
	logger.Debug(ctx, "change message published", "exchange", p.cfg.Exchange, "reply_to", replyQueue.Name)

	return awaitSilence(ctx, replies, p.cfg.ReplyGrace)
}

// awaitSilence fails if a reply arrives within grace.
func awaitSilence(ctx context.Context, replies <-chan amqp.Delivery, grace time.Duration) error {
	if grace <= 0 {
		select {
		case d, ok := <-replies:
			if ok {
				return unexpected(ctx, d)
			}
		default:
		}
		return nil
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case d, ok := <-replies:
		if !ok {
			return nil
		}
		return unexpected(ctx, d)
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return nil
	}
}

func unexpected(ctx context.Context, d amqp.Delivery) error {
	logger.Error(ctx, "unexpected reply from registry", "correlation_id", d.CorrelationId, "body", string(d.Body))
	return apperror.NewUnexpectedReply(string(d.Body))
}

// Ping checks that the broker accepts connections.
func (p *Publisher) Ping(_ context.Context) error {
	conn, err := p.dial(p.cfg.URI())
	if err != nil {
		return apperror.NewTransport(target, err)
	}
	return conn.Close()
}
