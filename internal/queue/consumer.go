package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/store-rating/internal/config"
	"github.com/iliyamo/store-rating/internal/logger"
)

// ConsumerOptions configures StartRatingConsumer.
type ConsumerOptions struct {
	AMQP    config.AMQPConfig
	LogPath string // audit file, logs/ratings.log by default
	Log     *logger.Logger
}

// StartRatingConsumer connects to RabbitMQ, declares the rating queue
// (durable) and appends one line per event to the audit file.  It runs a
// reconnect loop with exponential backoff and returns only when ctx is
// cancelled.  Malformed messages are rejected without requeue so a poison
// message cannot spin the loop.
func StartRatingConsumer(ctx context.Context, opts ConsumerOptions) error {
	if opts.AMQP.URL == "" {
		return ErrPublisherDisabled
	}
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	if opts.LogPath == "" {
		opts.LogPath = filepath.Join("logs", "ratings.log")
	}
	queueName := opts.AMQP.Queue
	if queueName == "" {
		queueName = "rating.submitted"
	}

	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := dialBroker(opts.AMQP.URL)
		if err != nil {
			opts.Log.Warn(ctx, fmt.Sprintf("rating-consumer: dial failed, retrying in %s", backoff), err)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, queueName, opts)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		opts.Log.Warn(ctx, "rating-consumer: consume loop ended, reconnecting", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, queueName string, opts ConsumerOptions) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		opts.Log.Warn(ctx, "rating-consumer: set QoS failed", err)
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := appendAudit(opts.LogPath, d.Body); err != nil {
				opts.Log.Error(ctx, "rating-consumer: handle message failed", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func appendAudit(path string, body []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	return handleMessage(body, f)
}

// handleMessage decodes one delivery and writes its audit line to w.
func handleMessage(body []byte, w io.Writer) error {
	var ev RatingSubmittedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.StoreID == "" || ev.UserID == "" {
		return errors.New("event without store or user id")
	}
	if _, err := io.WriteString(w, FormatAuditLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatAuditLine renders ev as a single human-friendly log line.
func FormatAuditLine(ev RatingSubmittedEvent) string {
	return fmt.Sprintf("[%s] Rating %s | rating_id=%s | store_id=%s | store=%q | user_id=%s | user=%q | value=%d\n",
		ev.SubmittedAt.UTC().Format(time.RFC3339), ev.Action(), ev.RatingID, ev.StoreID, ev.StoreName,
		ev.UserID, ev.UserEmail, ev.RatingValue)
}
