package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/adspace-marketplace/internal/config"
)

// LogFile is the file, under the configured log directory, that events are
// appended to.
const LogFile = "rentals.log"

// Consumer listens on both event queues and appends one line per event to
// <LogDir>/rentals.log.
type Consumer struct {
	cfg config.QueueConfig
	log *zap.Logger
	mu  sync.Mutex // serializes file appends across the two queues
}

func NewConsumer(cfg config.QueueConfig, log *zap.Logger) *Consumer {
	return &Consumer{cfg: cfg, log: log}
}

// Run connects with exponential backoff and consumes until ctx is done.
// Processing errors are logged and the offending message rejected.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.cfg.URL)
		if err != nil {
			c.log.Warn("event consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("event consumer: consume loop ended, reconnecting", zap.Error(err))
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

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		c.log.Warn("event consumer: set QoS failed", zap.Error(err))
	}

	var wg sync.WaitGroup
	errc := make(chan error, 2)
	for _, q := range []string{RentedQueue, MintedQueue} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", q, err)
		}
		msgs, err := ch.Consume(q, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("queue consume %s: %w", q, err)
		}
		wg.Add(1)
		go func(queue string, msgs <-chan amqp.Delivery) {
			defer wg.Done()
			for d := range msgs {
				if err := c.HandleMessage(queue, d.Body); err != nil {
					c.log.Error("event consumer: handle message failed", zap.String("queue", queue), zap.Error(err))
					_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
					continue
				}
				_ = d.Ack(false)
			}
			errc <- fmt.Errorf("%s deliveries channel closed", queue)
		}(q, msgs)
	}

	select {
	case <-ctx.Done():
		_ = ch.Close()
		wg.Wait()
		return ctx.Err()
	case err := <-errc:
		_ = ch.Close()
		wg.Wait()
		return err
	}
}

// HandleMessage decodes one event body from queue and appends it to the
// event log.
func (c *Consumer) HandleMessage(queue string, body []byte) error {
	var line string
	switch queue {
	case RentedQueue:
		var ev AdSpaceRentedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		line = fmt.Sprintf("[%s] Ad space rented | token_id=%d | renter=%s | user_id=%s | start=%s | end=%s | website=%q | value_wei=%s | tx=%s\n",
			ev.RentedAt, ev.TokenID, ev.Renter, ev.UserID,
			Timestamp(time.Unix(ev.StartTime, 0)), Timestamp(time.Unix(ev.EndTime, 0)),
			ev.WebsiteURL, ev.ValueWei, ev.TxHash)
	case MintedQueue:
		var ev AdSpaceMintedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		line = fmt.Sprintf("[%s] Ad space minted | token_id=%d | owner=%s | user_id=%s | website=%q | rate_usd=%s | tx=%s\n",
			ev.MintedAt, ev.TokenID, ev.Owner, ev.UserID, ev.WebsiteURL, ev.HourlyRateUSD, ev.TxHash)
	default:
		return errors.New("unknown queue " + queue)
	}
	return c.appendLine(line)
}

func (c *Consumer) appendLine(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.cfg.LogDir, 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(c.cfg.LogDir, LogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
