package events

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nats-io/nats.go"
)

var _ Bus = (*NATSBus)(nil)

type NATSBus struct {
	nats *nats.Conn
	js   nats.JetStreamContext
	log  *slog.Logger
}

// NewNATSBus dials the broker. The name shows up on NATS monitoring,
// so pass the service name ("expense-api", "expense-worker").
func NewNATSBus(addr, name string, logger *slog.Logger) (*NATSBus, error) {
	opts := []nats.Option{
		nats.Name(name),

		// Reconnect forever; receipt scans and index updates queue up
		// in JetStream while we are away.
		nats.MaxReconnects(-1),
		nats.ReconnectWait(3 * time.Second),

		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected! Buffering messages...", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected successfully!", "url", nc.ConnectedUrl())
		}),

		// A permanently closed connection cannot recover in-process.
		// Exit and let the orchestrator restart us with fresh state.
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Error("NATS connection closed permanently. Exiting process.")
			os.Exit(1)
		}),
	}

	nc, err := nats.Connect(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}

	return &NATSBus{
		nats: nc,
		js:   js,
		log:  logger,
	}, nil
}

// Publish sends through JetStream with a caller-chosen message ID, so
// a redundant publish of the same expense event deduplicates broker
// side.
func (b *NATSBus) Publish(subject string, data []byte, msgId string) error {
	b.log.Info("Publishing event", "subject", subject, "data_size", len(data))

	_, err := b.js.Publish(subject, data, nats.MsgId(msgId))
	return err
}

func (b *NATSBus) Subscribe(subject string, group string, handler Handler) (Subscription, error) {
	b.log.Info("Subscribing to subject", "subject", subject, "queue", group)

	opts := []nats.SubOpt{
		nats.ManualAck(),
		nats.AckExplicit(),
		// Catch up on everything missed during a restart.
		nats.DeliverAll(),
		// Backpressure: at most ten unacked scan/index jobs at a time.
		nats.MaxAckPending(10),
	}

	sub, err := b.js.QueueSubscribe(subject, group, func(msg *nats.Msg) {
		// Fresh per-message context; a stuck handler must not wedge
		// the subscription.
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := handler(ctx, msg.Data); err != nil {
			b.log.Error("Handler failed, Nacking message", "subject", subject, "error", err)
			msg.Nak()
			return
		}

		if err := msg.Ack(); err != nil {
			b.log.Error("Failed to Ack message", "subject", subject, "error", err)
		}
	}, opts...)
	if err != nil {
		return Subscription{}, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	return Subscription{
		Unsubscribe: sub.Unsubscribe,
	}, nil
}

// Drain flushes buffered publishes and lets in-flight handlers finish
// before the connection goes away.
func (b *NATSBus) Drain() error {
	b.log.Info("Draining NATS connection")
	return b.nats.Drain()
}
