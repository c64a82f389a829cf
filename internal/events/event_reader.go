package events

import (
	"context"
	"encoding/json"
	"log/slog"
)

// EventReader is the consuming side, used by the worker process.
type EventReader struct {
	bus    Bus
	config *EventConfig
	logger *slog.Logger
}

func NewEventReader(bus Bus, config *EventConfig, logger *slog.Logger) *EventReader {
	return &EventReader{
		bus:    bus,
		config: config,
		logger: logger,
	}
}

const queue = "expense-worker"

func (r *EventReader) SubscribeToExpenseRecordedEvents(handler func(evt ExpenseRecordedEvent) error) error {
	subject := r.config.ExpenseRecorded
	r.logger.Info("Subscribing to ExpenseRecorded events", "subject", subject)

	_, err := r.bus.Subscribe(subject, queue, func(ctx context.Context, payload []byte) error {
		var evt ExpenseRecordedEvent

		if err := json.Unmarshal(payload, &evt); err != nil {
			// Log the error as critical
			r.logger.Error("Discarding malformed JSON event", "subject", subject, "error", err)

			// Return NIL to ACK the message and remove it from the queue.
			// Do NOT return err, or it will loop forever.
			return nil
		}

		// If logic fails (e.g. search engine down), return error to Retry
		return handler(evt)
	})

	return err
}

func (r *EventReader) SubscribeToExpenseDeletedEvents(handler func(evt ExpenseDeletedEvent) error) error {
	subject := r.config.ExpenseDeleted
	r.logger.Info("Subscribing to ExpenseDeleted events", "subject", subject)

	_, err := r.bus.Subscribe(subject, queue, func(ctx context.Context, payload []byte) error {
		var evt ExpenseDeletedEvent

		if err := json.Unmarshal(payload, &evt); err != nil {
			r.logger.Error("Discarding malformed JSON event", "subject", subject, "error", err)
			return nil
		}

		return handler(evt)
	})

	return err
}

func (r *EventReader) SubscribeToReceiptScanEvents(handler func(evt ReceiptScanEvent) error) error {
	subject := r.config.ReceiptScan
	r.logger.Info("Subscribing to ReceiptScan events", "subject", subject)

	_, err := r.bus.Subscribe(subject, queue, func(ctx context.Context, payload []byte) error {
		var evt ReceiptScanEvent

		if err := json.Unmarshal(payload, &evt); err != nil {
			r.logger.Error("Discarding malformed JSON event", "subject", subject, "error", err)
			return nil
		}

		return handler(evt)
	})

	return err
}
