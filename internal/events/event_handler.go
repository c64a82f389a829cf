package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

// EventHandler is the publishing side. Message IDs are deterministic
// per record so JetStream deduplicates redeliveries of the same fact.
type EventHandler struct {
	bus    Bus
	config *EventConfig
	logger *slog.Logger
}

func NewEventHandler(bus Bus, config *EventConfig, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		bus:    bus,
		config: config,
		logger: logger,
	}
}

func (h *EventHandler) RaiseExpenseRecordedEvent(evt ExpenseRecordedEvent) error {
	h.logger.Info("Raising expense recorded event",
		"expense_id", evt.ExpenseID,
		"account_id", evt.AccountID,
	)

	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("Failed to marshal ExpenseRecordedEvent", "error", err)
		return err
	}

	msgId := fmt.Sprintf("recorded.%s.%s", evt.AccountID, evt.ExpenseID)

	return h.bus.Publish(h.config.ExpenseRecorded, data, msgId)
}

func (h *EventHandler) RaiseExpenseDeletedEvent(evt ExpenseDeletedEvent) error {
	h.logger.Info("Raising expense deleted event",
		"expense_id", evt.ExpenseID,
		"account_id", evt.AccountID,
	)

	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("Failed to marshal ExpenseDeletedEvent", "error", err)
		return err
	}

	msgId := fmt.Sprintf("deleted.%s.%s", evt.AccountID, evt.ExpenseID)

	return h.bus.Publish(h.config.ExpenseDeleted, data, msgId)
}

func (h *EventHandler) RaiseReceiptScanEvent(evt ReceiptScanEvent) error {
	h.logger.Info("Raising receipt scan event",
		"expense_id", evt.ExpenseID,
		"account_id", evt.AccountID,
		"receipt_key", evt.ReceiptKey,
	)

	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("Failed to marshal ReceiptScanEvent", "error", err)
		return err
	}

	msgId := fmt.Sprintf("scan.%s.%s", evt.AccountID, evt.ExpenseID)

	return h.bus.Publish(h.config.ReceiptScan, data, msgId)
}
