package events

import "context"

// Handler consumes one message. A nil return acks it off the queue;
// an error nacks it for redelivery.
type Handler func(ctx context.Context, payload []byte) error

// Subscription undoes a Subscribe.
type Subscription struct {
	Unsubscribe func() error
}

// Bus carries both halves of the expense pipeline: the API publishes,
// the worker subscribes. One connection per process serves either side.
type Bus interface {
	Publish(subject string, data []byte, msgId string) error
	Subscribe(subject string, group string, handler Handler) (Subscription, error)
	Drain() error
}
