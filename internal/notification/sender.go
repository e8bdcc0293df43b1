package notification

import (
	"context"
	"errors"
)

// Sender delivers one event to one destination.
type Sender interface {
	Send(ctx context.Context, e Event) error
}

type SenderFunc func(ctx context.Context, e Event) error

func (f SenderFunc) Send(ctx context.Context, e Event) error { return f(ctx, e) }

// Multi fans an event out to every sender and joins their errors.
type Multi []Sender

func (m Multi) Send(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
