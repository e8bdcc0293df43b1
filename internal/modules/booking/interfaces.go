package booking

import (
	"context"

	"coworking/internal/notification"
)

// Notifier hands events off for delivery after the transaction commits. It
// must not block.
type Notifier interface {
	Emit(e notification.Event)
}

// Locker serializes admission decisions over a set of named keys.
type Locker interface {
	Lock(ctx context.Context, keys ...string) (release func(), err error)
}
