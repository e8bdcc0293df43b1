package zone

import (
	"context"

	"coworking/internal/notification"
)

type Notifier interface {
	Emit(e notification.Event)
}

type Locker interface {
	Lock(ctx context.Context, keys ...string) (release func(), err error)
}
