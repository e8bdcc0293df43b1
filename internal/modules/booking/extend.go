package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coworking/internal/domain"
	"coworking/internal/notification"
	"coworking/internal/pkg/lock"
	"coworking/internal/pkg/telemetry"
	"coworking/internal/pkg/timeutil"
	"coworking/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ExtendBooking books [end, end+extension) at the same place as a new
// booking. The original booking is never modified.
func (s *Service) ExtendBooking(ctx context.Context, userID, bookingID int64, hours, minutes int) (_ *domain.Booking, err error) {
	ctx, span := telemetry.StartSpan(ctx, "booking.Extend",
		attribute.Int64("user_id", userID),
		attribute.Int64("booking_id", bookingID),
	)
	defer func() { telemetry.End(span, err) }()

	b, err := s.store.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, s.notFound(err, "booking")
	}
	if b.UserID != userID {
		return nil, ErrForbidden
	}
	if !b.IsActive() {
		return nil, s.refuse(ExtensionNotActive, b)
	}
	if !b.HasTimeRange() {
		s.log.Error("booking without time range", zap.Int64("booking_id", b.ID))
		return nil, fmt.Errorf("booking %d has no time range: %w", b.ID, ErrDataIntegrity)
	}
	if _, err := s.store.Slots.GetByID(ctx, b.SlotID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Error("booking without slot", zap.Int64("booking_id", b.ID), zap.Int64("slot_id", b.SlotID))
			return nil, fmt.Errorf("booking %d references missing slot: %w", b.ID, ErrDataIntegrity)
		}
		return nil, err
	}

	if hours < 0 || minutes < 0 {
		return nil, validationError("extension must not be negative")
	}
	extension := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
	if extension <= 0 {
		return nil, validationError("extension must be positive")
	}

	// The zone decides the lock scope; an unresolvable zone is reported in
	// its turn below, after the conflict check.
	placeID, zoneID, locErr := s.store.Slots.Location(ctx, b.SlotID)
	if locErr != nil && !errors.Is(locErr, repository.ErrNotFound) {
		return nil, locErr
	}
	keys := []string{lock.UserKey(userID)}
	if locErr == nil {
		keys = append(keys, lock.ZoneKey(zoneID))
	}

	release, err := s.locker.Lock(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("acquire admission lock: %w", err)
	}
	defer release()

	var created *domain.Booking
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.LockUser(ctx, userID); err != nil {
			return err
		}
		current, err := tx.Bookings.GetByID(ctx, b.ID)
		if err != nil {
			return s.notFound(err, "booking")
		}
		if !current.IsActive() {
			return s.refuse(ExtensionNotActive, current)
		}

		holdStart := current.StartTime
		if locErr == nil {
			if holdStart, err = s.holdStart(ctx, tx, userID, placeID, current); err != nil {
				return err
			}
		}

		start := current.EndTime
		newEnd := timeutil.Normalize(start.Add(extension))
		if newEnd.Sub(holdStart) > s.cfg.MaxBookingDuration {
			return s.refuse(ExtensionLimitExceeded, current)
		}

		conflict, err := tx.Bookings.HasUserConflict(ctx, userID, start, newEnd, current.ID)
		if err != nil {
			return err
		}
		if conflict {
			return s.refuse(ExtensionConflict, current)
		}

		if locErr != nil {
			return s.refuse(ExtensionZoneUnresolved, current)
		}
		zone, err := tx.Zones.GetForUpdate(ctx, zoneID)
		if errors.Is(err, repository.ErrNotFound) {
			return s.refuse(ExtensionZoneUnresolved, current)
		}
		if err != nil {
			return err
		}

		ok, err := s.capacityAvailable(ctx, tx, zone.ID, start, newEnd)
		if err != nil {
			return err
		}
		if !ok {
			return s.refuse(ExtensionCapacity, current)
		}

		slot, outcome, err := s.claimSlot(ctx, tx, placeID, start, newEnd)
		if err != nil {
			return err
		}
		switch outcome {
		case slotExactTaken:
			return s.refuse(ExtensionTimeTaken, current)
		case slotOverlapTaken:
			return s.refuse(ExtensionPartiallyTaken, current)
		}

		created, err = s.occupy(ctx, tx, userID, zone, slot)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.emit(notification.BookingExtended, created, "")
	return created, nil
}

func (s *Service) refuse(reason ExtensionReason, b *domain.Booking) error {
	s.log.Info("booking extension denied",
		zap.String("reason", string(reason)),
		zap.Int64("user_id", b.UserID),
		zap.Int64("booking_id", b.ID),
	)
	return &ExtensionError{Reason: reason, Message: s.extensionMessage(reason)}
}

func (s *Service) extensionMessage(reason ExtensionReason) string {
	switch reason {
	case ExtensionNotActive:
		return "Продлить можно только активное бронирование"
	case ExtensionLimitExceeded:
		return fmt.Sprintf("Превышен максимальный лимит бронирования: %s часов", formatHours(s.cfg.MaxBookingDuration))
	case ExtensionConflict:
		return "У вас уже есть бронирование на это время"
	case ExtensionZoneUnresolved:
		return "Не удалось определить зону бронирования"
	case ExtensionCapacity:
		return "В зоне нет свободных мест на время продления"
	case ExtensionTimeTaken:
		return "Это время на вашем месте уже занято"
	case ExtensionPartiallyTaken:
		return "Часть времени продления на вашем месте уже занята"
	}
	return "Продление невозможно"
}

func formatHours(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%d", int64(d/time.Hour))
	}
	return fmt.Sprintf("%.1f", d.Hours())
}

// holdStart walks back through the user's touching active bookings on the
// place, so a chain of extensions counts as one continuous hold.
func (s *Service) holdStart(ctx context.Context, tx *repository.Store, userID, placeID int64, b *domain.Booking) (time.Time, error) {
	start := b.StartTime
	for {
		prev, err := tx.Bookings.ActiveEndingAt(ctx, userID, placeID, start)
		if errors.Is(err, repository.ErrNotFound) {
			return start, nil
		}
		if err != nil {
			return time.Time{}, err
		}
		if !prev.StartTime.Before(start) {
			return start, nil
		}
		start = prev.StartTime
	}
}
