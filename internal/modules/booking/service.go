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

const DefaultMaxBookingDuration = 6 * time.Hour

type Config struct {
	MaxBookingDuration time.Duration
	// Location interprets calendar dates and offset-less times.
	Location *time.Location
	// Now overrides the clock in tests.
	Now func() time.Time
}

type Service struct {
	store    *repository.Store
	locker   Locker
	notifier Notifier
	cfg      Config
	log      *zap.Logger
}

func NewService(store *repository.Store, locker Locker, notifier Notifier, cfg Config, log *zap.Logger) *Service {
	if cfg.MaxBookingDuration <= 0 {
		cfg.MaxBookingDuration = DefaultMaxBookingDuration
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		store:    store,
		locker:   locker,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
	}
}

func (s *Service) now() time.Time {
	return timeutil.Normalize(s.cfg.Now())
}

// CreateBooking books an existing slot for the user.
func (s *Service) CreateBooking(ctx context.Context, userID, slotID int64) (_ *domain.Booking, err error) {
	ctx, span := telemetry.StartSpan(ctx, "booking.Create",
		attribute.Int64("user_id", userID),
		attribute.Int64("slot_id", slotID),
	)
	defer func() { telemetry.End(span, err) }()

	_, zoneID, err := s.store.Slots.Location(ctx, slotID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("slot %d: %w", slotID, ErrNotFound)
		}
		return nil, err
	}

	release, err := s.locker.Lock(ctx, lock.ZoneKey(zoneID), lock.UserKey(userID))
	if err != nil {
		return nil, fmt.Errorf("acquire admission lock: %w", err)
	}
	defer release()

	var created *domain.Booking
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.LockUser(ctx, userID); err != nil {
			return err
		}
		zone, err := tx.Zones.GetForUpdate(ctx, zoneID)
		if err != nil {
			return s.notFound(err, "zone")
		}

		slot, err := tx.Slots.GetByID(ctx, slotID)
		if err != nil {
			return s.notFound(err, "slot")
		}
		if !slot.IsAvailable {
			return s.deny(ReasonSlotUnavailable, userID, zoneID)
		}
		// another slot of the same place may already hold part of the interval
		taken, err := tx.Slots.HasTakenOverlap(ctx, slot.PlaceID, slot.StartTime, slot.EndTime)
		if err != nil {
			return err
		}
		if taken {
			return s.deny(ReasonSlotUnavailable, userID, zoneID)
		}

		dup, err := tx.Bookings.HasActiveOnSlot(ctx, userID, slot.ID)
		if err != nil {
			return err
		}
		if dup {
			return s.deny(ReasonDuplicate, userID, zoneID)
		}

		conflict, err := tx.Bookings.HasUserConflict(ctx, userID, slot.StartTime, slot.EndTime, 0)
		if err != nil {
			return err
		}
		if conflict {
			return s.deny(ReasonConflict, userID, zoneID)
		}

		ok, err := s.capacityAvailable(ctx, tx, zoneID, slot.StartTime, slot.EndTime)
		if err != nil {
			return err
		}
		if !ok {
			return s.deny(ReasonCapacity, userID, zoneID)
		}

		created, err = s.occupy(ctx, tx, userID, zone, slot)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.emit(notification.BookingCreated, created, "")
	return created, nil
}

type TimeRangeRequest struct {
	ZoneID      int64
	Date        string
	StartHour   int
	StartMinute int
	EndHour     int
	EndMinute   int
}

// CreateBookingByTimeRange books the first place in the zone that can host
// the requested interval, materializing a slot for it when needed.
func (s *Service) CreateBookingByTimeRange(ctx context.Context, userID int64, req TimeRangeRequest) (_ *domain.Booking, err error) {
	ctx, span := telemetry.StartSpan(ctx, "booking.CreateByTimeRange",
		attribute.Int64("user_id", userID),
		attribute.Int64("zone_id", req.ZoneID),
	)
	defer func() { telemetry.End(span, err) }()

	start, end, err := s.resolveRange(req)
	if err != nil {
		return nil, err
	}
	if !end.After(start) {
		return nil, validationError("end time must be after start time")
	}
	if end.Sub(start) > s.cfg.MaxBookingDuration {
		return nil, s.deny(ReasonDurationExceeded, userID, req.ZoneID)
	}

	release, err := s.locker.Lock(ctx, lock.ZoneKey(req.ZoneID), lock.UserKey(userID))
	if err != nil {
		return nil, fmt.Errorf("acquire admission lock: %w", err)
	}
	defer release()

	var created *domain.Booking
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.LockUser(ctx, userID); err != nil {
			return err
		}
		if _, err := tx.Zones.ReactivateIfExpired(ctx, req.ZoneID, s.now()); err != nil {
			return err
		}
		zone, err := tx.Zones.GetForUpdate(ctx, req.ZoneID)
		if errors.Is(err, repository.ErrNotFound) {
			return s.deny(ReasonZoneUnavailable, userID, req.ZoneID)
		}
		if err != nil {
			return err
		}
		if !zone.IsActive {
			return s.deny(ReasonZoneUnavailable, userID, req.ZoneID)
		}

		conflict, err := tx.Bookings.HasUserConflict(ctx, userID, start, end, 0)
		if err != nil {
			return err
		}
		if conflict {
			return s.deny(ReasonConflict, userID, zone.ID)
		}

		ok, err := s.capacityAvailable(ctx, tx, zone.ID, start, end)
		if err != nil {
			return err
		}
		if !ok {
			return s.deny(ReasonCapacity, userID, zone.ID)
		}

		places, err := tx.Places.ListActiveForScan(ctx, zone.ID)
		if err != nil {
			return err
		}
		for _, place := range places {
			slot, outcome, err := s.claimSlot(ctx, tx, place.ID, start, end)
			if err != nil {
				return err
			}
			if outcome != slotClaimed {
				continue
			}
			created, err = s.occupy(ctx, tx, userID, zone, slot)
			return err
		}
		return s.deny(ReasonNoPlace, userID, zone.ID)
	})
	if err != nil {
		return nil, err
	}

	s.emit(notification.BookingCreated, created, "")
	return created, nil
}

func (s *Service) resolveRange(req TimeRangeRequest) (time.Time, time.Time, error) {
	day, err := timeutil.ParseDate(req.Date, s.cfg.Location)
	if err != nil {
		return time.Time{}, time.Time{}, validationError("date must be YYYY-MM-DD")
	}
	if req.StartHour < 0 || req.StartHour > 23 || req.StartMinute < 0 || req.StartMinute > 59 {
		return time.Time{}, time.Time{}, validationError("start time out of range")
	}
	// 24:00 is accepted as the end of the day.
	if req.EndHour < 0 || req.EndHour > 24 || req.EndMinute < 0 || req.EndMinute > 59 ||
		(req.EndHour == 24 && req.EndMinute != 0) {
		return time.Time{}, time.Time{}, validationError("end time out of range")
	}

	start := timeutil.At(day, req.StartHour, req.StartMinute, s.cfg.Location)
	end := timeutil.At(day, req.EndHour, req.EndMinute, s.cfg.Location)
	return start, end, nil
}

// CancelBooking cancels a booking on behalf of its owner or an admin.
// Cancelling an already cancelled booking returns it unchanged.
func (s *Service) CancelBooking(ctx context.Context, caller domain.Caller, bookingID int64, reason *string) (_ *domain.Booking, err error) {
	ctx, span := telemetry.StartSpan(ctx, "booking.Cancel",
		attribute.Int64("user_id", caller.UserID),
		attribute.Int64("booking_id", bookingID),
	)
	defer func() { telemetry.End(span, err) }()

	b, err := s.store.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, s.notFound(err, "booking")
	}
	if b.UserID != caller.UserID && !caller.IsAdmin() {
		return nil, ErrForbidden
	}
	if !b.IsActive() {
		return b, nil
	}

	keys := []string{lock.UserKey(b.UserID)}
	if _, zoneID, err := s.store.Slots.Location(ctx, b.SlotID); err == nil {
		keys = append(keys, lock.ZoneKey(zoneID))
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	release, err := s.locker.Lock(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("acquire admission lock: %w", err)
	}
	defer release()

	changed := false
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		ok, err := tx.Bookings.Cancel(ctx, b.ID, reason)
		if err != nil || !ok {
			return err
		}
		changed = true
		if _, err := tx.ReleaseSlotIfIdle(ctx, b.SlotID); err != nil {
			return err
		}
		b, err = tx.Bookings.GetByID(ctx, b.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if !changed {
		// lost a race with another cancellation
		return s.store.Bookings.GetByID(ctx, bookingID)
	}

	s.emit(notification.BookingCancelled, b, derefString(reason))
	return b, nil
}

// GetBooking returns a booking visible to the caller.
func (s *Service) GetBooking(ctx context.Context, caller domain.Caller, bookingID int64) (*domain.Booking, error) {
	b, err := s.store.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, s.notFound(err, "booking")
	}
	if b.UserID != caller.UserID && !caller.IsAdmin() {
		return nil, ErrForbidden
	}
	return b, nil
}

type HistoryFilter struct {
	Status   string
	ZoneID   int64
	DateFrom string
	DateTo   string
}

// History lists the user's bookings newest first. Date bounds are whole days
// in the service location, both inclusive.
func (s *Service) History(ctx context.Context, userID int64, f HistoryFilter) ([]domain.Booking, error) {
	filter := domain.BookingFilter{ZoneID: f.ZoneID}

	switch domain.BookingStatus(f.Status) {
	case "":
	case domain.BookingActive, domain.BookingCancelled:
		filter.Status = domain.BookingStatus(f.Status)
	default:
		return nil, validationError("unknown status %q", f.Status)
	}

	if f.DateFrom != "" {
		day, err := timeutil.ParseDate(f.DateFrom, s.cfg.Location)
		if err != nil {
			return nil, validationError("date_from must be YYYY-MM-DD")
		}
		from, _ := timeutil.DayBounds(day, s.cfg.Location)
		filter.DateFrom = &from
	}
	if f.DateTo != "" {
		day, err := timeutil.ParseDate(f.DateTo, s.cfg.Location)
		if err != nil {
			return nil, validationError("date_to must be YYYY-MM-DD")
		}
		_, to := timeutil.DayBounds(day, s.cfg.Location)
		filter.DateTo = &to
	}

	return s.store.Bookings.History(ctx, userID, filter)
}

// ListPlaces returns the zone's active places ordered by name.
func (s *Service) ListPlaces(ctx context.Context, zoneID int64) ([]domain.Place, error) {
	if _, err := s.store.Zones.GetByID(ctx, zoneID); err != nil {
		return nil, s.notFound(err, "zone")
	}
	return s.store.Places.ListActiveByZone(ctx, zoneID)
}

// ListSlots returns the place's slots starting on the given calendar day.
func (s *Service) ListSlots(ctx context.Context, placeID int64, date string) ([]domain.Slot, error) {
	day, err := timeutil.ParseDate(date, s.cfg.Location)
	if err != nil {
		return nil, validationError("date must be YYYY-MM-DD")
	}
	if _, err := s.store.Places.GetByID(ctx, placeID); err != nil {
		return nil, s.notFound(err, "place")
	}

	from, to := timeutil.DayBounds(day, s.cfg.Location)
	return s.store.Slots.ListByPlaceBetween(ctx, placeID, from, to)
}

func (s *Service) capacityAvailable(ctx context.Context, tx *repository.Store, zoneID int64, start, end time.Time) (bool, error) {
	capacity, err := tx.Places.CountActive(ctx, zoneID)
	if err != nil {
		return false, err
	}
	if capacity == 0 {
		return false, nil
	}

	existing, err := tx.Bookings.ActiveInZoneOverlapping(ctx, zoneID, start, end)
	if err != nil {
		return false, err
	}
	return fitsCapacity(capacity, bookingIntervals(existing), interval{start: start, end: end}), nil
}

type slotOutcome int

const (
	slotClaimed slotOutcome = iota
	slotExactTaken
	slotOverlapTaken
)

// claimSlot finds or materializes an available slot for exactly
// [start, end) on the place.
func (s *Service) claimSlot(ctx context.Context, tx *repository.Store, placeID int64, start, end time.Time) (*domain.Slot, slotOutcome, error) {
	slot, err := tx.Slots.FindExact(ctx, placeID, start, end)
	switch {
	case err == nil:
		if !slot.IsAvailable {
			return nil, slotExactTaken, nil
		}
		return slot, slotClaimed, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, 0, err
	}

	taken, err := tx.Slots.HasTakenOverlap(ctx, placeID, start, end)
	if err != nil {
		return nil, 0, err
	}
	if taken {
		return nil, slotOverlapTaken, nil
	}

	slot = &domain.Slot{PlaceID: placeID, StartTime: start, EndTime: end, IsAvailable: true}
	if err := tx.Slots.Create(ctx, slot); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, slotExactTaken, nil
		}
		return nil, 0, err
	}
	return slot, slotClaimed, nil
}

// occupy writes the booking for slot and marks the slot taken.
func (s *Service) occupy(ctx context.Context, tx *repository.Store, userID int64, zone *domain.Zone, slot *domain.Slot) (*domain.Booking, error) {
	b := &domain.Booking{
		UserID:      userID,
		SlotID:      slot.ID,
		ZoneName:    zone.Name,
		ZoneAddress: zone.Address,
		StartTime:   timeutil.Normalize(slot.StartTime),
		EndTime:     timeutil.Normalize(slot.EndTime),
		Status:      domain.BookingActive,
	}
	if err := tx.Bookings.Create(ctx, b); err != nil {
		return nil, err
	}
	if err := tx.Slots.SetAvailable(ctx, slot.ID, false); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) deny(reason AdmissionReason, userID, zoneID int64) error {
	s.log.Info("booking admission denied",
		zap.String("reason", string(reason)),
		zap.Int64("user_id", userID),
		zap.Int64("zone_id", zoneID),
	)
	return &AdmissionError{Reason: reason}
}

func (s *Service) notFound(err error, what string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}

func (s *Service) emit(t notification.Type, b *domain.Booking, reason string) {
	s.notifier.Emit(notification.NewEvent(t, b, reason))
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
