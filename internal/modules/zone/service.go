package zone

import (
	"context"
	"errors"
	"fmt"
	"strings"
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

// closurePrefix is stamped on every booking cancelled by a zone closure.
const closurePrefix = "Zone closed: "

type Service struct {
	store    *repository.Store
	locker   Locker
	notifier Notifier
	log      *zap.Logger

	// now is replaced in tests
	now func() time.Time
}

func NewService(store *repository.Store, locker Locker, notifier Notifier, log *zap.Logger) *Service {
	return &Service{
		store:    store,
		locker:   locker,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// ListZones reopens expired closures and then lists zones by name with their
// counters, all in one transaction.
func (s *Service) ListZones(ctx context.Context, includeInactive bool) ([]domain.ZoneStats, error) {
	now := timeutil.Normalize(s.now())

	var out []domain.ZoneStats
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := s.reactivate(ctx, tx, now); err != nil {
			return err
		}
		zones, err := tx.Zones.List(ctx, includeInactive)
		if err != nil {
			return err
		}
		out, err = s.withStats(ctx, tx, zones, now)
		return err
	})
	return out, err
}

// ZoneStatistics is ListZones over every zone, ordered by id.
func (s *Service) ZoneStatistics(ctx context.Context) ([]domain.ZoneStats, error) {
	now := timeutil.Normalize(s.now())

	var out []domain.ZoneStats
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := s.reactivate(ctx, tx, now); err != nil {
			return err
		}
		zones, err := tx.Zones.ListByID(ctx)
		if err != nil {
			return err
		}
		out, err = s.withStats(ctx, tx, zones, now)
		return err
	})
	return out, err
}

func (s *Service) GlobalStatistics(ctx context.Context) (*domain.GlobalStats, error) {
	return s.store.Bookings.GlobalStats(ctx, timeutil.Normalize(s.now()))
}

type CreateInput struct {
	Name        string
	Address     string
	IsActive    bool
	PlacesCount int
}

// CreateZone creates the zone with places named "Место 1".."Место N".
func (s *Service) CreateZone(ctx context.Context, in CreateInput) (*domain.Zone, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, validationError("name is required")
	}
	if in.PlacesCount < 1 {
		return nil, validationError("places_count must be at least 1")
	}

	z := &domain.Zone{Name: name, Address: strings.TrimSpace(in.Address), IsActive: in.IsActive}
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Zones.Create(ctx, z); err != nil {
			return err
		}
		places := make([]domain.Place, 0, in.PlacesCount)
		for i := 1; i <= in.PlacesCount; i++ {
			places = append(places, domain.Place{
				ZoneID:   z.ID,
				Name:     fmt.Sprintf("Место %d", i),
				IsActive: true,
			})
		}
		if err := tx.Places.CreateBatch(ctx, places); err != nil {
			return err
		}
		z.Places = places
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("zone created", zap.Int64("zone_id", z.ID), zap.Int("places", in.PlacesCount))
	return z, nil
}

type Patch struct {
	Name     *string
	Address  *string
	IsActive *bool
}

func (s *Service) UpdateZone(ctx context.Context, id int64, p Patch) (*domain.Zone, error) {
	fields := map[string]any{}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return nil, validationError("name must not be empty")
		}
		fields["name"] = name
	}
	if p.Address != nil {
		fields["address"] = strings.TrimSpace(*p.Address)
	}
	if p.IsActive != nil {
		fields["is_active"] = *p.IsActive
	}

	if err := s.store.Zones.Update(ctx, id, fields); err != nil {
		return nil, notFound(err, id)
	}
	z, err := s.store.Zones.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, id)
	}
	return z, nil
}

// DeleteZone removes the zone together with its places, slots and bookings.
func (s *Service) DeleteZone(ctx context.Context, id int64) error {
	release, err := s.locker.Lock(ctx, lock.ZoneKey(id))
	if err != nil {
		return fmt.Errorf("acquire zone lock: %w", err)
	}
	defer release()

	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		return tx.Zones.Delete(ctx, id)
	})
	if err != nil {
		return notFound(err, id)
	}
	s.log.Info("zone deleted", zap.Int64("zone_id", id))
	return nil
}

// CloseZone deactivates the zone until to and cancels every active booking
// intersecting [from, to). The cancelled bookings are returned.
func (s *Service) CloseZone(ctx context.Context, id int64, reason string, from, to time.Time) (_ []domain.Booking, err error) {
	ctx, span := telemetry.StartSpan(ctx, "zone.Close", attribute.Int64("zone_id", id))
	defer func() { telemetry.End(span, err) }()

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validationError("reason is required")
	}
	from, to = timeutil.Normalize(from), timeutil.Normalize(to)
	if !to.After(from) {
		return nil, validationError("to_time must be after from_time")
	}

	release, err := s.locker.Lock(ctx, lock.ZoneKey(id))
	if err != nil {
		return nil, fmt.Errorf("acquire zone lock: %w", err)
	}
	defer release()

	stamp := closurePrefix + reason
	var affected []domain.Booking
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if _, err := tx.Zones.GetForUpdate(ctx, id); err != nil {
			return err
		}
		if err := tx.Zones.Close(ctx, id, reason, to); err != nil {
			return err
		}

		bookings, err := tx.Bookings.ActiveInZoneOverlapping(ctx, id, from, to)
		if err != nil {
			return err
		}
		for _, b := range bookings {
			ok, err := tx.Bookings.Cancel(ctx, b.ID, &stamp)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if _, err := tx.ReleaseSlotIfIdle(ctx, b.SlotID); err != nil {
				return err
			}
			b.Status = domain.BookingCancelled
			b.CancellationReason = &stamp
			affected = append(affected, b)
		}
		return nil
	})
	if err != nil {
		return nil, notFound(err, id)
	}

	s.log.Info("zone closed",
		zap.Int64("zone_id", id),
		zap.Time("closed_until", to),
		zap.Int("cancelled_bookings", len(affected)),
	)
	for i := range affected {
		s.notifier.Emit(notification.NewEvent(notification.ZoneClosed, &affected[i], reason))
	}
	if affected == nil {
		affected = []domain.Booking{}
	}
	return affected, nil
}

func (s *Service) reactivate(ctx context.Context, tx *repository.Store, now time.Time) error {
	n, err := tx.Zones.ReactivateExpired(ctx, now)
	if err != nil {
		return err
	}
	if n > 0 {
		s.log.Info("zones reactivated", zap.Int64("count", n))
	}
	return nil
}

func (s *Service) withStats(ctx context.Context, tx *repository.Store, zones []domain.Zone, now time.Time) ([]domain.ZoneStats, error) {
	capacity, err := tx.Places.CapacityByZone(ctx)
	if err != nil {
		return nil, err
	}
	counters, err := tx.Zones.BookingCounters(ctx, now)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ZoneStats, 0, len(zones))
	for _, z := range zones {
		c := counters[z.ID]
		out = append(out, domain.ZoneStats{
			ZoneID:            z.ID,
			ZoneName:          z.Name,
			Address:           z.Address,
			IsActive:          z.IsActive,
			ClosureReason:     z.ClosureReason,
			ClosedUntil:       z.ClosedUntil,
			Capacity:          capacity[z.ID],
			ActiveBookings:    c.ActiveBookings,
			CancelledBookings: c.CancelledBookings,
			CurrentOccupancy:  c.CurrentOccupancy,
		})
	}
	return out, nil
}

func notFound(err error, id int64) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("zone %d: %w", id, ErrNotFound)
	}
	return err
}
