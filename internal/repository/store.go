package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories over one connection or one transaction.
type Store struct {
	db *gorm.DB

	Zones    *ZoneRepository
	Places   *PlaceRepository
	Slots    *SlotRepository
	Bookings *BookingRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:       db,
		Zones:    NewZoneRepository(db),
		Places:   NewPlaceRepository(db),
		Slots:    NewSlotRepository(db),
		Bookings: NewBookingRepository(db),
	}
}

// Transaction runs fn with a Store bound to a single database transaction.
// Calling it on a Store that is already transactional opens a savepoint.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// LockUser serializes the user's admissions across processes for the rest
// of the enclosing transaction. SQLite already runs writers one at a time,
// so only PostgreSQL takes a lock.
func (s *Store) LockUser(ctx context.Context, userID int64) error {
	if s.db.Dialector.Name() != "postgres" {
		return nil
	}
	return s.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(?)", userID).Error
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// ReleaseSlotIfIdle marks the slot available again once no active booking
// references it. It reports whether the slot was released.
func (s *Store) ReleaseSlotIfIdle(ctx context.Context, slotID int64) (bool, error) {
	n, err := s.Bookings.CountActiveOnSlot(ctx, slotID)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if err := s.Slots.SetAvailable(ctx, slotID, true); err != nil {
		return false, err
	}
	return true, nil
}
