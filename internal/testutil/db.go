// Package testutil builds throwaway SQLite databases for package tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"coworking/internal/database"
	"coworking/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NewDB opens a private in-memory database with the schema applied.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:coworking_test_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.Connect(dsn, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// SeedZone creates an active zone with the given number of active places.
func SeedZone(t *testing.T, db *gorm.DB, name string, places int) (*domain.Zone, []domain.Place) {
	t.Helper()

	zone := &domain.Zone{Name: name, Address: name + " street", IsActive: true}
	require.NoError(t, db.Create(zone).Error)

	out := make([]domain.Place, 0, places)
	for i := 1; i <= places; i++ {
		p := domain.Place{ZoneID: zone.ID, Name: fmt.Sprintf("Место %d", i), IsActive: true}
		require.NoError(t, db.Create(&p).Error)
		out = append(out, p)
	}
	return zone, out
}

// SeedSlot creates an available slot on the place.
func SeedSlot(t *testing.T, db *gorm.DB, placeID int64, start, end time.Time) *domain.Slot {
	t.Helper()

	s := &domain.Slot{
		PlaceID:     placeID,
		StartTime:   start.UTC().Truncate(time.Second),
		EndTime:     end.UTC().Truncate(time.Second),
		IsAvailable: true,
	}
	require.NoError(t, db.Create(s).Error)
	return s
}

// ActiveBookings lists every active booking in the database.
func ActiveBookings(t *testing.T, db *gorm.DB) []domain.Booking {
	t.Helper()

	var out []domain.Booking
	require.NoError(t, db.Where("status = ?", string(domain.BookingActive)).Order("id").Find(&out).Error)
	return out
}
