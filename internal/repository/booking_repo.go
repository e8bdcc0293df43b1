package repository

import (
	"context"
	"time"

	"coworking/internal/domain"

	"gorm.io/gorm"
)

type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const activeStatus = string(domain.BookingActive)

func (r *BookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	return r.db.WithContext(ctx).Omit("Slot").Create(b).Error
}

func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	var b domain.Booking
	if err := r.db.WithContext(ctx).First(&b, id).Error; err != nil {
		return nil, translate(err)
	}
	return &b, nil
}

// HasActiveOnSlot reports whether the user already holds an active booking on
// the slot.
func (r *BookingRepository) HasActiveOnSlot(ctx context.Context, userID, slotID int64) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&domain.Booking{}).
		Where("user_id = ? AND slot_id = ? AND status = ?", userID, slotID, activeStatus).
		Count(&n).Error
	return n > 0, err
}

func (r *BookingRepository) CountActiveOnSlot(ctx context.Context, slotID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&domain.Booking{}).
		Where("slot_id = ? AND status = ?", slotID, activeStatus).
		Count(&n).Error
	return n, err
}

// HasUserConflict reports whether the user holds an active booking in any zone
// overlapping [start, end). excludeID of zero excludes nothing.
func (r *BookingRepository) HasUserConflict(ctx context.Context, userID int64, start, end time.Time, excludeID int64) (bool, error) {
	q := r.db.WithContext(ctx).
		Model(&domain.Booking{}).
		Where("user_id = ? AND status = ?", userID, activeStatus).
		Where("start_time < ? AND end_time > ?", end, start)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}

	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// ActiveEndingAt returns the user's active booking on the place that ends
// exactly at end.
func (r *BookingRepository) ActiveEndingAt(ctx context.Context, userID, placeID int64, end time.Time) (*domain.Booking, error) {
	var b domain.Booking
	err := r.db.WithContext(ctx).
		Joins("JOIN slots ON slots.id = bookings.slot_id").
		Where("bookings.user_id = ? AND bookings.status = ?", userID, activeStatus).
		Where("slots.place_id = ? AND bookings.end_time = ?", placeID, end).
		Order("bookings.start_time ASC").
		First(&b).Error
	if err != nil {
		return nil, translate(err)
	}
	return &b, nil
}

// ActiveInZoneOverlapping loads the zone's active bookings whose interval
// intersects [start, end).
func (r *BookingRepository) ActiveInZoneOverlapping(ctx context.Context, zoneID int64, start, end time.Time) ([]domain.Booking, error) {
	var bookings []domain.Booking
	err := r.db.WithContext(ctx).
		Joins("JOIN slots ON slots.id = bookings.slot_id").
		Joins("JOIN places ON places.id = slots.place_id").
		Where("places.zone_id = ? AND bookings.status = ?", zoneID, activeStatus).
		Where("bookings.start_time < ? AND bookings.end_time > ?", end, start).
		Order("bookings.start_time ASC").
		Order("bookings.id ASC").
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// Cancel flips an active booking to cancelled. It reports false when the
// booking was no longer active.
func (r *BookingRepository) Cancel(ctx context.Context, id int64, reason *string) (bool, error) {
	tx := r.db.WithContext(ctx).
		Model(&domain.Booking{}).
		Where("id = ? AND status = ?", id, activeStatus).
		Updates(map[string]any{
			"status":              string(domain.BookingCancelled),
			"cancellation_reason": reason,
		})
	return tx.RowsAffected > 0, tx.Error
}

// History returns the user's bookings newest first.
func (r *BookingRepository) History(ctx context.Context, userID int64, f domain.BookingFilter) ([]domain.Booking, error) {
	q := r.db.WithContext(ctx).
		Model(&domain.Booking{}).
		Where("bookings.user_id = ?", userID)

	if f.Status != "" {
		q = q.Where("bookings.status = ?", string(f.Status))
	}
	if f.ZoneID != 0 {
		q = q.Joins("JOIN slots ON slots.id = bookings.slot_id").
			Joins("JOIN places ON places.id = slots.place_id").
			Where("places.zone_id = ?", f.ZoneID)
	}
	if f.DateFrom != nil {
		q = q.Where("bookings.start_time >= ?", *f.DateFrom)
	}
	if f.DateTo != nil {
		q = q.Where("bookings.start_time < ?", *f.DateTo)
	}

	var bookings []domain.Booking
	err := q.Order("bookings.start_time DESC").Order("bookings.id DESC").Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *BookingRepository) GlobalStats(ctx context.Context, now time.Time) (*domain.GlobalStats, error) {
	var stats domain.GlobalStats
	db := r.db.WithContext(ctx)

	if err := db.Model(&domain.Booking{}).Where("status = ?", activeStatus).Count(&stats.TotalActiveBookings).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&domain.Booking{}).Where("status = ?", string(domain.BookingCancelled)).Count(&stats.TotalCancelledBookings).Error; err != nil {
		return nil, err
	}
	err := db.Model(&domain.Booking{}).
		Where("status = ? AND start_time <= ? AND end_time > ?", activeStatus, now, now).
		Distinct("user_id").
		Count(&stats.UsersInCoworkingNow).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
