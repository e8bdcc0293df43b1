package repository

import (
	"context"
	"time"

	"coworking/internal/domain"

	"gorm.io/gorm"
)

type SlotRepository struct {
	db *gorm.DB
}

func NewSlotRepository(db *gorm.DB) *SlotRepository {
	return &SlotRepository{db: db}
}

func (r *SlotRepository) GetByID(ctx context.Context, id int64) (*domain.Slot, error) {
	var s domain.Slot
	if err := r.db.WithContext(ctx).First(&s, id).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

// FindExact looks up the slot covering exactly [start, end) on the place.
func (r *SlotRepository) FindExact(ctx context.Context, placeID int64, start, end time.Time) (*domain.Slot, error) {
	var s domain.Slot
	err := r.db.WithContext(ctx).
		Where("place_id = ? AND start_time = ? AND end_time = ?", placeID, start, end).
		First(&s).Error
	if err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

// HasTakenOverlap reports whether any unavailable slot on the place overlaps
// [start, end).
func (r *SlotRepository) HasTakenOverlap(ctx context.Context, placeID int64, start, end time.Time) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&domain.Slot{}).
		Where("place_id = ? AND is_available = ?", placeID, false).
		Where("start_time < ? AND end_time > ?", end, start).
		Count(&n).Error
	return n > 0, err
}

// Create inserts the slot under a savepoint so a unique violation leaves the
// enclosing transaction usable. Violations come back as ErrDuplicate.
func (r *SlotRepository) Create(ctx context.Context, s *domain.Slot) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(s).Error
	})
	if IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *SlotRepository) SetAvailable(ctx context.Context, id int64, available bool) error {
	return r.db.WithContext(ctx).
		Model(&domain.Slot{}).
		Where("id = ?", id).
		Update("is_available", available).Error
}

// ListByPlaceBetween returns the place's slots starting in [from, to), ordered
// by start time.
func (r *SlotRepository) ListByPlaceBetween(ctx context.Context, placeID int64, from, to time.Time) ([]domain.Slot, error) {
	var slots []domain.Slot
	err := r.db.WithContext(ctx).
		Where("place_id = ? AND start_time >= ? AND start_time < ?", placeID, from, to).
		Order("start_time ASC").
		Find(&slots).Error
	if err != nil {
		return nil, err
	}
	return slots, nil
}

// Location resolves the place and zone a slot belongs to.
func (r *SlotRepository) Location(ctx context.Context, slotID int64) (placeID, zoneID int64, err error) {
	var row struct {
		PlaceID int64
		ZoneID  int64
	}
	tx := r.db.WithContext(ctx).
		Table("slots s").
		Select("s.place_id AS place_id, p.zone_id AS zone_id").
		Joins("JOIN places p ON p.id = s.place_id").
		Where("s.id = ?", slotID).
		Scan(&row)
	if tx.Error != nil {
		return 0, 0, tx.Error
	}
	if tx.RowsAffected == 0 {
		return 0, 0, ErrNotFound
	}
	return row.PlaceID, row.ZoneID, nil
}
