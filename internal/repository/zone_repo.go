package repository

import (
	"context"
	"time"

	"coworking/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ZoneRepository struct {
	db *gorm.DB
}

func NewZoneRepository(db *gorm.DB) *ZoneRepository {
	return &ZoneRepository{db: db}
}

func (r *ZoneRepository) GetByID(ctx context.Context, id int64) (*domain.Zone, error) {
	var z domain.Zone
	if err := r.db.WithContext(ctx).First(&z, id).Error; err != nil {
		return nil, translate(err)
	}
	return &z, nil
}

// GetForUpdate reads the zone row with a write lock held until the
// surrounding transaction ends. SQLite has no row locks and ignores the clause.
func (r *ZoneRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Zone, error) {
	var z domain.Zone
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&z).Error
	if err != nil {
		return nil, translate(err)
	}
	return &z, nil
}

// List returns zones ordered by name.
func (r *ZoneRepository) List(ctx context.Context, includeInactive bool) ([]domain.Zone, error) {
	q := r.db.WithContext(ctx).Order("name ASC").Order("id ASC")
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	var zones []domain.Zone
	if err := q.Find(&zones).Error; err != nil {
		return nil, err
	}
	return zones, nil
}

func (r *ZoneRepository) ListByID(ctx context.Context) ([]domain.Zone, error) {
	var zones []domain.Zone
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&zones).Error; err != nil {
		return nil, err
	}
	return zones, nil
}

func (r *ZoneRepository) Create(ctx context.Context, z *domain.Zone) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(z).Error
}

// Update applies only the given columns.
func (r *ZoneRepository) Update(ctx context.Context, id int64, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	tx := r.db.WithContext(ctx).Model(&domain.Zone{}).Where("id = ?", id).Updates(fields)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the zone with its places, slots and bookings. Must run inside
// a transaction; foreign keys are not relied upon because SQLite ships with
// them disabled.
func (r *ZoneRepository) Delete(ctx context.Context, id int64) error {
	db := r.db.WithContext(ctx)

	places := db.Model(&domain.Place{}).Select("id").Where("zone_id = ?", id)
	slots := db.Model(&domain.Slot{}).Select("id").Where("place_id IN (?)", places)

	if err := db.Where("slot_id IN (?)", slots).Delete(&domain.Booking{}).Error; err != nil {
		return err
	}
	if err := db.Where("place_id IN (?)", places).Delete(&domain.Slot{}).Error; err != nil {
		return err
	}
	if err := db.Where("zone_id = ?", id).Delete(&domain.Place{}).Error; err != nil {
		return err
	}

	tx := db.Delete(&domain.Zone{}, id)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Close marks the zone inactive until the given instant.
func (r *ZoneRepository) Close(ctx context.Context, id int64, reason string, until time.Time) error {
	return r.Update(ctx, id, map[string]any{
		"is_active":      false,
		"closure_reason": reason,
		"closed_until":   until,
	})
}

// ReactivateExpired reopens every closed zone whose closed_until has passed.
func (r *ZoneRepository) ReactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.reactivate(r.db.WithContext(ctx), now)
}

// ReactivateIfExpired is ReactivateExpired narrowed to one zone.
func (r *ZoneRepository) ReactivateIfExpired(ctx context.Context, id int64, now time.Time) (bool, error) {
	n, err := r.reactivate(r.db.WithContext(ctx).Where("id = ?", id), now)
	return n > 0, err
}

func (r *ZoneRepository) reactivate(db *gorm.DB, now time.Time) (int64, error) {
	tx := db.Model(&domain.Zone{}).
		Where("is_active = ? AND closed_until IS NOT NULL AND closed_until <= ?", false, now).
		Updates(map[string]any{
			"is_active":      true,
			"closure_reason": nil,
			"closed_until":   nil,
		})
	return tx.RowsAffected, tx.Error
}

// BookingCounters aggregates bookings per zone. Occupancy counts active
// bookings whose interval contains now.
func (r *ZoneRepository) BookingCounters(ctx context.Context, now time.Time) (map[int64]domain.BookingCounters, error) {
	q := `
SELECT p.zone_id AS zone_id,
       COALESCE(SUM(CASE WHEN b.status = ? THEN 1 ELSE 0 END), 0) AS active_bookings,
       COALESCE(SUM(CASE WHEN b.status = ? THEN 1 ELSE 0 END), 0) AS cancelled_bookings,
       COALESCE(SUM(CASE WHEN b.status = ? AND b.start_time <= ? AND b.end_time > ? THEN 1 ELSE 0 END), 0) AS current_occupancy
FROM bookings b
JOIN slots s ON s.id = b.slot_id
JOIN places p ON p.id = s.place_id
GROUP BY p.zone_id
`
	var rows []domain.BookingCounters
	err := r.db.WithContext(ctx).
		Raw(q, string(domain.BookingActive), string(domain.BookingCancelled), string(domain.BookingActive), now, now).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[int64]domain.BookingCounters, len(rows))
	for _, row := range rows {
		out[row.ZoneID] = row
	}
	return out, nil
}
