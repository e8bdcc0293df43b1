package repository

import (
	"context"

	"coworking/internal/domain"

	"gorm.io/gorm"
)

type PlaceRepository struct {
	db *gorm.DB
}

func NewPlaceRepository(db *gorm.DB) *PlaceRepository {
	return &PlaceRepository{db: db}
}

func (r *PlaceRepository) GetByID(ctx context.Context, id int64) (*domain.Place, error) {
	var p domain.Place
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// ListActiveByZone returns the zone's active places ordered by name.
func (r *PlaceRepository) ListActiveByZone(ctx context.Context, zoneID int64) ([]domain.Place, error) {
	return r.listActive(ctx, zoneID, "name ASC, id ASC")
}

// ListActiveForScan returns the zone's active places in id order, the order
// in which time-range admission tries them.
func (r *PlaceRepository) ListActiveForScan(ctx context.Context, zoneID int64) ([]domain.Place, error) {
	return r.listActive(ctx, zoneID, "id ASC")
}

func (r *PlaceRepository) listActive(ctx context.Context, zoneID int64, order string) ([]domain.Place, error) {
	var places []domain.Place
	err := r.db.WithContext(ctx).
		Where("zone_id = ? AND is_active = ?", zoneID, true).
		Order(order).
		Find(&places).Error
	if err != nil {
		return nil, err
	}
	return places, nil
}

func (r *PlaceRepository) CountActive(ctx context.Context, zoneID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&domain.Place{}).
		Where("zone_id = ? AND is_active = ?", zoneID, true).
		Count(&n).Error
	return n, err
}

// CapacityByZone counts active places for every zone that has any.
func (r *PlaceRepository) CapacityByZone(ctx context.Context) (map[int64]int64, error) {
	var rows []struct {
		ZoneID   int64
		Capacity int64
	}
	err := r.db.WithContext(ctx).
		Model(&domain.Place{}).
		Select("zone_id, COUNT(*) AS capacity").
		Where("is_active = ?", true).
		Group("zone_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[int64]int64, len(rows))
	for _, row := range rows {
		out[row.ZoneID] = row.Capacity
	}
	return out, nil
}

func (r *PlaceRepository) CreateBatch(ctx context.Context, places []domain.Place) error {
	if len(places) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&places).Error
}
