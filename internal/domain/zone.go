package domain

import "time"

type Zone struct {
	ID            int64      `json:"id" gorm:"primaryKey"`
	Name          string     `json:"name" gorm:"size:255;not null"`
	Address       string     `json:"address" gorm:"size:255"`
	IsActive      bool       `json:"is_active" gorm:"not null"`
	ClosureReason *string    `json:"closure_reason,omitempty" gorm:"type:text"`
	ClosedUntil   *time.Time `json:"closed_until,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	Places []Place `json:"-" gorm:"foreignKey:ZoneID;constraint:OnDelete:CASCADE"`
}

func (Zone) TableName() string { return "zones" }

// ClosureExpired reports whether a closed zone is due for reactivation at now.
func (z *Zone) ClosureExpired(now time.Time) bool {
	return !z.IsActive && z.ClosedUntil != nil && !z.ClosedUntil.After(now)
}

// Place is one unit of capacity inside a zone, e.g. a desk.
type Place struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	ZoneID    int64     `json:"zone_id" gorm:"not null;index"`
	Name      string    `json:"name" gorm:"size:255;not null"`
	IsActive  bool      `json:"is_active" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Slots []Slot `json:"-" gorm:"foreignKey:PlaceID;constraint:OnDelete:CASCADE"`
}

func (Place) TableName() string { return "places" }

// Slot is a concrete time interval on a place. At most one active booking
// may reference it.
type Slot struct {
	ID          int64     `json:"id" gorm:"primaryKey"`
	PlaceID     int64     `json:"place_id" gorm:"not null;uniqueIndex:uq_place_time_interval,priority:1;index:ix_slot_place_start,priority:1"`
	StartTime   time.Time `json:"start_time" gorm:"not null;uniqueIndex:uq_place_time_interval,priority:2;index:ix_slot_place_start,priority:2"`
	EndTime     time.Time `json:"end_time" gorm:"not null;uniqueIndex:uq_place_time_interval,priority:3"`
	IsAvailable bool      `json:"is_available" gorm:"not null"`

	Bookings []Booking `json:"-" gorm:"foreignKey:SlotID;constraint:OnDelete:CASCADE"`
}

func (Slot) TableName() string { return "slots" }
