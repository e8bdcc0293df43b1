package domain

import "time"

type BookingStatus string

const (
	BookingActive    BookingStatus = "active"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking is a user's claim on a slot. Zone name/address and the time range
// are copied at creation so later zone or slot edits don't rewrite history.
type Booking struct {
	ID                 int64         `json:"id" gorm:"primaryKey"`
	UserID             int64         `json:"user_id" gorm:"not null;index"`
	SlotID             int64         `json:"slot_id" gorm:"not null;index"`
	ZoneName           string        `json:"zone_name" gorm:"size:255"`
	ZoneAddress        string        `json:"zone_address" gorm:"size:255"`
	StartTime          time.Time     `json:"start_time" gorm:"index"`
	EndTime            time.Time     `json:"end_time"`
	Status             BookingStatus `json:"status" gorm:"size:32;not null;index"`
	CancellationReason *string       `json:"cancellation_reason,omitempty" gorm:"type:text"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`

	Slot *Slot `json:"-" gorm:"foreignKey:SlotID;constraint:OnDelete:CASCADE"`
}

func (Booking) TableName() string { return "bookings" }

func (b *Booking) IsActive() bool { return b.Status == BookingActive }

// HasTimeRange reports whether the snapshot fields were filled in.
func (b *Booking) HasTimeRange() bool {
	return !b.StartTime.IsZero() && !b.EndTime.IsZero()
}

// BookingFilter narrows a user's booking history.
type BookingFilter struct {
	Status   BookingStatus
	ZoneID   int64
	DateFrom *time.Time
	DateTo   *time.Time
}
