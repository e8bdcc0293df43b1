package domain

import "time"

// ZoneStats is a zone together with its booking counters.
type ZoneStats struct {
	ZoneID            int64      `json:"zone_id"`
	ZoneName          string     `json:"zone_name"`
	Address           string     `json:"address"`
	IsActive          bool       `json:"is_active"`
	ClosureReason     *string    `json:"closure_reason,omitempty"`
	ClosedUntil       *time.Time `json:"closed_until,omitempty"`
	Capacity          int64      `json:"capacity"`
	ActiveBookings    int64      `json:"active_bookings"`
	CancelledBookings int64      `json:"cancelled_bookings"`
	CurrentOccupancy  int64      `json:"current_occupancy"`
}

// BookingCounters is the per-zone aggregate read from the bookings table.
type BookingCounters struct {
	ZoneID            int64 `gorm:"column:zone_id"`
	ActiveBookings    int64 `gorm:"column:active_bookings"`
	CancelledBookings int64 `gorm:"column:cancelled_bookings"`
	CurrentOccupancy  int64 `gorm:"column:current_occupancy"`
}

type GlobalStats struct {
	TotalActiveBookings    int64 `json:"total_active_bookings"`
	TotalCancelledBookings int64 `json:"total_cancelled_bookings"`
	UsersInCoworkingNow    int64 `json:"users_in_coworking_now"`
}
