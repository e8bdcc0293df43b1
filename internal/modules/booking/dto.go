package booking

type CreateBookingRequest struct {
	SlotID int64 `json:"slot_id" validate:"required,gt=0"`
}

// CreateByTimeRequest hours and minutes are wall-clock values in the
// service's reference timezone.
type CreateByTimeRequest struct {
	ZoneID      int64  `json:"zone_id" validate:"required,gt=0"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	StartHour   int    `json:"start_hour" validate:"min=0,max=23"`
	StartMinute int    `json:"start_minute" validate:"min=0,max=59"`
	EndHour     int    `json:"end_hour" validate:"min=0,max=24"`
	EndMinute   int    `json:"end_minute" validate:"min=0,max=59"`
}

type CancelRequest struct {
	BookingID int64   `json:"booking_id" validate:"required,gt=0"`
	Reason    *string `json:"reason" validate:"omitempty,max=500"`
}

type AdminCancelRequest struct {
	Reason *string `json:"reason" validate:"omitempty,max=500"`
}

type ExtendRequest struct {
	ExtendHours   int `json:"extend_hours" validate:"min=0,max=24"`
	ExtendMinutes int `json:"extend_minutes" validate:"min=0,max=59"`
}

type HistoryQuery struct {
	Status   string `form:"status" validate:"omitempty,oneof=active cancelled"`
	ZoneID   int64  `form:"zone_id" validate:"omitempty,gt=0"`
	DateFrom string `form:"date_from" validate:"omitempty,datetime=2006-01-02"`
	DateTo   string `form:"date_to" validate:"omitempty,datetime=2006-01-02"`
}
