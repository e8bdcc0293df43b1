package zone

type CreateZoneRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Address     string `json:"address" validate:"max=255"`
	IsActive    *bool  `json:"is_active"`
	PlacesCount int    `json:"places_count" validate:"required,min=1,max=1000"`
}

// UpdateZoneRequest fields left null are not touched.
type UpdateZoneRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=255"`
	Address  *string `json:"address" validate:"omitempty,max=255"`
	IsActive *bool   `json:"is_active"`
}

// CloseZoneRequest times are RFC 3339, or local wall-clock time in the
// service timezone when no offset is given.
type CloseZoneRequest struct {
	Reason   string `json:"reason" validate:"required,max=500"`
	FromTime string `json:"from_time" validate:"required"`
	ToTime   string `json:"to_time" validate:"required"`
}

type ListQuery struct {
	IncludeInactive bool `form:"include_inactive"`
}
