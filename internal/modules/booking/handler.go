package booking

import (
	"errors"
	"net/http"
	"strconv"

	"coworking/internal/domain"
	"coworking/internal/middleware"
	"coworking/internal/pkg/response"
	"coworking/internal/pkg/validator"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// admissionMessage is the single answer for every rejected creation.
const admissionMessage = "Невозможно создать бронь: слот недоступен, время пересекается с другой бронью или в зоне нет свободных мест"

type Handler struct {
	service *Service
	log     *zap.Logger
}

func NewHandler(service *Service, log *zap.Logger) *Handler {
	return &Handler{service: service, log: log}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/zones/:id/places", h.ListPlaces)
	rg.GET("/places/:id/slots", h.ListSlots)

	bookings := rg.Group("/bookings")
	bookings.POST("", h.CreateBooking)
	bookings.POST("/by-time", h.CreateByTime)
	bookings.POST("/cancel", h.Cancel)
	bookings.GET("/history", h.History)
	bookings.GET("/:id", h.GetBooking)
	bookings.POST("/:id/extend", h.Extend)
}

// RegisterAdminRoutes expects rg to be gated by middleware.AdminOnly.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/bookings/:id/cancel", h.AdminCancel)
}

func (h *Handler) ListPlaces(c *gin.Context) {
	zoneID, ok := pathID(c)
	if !ok {
		return
	}
	places, err := h.service.ListPlaces(c.Request.Context(), zoneID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, places)
}

func (h *Handler) ListSlots(c *gin.Context) {
	placeID, ok := pathID(c)
	if !ok {
		return
	}
	date := c.Query("date")
	if date == "" {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "date query parameter is required")
		return
	}
	slots, err := h.service.ListSlots(c.Request.Context(), placeID, date)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, slots)
}

func (h *Handler) CreateBooking(c *gin.Context) {
	caller, _ := middleware.CallerFrom(c)

	var req CreateBookingRequest
	if !bindJSON(c, &req) {
		return
	}

	b, err := h.service.CreateBooking(c.Request.Context(), caller.UserID, req.SlotID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, b)
}

func (h *Handler) CreateByTime(c *gin.Context) {
	caller, _ := middleware.CallerFrom(c)

	var req CreateByTimeRequest
	if !bindJSON(c, &req) {
		return
	}

	b, err := h.service.CreateBookingByTimeRange(c.Request.Context(), caller.UserID, TimeRangeRequest{
		ZoneID:      req.ZoneID,
		Date:        req.Date,
		StartHour:   req.StartHour,
		StartMinute: req.StartMinute,
		EndHour:     req.EndHour,
		EndMinute:   req.EndMinute,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, b)
}

func (h *Handler) Cancel(c *gin.Context) {
	caller, _ := middleware.CallerFrom(c)

	var req CancelRequest
	if !bindJSON(c, &req) {
		return
	}

	// Admins go through the admin route to act on foreign bookings.
	owner := domain.Caller{UserID: caller.UserID, Role: domain.RoleUser}
	b, err := h.service.CancelBooking(c.Request.Context(), owner, req.BookingID, req.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, b)
}

func (h *Handler) AdminCancel(c *gin.Context) {
	caller, _ := middleware.CallerFrom(c)
	bookingID, ok := pathID(c)
	if !ok {
		return
	}

	var req AdminCancelRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}

	b, err := h.service.CancelBooking(c.Request.Context(), caller, bookingID, req.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, b)
}

func (h *Handler) History(c *gin.Context) {
	caller, _ := middleware.CallerFrom(c)

	var q HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid query parameters")
		return
	}
	if errs := validator.Validate(&q); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid query parameters", errs)
		return
	}

	bookings, err := h.service.History(c.Request.Context(), caller.UserID, HistoryFilter{
		Status:   q.Status,
		ZoneID:   q.ZoneID,
		DateFrom: q.DateFrom,
		DateTo:   q.DateTo,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, bookings)
}

func (h *Handler) GetBooking(c *gin.Context) {
	caller, _ := middleware.CallerFrom(c)
	bookingID, ok := pathID(c)
	if !ok {
		return
	}

	b, err := h.service.GetBooking(c.Request.Context(), caller, bookingID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, b)
}

func (h *Handler) Extend(c *gin.Context) {
	caller, _ := middleware.CallerFrom(c)
	bookingID, ok := pathID(c)
	if !ok {
		return
	}

	var req ExtendRequest
	if !bindJSON(c, &req) {
		return
	}

	b, err := h.service.ExtendBooking(c.Request.Context(), caller.UserID, bookingID, req.ExtendHours, req.ExtendMinutes)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, b)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var extErr *ExtensionError
	switch {
	case errors.As(err, &extErr):
		response.Error(c, http.StatusBadRequest, "EXTENSION_DENIED", extErr.Message)
	case errors.Is(err, ErrAdmissionDenied):
		response.Error(c, http.StatusConflict, "BOOKING_NOT_POSSIBLE", admissionMessage)
	case errors.Is(err, ErrNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, ErrForbidden):
		response.Error(c, http.StatusForbidden, "FORBIDDEN", "access denied")
	case errors.Is(err, ErrValidation):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, ErrDataIntegrity):
		h.log.Error("data integrity violation", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "DATA_INTEGRITY_ERROR", "booking data is inconsistent")
	default:
		h.log.Error("booking request failed", zap.Error(err), zap.String("path", c.FullPath()))
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return false
	}
	if errs := validator.Validate(req); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", errs)
		return false
	}
	return true
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid id")
		return 0, false
	}
	return id, true
}
