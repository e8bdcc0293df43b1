package zone

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"coworking/internal/pkg/response"
	"coworking/internal/pkg/timeutil"
	"coworking/internal/pkg/validator"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	service *Service
	loc     *time.Location
	log     *zap.Logger
}

// NewHandler reads offset-less timestamps in loc.
func NewHandler(service *Service, loc *time.Location, log *zap.Logger) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{service: service, loc: loc, log: log}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/zones", h.List)
}

// RegisterAdminRoutes expects rg to be gated by middleware.AdminOnly.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	zones := rg.Group("/zones")
	zones.GET("", h.AdminList)
	zones.POST("", h.Create)
	zones.GET("/statistics", h.Statistics)
	zones.PATCH("/:id", h.Update)
	zones.DELETE("/:id", h.Delete)
	zones.POST("/:id/close", h.Close)

	rg.GET("/statistics", h.GlobalStatistics)
}

func (h *Handler) List(c *gin.Context) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid query parameters")
		return
	}
	h.list(c, q.IncludeInactive)
}

func (h *Handler) AdminList(c *gin.Context) {
	h.list(c, true)
}

func (h *Handler) list(c *gin.Context, includeInactive bool) {
	zones, err := h.service.ListZones(c.Request.Context(), includeInactive)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, zones)
}

func (h *Handler) Statistics(c *gin.Context) {
	stats, err := h.service.ZoneStatistics(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, stats)
}

func (h *Handler) GlobalStatistics(c *gin.Context) {
	stats, err := h.service.GlobalStatistics(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, stats)
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateZoneRequest
	if !bindJSON(c, &req) {
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	z, err := h.service.CreateZone(c.Request.Context(), CreateInput{
		Name:        req.Name,
		Address:     req.Address,
		IsActive:    active,
		PlacesCount: req.PlacesCount,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, gin.H{"zone": z, "places": z.Places})
}

func (h *Handler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req UpdateZoneRequest
	if !bindJSON(c, &req) {
		return
	}

	z, err := h.service.UpdateZone(c.Request.Context(), id, Patch{
		Name:     req.Name,
		Address:  req.Address,
		IsActive: req.IsActive,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, z)
}

func (h *Handler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.service.DeleteZone(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Close(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req CloseZoneRequest
	if !bindJSON(c, &req) {
		return
	}

	from, err := timeutil.ParseInstant(req.FromTime, h.loc)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "from_time must be an ISO-8601 timestamp")
		return
	}
	to, err := timeutil.ParseInstant(req.ToTime, h.loc)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "to_time must be an ISO-8601 timestamp")
		return
	}

	affected, err := h.service.CloseZone(c.Request.Context(), id, req.Reason, from, to)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, affected)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, ErrValidation):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	default:
		h.log.Error("zone request failed", zap.Error(err), zap.String("path", c.FullPath()))
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
