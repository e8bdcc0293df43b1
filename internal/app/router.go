// Package app assembles the HTTP surface of the booking service.
package app

import (
	"context"
	"net/http"
	"time"

	"coworking/internal/middleware"
	"coworking/internal/modules/booking"
	"coworking/internal/modules/zone"
	"coworking/internal/notification"
	"coworking/internal/pkg/response"
	"coworking/internal/repository"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

type Deps struct {
	ServiceName string
	Store       *repository.Store
	Bookings    *booking.Service
	Zones       *zone.Service
	// Hub is optional; without it the websocket feed is not mounted.
	Hub      *notification.Hub
	Identity middleware.IdentityConfig
	Location *time.Location
	Log      *zap.Logger
}

func NewRouter(d Deps) *gin.Engine {
	if d.ServiceName == "" {
		d.ServiceName = "coworking-booking"
	}

	r := gin.New()
	r.Use(
		middleware.RequestID(),
		otelgin.Middleware(d.ServiceName),
		middleware.Logger(d.Log),
	)

	r.GET("/health", health(d.Store))

	bookingHandler := booking.NewHandler(d.Bookings, d.Log)
	zoneHandler := zone.NewHandler(d.Zones, d.Location, d.Log)

	v1 := r.Group("/api/v1")
	v1.Use(middleware.Identity(d.Identity))
	{
		zoneHandler.RegisterRoutes(v1)
		bookingHandler.RegisterRoutes(v1)
		if d.Hub != nil {
			notification.NewHandler(d.Hub, d.Log).RegisterRoutes(v1)
		}

		admin := v1.Group("/admin")
		admin.Use(middleware.AdminOnly())
		{
			zoneHandler.RegisterAdminRoutes(admin)
			bookingHandler.RegisterAdminRoutes(admin)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
	return r
}

func health(store *repository.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			response.Error(c, http.StatusServiceUnavailable, "UNAVAILABLE", "database unreachable")
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	}
}
