package handlers

import (
	"net/http"
	"strings"

	"SafeYatra/internal/models"
	"SafeYatra/internal/service"
	"SafeYatra/internal/store"
	"SafeYatra/pkg/cache"
	apperrors "SafeYatra/pkg/errors"
	"SafeYatra/pkg/metrics"
	"SafeYatra/pkg/middleware"
	"SafeYatra/pkg/response"
	"SafeYatra/pkg/sse"
	ws "SafeYatra/pkg/websocket"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
)

// Deps are the collaborators the HTTP and socket surface is built on.
// Stream, Metrics, Monitor, Limiter and Idempotency are optional.
type Deps struct {
	Store         store.Store
	Zones         *service.ZoneService
	Locations     *service.LocationService
	SOS           *service.SOSService
	Notifications *service.NotificationService
	Hub           *ws.Hub
	Stream        *sse.Hub
	Auth          *middleware.Authenticator
	Metrics       *metrics.Metrics
	Monitor       *metrics.SystemMonitor
	Limiter       *middleware.RateLimiter
	Idempotency   cache.Cache
}

type Handlers struct {
	Deps
}

func NewHandlers(d Deps) *Handlers {
	return &Handlers{Deps: d}
}

func (h *Handlers) Register(engine *gin.Engine, prefix string) {
	var global []gin.HandlerFunc
	if h.Metrics != nil {
		global = append(global, metrics.Middleware(h.Metrics))
	}
	if h.Limiter != nil {
		global = append(global, h.Limiter.Middleware())
	}
	r := engine.Group(prefix, global...)

	// Register System Module Routes
	h.registerSystemRoutes(r)

	// Register Business Module Routes
	h.registerSOSRoutes(r)
	h.registerLocationRoutes(r)
	h.registerZoneRoutes(r)
	h.registerNotificationRoutes(r)

	engine.NoRoute(notFoundRoute)
}

func (h *Handlers) registerSystemRoutes(r *gin.RouterGroup) {
	r.GET("/health", h.HealthCheck)
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics.Handler()))
	}
	ws.RegisterRoutes(r, ws.NewHandler(h.Hub, middleware.IdentityFrom), h.Auth.Middleware())
	if h.Stream != nil {
		r.GET("/events/stream", h.Auth.Middleware(), h.handleEventStream)
	}
}

// SOS Module
func (h *Handlers) registerSOSRoutes(r *gin.RouterGroup) {
	sos := r.Group("/sos", h.Auth.Middleware())
	{
		create := []gin.HandlerFunc{h.handleCreateSOS}
		if h.Idempotency != nil {
			create = append([]gin.HandlerFunc{middleware.IdempotencyMiddleware(middleware.IdempotencyConfig{
				Store: h.Idempotency,
			})}, create...)
		}
		sos.POST("", create...)
		sos.GET("", authorities(), h.handleListSOS)
		sos.GET("/my", h.handleMySOS)
		sos.GET("/active/count", h.handleActiveCount)
		sos.GET("/:id", h.handleGetSOS)
		sos.PATCH("/:id/status", authorities(), h.handleUpdateSOSStatus)
		sos.DELETE("/:id", h.handleCancelSOS)
	}
}

// Location Module
func (h *Handlers) registerLocationRoutes(r *gin.RouterGroup) {
	loc := r.Group("/locations")
	{
		loc.GET("/heatmap", h.handleHeatmap)
		loc.POST("/update", h.Auth.Middleware(), h.handleRecordLocation)
		loc.GET("/history", h.Auth.Middleware(), h.handleLocationHistory)
		loc.GET("/current", h.Auth.Middleware(), h.handleCurrentLocation)
		loc.GET("/nearby", h.Auth.Middleware(), authorities(), h.handleNearby)
	}
}

// Zone Module
func (h *Handlers) registerZoneRoutes(r *gin.RouterGroup) {
	zones := r.Group("/zones")
	{
		zones.GET("", h.handleListZones)
		zones.GET("/search", h.handleSearchZones)
		zones.GET("/stats/summary", h.Auth.Middleware(), authorities(), h.handleZoneStats)
		zones.GET("/:id", h.handleGetZone)
		zones.POST("", h.Auth.Middleware(), authorities(), h.handleCreateZone)
		zones.PUT("/:id", h.Auth.Middleware(), authorities(), h.handleUpdateZone)
		zones.DELETE("/:id", h.Auth.Middleware(), authorities(), h.handleDeleteZone)
	}
}

// Notification Module
func (h *Handlers) registerNotificationRoutes(r *gin.RouterGroup) {
	n := r.Group("/notifications", h.Auth.Middleware())
	{
		n.GET("", h.handleListNotifications)
		n.POST("", h.handleCreateNotification)
		n.GET("/unread/count", h.handleUnreadCount)
		n.GET("/since", h.handleNotificationsSince)
		n.PATCH("/read-all", h.handleMarkAllRead)
		n.PATCH("/:id/read", h.handleMarkRead)
		n.DELETE("/:id", h.handleDeleteNotification)
		n.DELETE("", h.handleClearNotifications)
	}
}

func authorities() gin.HandlerFunc {
	return middleware.RequireRoles(models.RoleAuthority, models.RoleAdmin)
}

// actor is only called behind the auth middleware.
func actor(c *gin.Context) models.Identity {
	id, _ := middleware.IdentityFrom(c)
	return id
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Fail(c, "invalid request body", nil)
		return false
	}
	return true
}

// optionalTimestamp parses the first non-empty query parameter of names.
func optionalTimestamp(c *gin.Context, names ...string) (*models.Timestamp, error) {
	for _, name := range names {
		raw := strings.TrimSpace(c.Query(name))
		if raw == "" {
			continue
		}
		ts, err := models.ParseTimestamp(raw)
		if err != nil {
			return nil, apperrors.Validation("invalid %s: %s", name, raw)
		}
		return &ts, nil
	}
	return nil, nil
}

func pageParams(c *gin.Context) (int, int) {
	return cast.ToInt(c.DefaultQuery("page", "1")), cast.ToInt(c.DefaultQuery("limit", "20"))
}

// filterValue treats "all" as no filter.
func filterValue(c *gin.Context, name string) string {
	v := strings.TrimSpace(c.Query(name))
	if v == "all" {
		return ""
	}
	return v
}

func notFoundRoute(c *gin.Context) {
	c.JSON(http.StatusNotFound, response.Body{Success: false, Error: "Route not found", Code: string(apperrors.KindNotFound)})
}
