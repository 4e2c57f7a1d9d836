package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mr1hm/go-emergency-dispatch/internal/alerts"
	"github.com/mr1hm/go-emergency-dispatch/internal/campaignlog"
	"github.com/mr1hm/go-emergency-dispatch/internal/directory"
	"github.com/mr1hm/go-emergency-dispatch/internal/dispatch"
	"github.com/mr1hm/go-emergency-dispatch/internal/emergency"
	"github.com/mr1hm/go-emergency-dispatch/internal/events"
	"github.com/mr1hm/go-emergency-dispatch/internal/models"
)

// Services are the components the HTTP surface drives.
type Services struct {
	Alerts      *alerts.Store
	Campaigns   *campaignlog.Store
	Dispatcher  *dispatch.Dispatcher
	Triggers    *emergency.Coordinator
	Directory   directory.Directory
	Broadcaster *events.Broadcaster
	Publisher   events.Publisher
}

type Handler struct {
	alerts      *alerts.Store
	campaigns   *campaignlog.Store
	dispatcher  *dispatch.Dispatcher
	triggers    *emergency.Coordinator
	directory   directory.Directory
	broadcaster *events.Broadcaster
	publisher   events.Publisher
}

func NewHandler(s Services) *Handler {
	h := &Handler{
		alerts:      s.Alerts,
		campaigns:   s.Campaigns,
		dispatcher:  s.Dispatcher,
		triggers:    s.Triggers,
		directory:   s.Directory,
		broadcaster: s.Broadcaster,
		publisher:   s.Publisher,
	}
	if h.publisher == nil {
		h.publisher = events.Nop
	}
	return h
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	api.POST("/alerts", h.createAlert)
	api.GET("/alerts", h.listAlerts)
	api.GET("/alerts/geojson", h.alertsGeoJSON)
	api.GET("/alerts/:id", h.getAlert)
	api.PATCH("/alerts/:id/status", h.updateAlertStatus)

	triggers := api.Group("/triggers/:point")
	triggers.GET("", h.triggerStatus)
	triggers.POST("/arm", h.armTrigger)
	triggers.POST("/confirm", h.confirmTrigger)
	triggers.POST("/cancel", h.cancelTrigger)
	triggers.POST("/fire", h.fireTrigger)

	api.POST("/campaigns/bulk", h.bulkSend)
	api.GET("/campaigns", h.listCampaigns)
	api.GET("/campaigns/stats", h.campaignStats)
	api.GET("/campaigns/:id", h.getCampaign)
	api.POST("/campaigns/:id/resend", h.resendCampaign)
	api.PATCH("/campaigns/:id/status", h.updateCampaignStatus)

	if h.broadcaster != nil {
		api.GET("/stream", h.stream)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// writeError maps the error taxonomy onto HTTP status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrNotFound), errors.Is(err, emergency.ErrUnknownPoint):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrInvalidAlertDraft), errors.Is(err, models.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrCountdownState),
		errors.Is(err, models.ErrCountdownBusy):
		status = http.StatusConflict
	case errors.Is(err, models.ErrUnknownInstitution), errors.Is(err, models.ErrEmptyRecipientSet):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func queryLimit(c *gin.Context) int {
	if l := c.Query("limit"); l != "" {
		if lim, err := strconv.Atoi(l); err == nil && lim > 0 && lim <= 500 {
			return lim
		}
	}
	return 0
}
