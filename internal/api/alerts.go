package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/go-emergency-dispatch/internal/events"
	"github.com/mr1hm/go-emergency-dispatch/internal/models"
)

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

// resolveInstitution fills the draft's institution from the directory so
// alerts and notifications carry the registered name.
func (h *Handler) resolveInstitution(ctx context.Context, inst *models.Institution) error {
	if inst.ID == "" {
		return fmt.Errorf("%w: institution.id is required", models.ErrInvalidAlertDraft)
	}
	entry, err := h.directory.Resolve(ctx, inst.ID)
	if err != nil {
		return err
	}
	*inst = entry.Institution
	return nil
}

// createAlert files a structured incident report. The alert is stored as
// pending unless the report says otherwise, and its institution is notified
// right away.
func (h *Handler) createAlert(c *gin.Context) {
	var draft models.AlertDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		badRequest(c, err)
		return
	}
	if draft.Status == "" {
		draft.Status = models.AlertStatusPending
	}
	ctx := c.Request.Context()
	if err := h.resolveInstitution(ctx, &draft.Institution); err != nil {
		writeError(c, err)
		return
	}

	a, err := h.alerts.Create(ctx, draft)
	if err != nil {
		writeError(c, err)
		return
	}
	cp := *a
	h.publisher.Publish(events.Event{
		Type:          events.TypeAlertCreated,
		InstitutionID: a.Institution.ID,
		Alert:         &cp,
	})

	resp := gin.H{"alert": a}
	if l, err := h.dispatcher.DispatchAlert(ctx, a); err != nil {
		resp["dispatch_error"] = err.Error()
	} else {
		resp["campaign"] = l
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) listAlerts(c *gin.Context) {
	institutionID := c.Query("institution_id")
	openOnly, _ := strconv.ParseBool(c.Query("open"))

	ctx := c.Request.Context()
	var (
		list []models.Alert
		err  error
	)
	if openOnly {
		list, err = h.alerts.ListActiveOrPending(ctx, institutionID)
	} else {
		list, err = h.alerts.ListByInstitution(ctx, institutionID)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	if list == nil {
		list = []models.Alert{}
	}
	c.JSON(http.StatusOK, gin.H{"alerts": list, "count": len(list)})
}

func (h *Handler) getAlert(c *gin.Context) {
	a, err := h.alerts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) updateAlertStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	next := models.AlertStatus(req.Status)
	if !next.Valid() {
		writeError(c, fmt.Errorf("%w: alert status %q", models.ErrInvalidRequest, req.Status))
		return
	}

	a, err := h.alerts.UpdateStatus(c.Request.Context(), c.Param("id"), next)
	if err != nil {
		writeError(c, err)
		return
	}
	cp := *a
	h.publisher.Publish(events.Event{
		Type:          events.TypeAlertStatus,
		InstitutionID: a.Institution.ID,
		Alert:         &cp,
	})
	c.JSON(http.StatusOK, a)
}

func (h *Handler) alertsGeoJSON(c *gin.Context) {
	open, err := h.alerts.ListActiveOrPending(c.Request.Context(), c.Query("institution_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, toGeoJSON(open))
}
