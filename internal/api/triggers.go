package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/go-emergency-dispatch/internal/emergency"
	"github.com/mr1hm/go-emergency-dispatch/internal/models"
)

func triggerPoint(c *gin.Context) emergency.Point {
	return emergency.Point(c.Param("point"))
}

func (h *Handler) triggerStatus(c *gin.Context) {
	st, err := h.triggers.Status(triggerPoint(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) armTrigger(c *gin.Context) {
	var draft models.AlertDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.resolveInstitution(c.Request.Context(), &draft.Institution); err != nil {
		writeError(c, err)
		return
	}

	st, err := h.triggers.Arm(triggerPoint(c), draft)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) confirmTrigger(c *gin.Context) {
	h.triggerAction(c, h.triggers.Confirm)
}

func (h *Handler) cancelTrigger(c *gin.Context) {
	h.triggerAction(c, h.triggers.Cancel)
}

func (h *Handler) fireTrigger(c *gin.Context) {
	h.triggerAction(c, h.triggers.FireNow)
}

func (h *Handler) triggerAction(c *gin.Context, action func(emergency.Point) (emergency.Status, error)) {
	st, err := action(triggerPoint(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
