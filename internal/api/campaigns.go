package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/go-emergency-dispatch/internal/dispatch"
	"github.com/mr1hm/go-emergency-dispatch/internal/events"
	"github.com/mr1hm/go-emergency-dispatch/internal/models"
	"github.com/mr1hm/go-emergency-dispatch/internal/repository"
)

type bulkResult struct {
	InstitutionID string              `json:"institution_id"`
	Campaign      *models.CampaignLog `json:"campaign,omitempty"`
	Error         string              `json:"error,omitempty"`
}

func (h *Handler) bulkSend(c *gin.Context) {
	var req dispatch.BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if len(req.InstitutionIDs) == 0 {
		badRequest(c, fmt.Errorf("institution_ids is required"))
		return
	}
	req.Kind = dispatch.KindBulk

	results := h.dispatcher.DispatchBulk(c.Request.Context(), req)

	out := make([]bulkResult, 0, len(results))
	var sent int
	for _, r := range results {
		br := bulkResult{InstitutionID: r.InstitutionID, Campaign: r.Log}
		if r.Err != nil {
			br.Error = r.Err.Error()
		} else {
			sent++
		}
		out = append(out, br)
	}
	c.JSON(http.StatusOK, gin.H{
		"results": out,
		"sent":    sent,
		"failed":  len(out) - sent,
	})
}

func campaignFilter(c *gin.Context) (repository.CampaignFilter, error) {
	filter := repository.CampaignFilter{
		InstitutionID: c.Query("institution_id"),
		AlertID:       c.Query("alert_id"),
		Query:         c.Query("q"),
		Limit:         queryLimit(c),
	}
	if ch := c.Query("channel"); ch != "" {
		channel := models.Channel(ch)
		if !channel.Valid() {
			return filter, fmt.Errorf("%w: channel %q", models.ErrInvalidRequest, ch)
		}
		filter.Channel = &channel
	}
	if s := c.Query("status"); s != "" {
		status := models.CampaignStatus(s)
		if !status.Valid() {
			return filter, fmt.Errorf("%w: status %q", models.ErrInvalidRequest, s)
		}
		filter.Status = &status
	}
	return filter, nil
}

func (h *Handler) listCampaigns(c *gin.Context) {
	filter, err := campaignFilter(c)
	if err != nil {
		writeError(c, err)
		return
	}
	logs, err := h.campaigns.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	if logs == nil {
		logs = []models.CampaignLog{}
	}
	c.JSON(http.StatusOK, gin.H{"campaigns": logs, "count": len(logs)})
}

func (h *Handler) campaignStats(c *gin.Context) {
	filter, err := campaignFilter(c)
	if err != nil {
		writeError(c, err)
		return
	}
	stats, err := h.campaigns.AggregateStats(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) getCampaign(c *gin.Context) {
	l, err := h.campaigns.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

func (h *Handler) resendCampaign(c *gin.Context) {
	l, err := h.dispatcher.ResendFailed(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, l)
}

func (h *Handler) updateCampaignStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	l, err := h.campaigns.UpdateStatus(c.Request.Context(), c.Param("id"), models.CampaignStatus(req.Status))
	if err != nil {
		writeError(c, err)
		return
	}
	cp := *l
	h.publisher.Publish(events.Event{
		Type:          events.TypeCampaignStatus,
		InstitutionID: l.Institution.ID,
		Campaign:      &cp,
	})
	c.JSON(http.StatusOK, l)
}
