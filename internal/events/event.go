package events

import (
	"time"

	"github.com/mr1hm/go-emergency-dispatch/internal/models"
)

type Type string

const (
	TypeAlertCreated      Type = "alert.created"
	TypeAlertStatus       Type = "alert.status"
	TypeCampaignSent      Type = "campaign.sent"
	TypeCampaignStatus    Type = "campaign.status"
	TypeDispatchFailed    Type = "dispatch.failed"
	TypeCountdownTick     Type = "countdown.tick"
	TypeCountdownCanceled Type = "countdown.canceled"
)

type Event struct {
	Type          Type                `json:"type"`
	InstitutionID string              `json:"institution_id,omitempty"`
	Alert         *models.Alert       `json:"alert,omitempty"`
	Campaign      *models.CampaignLog `json:"campaign,omitempty"`
	TriggerPoint  string              `json:"trigger_point,omitempty"`
	Remaining     int                 `json:"remaining,omitempty"`
	Error         string              `json:"error,omitempty"`
	At            time.Time           `json:"at"`
}

// Key partitions events by institution on the Kafka topic.
func (e Event) Key() string {
	if e.InstitutionID != "" {
		return e.InstitutionID
	}
	return string(e.Type)
}

// Publisher accepts events for delivery; it must not block the caller for long.
type Publisher interface {
	Publish(e Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(Event) {}

var Nop Publisher = nopPublisher{}
