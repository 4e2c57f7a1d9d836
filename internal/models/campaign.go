package models

import "time"

type Channel string

const (
	ChannelSMS  Channel = "sms"
	ChannelIVR  Channel = "ivr"
	ChannelBoth Channel = "both"
)

func (c Channel) Valid() bool {
	return c == ChannelSMS || c == ChannelIVR || c == ChannelBoth
}

func (c Channel) IncludesSMS() bool {
	return c == ChannelSMS || c == ChannelBoth
}

func (c Channel) IncludesIVR() bool {
	return c == ChannelIVR || c == ChannelBoth
}

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

type CampaignStatus string

const (
	CampaignStatusSent      CampaignStatus = "sent"
	CampaignStatusSending   CampaignStatus = "sending"
	CampaignStatusFailed    CampaignStatus = "failed"
	CampaignStatusScheduled CampaignStatus = "scheduled"
)

func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusSent, CampaignStatusSending, CampaignStatusFailed, CampaignStatusScheduled:
		return true
	default:
		return false
	}
}

type Recipients struct {
	RecipientCounts
	Total int `json:"total"`
}

// Delivery partitions Sent: Delivered+Failed+Pending == Sent.
type Delivery struct {
	Sent      int `json:"sent"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
	Pending   int `json:"pending"`
}

type Responses struct {
	Acknowledged int `json:"acknowledged"`
	Callbacks    int `json:"callbacks"`
	Unsubscribed int `json:"unsubscribed"`
}

type CampaignLog struct {
	ID          string         `json:"id"`
	AlertID     string         `json:"alert_id,omitempty"`
	ResendOf    string         `json:"resend_of,omitempty"`
	Institution Institution    `json:"institution"`
	Channel     Channel        `json:"channel"`
	Category    AlertCategory  `json:"category"`
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	Language    string         `json:"language"`
	Priority    Priority       `json:"priority"`
	Recipients  Recipients     `json:"recipients"`
	Delivery    Delivery       `json:"delivery"`
	Responses   Responses      `json:"responses"`
	Cost        float64        `json:"cost"`
	Status      CampaignStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	Seq         int64          `json:"-"`
}

// DeliveryRate is Delivered/Sent; ok is false when nothing was sent.
func (l *CampaignLog) DeliveryRate() (rate float64, ok bool) {
	if l.Delivery.Sent == 0 {
		return 0, false
	}
	return float64(l.Delivery.Delivered) / float64(l.Delivery.Sent), true
}

type CampaignStats struct {
	Campaigns           int     `json:"campaigns"`
	TotalSent           int     `json:"total_sent"`
	TotalDelivered      int     `json:"total_delivered"`
	TotalFailed         int     `json:"total_failed"`
	TotalCost           float64 `json:"total_cost"`
	AverageDeliveryRate float64 `json:"average_delivery_rate"`
}
