package dispatch

import (
	"math"

	"github.com/mr1hm/go-emergency-dispatch/internal/config"
	"github.com/mr1hm/go-emergency-dispatch/internal/models"
)

// Split partitions total recipients into delivered, failed and pending.
// Delivered and failed are floored, pending takes the remainder, so the three
// always sum to total and none is negative as long as the rates sum to at
// most 100%.
func Split(total int, rates config.OutcomeRates) models.Delivery {
	if total <= 0 {
		return models.Delivery{}
	}
	delivered := rates.Delivered.Of(total)
	failed := rates.Failed.Of(total)
	if delivered+failed > total {
		failed = total - delivered
	}
	return models.Delivery{
		Sent:      total,
		Delivered: delivered,
		Failed:    failed,
		Pending:   total - delivered - failed,
	}
}

// Respond derives response counts from delivered messages. Callbacks only
// happen on voice calls.
func Respond(d models.Delivery, channel models.Channel, rates config.ResponseRates) models.Responses {
	r := models.Responses{
		Acknowledged: rates.Acknowledged.Of(d.Delivered),
		Unsubscribed: rates.Unsubscribed.Of(d.Delivered),
	}
	if channel.IncludesIVR() {
		r.Callbacks = rates.Callbacks.Of(d.Delivered)
	}
	return r
}

// Cost is recipients times the unit cost of every channel used, in currency
// units rounded to two decimals.
func Cost(total int, channel models.Channel, cfg config.DispatchConfig) float64 {
	var unit float64
	if channel.IncludesSMS() {
		unit += cfg.SMSCost
	}
	if channel.IncludesIVR() {
		unit += cfg.IVRCost
	}
	return math.Round(float64(total)*unit*100) / 100
}
