package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	campaignsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_campaigns_total",
			Help: "Campaign logs recorded, partitioned by channel and kind",
		},
		[]string{"channel", "kind"},
	)

	recipientsTargeted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_recipients_total",
			Help: "Recipients targeted by dispatches, partitioned by outcome",
		},
		[]string{"outcome"},
	)

	dispatchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_failures_total",
			Help: "Dispatches that produced no campaign log, partitioned by reason",
		},
		[]string{"reason"},
	)

	dispatchCost = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_cost_total",
			Help: "Accumulated simulated messaging cost",
		},
	)
)
