package alerts

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var openAlerts = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "alerts_open",
	Help: "Alerts created by this process that are still pending or active",
})
