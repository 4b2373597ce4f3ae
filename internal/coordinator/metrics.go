package coordinator

import "github.com/prometheus/client_golang/prometheus"

// scansInFlight counts volume scans currently running (spec §11.3).
var scansInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "gws_scanner",
	Subsystem: "coordinator",
	Name:      "scans_in_flight",
	Help:      "Number of volume scans currently in progress.",
})

func init() {
	prometheus.MustRegister(scansInFlight)
}
