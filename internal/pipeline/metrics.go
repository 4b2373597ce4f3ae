package pipeline

import "github.com/prometheus/client_golang/prometheus"

// QueueDepth exposes a named queue's current buffered length (spec
// §11.3: "lightweight gauges in internal/pipeline for queue depth"),
// giving an operator a way to observe queue depth without reading logs
// (spec §5 "Suspension points", §8 liveness). Callers sample Len()
// periodically and report it here; the gauge itself holds no reference
// to the queue, so it works uniformly across the walker->Stage-A queue,
// the Stage-A->Stage-C queue, and every worker's private absorb queue.
var QueueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "gws_scanner",
	Subsystem: "pipeline",
	Name:      "queue_depth",
	Help:      "Number of items currently buffered in a pipeline queue.",
}, []string{"queue"})

func init() {
	prometheus.MustRegister(QueueDepth)
}

// Depther is satisfied by *Queue[T] for any T.
type Depther interface {
	Len() int
}

// Report sets the queue_depth gauge for name from q's current length.
func Report(name string, q Depther) {
	QueueDepth.WithLabelValues(name).Set(float64(q.Len()))
}
