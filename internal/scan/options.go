package scan

import "time"

// Options configures the Stage-A/Stage-B pool (spec §5, §6): scan_processes,
// scan_max_threads_per_process, queue_length_scale_factor.
type Options struct {
	// Workers is the number of Stage-A goroutines (spec §5 "Stage A is
	// parallel across OS processes" — redesigned to a goroutine pool
	// since Go has no GIL to bypass; see DESIGN.md).
	Workers int

	// AbsorbWorkersPerWorker is the size of each Stage-A worker's
	// private Stage-B goroutine pool (spec §5 "Stage B is parallel
	// threads within each Stage-A process").
	AbsorbWorkersPerWorker int

	// QueueLengthScaleFactor sizes every bounded queue in the pipeline
	// (spec §5's three queue-capacity formulas).
	QueueLengthScaleFactor int

	// TaskWaitTimeout bounds each worker's wait on the task queue (spec
	// §4.4 step 1, §5 "bounded timeouts (5-30s)").
	TaskWaitTimeout time.Duration
}

// DefaultOptions mirrors the teacher's DefaultOptions (internal/scan/options.go)
// in shape, retuned to the spec's named configuration keys.
func DefaultOptions() Options {
	return Options{
		Workers:                8,
		AbsorbWorkersPerWorker: 4,
		QueueLengthScaleFactor: 1000,
		TaskWaitTimeout:        10 * time.Second,
	}
}

// TaskQueueCapacity is the walker->Stage-A queue capacity (spec §5:
// "scan_processes x queue_length_scale_factor").
func (o Options) TaskQueueCapacity() int {
	return o.Workers * o.QueueLengthScaleFactor
}

// DocQueueCapacity is the Stage-A->Stage-C queue capacity (spec §5:
// "queue_length_scale_factor").
func (o Options) DocQueueCapacity() int {
	return o.QueueLengthScaleFactor
}

// AbsorbQueueCapacity is one Stage-A worker's absorb-queue capacity (spec
// §5: "scan_max_threads_per_process x queue_length_scale_factor").
func (o Options) AbsorbQueueCapacity() int {
	return o.AbsorbWorkersPerWorker * o.QueueLengthScaleFactor
}
