package worker

import (
	gometrics "github.com/rcrowley/go-metrics"
)

// Metrics tallies task outcomes in a go-metrics registry.
type Metrics struct {
	Registry gometrics.Registry

	rendered  gometrics.Counter
	existing  gometrics.Counter
	empty     gometrics.Counter
	failed    gometrics.Counter
	cancelled gometrics.Counter
	bytes     gometrics.Counter
	render    gometrics.Timer
}

// Counts is a snapshot of Metrics.
type Counts struct {
	Rendered  int64
	Existing  int64
	Empty     int64
	Failed    int64
	Cancelled int64
	Bytes     int64
}

// Total is the number of tasks seen.
func (c Counts) Total() int64 {
	return c.Rendered + c.Existing + c.Empty + c.Failed + c.Cancelled
}

// NewMetrics registers the tile counters in r, or in a fresh registry if r is nil.
func NewMetrics(r gometrics.Registry) *Metrics {
	if r == nil {
		r = gometrics.NewRegistry()
	}
	return &Metrics{
		Registry:  r,
		rendered:  gometrics.GetOrRegisterCounter("tiles.rendered", r),
		existing:  gometrics.GetOrRegisterCounter("tiles.existing", r),
		empty:     gometrics.GetOrRegisterCounter("tiles.empty", r),
		failed:    gometrics.GetOrRegisterCounter("tiles.failed", r),
		cancelled: gometrics.GetOrRegisterCounter("tiles.cancelled", r),
		bytes:     gometrics.GetOrRegisterCounter("tiles.bytes", r),
		render:    gometrics.GetOrRegisterTimer("tiles.render", r),
	}
}

// Observe counts one result.
func (m *Metrics) Observe(res Result) {
	switch res.Status {
	case StatusRendered:
		m.rendered.Inc(1)
		m.bytes.Inc(res.Size)
		m.render.Update(res.Elapsed)
	case StatusExists:
		m.existing.Inc(1)
	case StatusEmpty:
		m.empty.Inc(1)
		m.render.Update(res.Elapsed)
	case StatusFailed:
		m.failed.Inc(1)
	case StatusCancelled:
		m.cancelled.Inc(1)
	}
}

// Snapshot returns the current counts.
func (m *Metrics) Snapshot() Counts {
	return Counts{
		Rendered:  m.rendered.Count(),
		Existing:  m.existing.Count(),
		Empty:     m.empty.Count(),
		Failed:    m.failed.Count(),
		Cancelled: m.cancelled.Count(),
		Bytes:     m.bytes.Count(),
	}
}

// MeanRender returns the mean render time in milliseconds.
func (m *Metrics) MeanRender() float64 {
	return m.render.Mean() / 1e6
}

// P95Render returns the 95th percentile render time in milliseconds.
func (m *Metrics) P95Render() float64 {
	return m.render.Percentile(0.95) / 1e6
}
