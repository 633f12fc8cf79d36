package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	apimetric "go.opentelemetry.io/otel/metric"
)

// Recorder adapts an OpenTelemetry meter to the process-wide metrics
// interface. Instruments are created lazily and cached per name.
type Recorder struct {
	meter apimetric.Meter

	mu         sync.Mutex
	counters   map[string]apimetric.Float64Counter
	histograms map[string]apimetric.Float64Histogram
	gauges     map[string]apimetric.Float64Gauge
}

// NewRecorder builds a recorder on the provider's named meter.
func NewRecorder(provider apimetric.MeterProvider, scope string) *Recorder {
	return &Recorder{
		meter:      provider.Meter(scope),
		counters:   make(map[string]apimetric.Float64Counter),
		histograms: make(map[string]apimetric.Float64Histogram),
		gauges:     make(map[string]apimetric.Float64Gauge),
	}
}

// IncCounter adds to a named counter.
func (r *Recorder) IncCounter(name string, value float64, labels map[string]string) {
	r.mu.Lock()
	counter, ok := r.counters[name]
	if !ok {
		var err error
		counter, err = r.meter.Float64Counter(name)
		if err != nil {
			r.mu.Unlock()
			return
		}
		r.counters[name] = counter
	}
	r.mu.Unlock()
	counter.Add(context.Background(), value, apimetric.WithAttributes(attrs(labels)...))
}

// ObserveHistogram records into a named histogram.
func (r *Recorder) ObserveHistogram(name string, value float64, labels map[string]string) {
	r.mu.Lock()
	hist, ok := r.histograms[name]
	if !ok {
		var err error
		hist, err = r.meter.Float64Histogram(name)
		if err != nil {
			r.mu.Unlock()
			return
		}
		r.histograms[name] = hist
	}
	r.mu.Unlock()
	hist.Record(context.Background(), value, apimetric.WithAttributes(attrs(labels)...))
}

// SetGauge records the latest value of a named gauge.
func (r *Recorder) SetGauge(name string, value float64, labels map[string]string) {
	r.mu.Lock()
	gauge, ok := r.gauges[name]
	if !ok {
		var err error
		gauge, err = r.meter.Float64Gauge(name)
		if err != nil {
			r.mu.Unlock()
			return
		}
		r.gauges[name] = gauge
	}
	r.mu.Unlock()
	gauge.Record(context.Background(), value, apimetric.WithAttributes(attrs(labels)...))
}

func attrs(labels map[string]string) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		out = append(out, attribute.String(k, v))
	}
	return out
}
