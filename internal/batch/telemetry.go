package batch

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/tendant/simple-trimmer/internal/batch"

var (
	tracer = otel.Tracer(instrumentationName)
	meter  = otel.Meter(instrumentationName)

	batchCounter    = newInt64Counter("trim.batches", "Batches executed, by final status.")
	jobCounter      = newInt64Counter("trim.jobs", "Trimming jobs finished, by status.")
	publishFailures = newInt64Counter("trim.publish.failures", "Output files that could not be published.")
	jobDuration     = newFloat64Histogram("trim.job.duration", "Engine wall time per job.", "s")
)

// Instruments come from the global provider, which forwards to whatever
// provider telemetry.Init installs later. Creation errors fall back to no-ops.
func newInt64Counter(name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		otel.Handle(err)
		return noop.Int64Counter{}
	}
	return c
}

func newFloat64Histogram(name, desc, unit string) metric.Float64Histogram {
	h, err := meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit(unit))
	if err != nil {
		otel.Handle(err)
		return noop.Float64Histogram{}
	}
	return h
}
