package otel

import (
	"context"
	"errors"
	"fmt"

	otpAuth "github.com/MrEthical07/otpAuth"
	"github.com/MrEthical07/otpAuth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() otpAuth.MetricsSnapshot
	AuditDropped() uint64
}

// Options adds optional instruments.
type Options struct {
	// Readiness feeds the otpauth_store_ready gauge; nil omits it.
	Readiness otpAuth.Readiness
}

// observeFunc writes one instrument's value from a snapshot taken once per
// collection cycle.
type observeFunc func(snap otpAuth.MetricsSnapshot, obs metric.Observer)

// OTelExporter publishes engine metrics as observable instruments. Histogram
// buckets become one cumulative gauge each, named <histogram>_bucket_le_<bound>.
type OTelExporter struct {
	source       metricsSource
	observers    []observeFunc
	instruments  []metric.Observable
	registration metric.Registration
}

// NewOTelExporter registers instruments on meter that read from engine.
func NewOTelExporter(meter metric.Meter, engine *otpAuth.Engine, opts Options) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine, opts)
}

func NewOTelExporterFromSource(meter metric.Meter, source metricsSource, opts Options) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}

	for _, def := range internaldefs.CounterDefs {
		id := def.ID
		if err := e.counter(meter, def.Name, def.Help, func(snap otpAuth.MetricsSnapshot) uint64 {
			return snap.Counters[id]
		}); err != nil {
			return nil, err
		}
	}

	for _, def := range internaldefs.HistogramDefs {
		if err := e.histogram(meter, def); err != nil {
			return nil, err
		}
	}

	if err := e.counter(meter, internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, func(otpAuth.MetricsSnapshot) uint64 {
		return source.AuditDropped()
	}); err != nil {
		return nil, err
	}

	if opts.Readiness != nil {
		ready := opts.Readiness
		if err := e.gauge(meter, internaldefs.StoreReadyName, internaldefs.StoreReadyHelp, func(otpAuth.MetricsSnapshot) int64 {
			if ready.Ready() {
				return 1
			}
			return 0
		}); err != nil {
			return nil, err
		}
	}

	registration, err := meter.RegisterCallback(func(_ context.Context, obs metric.Observer) error {
		snap := e.source.MetricsSnapshot()
		for _, observe := range e.observers {
			observe(snap, obs)
		}
		return nil
	}, e.instruments...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = registration
	return e, nil
}

func (e *OTelExporter) counter(meter metric.Meter, name, help string, value func(otpAuth.MetricsSnapshot) uint64) error {
	ins, err := meter.Int64ObservableCounter(name, metric.WithDescription(help))
	if err != nil {
		return fmt.Errorf("create observable counter %s: %w", name, err)
	}
	e.instruments = append(e.instruments, ins)
	e.observers = append(e.observers, func(snap otpAuth.MetricsSnapshot, obs metric.Observer) {
		obs.ObserveInt64(ins, int64(value(snap)))
	})
	return nil
}

func (e *OTelExporter) gauge(meter metric.Meter, name, help string, value func(otpAuth.MetricsSnapshot) int64) error {
	ins, err := meter.Int64ObservableGauge(name, metric.WithDescription(help))
	if err != nil {
		return fmt.Errorf("create observable gauge %s: %w", name, err)
	}
	e.instruments = append(e.instruments, ins)
	e.observers = append(e.observers, func(snap otpAuth.MetricsSnapshot, obs metric.Observer) {
		obs.ObserveInt64(ins, value(snap))
	})
	return nil
}

// histogram registers the bucket gauges and the count gauge of def.
func (e *OTelExporter) histogram(meter metric.Meter, def internaldefs.HistogramDef) error {
	cumulative := func(snap otpAuth.MetricsSnapshot) [8]uint64 {
		return internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[def.ID]))
	}
	for i, suffix := range internaldefs.HistogramBoundSuffix {
		i := i
		name := def.Name + "_bucket_le_" + suffix
		if err := e.gauge(meter, name, "Cumulative histogram bucket count.", func(snap otpAuth.MetricsSnapshot) int64 {
			return int64(cumulative(snap)[i])
		}); err != nil {
			return err
		}
	}
	return e.gauge(meter, def.Name+"_count", "Histogram total sample count.", func(snap otpAuth.MetricsSnapshot) int64 {
		c := cumulative(snap)
		return int64(c[len(c)-1])
	})
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
