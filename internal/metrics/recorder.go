// Package metrics exposes simulation health as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/talgya/gridworks/internal/catalog"
	"github.com/talgya/gridworks/internal/engine"
)

const namespace = "gridworks"

// Recorder implements engine.Observer on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	ticksTotal      prometheus.Counter
	tickDuration    prometheus.Histogram
	entities        prometheus.Gauge
	entityStatus    *prometheus.GaugeVec
	permitDenied    prometheus.Counter
	powerSupply     prometheus.Gauge
	powerUsage      prometheus.Gauge
	powerReserve    prometheus.Gauge
	cash            prometheus.Gauge
	transfersTotal  prometheus.Counter
	movedTotal      prometheus.Counter
	fuelTotal       prometheus.Counter
	fuelStarved     prometheus.Counter
	inFlight        prometheus.Gauge
	producedTotal   *prometheus.CounterVec
	consumedTotal   *prometheus.CounterVec
	price           *prometheus.GaugeVec
	invariantsTotal *prometheus.CounterVec
}

var _ engine.Observer = (*Recorder)(nil)

// NewRecorder creates and registers all collectors.
func NewRecorder() (*Recorder, error) {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		ticksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "tick", Name: "total",
			Help: "Completed simulation ticks",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "tick", Name: "duration_seconds",
			Help:    "Wall time spent draining one tick",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
		entities: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "entities",
			Help: "Placed buildings",
		}),
		entityStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "entity_status",
			Help: "Buildings per status after the last tick",
		}, []string{"status"}),
		permitDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "tick", Name: "permit_denied_total",
			Help: "Entities skipped because the permit cap was reached",
		}),
		powerSupply: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "power", Name: "supply",
			Help: "Power generated in the last tick",
		}),
		powerUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "power", Name: "usage",
			Help: "Power consumed in the last tick",
		}),
		powerReserve: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "power", Name: "reserve",
			Help: "Energy stored in banks",
		}),
		cash: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "economy", Name: "cash",
			Help: "Treasury cash",
		}),
		transfersTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "transport", Name: "transfers_total",
			Help: "Deliveries dispatched",
		}),
		movedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "transport", Name: "moved_total",
			Help: "Resource units dispatched",
		}),
		fuelTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "transport", Name: "fuel_total",
			Help: "Fuel spent on transport",
		}),
		fuelStarved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "transport", Name: "fuel_starved_total",
			Help: "Transfers refused for lack of fuel",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "transport", Name: "in_flight",
			Help: "Deliveries not yet arrived",
		}),
		producedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "production", Name: "produced_total",
			Help: "Resource units produced",
		}, []string{"resource"}),
		consumedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "production", Name: "consumed_total",
			Help: "Resource units consumed",
		}, []string{"resource"}),
		price: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "economy", Name: "price",
			Help: "Current unit price",
		}, []string{"resource"}),
		invariantsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "invariant_violations_total",
			Help: "Invariant breaches detected and repaired",
		}, []string{"kind"}),
	}

	collectors := []prometheus.Collector{
		r.ticksTotal, r.tickDuration, r.entities, r.entityStatus, r.permitDenied,
		r.powerSupply, r.powerUsage, r.powerReserve, r.cash,
		r.transfersTotal, r.movedTotal, r.fuelTotal, r.fuelStarved, r.inFlight,
		r.producedTotal, r.consumedTotal, r.price, r.invariantsTotal,
	}
	for _, c := range collectors {
		if err := r.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Registry returns the registry the collectors live on.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveTick records a completed tick.
func (r *Recorder) ObserveTick(sum engine.TickSummary) {
	r.ticksTotal.Inc()
	r.tickDuration.Observe(sum.DurationMS / 1000)
	r.entities.Set(float64(sum.Entities))
	r.entityStatus.Reset()
	for status, n := range sum.Statuses {
		r.entityStatus.WithLabelValues(status).Set(float64(n))
	}
	r.permitDenied.Add(float64(sum.Denied))

	r.powerSupply.Set(sum.Power.Supply)
	r.powerUsage.Set(sum.Power.Usage)
	r.powerReserve.Set(sum.Power.Reserve)
	r.cash.Set(sum.Cash)

	r.transfersTotal.Add(float64(sum.Transport.Transfers))
	r.movedTotal.Add(sum.Transport.Moved)
	r.fuelTotal.Add(sum.Transport.Fuel)
	r.fuelStarved.Add(float64(sum.Transport.FuelStarved))
	r.inFlight.Set(float64(sum.InFlight))

	for res, v := range sum.Produced {
		if v > 0 {
			r.producedTotal.WithLabelValues(string(res)).Add(v)
		}
	}
	for res, v := range sum.Consumed {
		if v > 0 {
			r.consumedTotal.WithLabelValues(string(res)).Add(v)
		}
	}
}

// ObserveInvariant counts one invariant breach.
func (r *Recorder) ObserveInvariant(kind string) {
	r.invariantsTotal.WithLabelValues(kind).Inc()
}

// ObservePrices publishes the current price table.
func (r *Recorder) ObservePrices(prices map[catalog.ResourceKey]float64) {
	for res, p := range prices {
		r.price.WithLabelValues(string(res)).Set(p)
	}
}
