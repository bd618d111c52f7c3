package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/wippyai/callbridge/errors"
	"github.com/wippyai/callbridge/event"
	"github.com/wippyai/callbridge/registry"
)

const namespace = "callbridge"

// Directions of a native registration change.
const (
	DirectionInstall   = "install"
	DirectionUninstall = "uninstall"
	DirectionPurge     = "purge"
)

// Collector counts dispatches, faults and native registrations.
// It implements bridge.Observer.
type Collector struct {
	dispatches    *prometheus.CounterVec
	invocations   *prometheus.CounterVec
	faults        *prometheus.CounterVec
	registrations *prometheus.CounterVec
}

// New creates an unregistered collector.
func New() *Collector {
	return &Collector{
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Native callbacks that reached at least one subscriber.",
		}, []string{"kind"}),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscriber_invocations_total",
			Help:      "Subscriber callbacks invoked from trampolines.",
		}, []string{"kind"}),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faults_total",
			Help:      "Faults captured at the trampoline boundary.",
		}, []string{"kind", "fault"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Native callback registration changes.",
		}, []string{"kind", "direction"}),
	}
}

// Register adds every counter to reg. Counters already registered are
// reported together.
func (c *Collector) Register(reg prometheus.Registerer) error {
	var err error
	for _, col := range c.collectors() {
		err = multierr.Append(err, reg.Register(col))
	}
	return err
}

// Unregister removes every counter from reg.
func (c *Collector) Unregister(reg prometheus.Registerer) {
	for _, col := range c.collectors() {
		reg.Unregister(col)
	}
}

func (c *Collector) collectors() []prometheus.Collector {
	return []prometheus.Collector{c.dispatches, c.invocations, c.faults, c.registrations}
}

// OnDispatch implements trampoline.Observer.
func (c *Collector) OnDispatch(kind event.Kind, subscribers int) {
	label := kind.String()
	c.dispatches.WithLabelValues(label).Inc()
	c.invocations.WithLabelValues(label).Add(float64(subscribers))
}

// OnFault implements trampoline.Observer.
func (c *Collector) OnFault(f *errors.Error) {
	kind := "none"
	if f.HasEvent {
		kind = f.Event.String()
	}
	c.faults.WithLabelValues(kind, string(f.Kind)).Inc()
}

// OnTransition implements registry.Observer.
func (c *Collector) OnTransition(t registry.Transition) {
	c.registrations.WithLabelValues(t.Kind.String(), direction(t)).Inc()
}

func direction(t registry.Transition) string {
	switch {
	case t.Purged:
		return DirectionPurge
	case t.To == registry.Registered:
		return DirectionInstall
	default:
		return DirectionUninstall
	}
}

// Dispatches returns the dispatch counter, labeled by kind.
func (c *Collector) Dispatches() *prometheus.CounterVec { return c.dispatches }

// Faults returns the fault counter, labeled by kind and fault.
func (c *Collector) Faults() *prometheus.CounterVec { return c.faults }

// Registrations returns the registration counter, labeled by kind and direction.
func (c *Collector) Registrations() *prometheus.CounterVec { return c.registrations }
