// Package metrics exports bridge activity as Prometheus counters.
//
// A Collector is passed to bridge.New with bridge.WithObserver and registered
// on any prometheus.Registerer:
//
//	c := metrics.New()
//	if err := c.Register(prometheus.DefaultRegisterer); err != nil {
//		return err
//	}
//	b, err := bridge.New(lib, bridge.WithObserver(c))
package metrics
