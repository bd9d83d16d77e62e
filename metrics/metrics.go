/*
Package metrics holds the process-wide counters and meters.

They are registered in Registry, which /status and the
follower's summary log read from.
*/
package metrics

import (
	"sort"

	gmetrics "github.com/ethereum/go-ethereum/metrics"
)

var Registry = newRegistry()

func newRegistry() gmetrics.Registry {
	// Enable metrics package.
	// Won't work without this global setting.
	gmetrics.Enabled = true
	return gmetrics.NewRegistry()
}

var (
	IngestAccepted  = gmetrics.NewRegisteredCounter("ingest/accepted", Registry)
	IngestMalformed = gmetrics.NewRegisteredCounter("ingest/malformed", Registry)
	IngestLate      = gmetrics.NewRegisteredCounter("ingest/late", Registry)

	PublishAccepted  = gmetrics.NewRegisteredMeter("publish/accepted", Registry)
	PublishDeduped   = gmetrics.NewRegisteredCounter("publish/deduped", Registry)
	PublishMalformed = gmetrics.NewRegisteredCounter("publish/malformed", Registry)
	PublishRoutes    = gmetrics.NewRegisteredCounter("publish/routes", Registry)

	Reroutes         = gmetrics.NewRegisteredCounter("adhere/reroutes", Registry)
	RerouteFailures  = gmetrics.NewRegisteredCounter("adhere/reroute_failures", Registry)
	RoutingFallbacks = gmetrics.NewRegisteredCounter("routing/fallbacks", Registry)

	Teleports  = gmetrics.NewRegisteredCounter("animate/teleports", Registry)
	RouteSwaps = gmetrics.NewRegisteredCounter("animate/route_swaps", Registry)
	Frames     = gmetrics.NewRegisteredMeter("animate/frames", Registry)

	NearestQueries  = gmetrics.NewRegisteredCounter("snap/nearest_queries", Registry)
	NearestFailures = gmetrics.NewRegisteredCounter("snap/nearest_failures", Registry)
)

// Snapshot returns the current count of every registered counter and meter.
func Snapshot() map[string]int64 {
	out := map[string]int64{}
	Registry.Each(func(name string, i interface{}) {
		switch m := i.(type) {
		case gmetrics.Counter:
			out[name] = m.Snapshot().Count()
		case gmetrics.Meter:
			out[name] = m.Snapshot().Count()
		}
	})
	return out
}

// Names returns the registered metric names, sorted.
func Names() []string {
	names := []string{}
	Registry.Each(func(name string, _ interface{}) {
		names = append(names, name)
	})
	sort.Strings(names)
	return names
}
