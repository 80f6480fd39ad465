// Package metrics holds the Prometheus collectors exported by the database
// layer. Collectors are not registered automatically; embedders call
// Register with their registry.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Label values for write operations.
const (
	OpSet    = "set"
	OpRemove = "remove"
)

// Collectors for write-back and entity loading.
var (
	FlushTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stash_flush_total",
		Help: "Cumulative number of write-back flushes that reached storage.",
	})
	FlushFailureTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stash_flush_failure_total",
		Help: "Cumulative number of write-back flushes whose storage batch failed.",
	})
	WrittenKeysTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stash_written_keys_total",
		Help: "Cumulative number of coalesced keys written, by operation.",
	}, []string{"op"})
	CoalescedWritesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stash_coalesced_writes_total",
		Help: "Cumulative number of queued writes superseded by a later write to the same key.",
	})
	StorageReadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stash_storage_reads_total",
		Help: "Cumulative number of batched entity reads issued to storage.",
	})
	LoadedEntitiesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stash_loaded_entities_total",
		Help: "Cumulative number of entities materialized from storage.",
	})
	SharedLoadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stash_shared_loads_total",
		Help: "Cumulative number of entity loads satisfied by an in-flight read.",
	})
)

// Collectors returns every stash collector.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		FlushTotal,
		FlushFailureTotal,
		WrittenKeysTotal,
		CoalescedWritesTotal,
		StorageReadsTotal,
		LoadedEntitiesTotal,
		SharedLoadsTotal,
	}
}

// Register registers every collector with reg. Collectors already
// registered with reg are skipped, so several databases may share one
// registry.
func Register(reg prometheus.Registerer) error {
	for _, c := range Collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}
