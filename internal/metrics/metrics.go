// Package metrics defines and registers all custom Prometheus metrics for the
// product catalog API. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered with the default Prometheus registry at package
// initialisation through promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "catalog"

// ── Cache metrics ─────────────────────────────────────────────────────────────

// CacheLookupsTotal counts read-cache lookups.
// Labels:
//   - key: "product" for single-item keys, "all" for the listing
//   - result: "hit" or "miss"
var CacheLookupsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Total number of product cache lookups, by key kind and result.",
	},
	[]string{"key", "result"},
)

// CacheInvalidationsTotal counts keys removed from the cache after a mutation.
var CacheInvalidationsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_invalidations_total",
		Help:      "Total number of cache keys invalidated by catalog mutations.",
	},
)

// CacheStaleFillsTotal counts cache fills discarded because the key was
// invalidated while the store read was in flight.
var CacheStaleFillsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_stale_fills_total",
		Help:      "Total number of cache fills skipped because a write invalidated the key meanwhile.",
	},
)

// ── Catalog metrics ───────────────────────────────────────────────────────────

// ProductMutationsTotal counts committed catalog mutations.
// Label:
//   - operation: "create", "update", "delete" or "sell"
var ProductMutationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "product_mutations_total",
		Help:      "Total number of committed product mutations, by operation.",
	},
	[]string{"operation"},
)

// SalesTotal counts sell attempts.
// Label:
//   - result: "ok", "invalid", "not_found", "replayed" or "error"
var SalesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sales_total",
		Help:      "Total number of sell requests, by outcome.",
	},
	[]string{"result"},
)

// UnitsSoldTotal counts stock units removed by successful sales.
var UnitsSoldTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "units_sold_total",
		Help:      "Total number of stock units sold.",
	},
)

// VersionConflictsTotal counts optimistic-lock conflicts that forced a retry.
var VersionConflictsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "version_conflicts_total",
		Help:      "Total number of optimistic concurrency conflicts on product writes.",
	},
)

// ── Auth metrics ──────────────────────────────────────────────────────────────

// AuthFailuresTotal counts rejected authentication or authorization attempts.
// Label:
//   - reason: "token_expired", "token_invalid", "unknown_subject",
//     "unauthenticated" or "forbidden"
var AuthFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_failures_total",
		Help:      "Total number of rejected requests, by authentication/authorization reason.",
	},
	[]string{"reason"},
)

// ── Event metrics ─────────────────────────────────────────────────────────────

// EventsPublishedTotal counts catalog events handed to the broker.
// Label:
//   - result: "ok" or "error"
var EventsPublishedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Total number of catalog events published, by result.",
	},
	[]string{"result"},
)

// EventsDroppedTotal counts events dropped because the worker shard was full.
var EventsDroppedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_dropped_total",
		Help:      "Total number of catalog events dropped because the dispatcher queue was full.",
	},
)

// EventsQueueDepth tracks the number of events waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var EventsQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "events_queue_depth",
		Help:      "Current number of catalog events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)
