// Package metrics registers the service's Prometheus collectors with the
// default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "onyx"

// RoleResolutions counts role resolutions.
// Labels:
//   - source: "verify", "login", "sync" or "member_update"
//   - role: the resolved system role
var RoleResolutions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "role_resolutions_total",
		Help:      "Total number of Discord role resolutions, by source and resolved role.",
	},
	[]string{"source", "role"},
)

// RoleSyncErrors counts members that could not be synced.
var RoleSyncErrors = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "role_sync_errors_total",
		Help:      "Total number of guild members that failed to sync.",
	},
)

// ShareRecalculations counts share recalculations.
// Label:
//   - result: "applied", "unchanged" or "invalid"
var ShareRecalculations = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "share_recalculations_total",
		Help:      "Total number of contract share recalculations, by result.",
	},
	[]string{"result"},
)

// Notifications counts webhook deliveries.
// Labels:
//   - kind: notification kind
//   - result: "sent" or "failed"
var Notifications = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Total number of Discord webhook notifications, by kind and result.",
	},
	[]string{"kind", "result"},
)
