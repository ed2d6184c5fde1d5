package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var opDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "warden_engine_op_duration_sec",
	Help: "Duration of moderation engine operations",
}, []string{"op"})

var opCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_engine_ops",
	Help: "Number of moderation requests, by operation and result",
}, []string{"op", "result"})

var auditEntries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_audit_entries",
	Help: "Number of audit entries written",
}, []string{"action"})

var punishmentsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_punishments_applied",
	Help: "Number of punishments persisted, by ladder level",
}, []string{"level"})

var escalationConflicts = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_escalation_conflicts",
	Help: "Number of automatic escalations retried after a concurrent write",
})

var circuitBreaks = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_circuit_breaks",
	Help: "Number of requests refused by a moderator quota",
}, []string{"quota"})

var rateLimited = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_rate_limited",
	Help: "Number of requests refused by the per-moderator rate limit",
})

var notificationFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_notification_failures",
	Help: "Number of moderation notifications that could not be delivered",
})

var activeCacheHits = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_active_punishment_cache_hits",
	Help: "Number of enforcement reads served from cache",
})

var activeCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_active_punishment_cache_misses",
	Help: "Number of enforcement reads that loaded history from the store",
})

var activeCacheStale = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_active_punishment_cache_stale",
	Help: "Number of cached punishment lists discarded because the store version moved on",
})

var enforcementChecks = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_enforcement_checks",
	Help: "Number of user action checks, by action and result",
}, []string{"action", "allowed"})
