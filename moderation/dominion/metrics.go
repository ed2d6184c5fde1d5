package dominion

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var dominionCacheHits = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_dominion_cache_hits",
	Help: "Number of cache hits for territory to dominion lookups",
})

var dominionCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_dominion_cache_misses",
	Help: "Number of cache misses for territory to dominion lookups",
})
