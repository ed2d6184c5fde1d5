package engine

import (
	"sync"
	"time"

	"github.com/RussellLuo/slidingwindow"
)

func windowFunc() (slidingwindow.Window, slidingwindow.StopFunc) {
	return slidingwindow.NewLocalWindow()
}

type limiters struct {
	PerMinute *slidingwindow.Limiter
	PerHour   *slidingwindow.Limiter
}

// RateLimits caps mutating requests per moderator over sliding windows. A non-positive limit
// disables that window.
type RateLimits struct {
	PerMinute int64
	PerHour   int64

	lk       sync.Mutex
	limiters map[string]*limiters
}

func NewRateLimits(perMinute, perHour int64) *RateLimits {
	return &RateLimits{
		PerMinute: perMinute,
		PerHour:   perHour,
		limiters:  make(map[string]*limiters),
	}
}

func (r *RateLimits) getOrCreate(moderatorID string) *limiters {
	r.lk.Lock()
	defer r.lk.Unlock()
	if r.limiters == nil {
		r.limiters = make(map[string]*limiters)
	}
	lim, ok := r.limiters[moderatorID]
	if !ok {
		lim = &limiters{}
		if r.PerMinute > 0 {
			lim.PerMinute, _ = slidingwindow.NewLimiter(time.Minute, r.PerMinute, windowFunc)
		}
		if r.PerHour > 0 {
			lim.PerHour, _ = slidingwindow.NewLimiter(time.Hour, r.PerHour, windowFunc)
		}
		r.limiters[moderatorID] = lim
	}
	return lim
}

// Allow consumes one request from each window. The hourly window is only charged when the
// minute window admits the request.
func (r *RateLimits) Allow(moderatorID string) bool {
	lim := r.getOrCreate(moderatorID)
	if lim.PerMinute != nil && !lim.PerMinute.Allow() {
		return false
	}
	if lim.PerHour != nil && !lim.PerHour.Allow() {
		return false
	}
	return true
}
