package fingerprint

import (
	"slices"
	"time"
)

const (
	MaxActiveHours    = 24
	MaxPreferredKinds = 5
	MaxInteractions   = 50
)

// BehaviorSignature is a bounded summary of recent user activity.
type BehaviorSignature struct {
	// distinct hours of day (0-23) with activity, oldest first
	ActiveHours []int `json:"activeHours"`
	// distinct content kinds the user recently engaged with, oldest first
	PreferredKinds []string `json:"preferredKinds"`
	// interaction kinds in arrival order, oldest first
	Interactions []string  `json:"interactions"`
	FirstSeen    time.Time `json:"firstSeen"`
	LastSeen     time.Time `json:"lastSeen"`
}

// TimePattern records when a user was first and last observed, and their reported timezone.
type TimePattern struct {
	FirstSeen       time.Time `json:"firstSeen"`
	LastSeen        time.Time `json:"lastSeen"`
	TZOffsetMinutes int       `json:"tzOffsetMinutes"`
}

// Activity is a single observed user action.
type Activity struct {
	// interaction kind, eg "post", "comment", "like", "chat"
	Kind string
	// kind of content engaged with, eg "text", "image", "poll"; optional
	ContentKind string
	At          time.Time
}

func InitBehaviorSignature() BehaviorSignature {
	now := time.Now().UTC()
	return BehaviorSignature{
		ActiveHours:    []int{},
		PreferredKinds: []string{},
		Interactions:   []string{},
		FirstSeen:      now,
		LastSeen:       now,
	}
}

func InitTimePattern() TimePattern {
	now := time.Now().UTC()
	return TimePattern{
		FirstSeen: now,
		LastSeen:  now,
	}
}

// UpdateBehaviorSignature folds one activity into the signature and returns the result. The
// slices of the current value are never modified in place.
func UpdateBehaviorSignature(current BehaviorSignature, act Activity) BehaviorSignature {
	at := act.At
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()

	out := current
	out.ActiveHours = pushDistinct(current.ActiveHours, at.Hour(), MaxActiveHours)
	if act.ContentKind != "" {
		out.PreferredKinds = pushDistinct(current.PreferredKinds, act.ContentKind, MaxPreferredKinds)
	} else {
		out.PreferredKinds = slices.Clone(current.PreferredKinds)
	}
	if act.Kind != "" {
		out.Interactions = pushCapped(current.Interactions, act.Kind, MaxInteractions)
	} else {
		out.Interactions = slices.Clone(current.Interactions)
	}
	if out.FirstSeen.IsZero() {
		out.FirstSeen = at
	}
	if at.After(out.LastSeen) {
		out.LastSeen = at
	}
	return out
}

// TouchTimePattern advances last-seen and records the reported timezone offset.
func TouchTimePattern(tp TimePattern, at time.Time, tzOffsetMinutes int) TimePattern {
	at = at.UTC()
	if tp.FirstSeen.IsZero() || at.Before(tp.FirstSeen) {
		tp.FirstSeen = at
	}
	if at.After(tp.LastSeen) {
		tp.LastSeen = at
	}
	tp.TZOffsetMinutes = tzOffsetMinutes
	return tp
}

// moves val to the most-recent end, then evicts from the oldest end down to limit
func pushDistinct[T comparable](window []T, val T, limit int) []T {
	out := make([]T, 0, len(window)+1)
	for _, v := range window {
		if v != val {
			out = append(out, v)
		}
	}
	out = append(out, val)
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func pushCapped[T any](window []T, val T, limit int) []T {
	out := make([]T, 0, len(window)+1)
	out = append(out, window...)
	out = append(out, val)
	if len(out) > limit {
		out = slices.Clone(out[len(out)-limit:])
	}
	return out
}
