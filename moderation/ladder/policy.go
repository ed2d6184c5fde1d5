package ladder

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/veilcampus/warden/moderation/authority"
)

// DefaultDurations is the sanction length per level. A zero duration means permanent.
var DefaultDurations = map[Level]time.Duration{
	LevelShadowBan:     72 * time.Hour,
	LevelCooldown:      24 * time.Hour,
	LevelContentLock:   72 * time.Hour,
	LevelTerritoryMute: 7 * 24 * time.Hour,
	LevelRegionalMute:  30 * 24 * time.Hour,
	LevelPermanentBan:  0,
}

// Policy holds the duration-per-level configuration. It is built once at startup and shared
// read-only.
type Policy struct {
	durations map[Level]time.Duration
	// overridable in tests
	Now func() time.Time
}

// NewPolicy copies the provided durations over the defaults. Level 6 is always permanent.
func NewPolicy(overrides map[Level]time.Duration) (*Policy, error) {
	d := make(map[Level]time.Duration, len(DefaultDurations))
	for l, v := range DefaultDurations {
		d[l] = v
	}
	for l, v := range overrides {
		if !l.Valid() {
			return nil, fmt.Errorf("duration configured for invalid level %d", l)
		}
		if v < 0 {
			return nil, fmt.Errorf("negative duration for level %d", l)
		}
		if l == LevelPermanentBan && v != 0 {
			return nil, fmt.Errorf("level %d is always permanent", l)
		}
		d[l] = v
	}
	return &Policy{durations: d, Now: time.Now}, nil
}

func DefaultPolicy() *Policy {
	p, _ := NewPolicy(nil)
	return p
}

// Duration returns the configured sanction length; ok is false for permanent levels.
func (p *Policy) Duration(l Level) (time.Duration, bool) {
	d := p.durations[l]
	return d, d > 0
}

// Durations returns a copy of the effective table, for display.
func (p *Policy) Durations() map[Level]time.Duration {
	out := make(map[Level]time.Duration, len(p.durations))
	for l, v := range p.durations {
		out[l] = v
	}
	return out
}

func (p *Policy) now() time.Time {
	if p.Now == nil {
		return time.Now().UTC()
	}
	return p.Now().UTC()
}

// CreatePunishment builds a new punishment record. It does no I/O; the caller persists the
// result in a single write.
func (p *Policy) CreatePunishment(userHash string, level Level, scopeType authority.ScopeType, scopeID, moderatorID, reason string) (*Punishment, error) {
	return p.CreatePunishmentAt(p.now(), userHash, level, scopeType, scopeID, moderatorID, reason)
}

// CreatePunishmentAt is CreatePunishment with an explicit creation time.
func (p *Policy) CreatePunishmentAt(now time.Time, userHash string, level Level, scopeType authority.ScopeType, scopeID, moderatorID, reason string) (*Punishment, error) {
	if userHash == "" {
		return nil, fmt.Errorf("user hash is required")
	}
	if !level.Valid() {
		return nil, fmt.Errorf("punishment level out of range: %d", level)
	}
	if scopeType == "" {
		scopeType = authority.ScopeGlobal
	}
	if scopeType == authority.ScopeGlobal {
		scopeID = ""
	} else if scopeID == "" {
		return nil, fmt.Errorf("%s punishment requires a scope id", scopeType)
	}

	now = now.UTC()
	pun := &Punishment{
		ID:        uuid.NewString(),
		UserHash:  userHash,
		Level:     level,
		ScopeType: scopeType,
		ScopeID:   scopeID,
		AppliedBy: moderatorID,
		Reason:    reason,
		CreatedAt: now,
	}
	if d, ok := p.Duration(level); ok {
		exp := now.Add(d)
		pun.ExpiresAt = &exp
	}
	return pun, nil
}

// ParseDurations parses a comma separated "level=duration" list, eg "1=48h,2=12h".
func ParseDurations(raw string) (map[Level]time.Duration, error) {
	out := make(map[Level]time.Duration)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return out, nil
	}
	for _, part := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return nil, fmt.Errorf("malformed ladder duration entry: %q", part)
		}
		l, err := ParseLevel(strings.TrimSpace(k))
		if err != nil {
			return nil, err
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("ladder duration for level %d: %w", l, err)
		}
		out[l] = d
	}
	return out, nil
}

// String renders the table in ParseDurations format.
func (p *Policy) String() string {
	keys := make([]int, 0, len(p.durations))
	for l := range p.durations {
		keys = append(keys, int(l))
	}
	sort.Ints(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		d := p.durations[Level(k)]
		if d == 0 {
			parts = append(parts, fmt.Sprintf("%d=permanent", k))
			continue
		}
		parts = append(parts, fmt.Sprintf("%d=%s", k, d))
	}
	return strings.Join(parts, ",")
}
