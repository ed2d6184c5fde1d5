package ladder

import (
	"time"

	"github.com/veilcampus/warden/moderation/authority"
)

// Punishment is one sanction record. Records are append-only: escalation inserts a new row, and
// an unban only sets the revocation tombstone.
type Punishment struct {
	ID        string              `json:"id"`
	UserHash  string              `json:"user_hash"`
	Level     Level               `json:"punishment_level"`
	ScopeType authority.ScopeType `json:"scope_type"`
	// empty for global punishments
	ScopeID string `json:"scope_id,omitempty"`
	// nil for permanent punishments
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	AppliedBy string     `json:"applied_by"`
	Reason    string     `json:"reason"`
	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	RevokedBy string     `json:"revoked_by,omitempty"`
}

func (p *Punishment) Permanent() bool {
	return p.ExpiresAt == nil
}

func (p *Punishment) Revoked() bool {
	return p.RevokedAt != nil
}

// ActiveAt reports whether the punishment is neither expired nor revoked at the given time.
func (p *Punishment) ActiveAt(now time.Time) bool {
	if p.RevokedAt != nil && !now.Before(*p.RevokedAt) {
		return false
	}
	if p.ExpiresAt != nil && !now.Before(*p.ExpiresAt) {
		return false
	}
	return true
}

// AppliesTo reports whether the punishment's scope covers a request in the given territory and
// dominion. Global always applies; scoped punishments apply only on exact id match.
func (p *Punishment) AppliesTo(territoryID, dominionID string) bool {
	switch p.ScopeType {
	case authority.ScopeGlobal, "":
		return true
	case authority.ScopeDominion:
		return dominionID != "" && p.ScopeID == dominionID
	case authority.ScopeTerritory:
		return territoryID != "" && p.ScopeID == territoryID
	default:
		return false
	}
}

// IsUserPunished returns the effective punishment for a user in the given scope at the current
// time, or nil.
func IsUserPunished(all []*Punishment, userHash, territoryID, dominionID string) *Punishment {
	return EffectiveAt(time.Now(), all, userHash, territoryID, dominionID)
}

// EffectiveAt returns the highest-level punishment among the user's active, scope-applicable
// records. Severity alone decides: a narrow-scope level 4 outranks a global level 2. Equal levels
// resolve to the most recently created record.
func EffectiveAt(now time.Time, all []*Punishment, userHash, territoryID, dominionID string) *Punishment {
	var best *Punishment
	for _, p := range all {
		if p == nil || p.UserHash != userHash {
			continue
		}
		if !p.ActiveAt(now) || !p.AppliesTo(territoryID, dominionID) {
			continue
		}
		if best == nil || p.Level > best.Level || (p.Level == best.Level && p.CreatedAt.After(best.CreatedAt)) {
			best = p
		}
	}
	return best
}

// GetNextPunishmentLevel returns the level the next violation escalates to: one above the most
// recently created record, capped at the maximum. Revoked records were overturned and do not
// count; expired ones do.
func GetNextPunishmentLevel(history []*Punishment, userHash string) Level {
	latest := LatestRecord(history, userHash)
	if latest == nil {
		return MinLevel
	}
	return min(latest.Level+1, MaxLevel)
}

// LatestRecord returns the most recently created non-revoked record for the user, or nil.
func LatestRecord(history []*Punishment, userHash string) *Punishment {
	var latest *Punishment
	for _, p := range history {
		if p == nil || p.UserHash != userHash || p.Revoked() {
			continue
		}
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
			latest = p
		}
	}
	return latest
}
