package authority

import (
	"context"
	"fmt"
	"time"

	"github.com/veilcampus/warden/moderation/errs"
)

type ScopeType string

const (
	ScopeGlobal    ScopeType = "global"
	ScopeDominion  ScopeType = "dominion"
	ScopeTerritory ScopeType = "territory"
)

func ParseScopeType(raw string) (ScopeType, error) {
	switch st := ScopeType(raw); st {
	case ScopeGlobal, ScopeDominion, ScopeTerritory:
		return st, nil
	case "":
		return ScopeGlobal, nil
	default:
		return "", fmt.Errorf("unknown scope type: %q", raw)
	}
}

// Moderator is an appointed moderator, as supplied by the session layer.
type Moderator struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	ScopeType ScopeType `json:"scope_type"`
	// empty iff ScopeType is global
	ScopeID     string    `json:"scope_id,omitempty"`
	AppointedBy string    `json:"appointed_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Validate checks the structural invariants of a Moderator row.
func (m *Moderator) Validate() error {
	if m.ID == "" {
		return errs.Invalid("id", "moderator id is required")
	}
	if !m.Role.Valid() {
		return errs.Invalid("role", "unknown role %q", m.Role)
	}
	switch m.ScopeType {
	case ScopeGlobal:
		if m.ScopeID != "" {
			return errs.Invalid("scope_id", "global scope must not carry a scope id")
		}
	case ScopeDominion, ScopeTerritory:
		if m.ScopeID == "" {
			return errs.Invalid("scope_id", "%s scope requires a scope id", m.ScopeType)
		}
	default:
		return errs.Invalid("scope_type", "unknown scope type %q", m.ScopeType)
	}
	return nil
}

// DominionResolver returns the dominion owning a territory.
type DominionResolver interface {
	DominionOf(ctx context.Context, territoryID string) (string, error)
}

type Authority struct {
	Dominions DominionResolver
}

func NewAuthority(dominions DominionResolver) *Authority {
	return &Authority{Dominions: dominions}
}

// CanActInScope reports whether the moderator's scope covers the target scope.
//
// Global moderators act anywhere. Dominion moderators act on their own dominion and on any
// territory that dominion owns. Territory moderators act only on their own territory. An error
// from the dominion lookup is returned alongside a false result.
func (a *Authority) CanActInScope(ctx context.Context, m *Moderator, targetType ScopeType, targetID string) (bool, error) {
	if m == nil {
		return false, nil
	}
	if targetType == "" {
		targetType = ScopeGlobal
	}
	switch m.ScopeType {
	case ScopeGlobal:
		return true, nil
	case ScopeDominion:
		switch targetType {
		case ScopeDominion:
			return targetID != "" && targetID == m.ScopeID, nil
		case ScopeTerritory:
			if targetID == "" {
				return false, nil
			}
			if a == nil || a.Dominions == nil {
				return false, fmt.Errorf("no dominion directory configured")
			}
			owner, err := a.Dominions.DominionOf(ctx, targetID)
			if err != nil {
				return false, fmt.Errorf("resolving dominion of territory %s: %w", targetID, err)
			}
			return owner == m.ScopeID, nil
		default:
			return false, nil
		}
	case ScopeTerritory:
		return targetType == ScopeTerritory && targetID != "" && targetID == m.ScopeID, nil
	default:
		return false, nil
	}
}
