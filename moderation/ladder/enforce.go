package ladder

// UserAction is something a feed user attempts to do.
type UserAction string

const (
	UserPost    UserAction = "post"
	UserComment UserAction = "comment"
	UserLike    UserAction = "like"
	UserChat    UserAction = "chat"
)

// Decision is the result of CanUserAct.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

var allowed = Decision{Allowed: true}

// CanUserAct gates a user action on the effective punishment. A nil punishment allows
// everything, as does a shadow-ban: invisibility is the penalty there, not restriction.
func CanUserAct(p *Punishment, action UserAction) Decision {
	if p == nil {
		return allowed
	}
	switch p.Level {
	case LevelShadowBan:
		return allowed
	case LevelCooldown:
		if action == UserPost {
			return Decision{Reason: "Posting on cooldown"}
		}
		return allowed
	case LevelContentLock:
		if action == UserPost || action == UserComment {
			return Decision{Reason: "Content creation locked"}
		}
		return allowed
	case LevelTerritoryMute:
		if action == UserLike {
			return allowed
		}
		return Decision{Reason: "Muted in this territory"}
	case LevelRegionalMute:
		if action == UserLike {
			return allowed
		}
		return Decision{Reason: "Muted in this region"}
	case LevelPermanentBan:
		return Decision{Reason: "Permanently banned"}
	default:
		return allowed
	}
}

// IsContentVisible applies the visibility law: an author always sees their own content, and
// everyone else loses sight of it only while the author is shadow-banned. Higher levels restrict
// creation, not visibility of what already exists.
func IsContentVisible(viewerHash, authorHash string, authorPunishment *Punishment) bool {
	if viewerHash == authorHash {
		return true
	}
	if authorPunishment == nil {
		return true
	}
	return authorPunishment.Level != LevelShadowBan
}
