package audit

import (
	"github.com/veilcampus/warden/moderation/authority"
)

var severities = map[authority.Action]int{
	authority.ActionShadowBan:      1,
	authority.ActionCooldown:       2,
	authority.ActionContentLock:    3,
	authority.ActionTerritoryMute:  4,
	authority.ActionRegionalMute:   5,
	authority.ActionPermanentBan:   6,
	authority.ActionContentRemove:  3,
	authority.ActionUserWarn:       1,
	authority.ActionUnban:          0,
	authority.ActionContentRestore: 0,
	authority.ActionAppointMod:     0,
	authority.ActionRemoveMod:      0,
}

// GetActionSeverity returns the static severity of an action kind. Punishment kinds map to their
// ladder level; unknown kinds are 0.
func GetActionSeverity(a authority.Action) int {
	return severities[a]
}
