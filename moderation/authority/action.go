package authority

// Action is a moderator action kind. The first twelve are the kinds recorded in the audit log;
// the rest are workflow actions that only matter for role constraints.
type Action string

const (
	ActionShadowBan      Action = "shadow_ban"
	ActionCooldown       Action = "cooldown"
	ActionContentLock    Action = "content_lock"
	ActionTerritoryMute  Action = "territory_mute"
	ActionRegionalMute   Action = "regional_mute"
	ActionPermanentBan   Action = "permanent_ban"
	ActionUnban          Action = "unban"
	ActionContentRemove  Action = "content_remove"
	ActionContentRestore Action = "content_restore"
	ActionUserWarn       Action = "user_warn"
	ActionAppointMod     Action = "appoint_mod"
	ActionRemoveMod      Action = "remove_mod"

	ActionDetectPatterns     Action = "detect_patterns"
	ActionReviewReports      Action = "review_reports"
	ActionPrepareBanCases    Action = "prepare_ban_cases"
	ActionPublicAnnouncement Action = "public_announcement"
)

// Constraint is the result of ValidateRoleConstraints.
type Constraint struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

type roleRestriction struct {
	forbidden map[Action]bool
	reason    string
}

var roleRestrictions = map[Role]roleRestriction{
	RoleVeilWatcher: {
		forbidden: map[Action]bool{
			ActionShadowBan:    true,
			ActionCooldown:     true,
			ActionContentLock:  true,
			ActionPermanentBan: true,
		},
		reason: "Veil Watchers detect patterns only. Escalate to a Sentinel or Marshal.",
	},
	RoleSentinel: {
		forbidden: map[Action]bool{
			ActionDetectPatterns:  true,
			ActionReviewReports:   true,
			ActionPrepareBanCases: true,
		},
		reason: "Sentinels execute pre-approved actions only. No independent judgment.",
	},
	RoleMarshal: {
		forbidden: map[Action]bool{
			ActionPermanentBan:       true,
			ActionPublicAnnouncement: true,
		},
		reason: "Marshals cannot issue permanent bans or public announcements.",
	},
}

// ValidateRoleConstraints checks the per-role action restrictions. Pairs not listed in the
// restriction table are valid.
func ValidateRoleConstraints(r Role, a Action) Constraint {
	rr, ok := roleRestrictions[r]
	if !ok || !rr.forbidden[a] {
		return Constraint{Valid: true}
	}
	return Constraint{Valid: false, Reason: rr.reason}
}
