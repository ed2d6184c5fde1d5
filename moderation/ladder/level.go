// Package ladder implements the six-level punishment ladder: which sanction is in effect for a
// user in a given scope, what that sanction permits, whether the user's content is visible, and
// how the next sanction escalates.
//
// Nothing in this package performs I/O. Callers load punishment rows, pass them in, and persist
// whatever CreatePunishment returns.
package ladder

import (
	"fmt"
	"strconv"

	"github.com/veilcampus/warden/moderation/authority"
)

type Level int

const (
	LevelShadowBan     Level = 1
	LevelCooldown      Level = 2
	LevelContentLock   Level = 3
	LevelTerritoryMute Level = 4
	LevelRegionalMute  Level = 5
	LevelPermanentBan  Level = 6

	MinLevel = LevelShadowBan
	MaxLevel = LevelPermanentBan
)

type levelInfo struct {
	name   string
	action authority.Action
}

var levels = map[Level]levelInfo{
	LevelShadowBan:     {"shadow-ban", authority.ActionShadowBan},
	LevelCooldown:      {"cooldown", authority.ActionCooldown},
	LevelContentLock:   {"content lock", authority.ActionContentLock},
	LevelTerritoryMute: {"territory mute", authority.ActionTerritoryMute},
	LevelRegionalMute:  {"regional mute", authority.ActionRegionalMute},
	LevelPermanentBan:  {"permanent ban", authority.ActionPermanentBan},
}

func (l Level) Valid() bool {
	return l >= MinLevel && l <= MaxLevel
}

func (l Level) Name() string {
	if info, ok := levels[l]; ok {
		return info.name
	}
	return "level " + strconv.Itoa(int(l))
}

// Action returns the moderator action that imposes this level.
func (l Level) Action() authority.Action {
	return levels[l].action
}

// LevelForAction maps a punishment-imposing moderator action to its ladder level.
func LevelForAction(a authority.Action) (Level, bool) {
	for l, info := range levels {
		if info.action == a {
			return l, true
		}
	}
	return 0, false
}

func ParseLevel(raw string) (Level, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		if l, ok := LevelForAction(authority.Action(raw)); ok {
			return l, nil
		}
		return 0, fmt.Errorf("invalid punishment level: %q", raw)
	}
	l := Level(n)
	if !l.Valid() {
		return 0, fmt.Errorf("punishment level out of range: %d", n)
	}
	return l, nil
}
