package audit

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veilcampus/warden/moderation/authority"
	"github.com/veilcampus/warden/moderation/errs"
)

// ModAction is one audit log entry.
type ModAction struct {
	ID              string           `json:"id"`
	ModeratorID     string           `json:"moderator_id"`
	ActionType      authority.Action `json:"action_type"`
	TargetUserHash  string           `json:"target_user_hash,omitempty"`
	TargetContentID string           `json:"target_content_id,omitempty"`
	Reason          string           `json:"reason"`
	Metadata        Metadata         `json:"metadata"`
	CreatedAt       time.Time        `json:"created_at"`
}

// EntryInput carries the caller-supplied parts of a new entry.
type EntryInput struct {
	TargetUserHash  string
	TargetContentID string
	Reason          string
	Metadata        *Metadata
}

var descriptions = map[authority.Action]string{
	authority.ActionShadowBan:      "User shadow-banned: content hidden from everyone but the author",
	authority.ActionCooldown:       "User placed on posting cooldown",
	authority.ActionContentLock:    "User content creation locked",
	authority.ActionTerritoryMute:  "User muted in territory",
	authority.ActionRegionalMute:   "User muted across dominion",
	authority.ActionPermanentBan:   "User permanently banned",
	authority.ActionUnban:          "Punishment lifted",
	authority.ActionContentRemove:  "Content removed",
	authority.ActionContentRestore: "Content restored",
	authority.ActionUserWarn:       "User warned",
	authority.ActionAppointMod:     "Moderator appointed",
	authority.ActionRemoveMod:      "Moderator removed",
}

// Describe returns the static human-readable description for an action kind.
func Describe(a authority.Action) string {
	if d, ok := descriptions[a]; ok {
		return d
	}
	return "Moderation action: " + string(a)
}

// Recognized reports whether the action is one of the twelve audited kinds.
func Recognized(a authority.Action) bool {
	_, ok := descriptions[a]
	return ok
}

// MonotonicClock hands out strictly increasing UTC timestamps at microsecond resolution, so
// created_at ordering survives storage in databases with microsecond precision.
type MonotonicClock struct {
	// overridable in tests
	Now func() time.Time

	lk   sync.Mutex
	last time.Time
}

func (c *MonotonicClock) Next() time.Time {
	c.lk.Lock()
	defer c.lk.Unlock()

	var now time.Time
	if c.Now != nil {
		now = c.Now()
	} else {
		now = time.Now()
	}
	now = now.UTC().Truncate(time.Microsecond)
	if !now.After(c.last) {
		now = c.last.Add(time.Microsecond)
	}
	c.last = now
	return now
}

var DefaultClock = &MonotonicClock{}

// CreateAuditEntry builds an entry stamped by DefaultClock.
func CreateAuditEntry(moderatorID string, actionType authority.Action, in EntryInput) (*ModAction, error) {
	return CreateAuditEntryAt(DefaultClock.Next(), moderatorID, actionType, in)
}

// CreateAuditEntryAt builds an entry with an explicit server timestamp. The reason must not be
// blank and is stored exactly as given; caller metadata is merged with the timestamp and the
// static description for the action kind.
func CreateAuditEntryAt(at time.Time, moderatorID string, actionType authority.Action, in EntryInput) (*ModAction, error) {
	if strings.TrimSpace(in.Reason) == "" {
		return nil, errs.Invalid("reason", "a reason is required for every moderation action")
	}
	if moderatorID == "" {
		return nil, errs.Invalid("moderator_id", "moderator id is required")
	}
	if actionType == "" {
		return nil, errs.Invalid("action_type", "action type is required")
	}

	var meta Metadata
	if in.Metadata != nil {
		meta = in.Metadata.Clone()
	}
	at = at.UTC()
	meta.Timestamp = at
	meta.Description = Describe(actionType)

	return &ModAction{
		ID:              uuid.NewString(),
		ModeratorID:     moderatorID,
		ActionType:      actionType,
		TargetUserHash:  in.TargetUserHash,
		TargetContentID: in.TargetContentID,
		Reason:          in.Reason,
		Metadata:        meta,
		CreatedAt:       at,
	}, nil
}
