// Persistence for punishments, moderators, audit entries and behavior profiles.
//
// Two implementations: MemStore for tests and single-process development, and GormStore over
// sqlite or postgres. Both return errs.ErrNotFound and errs.ErrConflict for the same conditions.
package store

import (
	"context"
	"time"

	"github.com/veilcampus/warden/moderation/audit"
	"github.com/veilcampus/warden/moderation/authority"
	"github.com/veilcampus/warden/moderation/fingerprint"
	"github.com/veilcampus/warden/moderation/ladder"
)

// Profile is the behavior state tracked per user hash.
type Profile struct {
	UserHash  string                        `json:"user_hash"`
	Signature fingerprint.BehaviorSignature `json:"signature"`
	Pattern   fingerprint.TimePattern       `json:"pattern"`
	UpdatedAt time.Time                     `json:"updated_at"`
}

// Store persists moderation state. Every mutating method takes the audit entry describing the
// change and commits both together: either the change and its entry are stored, or neither is.
// A nil entry writes the change alone.
type Store interface {
	// ListPunishmentHistory returns every record for the user, revoked ones included, oldest
	// first.
	ListPunishmentHistory(ctx context.Context, userHash string) ([]*ladder.Punishment, error)
	// PunishmentVersion increases with every punishment write for the user; 0 means none yet.
	PunishmentVersion(ctx context.Context, userHash string) (int64, error)
	InsertPunishment(ctx context.Context, p *ladder.Punishment, entry *audit.ModAction) error
	// InsertPunishmentAfter inserts only if the user's most recent non-revoked record is still
	// prevID ("" meaning none). Otherwise it returns errs.ErrConflict and writes nothing.
	InsertPunishmentAfter(ctx context.Context, p *ladder.Punishment, prevID string, entry *audit.ModAction) error
	GetPunishment(ctx context.Context, id string) (*ladder.Punishment, error)
	// RevokePunishment sets the tombstone fields. Revoking twice is errs.ErrConflict.
	RevokePunishment(ctx context.Context, id, revokedBy string, at time.Time, entry *audit.ModAction) (*ladder.Punishment, error)

	ListModerators(ctx context.Context) ([]*authority.Moderator, error)
	GetModerator(ctx context.Context, id string) (*authority.Moderator, error)
	// InsertModerator returns errs.ErrConflict if the id is taken.
	InsertModerator(ctx context.Context, m *authority.Moderator, entry *audit.ModAction) error
	DeleteModerator(ctx context.Context, id string, entry *audit.ModAction) error

	// AppendAuditEntry stores an entry that has no accompanying change (denials, warnings,
	// content actions). A duplicate id is an error.
	AppendAuditEntry(ctx context.Context, a *audit.ModAction) error
	// QueryAuditEntries returns matching entries oldest first. With a Limit, only the most
	// recent Limit matches are returned.
	QueryAuditEntries(ctx context.Context, f audit.Filter) ([]*audit.ModAction, error)

	GetProfile(ctx context.Context, userHash string) (*Profile, error)
	PutProfile(ctx context.Context, p *Profile) error
}

func clonePunishment(p *ladder.Punishment) *ladder.Punishment {
	out := *p
	if p.ExpiresAt != nil {
		t := *p.ExpiresAt
		out.ExpiresAt = &t
	}
	if p.RevokedAt != nil {
		t := *p.RevokedAt
		out.RevokedAt = &t
	}
	return &out
}

func cloneAction(a *audit.ModAction) *audit.ModAction {
	out := *a
	out.Metadata = a.Metadata.Clone()
	return &out
}

func cloneProfile(p *Profile) *Profile {
	out := *p
	out.Signature.ActiveHours = append([]int{}, p.Signature.ActiveHours...)
	out.Signature.PreferredKinds = append([]string{}, p.Signature.PreferredKinds...)
	out.Signature.Interactions = append([]string{}, p.Signature.Interactions...)
	return &out
}
