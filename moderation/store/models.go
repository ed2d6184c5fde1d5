package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/veilcampus/warden/moderation/audit"
	"github.com/veilcampus/warden/moderation/authority"
	"github.com/veilcampus/warden/moderation/ladder"
)

// Timestamps used for ordering and range filters are stored as unix microseconds, which sort
// and compare identically on sqlite and postgres.

type PunishmentRow struct {
	ID        string `gorm:"primaryKey"`
	UserHash  string `gorm:"not null;index:idx_punishment_user_created,priority:1"`
	Level     int    `gorm:"not null"`
	ScopeType string `gorm:"not null"`
	ScopeID   string
	ExpiresAt *time.Time
	AppliedBy string `gorm:"not null"`
	Reason    string `gorm:"not null"`
	CreatedUs int64  `gorm:"not null;index:idx_punishment_user_created,priority:2"`
	RevokedAt *time.Time
	RevokedBy *string
}

func (PunishmentRow) TableName() string { return "punishments" }

// PunishmentHead is bumped in the same transaction as every punishment write for a user. The
// row lock it takes serializes concurrent escalations of that user.
type PunishmentHead struct {
	UserHash string `gorm:"primaryKey"`
	Version  int64  `gorm:"not null"`
}

func (PunishmentHead) TableName() string { return "punishment_heads" }

type ModeratorRow struct {
	ID          string `gorm:"primaryKey"`
	Role        string `gorm:"not null"`
	ScopeType   string `gorm:"not null"`
	ScopeID     string
	AppointedBy string
	CreatedAt   time.Time `gorm:"not null"`
}

func (ModeratorRow) TableName() string { return "moderators" }

type AuditRow struct {
	ID              string `gorm:"primaryKey"`
	ModeratorID     string `gorm:"not null;index"`
	ActionType      string `gorm:"not null;index"`
	TargetUserHash  string `gorm:"index"`
	TargetContentID string
	Reason          string `gorm:"not null"`
	Severity        int    `gorm:"not null"`
	Metadata        string `gorm:"not null"`
	CreatedUs       int64  `gorm:"not null;index"`
}

func (AuditRow) TableName() string { return "audit_entries" }

type ProfileRow struct {
	UserHash  string `gorm:"primaryKey"`
	Signature string `gorm:"not null"`
	Pattern   string `gorm:"not null"`
	UpdatedAt time.Time
}

func (ProfileRow) TableName() string { return "behavior_profiles" }

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func punishmentToRow(p *ladder.Punishment) PunishmentRow {
	row := PunishmentRow{
		ID:        p.ID,
		UserHash:  p.UserHash,
		Level:     int(p.Level),
		ScopeType: string(p.ScopeType),
		ScopeID:   p.ScopeID,
		ExpiresAt: utcPtr(p.ExpiresAt),
		AppliedBy: p.AppliedBy,
		Reason:    p.Reason,
		CreatedUs: p.CreatedAt.UnixMicro(),
		RevokedAt: utcPtr(p.RevokedAt),
	}
	if p.RevokedBy != "" {
		by := p.RevokedBy
		row.RevokedBy = &by
	}
	return row
}

func (row *PunishmentRow) punishment() *ladder.Punishment {
	p := &ladder.Punishment{
		ID:        row.ID,
		UserHash:  row.UserHash,
		Level:     ladder.Level(row.Level),
		ScopeType: authority.ScopeType(row.ScopeType),
		ScopeID:   row.ScopeID,
		ExpiresAt: utcPtr(row.ExpiresAt),
		AppliedBy: row.AppliedBy,
		Reason:    row.Reason,
		CreatedAt: time.UnixMicro(row.CreatedUs).UTC(),
		RevokedAt: utcPtr(row.RevokedAt),
	}
	if row.RevokedBy != nil {
		p.RevokedBy = *row.RevokedBy
	}
	return p
}

func moderatorToRow(m *authority.Moderator) ModeratorRow {
	return ModeratorRow{
		ID:          m.ID,
		Role:        string(m.Role),
		ScopeType:   string(m.ScopeType),
		ScopeID:     m.ScopeID,
		AppointedBy: m.AppointedBy,
		CreatedAt:   m.CreatedAt.UTC(),
	}
}

func (row *ModeratorRow) moderator() *authority.Moderator {
	return &authority.Moderator{
		ID:          row.ID,
		Role:        authority.Role(row.Role),
		ScopeType:   authority.ScopeType(row.ScopeType),
		ScopeID:     row.ScopeID,
		AppointedBy: row.AppointedBy,
		CreatedAt:   row.CreatedAt.UTC(),
	}
}

func actionToRow(a *audit.ModAction) AuditRow {
	return AuditRow{
		ID:              a.ID,
		ModeratorID:     a.ModeratorID,
		ActionType:      string(a.ActionType),
		TargetUserHash:  a.TargetUserHash,
		TargetContentID: a.TargetContentID,
		Reason:          a.Reason,
		Severity:        audit.GetActionSeverity(a.ActionType),
		Metadata:        a.Metadata.Text(),
		CreatedUs:       a.CreatedAt.UnixMicro(),
	}
}

func (row *AuditRow) action() (*audit.ModAction, error) {
	meta, err := audit.ParseMetadata(row.Metadata)
	if err != nil {
		return nil, fmt.Errorf("audit entry %s: bad metadata: %w", row.ID, err)
	}
	return &audit.ModAction{
		ID:              row.ID,
		ModeratorID:     row.ModeratorID,
		ActionType:      authority.Action(row.ActionType),
		TargetUserHash:  row.TargetUserHash,
		TargetContentID: row.TargetContentID,
		Reason:          row.Reason,
		Metadata:        meta,
		CreatedAt:       time.UnixMicro(row.CreatedUs).UTC(),
	}, nil
}

func profileToRow(p *Profile) (ProfileRow, error) {
	sig, err := json.Marshal(p.Signature)
	if err != nil {
		return ProfileRow{}, err
	}
	pat, err := json.Marshal(p.Pattern)
	if err != nil {
		return ProfileRow{}, err
	}
	return ProfileRow{
		UserHash:  p.UserHash,
		Signature: string(sig),
		Pattern:   string(pat),
		UpdatedAt: p.UpdatedAt.UTC(),
	}, nil
}

func (row *ProfileRow) profile() (*Profile, error) {
	p := &Profile{
		UserHash:  row.UserHash,
		UpdatedAt: row.UpdatedAt.UTC(),
	}
	if err := json.Unmarshal([]byte(row.Signature), &p.Signature); err != nil {
		return nil, fmt.Errorf("profile %s: bad signature: %w", row.UserHash, err)
	}
	if err := json.Unmarshal([]byte(row.Pattern), &p.Pattern); err != nil {
		return nil, fmt.Errorf("profile %s: bad time pattern: %w", row.UserHash, err)
	}
	return p, nil
}

// startMicro is the smallest stored microsecond value not before t.
func startMicro(t time.Time) int64 {
	us := t.UnixMicro()
	if time.UnixMicro(us).Before(t) {
		us++
	}
	return us
}
