package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/veilcampus/warden/moderation/audit"
	"github.com/veilcampus/warden/moderation/authority"
	"github.com/veilcampus/warden/moderation/errs"
	"github.com/veilcampus/warden/moderation/ladder"
)

type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(
		&PunishmentRow{},
		&PunishmentHead{},
		&ModeratorRow{},
		&AuditRow{},
		&ProfileRow{},
	)
}

func (s *GormStore) ListPunishmentHistory(ctx context.Context, userHash string) ([]*ladder.Punishment, error) {
	var rows []PunishmentRow
	if err := s.db.WithContext(ctx).Where("user_hash = ?", userHash).Order("created_us asc, id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing punishments: %w", err)
	}
	out := make([]*ladder.Punishment, len(rows))
	for i := range rows {
		out[i] = rows[i].punishment()
	}
	return out, nil
}

func (s *GormStore) PunishmentVersion(ctx context.Context, userHash string) (int64, error) {
	var heads []PunishmentHead
	if err := s.db.WithContext(ctx).Where("user_hash = ?", userHash).Limit(1).Find(&heads).Error; err != nil {
		return 0, fmt.Errorf("reading punishment version: %w", err)
	}
	if len(heads) == 0 {
		return 0, nil
	}
	return heads[0].Version, nil
}

// appendAudit writes entry inside tx; a nil entry is skipped.
func appendAudit(tx *gorm.DB, entry *audit.ModAction) error {
	if entry == nil {
		return nil
	}
	row := actionToRow(entry)
	if err := tx.Create(&row).Error; err != nil {
		return fmt.Errorf("appending audit entry: %w", err)
	}
	return nil
}

// bumpHead takes the per-user row lock inside tx.
func bumpHead(tx *gorm.DB, userHash string) error {
	res := tx.Model(&PunishmentHead{}).Where("user_hash = ?", userHash).Update("version", gorm.Expr("version + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	res = tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&PunishmentHead{UserHash: userHash, Version: 1})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// another transaction created the head first
		return fmt.Errorf("%w: punishment history for user changed", errs.ErrConflict)
	}
	return nil
}

func (s *GormStore) InsertPunishment(ctx context.Context, p *ladder.Punishment, entry *audit.ModAction) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := bumpHead(tx, p.UserHash); err != nil {
			return err
		}
		row := punishmentToRow(p)
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return appendAudit(tx, entry)
	})
}

func (s *GormStore) InsertPunishmentAfter(ctx context.Context, p *ladder.Punishment, prevID string, entry *audit.ModAction) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := bumpHead(tx, p.UserHash); err != nil {
			return err
		}
		var latest []PunishmentRow
		err := tx.Where("user_hash = ? AND revoked_at IS NULL", p.UserHash).Order("created_us desc, id desc").Limit(1).Find(&latest).Error
		if err != nil {
			return err
		}
		latestID := ""
		if len(latest) > 0 {
			latestID = latest[0].ID
		}
		if latestID != prevID {
			return fmt.Errorf("%w: punishment history for user changed", errs.ErrConflict)
		}
		row := punishmentToRow(p)
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return appendAudit(tx, entry)
	})
}

func (s *GormStore) GetPunishment(ctx context.Context, id string) (*ladder.Punishment, error) {
	var row PunishmentRow
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("punishment %s: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return row.punishment(), nil
}

func (s *GormStore) RevokePunishment(ctx context.Context, id, revokedBy string, at time.Time, entry *audit.ModAction) (*ladder.Punishment, error) {
	var out *ladder.Punishment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row PunishmentRow
		err := tx.Where("id = ?", id).Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("punishment %s: %w", id, errs.ErrNotFound)
		}
		if err != nil {
			return err
		}
		if err := bumpHead(tx, row.UserHash); err != nil {
			return err
		}
		at = at.UTC()
		res := tx.Model(&PunishmentRow{}).Where("id = ? AND revoked_at IS NULL", id).Updates(map[string]any{
			"revoked_at": at,
			"revoked_by": revokedBy,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: punishment %s already revoked", errs.ErrConflict, id)
		}
		if err := appendAudit(tx, entry); err != nil {
			return err
		}
		row.RevokedAt = &at
		row.RevokedBy = &revokedBy
		out = row.punishment()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) ListModerators(ctx context.Context) ([]*authority.Moderator, error) {
	var rows []ModeratorRow
	if err := s.db.WithContext(ctx).Order("created_at asc, id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing moderators: %w", err)
	}
	out := make([]*authority.Moderator, len(rows))
	for i := range rows {
		out[i] = rows[i].moderator()
	}
	return out, nil
}

func (s *GormStore) GetModerator(ctx context.Context, id string) (*authority.Moderator, error) {
	var row ModeratorRow
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("moderator %s: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return row.moderator(), nil
}

func (s *GormStore) InsertModerator(ctx context.Context, m *authority.Moderator, entry *audit.ModAction) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := moderatorToRow(m)
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: moderator %s already exists", errs.ErrConflict, m.ID)
		}
		return appendAudit(tx, entry)
	})
}

func (s *GormStore) DeleteModerator(ctx context.Context, id string, entry *audit.ModAction) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&ModeratorRow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("moderator %s: %w", id, errs.ErrNotFound)
		}
		return appendAudit(tx, entry)
	})
}

func (s *GormStore) AppendAuditEntry(ctx context.Context, a *audit.ModAction) error {
	return appendAudit(s.db.WithContext(ctx), a)
}

func (s *GormStore) QueryAuditEntries(ctx context.Context, f audit.Filter) ([]*audit.ModAction, error) {
	q := s.db.WithContext(ctx).Model(&AuditRow{})
	if f.ModeratorID != "" {
		q = q.Where("moderator_id = ?", f.ModeratorID)
	}
	if f.ActionType != "" {
		q = q.Where("action_type = ?", string(f.ActionType))
	}
	if f.TargetUserHash != "" {
		q = q.Where("target_user_hash = ?", f.TargetUserHash)
	}
	if f.MinSeverity != nil {
		q = q.Where("severity >= ?", *f.MinSeverity)
	}
	if f.StartDate != nil {
		q = q.Where("created_us >= ?", startMicro(*f.StartDate))
	}
	if f.EndDate != nil {
		q = q.Where("created_us <= ?", f.EndDate.UnixMicro())
	}

	var rows []AuditRow
	if f.Limit > 0 {
		q = q.Order("created_us desc, id desc").Limit(f.Limit)
	} else {
		q = q.Order("created_us asc, id asc")
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	if f.Limit > 0 {
		slices.Reverse(rows)
	}

	out := make([]*audit.ModAction, 0, len(rows))
	for i := range rows {
		a, err := rows[i].action()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *GormStore) GetProfile(ctx context.Context, userHash string) (*Profile, error) {
	var row ProfileRow
	err := s.db.WithContext(ctx).Where("user_hash = ?", userHash).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("profile %s: %w", userHash, errs.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return row.profile()
}

func (s *GormStore) PutProfile(ctx context.Context, p *Profile) error {
	row, err := profileToRow(p)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_hash"}},
		DoUpdates: clause.AssignmentColumns([]string{"signature", "pattern", "updated_at"}),
	}).Create(&row).Error
}
