package dominion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Territory struct {
	ID         string `gorm:"primaryKey"`
	DominionID string `gorm:"index;not null"`
	CreatedAt  time.Time
}

// GormDirectory reads territory ownership from the territories table.
type GormDirectory struct {
	db *gorm.DB
}

var _ Directory = (*GormDirectory)(nil)

func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

func (d *GormDirectory) AutoMigrate() error {
	return d.db.AutoMigrate(&Territory{})
}

func (d *GormDirectory) DominionOf(ctx context.Context, territoryID string) (string, error) {
	var t Territory
	err := d.db.WithContext(ctx).Where("id = ?", territoryID).Take(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", unknown(territoryID)
	}
	if err != nil {
		return "", fmt.Errorf("looking up territory: %w", err)
	}
	return t.DominionID, nil
}

// Assign upserts territory ownership.
func (d *GormDirectory) Assign(ctx context.Context, dominionID string, territoryIDs ...string) error {
	if len(territoryIDs) == 0 {
		return nil
	}
	rows := make([]Territory, len(territoryIDs))
	for i, t := range territoryIDs {
		rows[i] = Territory{ID: t, DominionID: dominionID}
	}
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"dominion_id"}),
	}).Create(&rows).Error
}

// Import copies every mapping from a static directory.
func (d *GormDirectory) Import(ctx context.Context, src *StaticDirectory) error {
	for dom, l := range src.Dominions() {
		if err := d.Assign(ctx, dom, l...); err != nil {
			return err
		}
	}
	return nil
}
