package database

import (
	"errors"
	"time"

	"github.com/quizforge/deskbank/backend/internal/desks"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationTrimDeskRecordRefs = "2026-06-17_trim_desk_record_refs"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationTrimDeskRecordRefs, apply: trimDeskRecordRefs},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// trimDeskRecordRefs strips stray whitespace from stored references left by
// an early import surface. Whitespace-padded refs never matched a broadcast.
func trimDeskRecordRefs(db *gorm.DB) error {
	return db.Model(&desks.Record{}).
		Where("asset_ref <> trim(asset_ref)").
		Update("asset_ref", gorm.Expr("trim(asset_ref)")).Error
}
