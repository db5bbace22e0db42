package db

import (
	"fmt"

	"retroboard/internal/retro"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	return gdb, nil
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	// Tables
	if err := gdb.AutoMigrate(
		&retro.User{},
		&retro.Retro{},
		&retro.Idea{},
		&retro.Group{},
		&retro.ActionItem{},
	); err != nil {
		return err
	}

	// Listing by participant (GIN for text[])
	if err := gdb.Exec(`create index if not exists idx_retros_ever_joined on retros using gin (ever_joined);`).Error; err != nil {
		return err
	}

	stmts := []string{
		`create index if not exists idx_retros_created on retros(created_at desc, id);`,
		`create index if not exists idx_ideas_retro_created on ideas(retro_id, created_at, id);`,
		`create index if not exists idx_groups_retro_created on "groups"(retro_id, created_at, id);`,
		`create index if not exists idx_action_items_retro_created on action_items(retro_id, created_at, id);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	return nil
}
