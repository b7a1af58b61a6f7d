package audit

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// migrate runs every schema migration for the audit database in order.
func migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "202602010001",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&CommandType{}, &Entry{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&CommandType{}, &Entry{})
			},
		},
	})
	return m.Migrate()
}
