package audit

import (
	"fmt"
	"runtime"
	"time"

	"github.com/glebarez/sqlite"
	gorm_seeder "github.com/kachit/gorm-seeder"
	"gorm.io/gorm"

	"github.com/abyssnet/flochub/internal/config"
)

const (
	connsPerCPU = 10
	maxIdleTime = 10 * time.Minute
)

// OpenDB opens (creating and migrating if necessary) the audit database
// named in cfg, seeding the default command type registry on first boot.
func OpenDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("audit: opening database: %w", err)
	}

	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("audit: migrating database: %w", err)
	}

	var count int64
	if err := db.Model(&CommandType{}).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("audit: counting command types: %w", err)
	}
	if count == 0 {
		seeder := NewCommandTypeSeeder(gorm_seeder.SeederConfiguration{Rows: CommandTypeSeederRows})
		stack := gorm_seeder.NewSeedersStack(db)
		stack.AddSeeder(&seeder)
		if err := stack.Seed(); err != nil {
			return nil, fmt.Errorf("audit: seeding command types: %w", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("audit: retrieving raw database handle: %w", err)
	}
	sqlDB.SetMaxIdleConns(runtime.GOMAXPROCS(0))
	sqlDB.SetMaxOpenConns(runtime.GOMAXPROCS(0) * connsPerCPU)
	sqlDB.SetConnMaxIdleTime(maxIdleTime)

	return db, nil
}
