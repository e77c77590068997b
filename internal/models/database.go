package models

import (
	"fmt"
	"strings"

	"github.com/huangang/panelsentry/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func InitDB(cfg *config.DatabaseConfig) error {
	db, err := Open(cfg, logger.Warn)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// Open connects to the configured database without touching the global handle.
func Open(cfg *config.DatabaseConfig, level logger.LogLevel) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(level),
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// An in-memory sqlite database exists per connection; pin the pool to one
	// connection so every query sees the same data.
	if cfg.Driver == "sqlite" && strings.Contains(cfg.DSN, "memory") {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}

func AutoMigrate() error {
	return Migrate(GetDB())
}

// Migrate creates or updates every panel table on db.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Project{},
		&Vendor{},
		&ProjectVendor{},
		&Response{},
		&Setting{},
		&SystemLog{},
	)
}

// GetDB returns the global handle. Calling it before InitDB is a programming
// error and panics.
func GetDB() *gorm.DB {
	if DB == nil {
		panic("models: GetDB called before InitDB")
	}
	return DB
}

// DefaultSettings are created on first start and never overwrite admin edits.
var DefaultSettings = []Setting{
	{Key: "company_name", Value: `"PanelSentry"`, Group: "general", Label: "Company Name"},
	{Key: "support_email", Value: `"support@panelsentry.io"`, Group: "general", Label: "Support Email"},
	{Key: "timezone", Value: `"UTC"`, Group: "general", Label: "Timezone"},
	{Key: "currency", Value: `"USD"`, Group: "general", Label: "Currency"},
	{Key: "default_redirect_delay", Value: `3`, Group: "redirect", Label: "Default Redirect Delay (seconds)"},
	{Key: "show_redirect_page", Value: `true`, Group: "redirect", Label: "Show Redirect Page"},
	{Key: "fraud_detection_enabled", Value: `true`, Group: "fraud", Label: "Enable Fraud Detection"},
	{Key: "auto_block_ips", Value: `false`, Group: "fraud", Label: "Auto Block High Risk IPs"},
	{Key: "admin_notifications", Value: `true`, Group: "notification", Label: "Admin Webhook Notifications"},
}

// SeedDefaultData creates default settings if not exists
func SeedDefaultData(db *gorm.DB) error {
	for _, s := range DefaultSettings {
		var count int64
		db.Model(&Setting{}).Where(&Setting{Key: s.Key}).Count(&count)
		if count == 0 {
			s := s
			if err := db.Create(&s).Error; err != nil {
				return err
			}
		}
	}
	return nil
}
