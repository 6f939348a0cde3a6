package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"fincoach/internal/config"
	connectiondomain "fincoach/internal/module/connection/domain"
	goaldomain "fincoach/internal/module/goal/domain"
	streakdomain "fincoach/internal/module/streak/domain"
	transactiondomain "fincoach/internal/module/transaction/domain"
	userdomain "fincoach/internal/module/user/domain"
)

// New opens the database and migrates the schema.
func New(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}
	if !cfg.IsProduction() {
		gormCfg.Logger = gormlogger.Default.LogMode(gormlogger.Warn)
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Database.Engine {
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(cfg.Database.Path), gormCfg)
	default:
		db, err = gorm.Open(postgres.Open(cfg.Database.PostgresDSN()), gormCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("open database (%s): %w", cfg.Database.Engine, err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Info("database ready", zap.String("engine", cfg.Database.Engine))
	return db, nil
}

// Migrate applies the schema for every persisted entity.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&userdomain.User{},
		&connectiondomain.PaymentConnection{},
		&goaldomain.Goal{},
		&transactiondomain.ManualTransaction{},
		&streakdomain.UserStreak{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
