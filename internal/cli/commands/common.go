package commands

import (
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/vakspot/vakspot/internal/config"
	"github.com/vakspot/vakspot/internal/database"
	"github.com/vakspot/vakspot/internal/logger"
	"github.com/vakspot/vakspot/internal/models"
)

// openDatabase loads the environment config and opens a migrated database.
// Callers close it with database.Close.
func openDatabase() (*gorm.DB, *config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, zerolog.Nop(), fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.GetLogger()

	db, err := database.Open(cfg.Database.URL, log, database.Options{})
	if err != nil {
		return nil, nil, log, fmt.Errorf("failed to open database: %w", err)
	}

	if err := models.AutoMigrate(db); err != nil {
		_ = database.Close(db)
		return nil, nil, log, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, cfg, log, nil
}
