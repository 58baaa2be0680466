package database

import (
	"context"

	"github.com/yourusername/place-better/internal/config"
)

// Initialize creates a database connection pool and applies the schema when
// auto_migrate is enabled
func Initialize(ctx context.Context, cfg *config.Config) (*DB, error) {
	db, err := NewDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	if cfg.Database.AutoMigrate {
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}

	return db, nil
}
