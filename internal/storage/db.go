// Package storage provides the gorm-backed persistence layer: sqlite
// connection management, models, migrations, and the repository.
package storage

import (
	"context"
	"embed"
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sparklabs/spark/internal/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps a gorm database with structured logging.
type DB struct {
	GormDB *gorm.DB
	log    *logger.Logger
	cfg    Config
	closed bool
	mu     sync.Mutex
}

// Open connects to the sqlite database with retry logic, configures the
// connection pool, and runs migrations when cfg.Migrate is set.
func Open(ctx context.Context, cfg Config, log *logger.Logger) (*DB, error) {
	cfg.ApplyDefaults()
	log = log.WithComponent("database")

	slowThreshold, _ := time.ParseDuration(cfg.SlowQueryThreshold)

	gormCfg := &gorm.Config{
		Logger: newGormLogger(log, slowThreshold, parseLogLevel(cfg.LogLevel)),
	}

	var db *gorm.DB
	var err error

	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("database connection canceled: %w", ctx.Err())
		}

		db, err = gorm.Open(sqlite.Open(cfg.Path), gormCfg)
		if err == nil {
			sqlDB, sqlErr := db.DB()
			if sqlErr != nil {
				err = sqlErr
			} else if pingErr := sqlDB.PingContext(ctx); pingErr != nil {
				err = pingErr
			} else {
				sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
				sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
				if lifetime, parseErr := time.ParseDuration(cfg.ConnMaxLifetime); parseErr == nil {
					sqlDB.SetConnMaxLifetime(lifetime)
				}

				log.Info("Database connection established", map[string]interface{}{
					"path":    cfg.Path,
					"attempt": attempt,
				})

				wrapped := &DB{GormDB: db, log: log, cfg: cfg}
				if cfg.Migrate {
					if migErr := wrapped.migrate(); migErr != nil {
						return nil, fmt.Errorf("database migrate: %w", migErr)
					}
				}
				return wrapped, nil
			}
		}

		if attempt < cfg.MaxRetries {
			backoff := time.Duration(attempt) * time.Second
			log.Warn("Database connection attempt failed, retrying", map[string]interface{}{
				"attempt": attempt,
				"error":   err.Error(),
				"backoff": backoff.String(),
			})
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("database connection canceled during retry: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", cfg.MaxRetries, err)
}

// migrate runs the embedded SQL migrations.
func (db *DB) migrate() error {
	db.log.Info("Running database migrations")
	return migrateUp(db.GormDB, migrationsFS, "migrations")
}

// AutoMigrate runs gorm auto-migration for the given models. Tests use this
// against in-memory databases; production startup runs SQL migrations instead.
func (db *DB) AutoMigrate(models ...interface{}) error {
	return db.GormDB.AutoMigrate(models...)
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.GormDB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection. Safe to call more than once.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true

	sqlDB, err := db.GormDB.DB()
	if err != nil {
		return err
	}
	db.log.Info("Closing database connection")
	return sqlDB.Close()
}
