// Package moderation keeps track of the accounts moderators have banned,
// both permanently (in the database) and for a limited time (in memory).
package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rvchat/rvserver/internal/core"
)

// Ban records an account that may no longer log in.
type Ban struct {
	ID uint64 `gorm:"primaryKey"`
	// Folded form of the account name, used for lookups.
	Username    string `gorm:"uniqueIndex; not null"`
	DisplayName string `gorm:"not null"`
	BannedBy    string
	CreatedAt   time.Time
}

// Store persists bans.
type Store struct {
	db *gorm.DB
}

// Open connects to the database described by cfg and prepares its schema.
func Open(cfg *core.Config) (*Store, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Database.Engine) {
	case "sqlite":
		dialector = sqlite.Open(cfg.Database.Filename)
	case "postgres":
		dialector = postgres.Open(cfg.DatabaseURL())
	default:
		return nil, fmt.Errorf("unsupported database engine: %s", cfg.Database.Engine)
	}

	// By default only log errors but enable full SQL query prints-to-console with debug mode
	log := gormlogger.Default.LogMode(gormlogger.Error)
	if cfg.Debugging.DatabaseLoggingEnabled {
		log = gormlogger.Default.LogMode(gormlogger.Info)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: log})
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	return NewStore(db)
}

// NewStore wraps an open database, migrating the schema if needed.
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Ban{}); err != nil {
		return nil, fmt.Errorf("error auto migrating db: %w", err)
	}
	return &Store{db: db}, nil
}

// IsBanned reports whether username has a ban on record.
func (s *Store) IsBanned(ctx context.Context, username string) (bool, error) {
	ban, err := s.Find(ctx, username)
	if err != nil {
		return false, err
	}
	return ban != nil, nil
}

// Find returns the ban recorded for username, or nil if there is none.
func (s *Store) Find(ctx context.Context, username string) (*Ban, error) {
	var ban Ban
	err := s.db.WithContext(ctx).Where("username = ?", core.Fold(username)).First(&ban).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &ban, nil
}

// Ban records a ban on username. Banning an already banned account keeps the
// original record.
func (s *Store) Ban(ctx context.Context, username, bannedBy string) error {
	ban := Ban{Username: core.Fold(username)}
	return s.db.WithContext(ctx).
		Where(Ban{Username: ban.Username}).
		Attrs(Ban{DisplayName: username, BannedBy: bannedBy}).
		FirstOrCreate(&ban).Error
}

// Unban lifts the ban on username, reporting whether there was one.
func (s *Store) Unban(ctx context.Context, username string) (bool, error) {
	result := s.db.WithContext(ctx).Where("username = ?", core.Fold(username)).Delete(&Ban{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// List returns every ban, oldest first.
func (s *Store) List(ctx context.Context) ([]Ban, error) {
	var bans []Ban
	if err := s.db.WithContext(ctx).Order("created_at, id").Find(&bans).Error; err != nil {
		return nil, err
	}
	return bans, nil
}

func (s *Store) Close() error {
	database, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("error while getting current connection: %w", err)
	}
	if err := database.Close(); err != nil {
		return fmt.Errorf("error while closing database connection: %w", err)
	}
	return nil
}
