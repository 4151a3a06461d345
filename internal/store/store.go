// Package store persists conversations, insights, patterns and session
// preferences in a single local sqlite file.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/jeanpaul/secexpert/internal/apperr"
	"github.com/jeanpaul/secexpert/internal/config"
	"github.com/jeanpaul/secexpert/internal/logger"
	"github.com/jeanpaul/secexpert/internal/retry"
)

var ErrNotFound = errors.New("record not found")

type Store struct {
	db     *gorm.DB
	log    *logger.Logger
	policy retry.Policy
	now    func() time.Time
}

type Stats struct {
	Conversations int64 `json:"conversations"`
	Insights      int64 `json:"insights"`
	Patterns      int64 `json:"patterns"`
	Preferences   int64 `json:"preferences"`
}

// Open opens (creating if needed) the store at cfg.Path and migrates the
// schema. Transient failures are retried per cfg.
func Open(ctx context.Context, cfg config.StoreConfig, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Path == "" {
		return nil, apperr.Configuration("open store", errors.New("store path is empty"))
	}
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, apperr.Storage("open store", err)
		}
	}

	s := &Store{
		log: log.With("component", "store"),
		policy: retry.Policy{
			MaxRetries: cfg.MaxRetries,
			BaseDelay:  time.Duration(cfg.RetryBaseDelayMS) * time.Millisecond,
			MaxDelay:   5 * time.Second,
		},
		now: func() time.Time { return time.Now().UTC() },
	}

	err := retry.Do(ctx, s.policy, func(ctx context.Context) error {
		db, err := gorm.Open(sqlite.Open(dsn(cfg)), &gorm.Config{
			Logger: gormLogger.Default.LogMode(gormLogger.Silent),
			NowFunc: func() time.Time {
				return time.Now().UTC()
			},
		})
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		// one connection serializes writers inside this process
		sqlDB.SetMaxOpenConns(1)

		if err := db.WithContext(ctx).AutoMigrate(allModels()...); err != nil {
			_ = sqlDB.Close()
			return err
		}
		s.db = db
		return nil
	})
	if err != nil {
		return nil, apperr.Storage("open store", err)
	}

	s.log.Debug("store opened", "path", cfg.Path)
	return s, nil
}

func dsn(cfg config.StoreConfig) string {
	busy := cfg.BusyTimeoutMS
	if busy <= 0 {
		busy = 5000
	}
	if cfg.Path == ":memory:" {
		return fmt.Sprintf("file::memory:?_busy_timeout=%d", busy)
	}
	return fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=FULL", cfg.Path, busy)
}

// DB exposes the underlying handle for maintenance and bulk loading.
func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return apperr.Storage("close store", err)
	}
	if err := sqlDB.Close(); err != nil {
		return apperr.Storage("close store", err)
	}
	return nil
}

// Reset wipes every table. It is the only operation that deletes rows.
func (s *Store) Reset(ctx context.Context) error {
	err := s.write(ctx, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			for _, m := range allModels() {
				if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return apperr.Storage("reset store", err)
	}
	s.log.Info("store reset")
	return nil
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	db := s.db.WithContext(ctx)
	if err := db.Model(&Conversation{}).Count(&st.Conversations).Error; err != nil {
		return st, apperr.Storage("stats", err)
	}
	if err := db.Model(&SecurityInsight{}).Count(&st.Insights).Error; err != nil {
		return st, apperr.Storage("stats", err)
	}
	if err := db.Model(&AnalysisPattern{}).Count(&st.Patterns).Error; err != nil {
		return st, apperr.Storage("stats", err)
	}
	if err := db.Model(&UserContext{}).Count(&st.Preferences).Error; err != nil {
		return st, apperr.Storage("stats", err)
	}
	return st, nil
}

// write runs fn with the store's retry policy.
func (s *Store) write(ctx context.Context, fn func(ctx context.Context) error) error {
	attempt := 0
	return retry.Do(ctx, s.policy, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err != nil && retry.IsTransient(err) {
			s.log.Warn("transient store error", "attempt", attempt, "error", err)
		}
		return err
	})
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return limit
}
