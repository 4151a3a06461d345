package store

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm/clause"

	"github.com/jeanpaul/secexpert/internal/apperr"
)

// SetPreference stores a session preference; the latest value wins.
func (s *Store) SetPreference(ctx context.Context, sessionID, key, value string) error {
	key = strings.TrimSpace(key)
	if sessionID == "" || key == "" {
		return apperr.Storage("set preference", errors.New("session id and key are required"))
	}
	now := s.now()
	row := UserContext{SessionID: sessionID, PreferenceKey: key, PreferenceValue: value, CreatedAt: now, UpdatedAt: now}
	err := s.write(ctx, func(ctx context.Context) error {
		row.ID = 0
		return s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}, {Name: "preference_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"preference_value", "updated_at"}),
		}).Create(&row).Error
	})
	if err != nil {
		return apperr.Storage("set preference", err)
	}
	return nil
}

func (s *Store) Preferences(ctx context.Context, sessionID string) ([]UserContext, error) {
	var out []UserContext
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("preference_key ASC").
		Find(&out).Error
	if err != nil {
		return nil, apperr.Storage("list preferences", err)
	}
	return out, nil
}
