package store

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jeanpaul/secexpert/internal/apperr"
)

// UpsertInsight inserts the (technology, vulnerabilityType, level) triple
// with frequency 1, or increments the existing row's frequency and refreshes
// its recommendation and last-seen time. It is a single statement.
func (s *Store) UpsertInsight(ctx context.Context, technology, vulnerabilityType string, level RiskLevel, recommendation string) error {
	technology = strings.ToLower(strings.TrimSpace(technology))
	vulnerabilityType = strings.TrimSpace(vulnerabilityType)
	if technology == "" || vulnerabilityType == "" {
		return apperr.Storage("upsert insight", errors.New("technology and vulnerability type are required"))
	}
	if level == "" {
		level = RiskMedium
	}

	now := s.now()
	row := SecurityInsight{
		Technology:        technology,
		VulnerabilityType: vulnerabilityType,
		RiskLevel:         level,
		Recommendation:    recommendation,
		Frequency:         1,
		LastSeen:          now,
		CreatedAt:         now,
	}

	err := s.write(ctx, func(ctx context.Context) error {
		row.ID = 0
		return s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "technology"}, {Name: "vulnerability_type"}, {Name: "risk_level"}},
			DoUpdates: clause.Assignments(map[string]any{
				"frequency":      gorm.Expr("frequency + 1"),
				"recommendation": recommendation,
				"last_seen":      now,
			}),
		}).Create(&row).Error
	})
	if err != nil {
		return apperr.Storage("upsert insight", err)
	}
	return nil
}

// ListInsights ranks insights by frequency then recency. An empty filter
// lists every technology.
func (s *Store) ListInsights(ctx context.Context, technology string, limit int) ([]SecurityInsight, error) {
	q := s.db.WithContext(ctx).Model(&SecurityInsight{})
	if t := strings.ToLower(strings.TrimSpace(technology)); t != "" {
		q = q.Where("technology = ?", t)
	}
	var out []SecurityInsight
	err := q.Order("frequency DESC, last_seen DESC, id ASC").
		Limit(clampLimit(limit, 20)).
		Find(&out).Error
	if err != nil {
		return nil, apperr.Storage("list insights", err)
	}
	return out, nil
}

func (s *Store) GetInsight(ctx context.Context, technology, vulnerabilityType string, level RiskLevel) (*SecurityInsight, error) {
	var out SecurityInsight
	err := s.db.WithContext(ctx).
		Where("technology = ? AND vulnerability_type = ? AND risk_level = ?",
			strings.ToLower(strings.TrimSpace(technology)), strings.TrimSpace(vulnerabilityType), level).
		Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperr.Storage("get insight", err)
	}
	return &out, nil
}
