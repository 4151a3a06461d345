package store

import (
	"context"
	"errors"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jeanpaul/secexpert/internal/apperr"
)

// SeedPatterns inserts or refreshes patterns by name. Learned fields (score,
// match count) are left alone on existing rows.
func (s *Store) SeedPatterns(ctx context.Context, patterns []AnalysisPattern) error {
	if len(patterns) == 0 {
		return nil
	}
	now := s.now()
	rows := make([]AnalysisPattern, 0, len(patterns))
	for _, p := range patterns {
		p.ID = 0
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			return apperr.Storage("seed patterns", errors.New("pattern name is required"))
		}
		keywords := make(datatypes.JSONSlice[string], 0, len(p.Keywords))
		for _, kw := range p.Keywords {
			keywords = append(keywords, strings.ToLower(strings.TrimSpace(kw)))
		}
		p.Keywords = keywords
		p.CreatedAt = now
		p.UpdatedAt = now
		rows = append(rows, p)
	}

	err := s.write(ctx, func(ctx context.Context) error {
		for i := range rows {
			rows[i].ID = 0
		}
		return s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"keywords", "common_risks", "recommended_solutions", "updated_at"}),
		}).Create(&rows).Error
	})
	if err != nil {
		return apperr.Storage("seed patterns", err)
	}
	return nil
}

// ListPatterns returns every pattern, best scored first.
func (s *Store) ListPatterns(ctx context.Context) ([]AnalysisPattern, error) {
	var out []AnalysisPattern
	if err := s.db.WithContext(ctx).Order("score DESC, name ASC").Find(&out).Error; err != nil {
		return nil, apperr.Storage("list patterns", err)
	}
	return out, nil
}

// ReinforcePattern adds delta to a pattern's score and records a match.
func (s *Store) ReinforcePattern(ctx context.Context, name string, delta float64) (*AnalysisPattern, error) {
	now := s.now()
	var out AnalysisPattern
	err := s.write(ctx, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&AnalysisPattern{}).
				Where("name = ?", name).
				Updates(map[string]any{
					"score":         gorm.Expr("score + ?", delta),
					"times_matched": gorm.Expr("times_matched + 1"),
					"last_matched":  now,
					"updated_at":    now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrNotFound
			}
			return tx.Where("name = ?", name).Take(&out).Error
		})
	})
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperr.Storage("reinforce pattern", err)
	}
	return &out, nil
}
