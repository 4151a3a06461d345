package store

import (
	"context"
	"strings"

	"github.com/jeanpaul/secexpert/internal/apperr"
)

const newestFirst = "created_at DESC, id DESC"

// InsertConversation creates a new row and returns its id. Existing rows are
// never overwritten.
func (s *Store) InsertConversation(ctx context.Context, c *Conversation) (uint, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	c.ID = 0
	err := s.write(ctx, func(ctx context.Context) error {
		c.ID = 0
		return s.db.WithContext(ctx).Create(c).Error
	})
	if err != nil {
		return 0, apperr.Storage("insert conversation", err)
	}
	return c.ID, nil
}

// FindByFingerprint returns conversations with exactly this fingerprint,
// newest first.
func (s *Store) FindByFingerprint(ctx context.Context, fingerprint string, limit int) ([]Conversation, error) {
	var out []Conversation
	err := s.db.WithContext(ctx).
		Where("tech_stack_fingerprint = ?", fingerprint).
		Order(newestFirst).
		Limit(clampLimit(limit, 10)).
		Find(&out).Error
	if err != nil {
		return nil, apperr.Storage("find by fingerprint", err)
	}
	return out, nil
}

// FindByKeywordLike returns conversations whose stack text contains keyword,
// case-insensitively, newest first.
func (s *Store) FindByKeywordLike(ctx context.Context, keyword string, limit int) ([]Conversation, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, nil
	}
	var out []Conversation
	err := s.db.WithContext(ctx).
		Where(`LOWER(tech_stack_text) LIKE ? ESCAPE '\'`, "%"+escapeLike(strings.ToLower(keyword))+"%").
		Order(newestFirst).
		Limit(clampLimit(limit, 10)).
		Find(&out).Error
	if err != nil {
		return nil, apperr.Storage("find by keyword", err)
	}
	return out, nil
}

// ListSessionHistory returns the session's conversations, newest first.
func (s *Store) ListSessionHistory(ctx context.Context, sessionID string, limit int) ([]Conversation, error) {
	var out []Conversation
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order(newestFirst).
		Limit(clampLimit(limit, 10)).
		Find(&out).Error
	if err != nil {
		return nil, apperr.Storage("list session history", err)
	}
	return out, nil
}

func (s *Store) CountConversations(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&Conversation{}).Count(&n).Error; err != nil {
		return 0, apperr.Storage("count conversations", err)
	}
	return n, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
