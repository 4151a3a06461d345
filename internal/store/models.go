package store

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// ParseRiskLevel accepts any casing of low, medium or high.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return RiskLow, nil
	case "medium":
		return RiskMedium, nil
	case "high":
		return RiskHigh, nil
	}
	return "", fmt.Errorf("unknown risk level %q", s)
}

// Conversation is one completed analysis. Rows are created once and never
// updated.
type Conversation struct {
	ID                   uint                        `gorm:"primaryKey" json:"id"`
	SessionID            string                      `gorm:"index;not null" json:"sessionId"`
	TechStackText        string                      `gorm:"not null" json:"techStack"`
	TechStackFingerprint string                      `gorm:"index;size:64;not null" json:"fingerprint"`
	AnalysisText         string                      `json:"analysis"`
	Risks                datatypes.JSONSlice[string] `json:"risks"`
	Recommendations      datatypes.JSONSlice[string] `json:"recommendations"`
	InterviewTranscript  string                      `json:"interviewTranscript,omitempty"`
	CreatedAt            time.Time                   `gorm:"index" json:"createdAt"`
}

// SecurityInsight aggregates how often a vulnerability class was reported
// for a technology. Frequency never decreases.
type SecurityInsight struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Technology        string    `gorm:"uniqueIndex:idx_insight_key;index;not null" json:"technology"`
	VulnerabilityType string    `gorm:"uniqueIndex:idx_insight_key;not null" json:"vulnerabilityType"`
	RiskLevel         RiskLevel `gorm:"uniqueIndex:idx_insight_key;index;size:16;not null" json:"riskLevel"`
	Recommendation    string    `json:"recommendation"`
	Frequency         int       `gorm:"index;not null;default:1" json:"frequency"`
	LastSeen          time.Time `json:"lastSeen"`
	CreatedAt         time.Time `json:"createdAt"`
}

// AnalysisPattern is curated seed knowledge about a class of stacks.
type AnalysisPattern struct {
	ID                   uint                        `gorm:"primaryKey" json:"id"`
	Name                 string                      `gorm:"uniqueIndex;not null" json:"name"`
	Keywords             datatypes.JSONSlice[string] `json:"keywords"`
	CommonRisks          datatypes.JSONSlice[string] `json:"commonRisks"`
	RecommendedSolutions datatypes.JSONSlice[string] `json:"recommendedSolutions"`
	Score                float64                     `gorm:"not null;default:0" json:"score"`
	TimesMatched         int                         `gorm:"not null;default:0" json:"timesMatched"`
	LastMatched          *time.Time                  `json:"lastMatched,omitempty"`
	CreatedAt            time.Time                   `json:"createdAt"`
	UpdatedAt            time.Time                   `json:"updatedAt"`
}

// UserContext is a per-session preference. Last write wins.
type UserContext struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	SessionID       string    `gorm:"uniqueIndex:idx_session_pref;not null" json:"sessionId"`
	PreferenceKey   string    `gorm:"uniqueIndex:idx_session_pref;not null" json:"key"`
	PreferenceValue string    `json:"value"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func allModels() []any {
	return []any{&Conversation{}, &SecurityInsight{}, &AnalysisPattern{}, &UserContext{}}
}
