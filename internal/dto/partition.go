package dto

import (
	"time"

	"github.com/noah-isme/sma-grouping-api/internal/models"
)

// GroupSpecPayload names one target group. Capacity nil or zero means
// unlimited.
type GroupSpecPayload struct {
	Key      string `json:"key" validate:"omitempty,max=64"`
	Name     string `json:"name" validate:"required,max=128"`
	Capacity *int   `json:"capacity" validate:"omitempty,min=1"`
}

// GeneratePartitionRequest instructs the engine to build a draft partition
// for an activity. Either explicit groups or a resolvable groupCount /
// targetGroupSize must be supplied.
type GeneratePartitionRequest struct {
	Groups          []GroupSpecPayload `json:"groups" validate:"omitempty,max=64,dive"`
	GroupCount      int                `json:"groupCount" validate:"omitempty,min=1,max=64"`
	TargetGroupSize int                `json:"targetGroupSize" validate:"omitempty,min=1,max=256"`
	Seed            int64              `json:"seed"`
	Algorithm       string             `json:"algorithm" validate:"omitempty,oneof=balanced random-shuffle round-robin preference-first"`
}

// GenerateCandidatesRequest asks for several independent partitions for
// side-by-side comparison. Count zero falls back to the configured default.
type GenerateCandidatesRequest struct {
	GeneratePartitionRequest
	Count int `json:"count" validate:"omitempty,min=1,max=8"`
}

// ScoredGroupPayload is one group with members, as submitted for ad-hoc
// scoring of in-progress edits.
type ScoredGroupPayload struct {
	Key     string   `json:"key"`
	Name    string   `json:"name" validate:"required"`
	Members []string `json:"members"`
}

// PreferencePayload mirrors a stored preference record for ad-hoc scoring.
type PreferencePayload struct {
	StudentID     string   `json:"studentId" validate:"required"`
	RankedGroups  []string `json:"rankedGroups"`
	AvoidStudents []string `json:"avoidStudents"`
	AvoidGroups   []string `json:"avoidGroups"`
}

// ScorePartitionRequest scores an arbitrary partition shape against raw
// preferences. It never requires a persisted partition.
type ScorePartitionRequest struct {
	Groups      []ScoredGroupPayload `json:"groups" validate:"required,min=1,dive"`
	Preferences []PreferencePayload  `json:"preferences" validate:"dive"`
	Snapshot    []string             `json:"snapshot" validate:"required,min=1"`
}

// PartitionResponse returns a stored partition with its groups and score.
type PartitionResponse struct {
	Partition models.Partition          `json:"partition"`
	Score     *models.SatisfactionScore `json:"score,omitempty"`
}

// CandidateResponse is one generated alternative. Variant and seed reproduce
// the candidate deterministically.
type CandidateResponse struct {
	ID          string                   `json:"id"`
	Groups      []CandidateGroupPayload  `json:"groups"`
	Snapshot    []string                 `json:"snapshot"`
	Score       models.SatisfactionScore `json:"score"`
	Variant     string                   `json:"variant"`
	Seed        int64                    `json:"seed"`
	GeneratedAt time.Time                `json:"generatedAt"`
}

// CandidateGroupPayload is one group inside a candidate.
type CandidateGroupPayload struct {
	Key      string   `json:"key"`
	Name     string   `json:"name"`
	Capacity *int     `json:"capacity,omitempty"`
	Members  []string `json:"members"`
}

// CandidateSetResponse wraps a cached comparison set.
type CandidateSetResponse struct {
	ActivityID  string              `json:"activityId"`
	Candidates  []CandidateResponse `json:"candidates"`
	GeneratedAt time.Time           `json:"generatedAt"`
}
