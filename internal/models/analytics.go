package models

import "time"

// SatisfactionScore is the derived satisfaction summary for a partition.
// AverageRank is nil when no snapshot student has a ranked preference; that
// means "not applicable", never zero.
type SatisfactionScore struct {
	TopChoicePct float64  `json:"percentAssignedTopChoice"`
	Top2Pct      float64  `json:"percentAssignedTop2"`
	AverageRank  *float64 `json:"averagePreferenceRankAssigned"`
}

// SystemMetrics is a lightweight instrumentation snapshot for ops endpoints.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"avg_request_duration_ms"`
	GenerationsTotal         uint64    `json:"generations_total"`
	AverageGenerationMs      float64   `json:"avg_generation_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
