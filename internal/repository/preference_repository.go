package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-grouping-api/internal/models"
)

// PreferenceRepository reads stored preference records. Records may be sparse
// or stale; the constraint model tolerates both.
type PreferenceRepository struct {
	db *sqlx.DB
}

// NewPreferenceRepository constructs the repository.
func NewPreferenceRepository(db *sqlx.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// ListByActivity returns all preference records for an activity, oldest first
// per student so the newest row wins downstream.
func (r *PreferenceRepository) ListByActivity(ctx context.Context, activityID string) ([]models.PreferenceRecord, error) {
	const query = `
SELECT id, activity_id, student_id, ranked_groups, avoid_students, avoid_groups, created_at, updated_at
FROM preference_records
WHERE activity_id = $1
ORDER BY student_id ASC, updated_at ASC`
	var records []models.PreferenceRecord
	if err := r.db.SelectContext(ctx, &records, query, activityID); err != nil {
		return nil, fmt.Errorf("list preference records: %w", err)
	}
	return records, nil
}
