package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-grouping-api/internal/models"
)

// PlacementRepository persists the immutable per-student placement records
// written at publish time.
type PlacementRepository struct {
	db *sqlx.DB
}

// NewPlacementRepository constructs the repository.
func NewPlacementRepository(db *sqlx.DB) *PlacementRepository {
	return &PlacementRepository{db: db}
}

func (r *PlacementRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// BulkCreate inserts placement rows. Run inside the publish transaction so a
// partition never reaches PUBLISHED without its placement snapshot.
func (r *PlacementRepository) BulkCreate(ctx context.Context, exec sqlx.ExtContext, placements []models.Placement) error {
	if len(placements) == 0 {
		return nil
	}
	target := r.exec(exec)

	const query = `
INSERT INTO placements (id, partition_id, activity_id, student_id, group_key, group_name, rank, published_at)
VALUES (:id, :partition_id, :activity_id, :student_id, :group_key, :group_name, :rank, :published_at)`
	for i := range placements {
		if placements[i].ID == "" {
			placements[i].ID = uuid.NewString()
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, placements[i]); err != nil {
			return fmt.Errorf("insert placement for student %s: %w", placements[i].StudentID, err)
		}
	}
	return nil
}

// ListByActivity returns the placement history for an activity, newest
// publish first.
func (r *PlacementRepository) ListByActivity(ctx context.Context, activityID string) ([]models.Placement, error) {
	const query = `
SELECT id, partition_id, activity_id, student_id, group_key, group_name, rank, published_at
FROM placements WHERE activity_id = $1
ORDER BY published_at DESC, student_id ASC`
	var placements []models.Placement
	if err := r.db.SelectContext(ctx, &placements, query, activityID); err != nil {
		return nil, fmt.Errorf("list placements: %w", err)
	}
	return placements, nil
}
