package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/sma-grouping-api/internal/models"
)

// ErrActivePartitionExists is returned by CreateIfAbsent when the activity
// already has a non-archived partition. The insert is conditional, so two
// concurrent generation requests cannot both succeed.
var ErrActivePartitionExists = errors.New("activity already has a non-archived partition")

// PartitionRepository persists partitions and their groups.
type PartitionRepository struct {
	db *sqlx.DB
}

// NewPartitionRepository constructs the repository.
func NewPartitionRepository(db *sqlx.DB) *PartitionRepository {
	return &PartitionRepository{db: db}
}

func (r *PartitionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateIfAbsent inserts a partition only when the activity has no
// non-archived partition, enforcing the single-active rule atomically at the
// store. Groups are written in the same call; run it inside a transaction.
func (r *PartitionRepository) CreateIfAbsent(ctx context.Context, exec sqlx.ExtContext, partition *models.Partition, groups []models.PartitionGroup) error {
	if partition == nil {
		return fmt.Errorf("partition payload is nil")
	}
	if partition.ActivityID == "" {
		return fmt.Errorf("activity_id is required")
	}
	if partition.ID == "" {
		partition.ID = uuid.NewString()
	}
	if partition.Status == "" {
		partition.Status = models.PartitionStatusDraft
	}
	if len(partition.Config) == 0 {
		partition.Config = types.JSONText(`{}`)
	}
	now := time.Now().UTC()
	if partition.CreatedAt.IsZero() {
		partition.CreatedAt = now
	}
	partition.UpdatedAt = now

	target := r.exec(exec)

	const insertQuery = `
INSERT INTO partitions (id, activity_id, status, snapshot, config, created_at, updated_at)
SELECT $1, $2, $3, $4, $5, $6, $7
WHERE NOT EXISTS (
	SELECT 1 FROM partitions WHERE activity_id = $2 AND status <> 'ARCHIVED'
)`
	result, err := target.ExecContext(ctx, insertQuery,
		partition.ID, partition.ActivityID, partition.Status,
		partition.Snapshot, partition.Config, partition.CreatedAt, partition.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert partition: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("partition rows affected: %w", err)
	}
	if affected == 0 {
		return ErrActivePartitionExists
	}

	const groupQuery = `
INSERT INTO partition_groups (id, partition_id, group_key, name, capacity, members, position)
VALUES (:id, :partition_id, :group_key, :name, :capacity, :members, :position)`
	for i := range groups {
		if groups[i].ID == "" {
			groups[i].ID = uuid.NewString()
		}
		groups[i].PartitionID = partition.ID
		if _, err := sqlx.NamedExecContext(ctx, target, groupQuery, groups[i]); err != nil {
			return fmt.Errorf("insert partition group %s: %w", groups[i].GroupKey, err)
		}
	}
	return nil
}

// FindActiveByActivity returns the single non-archived partition for an
// activity with its groups, or sql.ErrNoRows when none exists.
func (r *PartitionRepository) FindActiveByActivity(ctx context.Context, activityID string) (*models.Partition, error) {
	const query = `
SELECT id, activity_id, status, snapshot, config, created_at, updated_at
FROM partitions WHERE activity_id = $1 AND status <> 'ARCHIVED'`
	var partition models.Partition
	if err := r.db.GetContext(ctx, &partition, query, activityID); err != nil {
		return nil, err
	}
	groups, err := r.listGroups(ctx, partition.ID)
	if err != nil {
		return nil, err
	}
	partition.Groups = groups
	return &partition, nil
}

func (r *PartitionRepository) listGroups(ctx context.Context, partitionID string) ([]models.PartitionGroup, error) {
	const query = `
SELECT id, partition_id, group_key, name, capacity, members, position
FROM partition_groups WHERE partition_id = $1 ORDER BY position ASC`
	var groups []models.PartitionGroup
	if err := r.db.SelectContext(ctx, &groups, query, partitionID); err != nil {
		return nil, fmt.Errorf("list partition groups: %w", err)
	}
	return groups, nil
}

// Delete removes a partition and its groups. Callers gate this to drafts.
func (r *PartitionRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	target := r.exec(exec)
	if _, err := target.ExecContext(ctx, `DELETE FROM partition_groups WHERE partition_id = $1`, id); err != nil {
		return fmt.Errorf("delete partition groups: %w", err)
	}
	result, err := target.ExecContext(ctx, `DELETE FROM partitions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete partition: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("partition rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateStatus moves a partition to a new lifecycle status.
func (r *PartitionRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.PartitionStatus) error {
	target := r.exec(exec)
	result, err := target.ExecContext(ctx,
		`UPDATE partitions SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update partition status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("partition status rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
