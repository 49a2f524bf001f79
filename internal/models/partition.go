package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
)

// PartitionStatus represents lifecycle phases for generated partitions.
type PartitionStatus string

const (
	PartitionStatusDraft     PartitionStatus = "DRAFT"
	PartitionStatusPublished PartitionStatus = "PUBLISHED"
	PartitionStatusArchived  PartitionStatus = "ARCHIVED"
)

// Partition is one concrete assignment of every roster student to exactly one
// group, with the configuration that produced it frozen for reproducibility.
// Snapshot holds the roster ids that were partitioned; the union of all group
// member lists must equal it exactly.
type Partition struct {
	ID         string          `db:"id" json:"id"`
	ActivityID string          `db:"activity_id" json:"activity_id"`
	Status     PartitionStatus `db:"status" json:"status"`
	Snapshot   pq.StringArray  `db:"snapshot" json:"snapshot"`
	Config     types.JSONText  `db:"config" json:"config"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`

	Groups []PartitionGroup `db:"-" json:"groups,omitempty"`
}

// PartitionGroup is one named group inside a stored partition. Capacity nil
// means unlimited.
type PartitionGroup struct {
	ID          string         `db:"id" json:"id"`
	PartitionID string         `db:"partition_id" json:"partition_id"`
	GroupKey    string         `db:"group_key" json:"group_key"`
	Name        string         `db:"name" json:"name"`
	Capacity    *int           `db:"capacity" json:"capacity,omitempty"`
	Members     pq.StringArray `db:"members" json:"members"`
	Position    int            `db:"position" json:"position"`
}
