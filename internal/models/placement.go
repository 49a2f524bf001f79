package models

import "time"

// Placement is an immutable per-student record written when a partition is
// published. Rank is the student's preference rank captured at publish time,
// nil when the student had no resolvable rank; later roster or preference
// edits never change it.
type Placement struct {
	ID          string    `db:"id" json:"id"`
	PartitionID string    `db:"partition_id" json:"partition_id"`
	ActivityID  string    `db:"activity_id" json:"activity_id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	GroupKey    string    `db:"group_key" json:"group_key"`
	GroupName   string    `db:"group_name" json:"group_name"`
	Rank        *int      `db:"rank" json:"rank,omitempty"`
	PublishedAt time.Time `db:"published_at" json:"published_at"`
}
