package models

import (
	"time"

	"github.com/lib/pq"
)

// PreferenceRecord stores one student's ranked group wishes and avoidance
// lists for an activity. At most one record per student per activity; absence
// means "no preference". Entries may reference groups by key or display name
// and may be stale relative to the current roster.
type PreferenceRecord struct {
	ID            string         `db:"id" json:"id"`
	ActivityID    string         `db:"activity_id" json:"activity_id"`
	StudentID     string         `db:"student_id" json:"student_id"`
	RankedGroups  pq.StringArray `db:"ranked_groups" json:"ranked_groups"`
	AvoidStudents pq.StringArray `db:"avoid_students" json:"avoid_students"`
	AvoidGroups   pq.StringArray `db:"avoid_groups" json:"avoid_groups"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}
