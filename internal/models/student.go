package models

import "time"

// Student represents a learner registered in the institution. Reference data:
// created on roster import, never mutated by the partition engine.
type Student struct {
	ID         string    `db:"id" json:"id"`
	NIS        string    `db:"nis" json:"nis"`
	FirstName  string    `db:"first_name" json:"first_name"`
	LastName   string    `db:"last_name" json:"last_name"`
	GradeLabel *string   `db:"grade_label" json:"grade_label,omitempty"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// RosterEntry is a student's membership in an activity roster. Position
// defines the roster order used as the deterministic tie-break baseline.
type RosterEntry struct {
	ActivityID string `db:"activity_id" json:"activity_id"`
	StudentID  string `db:"student_id" json:"student_id"`
	Position   int    `db:"position" json:"position"`
}

// RosterStudent joins a roster entry with student display data.
type RosterStudent struct {
	StudentID  string  `db:"student_id" json:"student_id"`
	FirstName  string  `db:"first_name" json:"first_name"`
	LastName   string  `db:"last_name" json:"last_name"`
	GradeLabel *string `db:"grade_label" json:"grade_label,omitempty"`
	Position   int     `db:"position" json:"position"`
}
