package models

import "time"

// Activity is the unit a roster is partitioned for: a class project week, an
// excursion, a lab rotation. Each activity owns at most one non-archived
// partition at a time.
type Activity struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	TermID      *string   `db:"term_id" json:"term_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
