package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-grouping-api/internal/models"
)

// StudentRepository reads student and roster data. The engine consumes the
// roster read-only; enrollment management lives elsewhere.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// ListRoster returns the ordered, duplicate-free roster for an activity.
// Roster position is the deterministic tie-break baseline for generation.
func (r *StudentRepository) ListRoster(ctx context.Context, activityID string) ([]models.RosterStudent, error) {
	const query = `
SELECT ar.student_id, s.first_name, s.last_name, s.grade_label, ar.position
FROM activity_rosters ar
JOIN students s ON s.id = ar.student_id
WHERE ar.activity_id = $1 AND s.active
ORDER BY ar.position ASC, ar.student_id ASC`
	var roster []models.RosterStudent
	if err := r.db.SelectContext(ctx, &roster, query, activityID); err != nil {
		return nil, fmt.Errorf("list activity roster: %w", err)
	}
	return roster, nil
}

// FindByID loads a single student.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, nis, first_name, last_name, grade_label, active, created_at, updated_at
FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}
