package engine

import (
	"strings"

	"github.com/samber/lo"
)

// Preference is one student's raw wish record as supplied by the preference
// store. RankedGroups may reference groups by key or by display name and may
// contain stale entries from earlier roster revisions.
type Preference struct {
	StudentID     string
	RankedGroups  []string
	AvoidStudents []string
	AvoidGroups   []string
}

// Constraint is the resolved, fast-lookup form of a preference record. Wishes
// hold group keys in rank order, deduplicated. Avoid sets are filtered to the
// current roster and group set.
type Constraint struct {
	Wishes        []string
	AvoidStudents map[string]struct{}
	AvoidGroups   map[string]struct{}
}

// Weight measures how constrained a student is. Heavily constrained students
// are placed first by the greedy phase.
func (c Constraint) Weight() int {
	return len(c.Wishes) + len(c.AvoidStudents) + len(c.AvoidGroups)
}

// ConstraintSet maps student ids to resolved constraints. Students absent
// from the set are constraint-free.
type ConstraintSet struct {
	byStudent map[string]Constraint
}

// BuildConstraints normalises raw preference records against the roster and
// group set. References to unknown students or groups are dropped silently:
// they represent stale or cross-activity data, not caller mistakes. The
// result is a pure function of its inputs.
func BuildConstraints(roster []string, groups []GroupSpec, prefs []Preference) ConstraintSet {
	inRoster := make(map[string]struct{}, len(roster))
	for _, id := range roster {
		inRoster[id] = struct{}{}
	}
	resolve := groupResolver(groups)

	byStudent := make(map[string]Constraint, len(prefs))
	for _, pref := range prefs {
		if _, ok := inRoster[pref.StudentID]; !ok {
			continue
		}

		wishes := make([]string, 0, len(pref.RankedGroups))
		for _, raw := range pref.RankedGroups {
			if key, ok := resolve(raw); ok {
				wishes = append(wishes, key)
			}
		}
		wishes = lo.Uniq(wishes)

		avoidStudents := make(map[string]struct{})
		for _, id := range pref.AvoidStudents {
			if id == pref.StudentID {
				continue
			}
			if _, ok := inRoster[id]; ok {
				avoidStudents[id] = struct{}{}
			}
		}

		avoidGroups := make(map[string]struct{})
		for _, raw := range pref.AvoidGroups {
			if key, ok := resolve(raw); ok {
				avoidGroups[key] = struct{}{}
			}
		}

		// Last record wins when a student somehow has several.
		byStudent[pref.StudentID] = Constraint{
			Wishes:        wishes,
			AvoidStudents: avoidStudents,
			AvoidGroups:   avoidGroups,
		}
	}

	return ConstraintSet{byStudent: byStudent}
}

// Lookup returns the constraint for a student, if any.
func (s ConstraintSet) Lookup(studentID string) (Constraint, bool) {
	c, ok := s.byStudent[studentID]
	return c, ok
}

// Weight returns the constraint weight for a student, zero when unconstrained.
func (s ConstraintSet) Weight(studentID string) int {
	if c, ok := s.byStudent[studentID]; ok {
		return c.Weight()
	}
	return 0
}

// Len reports how many students carry at least one resolved constraint.
func (s ConstraintSet) Len() int {
	return len(s.byStudent)
}

// groupResolver matches a raw wish entry to a group key, by key first and
// falling back to a case-insensitive name match.
func groupResolver(groups []GroupSpec) func(string) (string, bool) {
	byKey := make(map[string]string, len(groups))
	byName := make(map[string]string, len(groups))
	for _, g := range groups {
		byKey[g.Key] = g.Key
		byName[strings.ToLower(g.Name)] = g.Key
	}
	return func(raw string) (string, bool) {
		if key, ok := byKey[raw]; ok {
			return key, true
		}
		key, ok := byName[strings.ToLower(raw)]
		return key, ok
	}
}
