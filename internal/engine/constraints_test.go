package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildConstraintsResolvesKeysAndNames(t *testing.T) {
	groups := []GroupSpec{
		{Key: "g1", Name: "Robotics"},
		{Key: "g2", Name: "Drama"},
	}
	prefs := []Preference{
		{StudentID: "s1", RankedGroups: []string{"g1", "DRAMA", "robotics"}},
	}

	set := BuildConstraints([]string{"s1"}, groups, prefs)

	c, ok := set.Lookup("s1")
	require.True(t, ok)
	assert.Equal(t, []string{"g1", "g2"}, c.Wishes, "name matches resolve to keys and duplicates collapse in rank order")
}

func TestBuildConstraintsDropsStaleReferences(t *testing.T) {
	groups := []GroupSpec{{Key: "g1", Name: "Robotics"}}
	prefs := []Preference{
		{StudentID: "s1", RankedGroups: []string{"gone"}, AvoidStudents: []string{"s1", "left-school", "s2"}, AvoidGroups: []string{"gone", "g1"}},
		{StudentID: "not-enrolled", RankedGroups: []string{"g1"}},
	}

	set := BuildConstraints([]string{"s1", "s2"}, groups, prefs)

	assert.Equal(t, 1, set.Len())
	c, ok := set.Lookup("s1")
	require.True(t, ok)
	assert.Empty(t, c.Wishes)
	assert.Equal(t, map[string]struct{}{"s2": {}}, c.AvoidStudents, "self and off-roster avoids are dropped")
	assert.Equal(t, map[string]struct{}{"g1": {}}, c.AvoidGroups)

	_, ok = set.Lookup("not-enrolled")
	assert.False(t, ok)
}

func TestBuildConstraintsLastRecordWins(t *testing.T) {
	groups := []GroupSpec{{Key: "g1", Name: "A"}, {Key: "g2", Name: "B"}}
	prefs := []Preference{
		{StudentID: "s1", RankedGroups: []string{"g1"}},
		{StudentID: "s1", RankedGroups: []string{"g2"}},
	}

	set := BuildConstraints([]string{"s1"}, groups, prefs)

	c, ok := set.Lookup("s1")
	require.True(t, ok)
	assert.Equal(t, []string{"g2"}, c.Wishes)
}

func TestConstraintSetWeight(t *testing.T) {
	groups := []GroupSpec{{Key: "g1", Name: "A"}, {Key: "g2", Name: "B"}}
	prefs := []Preference{
		{StudentID: "s1", RankedGroups: []string{"g1", "g2"}, AvoidStudents: []string{"s2"}, AvoidGroups: []string{"g2"}},
	}

	set := BuildConstraints([]string{"s1", "s2"}, groups, prefs)

	assert.Equal(t, 4, set.Weight("s1"))
	assert.Equal(t, 0, set.Weight("s2"), "unconstrained students weigh zero")
}
