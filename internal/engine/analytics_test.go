package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScorePartitionConcreteCase(t *testing.T) {
	groups := []Group{
		{GroupSpec: GroupSpec{Key: "g1", Name: "Robotics"}, Members: []string{"s1"}},
		{GroupSpec: GroupSpec{Key: "g2", Name: "Drama"}, Members: []string{"s2"}},
	}
	prefs := []Preference{
		{StudentID: "s1", RankedGroups: []string{"g1", "g2"}},
		{StudentID: "s2", RankedGroups: []string{"g1", "g2"}},
	}

	score := ScorePartition(groups, prefs, []string{"s1", "s2"})

	assert.InDelta(t, 50.0, score.TopChoicePct, 1e-9)
	assert.InDelta(t, 100.0, score.Top2Pct, 1e-9)
	assert.InDelta(t, 1.5, score.AverageRank, 1e-9)
}

func TestScorePartitionNoPreferencesYieldsNaNAverage(t *testing.T) {
	groups := []Group{
		{GroupSpec: GroupSpec{Key: "g1", Name: "A"}, Members: []string{"s1", "s2"}},
	}

	score := ScorePartition(groups, nil, []string{"s1", "s2"})

	assert.Zero(t, score.TopChoicePct)
	assert.Zero(t, score.Top2Pct)
	assert.True(t, math.IsNaN(score.AverageRank), "no resolved ranks means no average, not zero")
}

func TestScorePartitionUnrankedAssignmentInDenominatorOnly(t *testing.T) {
	groups := []Group{
		{GroupSpec: GroupSpec{Key: "g1", Name: "A"}, Members: []string{"s1"}},
		{GroupSpec: GroupSpec{Key: "g2", Name: "B"}, Members: []string{"s2"}},
	}
	prefs := []Preference{
		{StudentID: "s1", RankedGroups: []string{"g1"}},
		{StudentID: "s2", RankedGroups: []string{"g1"}},
	}

	score := ScorePartition(groups, prefs, []string{"s1", "s2"})

	assert.InDelta(t, 50.0, score.TopChoicePct, 1e-9, "s2 dilutes the percentage")
	assert.InDelta(t, 1.0, score.AverageRank, 1e-9, "but contributes nothing to the average")
}

func TestScorePartitionIgnoresStudentsOutsideSnapshot(t *testing.T) {
	groups := []Group{
		{GroupSpec: GroupSpec{Key: "g1", Name: "A"}, Members: []string{"s1", "late-joiner"}},
	}
	prefs := []Preference{
		{StudentID: "s1", RankedGroups: []string{"g1"}},
		{StudentID: "late-joiner", RankedGroups: []string{"g1"}},
	}

	score := ScorePartition(groups, prefs, []string{"s1"})

	assert.InDelta(t, 100.0, score.TopChoicePct, 1e-9)
	assert.InDelta(t, 1.0, score.AverageRank, 1e-9)
}

func TestScorePartitionMatchesWishesByGroupName(t *testing.T) {
	groups := []Group{
		{GroupSpec: GroupSpec{Key: "g1", Name: "Robotics"}, Members: []string{"s1"}},
	}
	prefs := []Preference{
		{StudentID: "s1", RankedGroups: []string{"ROBOTICS"}},
	}

	score := ScorePartition(groups, prefs, []string{"s1"})
	assert.InDelta(t, 100.0, score.TopChoicePct, 1e-9)
}

func TestRankFor(t *testing.T) {
	group := Group{GroupSpec: GroupSpec{Key: "g2", Name: "Drama"}}

	assert.Equal(t, 2, RankFor([]string{"g1", "g2"}, group))
	assert.Equal(t, 1, RankFor([]string{"drama"}, group))
	assert.Zero(t, RankFor([]string{"g1", "g3"}, group))
}

func TestRankForCollapsesDuplicateWishes(t *testing.T) {
	group := Group{GroupSpec: GroupSpec{Key: "g2", Name: "Drama"}}

	assert.Equal(t, 2, RankFor([]string{"g1", "g1", "g2"}, group))
	assert.Equal(t, 2, RankFor([]string{"g1", "G1", "drama"}, group))
	assert.Equal(t, 1, RankFor([]string{"g2", "g2"}, group))
}
