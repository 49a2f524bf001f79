package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureRoster(n int) []string {
	roster := make([]string, n)
	for i := range roster {
		roster[i] = fmt.Sprintf("s%02d", i+1)
	}
	return roster
}

func membership(groups []Group) map[string]string {
	placed := make(map[string]string)
	for _, g := range groups {
		for _, id := range g.Members {
			placed[id] = g.Key
		}
	}
	return placed
}

func TestGenerateEveryStudentPlacedExactlyOnce(t *testing.T) {
	roster := fixtureRoster(20)
	in := Input{
		Roster: roster,
		Groups: []GroupSpec{
			{Key: "g1", Name: "Robotics", Capacity: 7},
			{Key: "g2", Name: "Drama", Capacity: 7},
			{Key: "g3", Name: "Chess", Capacity: 7},
		},
		Preferences: []Preference{
			{StudentID: "s01", RankedGroups: []string{"g1", "g2"}},
			{StudentID: "s02", RankedGroups: []string{"g1"}, AvoidStudents: []string{"s03"}},
			{StudentID: "s03", RankedGroups: []string{"g2", "g3"}},
		},
	}

	partition, err := Generate(in, Config{Seed: 7})
	require.NoError(t, err)

	placed := membership(partition.Groups)
	assert.Len(t, placed, len(roster))
	for _, id := range roster {
		assert.Contains(t, placed, id)
	}
	assert.ElementsMatch(t, roster, partition.Snapshot)
}

func TestGenerateRespectsCapacitiesWhenFeasible(t *testing.T) {
	in := Input{
		Roster: fixtureRoster(12),
		Groups: []GroupSpec{
			{Key: "g1", Name: "A", Capacity: 4},
			{Key: "g2", Name: "B", Capacity: 4},
			{Key: "g3", Name: "C", Capacity: 4},
		},
	}

	partition, err := Generate(in, Config{Seed: 11})
	require.NoError(t, err)

	for _, g := range partition.Groups {
		assert.LessOrEqual(t, len(g.Members), g.Capacity, "group %s over capacity", g.Key)
	}
}

func TestGenerateDeterministicForSameSeed(t *testing.T) {
	in := Input{
		Roster: fixtureRoster(30),
		Groups: []GroupSpec{
			{Key: "g1", Name: "A", Capacity: 10},
			{Key: "g2", Name: "B", Capacity: 10},
			{Key: "g3", Name: "C", Capacity: 10},
		},
		Preferences: []Preference{
			{StudentID: "s01", RankedGroups: []string{"g2"}},
			{StudentID: "s05", RankedGroups: []string{"g3", "g1"}, AvoidStudents: []string{"s06"}},
			{StudentID: "s06", RankedGroups: []string{"g3"}},
		},
	}
	cfg := Config{Seed: 42, Variant: VariantRandomShuffle}

	first, err := Generate(in, cfg)
	require.NoError(t, err)
	second, err := Generate(in, cfg)
	require.NoError(t, err)

	assert.Equal(t, first.Groups, second.Groups)
}

func TestGenerateRecordsResolvedSeedForReplay(t *testing.T) {
	in := Input{
		Roster: fixtureRoster(15),
		Groups: []GroupSpec{
			{Key: "g1", Name: "A", Capacity: 8},
			{Key: "g2", Name: "B", Capacity: 8},
		},
	}

	first, err := Generate(in, Config{Seed: 0})
	require.NoError(t, err)
	require.NotZero(t, first.Config.Seed, "auto-picked seed must be recorded")

	replay, err := Generate(in, first.Config)
	require.NoError(t, err)
	assert.Equal(t, first.Groups, replay.Groups)
}

func TestGenerateHonoursUncontendedTopChoices(t *testing.T) {
	in := Input{
		Roster: []string{"s1", "s2"},
		Groups: []GroupSpec{
			{Key: "g1", Name: "A", Capacity: 2},
			{Key: "g2", Name: "B", Capacity: 2},
		},
		Preferences: []Preference{
			{StudentID: "s1", RankedGroups: []string{"g1"}},
			{StudentID: "s2", RankedGroups: []string{"g2"}},
		},
	}

	partition, err := Generate(in, Config{Seed: 3})
	require.NoError(t, err)

	placed := membership(partition.Groups)
	assert.Equal(t, "g1", placed["s1"])
	assert.Equal(t, "g2", placed["s2"])
}

func TestGenerateSeparatesMutualAvoidance(t *testing.T) {
	in := Input{
		Roster: []string{"s1", "s2"},
		Groups: []GroupSpec{
			{Key: "g1", Name: "A"},
			{Key: "g2", Name: "B"},
		},
		Preferences: []Preference{
			{StudentID: "s1", AvoidStudents: []string{"s2"}},
		},
	}

	partition, err := Generate(in, Config{Seed: 5})
	require.NoError(t, err)

	placed := membership(partition.Groups)
	assert.NotEqual(t, placed["s1"], placed["s2"], "avoidance is symmetric even when only one side declared it")
}

func TestGenerateDerivesGroupsFromCount(t *testing.T) {
	in := Input{Roster: fixtureRoster(10)}

	partition, err := Generate(in, Config{GroupCount: 3, Seed: 1})
	require.NoError(t, err)

	require.Len(t, partition.Groups, 3)
	for _, g := range partition.Groups {
		assert.Equal(t, 4, g.Capacity, "derived capacity is the ceiling of the even split")
		assert.LessOrEqual(t, len(g.Members), 4)
	}
}

func TestGenerateDerivesGroupsFromTargetSize(t *testing.T) {
	in := Input{Roster: fixtureRoster(11)}

	partition, err := Generate(in, Config{TargetGroupSize: 4, Seed: 1})
	require.NoError(t, err)
	assert.Len(t, partition.Groups, 3)
}

func TestGenerateEmptyRoster(t *testing.T) {
	_, err := Generate(Input{}, Config{GroupCount: 2})
	assert.ErrorIs(t, err, ErrEmptyRoster)
}

func TestGenerateNoGroupsResolvable(t *testing.T) {
	_, err := Generate(Input{Roster: []string{"s1"}}, Config{})
	assert.ErrorIs(t, err, ErrNoGroups)
}

func TestGenerateDuplicateGroupKey(t *testing.T) {
	in := Input{
		Roster: []string{"s1"},
		Groups: []GroupSpec{
			{Key: "g1", Name: "A"},
			{Key: "g1", Name: "B"},
		},
	}
	_, err := Generate(in, Config{})
	assert.ErrorIs(t, err, ErrNoGroups)
}

func TestGenerateInfeasibleCapacity(t *testing.T) {
	in := Input{
		Roster: fixtureRoster(10),
		Groups: []GroupSpec{
			{Key: "g1", Name: "A", Capacity: 4},
			{Key: "g2", Name: "B", Capacity: 4},
		},
	}

	_, err := Generate(in, Config{})
	var infeasible *InfeasibleError
	require.ErrorAs(t, err, &infeasible)
	assert.Equal(t, 10, infeasible.Required)
	assert.Equal(t, 8, infeasible.Capacity)
}

func TestGenerateUncappedGroupAbsorbsOverflow(t *testing.T) {
	in := Input{
		Roster: fixtureRoster(10),
		Groups: []GroupSpec{
			{Key: "g1", Name: "A", Capacity: 2},
			{Key: "g2", Name: "B"},
		},
	}

	partition, err := Generate(in, Config{Seed: 9})
	require.NoError(t, err)
	assert.Len(t, membership(partition.Groups), 10)
}

func TestGeneratePrefersOpenGroupOverCapacityBreach(t *testing.T) {
	// s4 avoids the only group with room, so only the terminal fallback can
	// place it. Capacity is hard: it must land in g2, not overflow g1.
	in := Input{
		Roster: []string{"s1", "s2", "s3", "s4"},
		Groups: []GroupSpec{
			{Key: "g1", Name: "A", Capacity: 1},
			{Key: "g2", Name: "B", Capacity: 5},
		},
		Preferences: []Preference{
			{StudentID: "s1", RankedGroups: []string{"g1"}},
			{StudentID: "s2", RankedGroups: []string{"g2"}},
			{StudentID: "s3", RankedGroups: []string{"g2"}},
			{StudentID: "s4", AvoidGroups: []string{"g2"}},
		},
	}

	partition, err := Generate(in, Config{Seed: 1})
	require.NoError(t, err)
	assert.Len(t, membership(partition.Groups), 4)
	for _, g := range partition.Groups {
		assert.LessOrEqual(t, len(g.Members), g.Capacity, "group %s over capacity: %v", g.Key, g.Members)
	}
}

func TestGenerateUnknownVariantFallsBackToBalanced(t *testing.T) {
	in := Input{Roster: fixtureRoster(6)}

	partition, err := Generate(in, Config{GroupCount: 2, Seed: 1, Variant: "simulated-annealing"})
	require.NoError(t, err)
	assert.Equal(t, VariantBalanced, partition.Config.Variant)
}

func TestGenerateAllVariantsSatisfyInvariant(t *testing.T) {
	roster := fixtureRoster(25)
	in := Input{
		Roster: roster,
		Groups: []GroupSpec{
			{Key: "g1", Name: "A", Capacity: 9},
			{Key: "g2", Name: "B", Capacity: 9},
			{Key: "g3", Name: "C", Capacity: 9},
		},
		Preferences: []Preference{
			{StudentID: "s01", RankedGroups: []string{"g3"}},
			{StudentID: "s10", RankedGroups: []string{"g1", "g2"}, AvoidStudents: []string{"s11"}},
			{StudentID: "s20", AvoidGroups: []string{"g2"}},
		},
	}

	for _, variant := range Variants {
		variant := variant
		t.Run(variant, func(t *testing.T) {
			partition, err := Generate(in, Config{Seed: 17, Variant: variant})
			require.NoError(t, err)
			assert.Len(t, membership(partition.Groups), len(roster))
			assert.Equal(t, variant, partition.Config.Variant)
		})
	}
}

func TestImproveNeverAcceptsWorseningSwaps(t *testing.T) {
	in := Input{
		Roster: fixtureRoster(16),
		Groups: []GroupSpec{
			{Key: "g1", Name: "A", Capacity: 8},
			{Key: "g2", Name: "B", Capacity: 8},
		},
		Preferences: []Preference{
			{StudentID: "s01", RankedGroups: []string{"g1"}},
			{StudentID: "s02", RankedGroups: []string{"g1"}},
			{StudentID: "s03", RankedGroups: []string{"g2"}},
			{StudentID: "s04", RankedGroups: []string{"g2"}},
		},
	}

	light, err := Generate(in, Config{Seed: 23, SwapFactor: 1})
	require.NoError(t, err)
	heavy, err := Generate(in, Config{Seed: 23, SwapFactor: 200})
	require.NoError(t, err)

	lightScore := ScorePartition(light.Groups, in.Preferences, light.Snapshot)
	heavyScore := ScorePartition(heavy.Groups, in.Preferences, heavy.Snapshot)
	assert.GreaterOrEqual(t, heavyScore.TopChoicePct, lightScore.TopChoicePct,
		"a larger swap budget must never make satisfaction worse")
}
