package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidateInput() Input {
	return Input{
		Roster: fixtureRoster(18),
		Groups: []GroupSpec{
			{Key: "g1", Name: "A", Capacity: 6},
			{Key: "g2", Name: "B", Capacity: 6},
			{Key: "g3", Name: "C", Capacity: 6},
		},
		Preferences: []Preference{
			{StudentID: "s01", RankedGroups: []string{"g1"}},
			{StudentID: "s02", RankedGroups: []string{"g2", "g3"}},
			{StudentID: "s03", AvoidStudents: []string{"s04"}},
		},
	}
}

func TestGenerateCandidatesProducesIndependentSet(t *testing.T) {
	candidates, err := GenerateCandidates(candidateInput(), Config{Seed: 42}, 4)
	require.NoError(t, err)
	require.Len(t, candidates, 4)

	ids := make(map[string]struct{})
	seeds := make(map[int64]struct{})
	for i, c := range candidates {
		ids[c.ID] = struct{}{}
		seeds[c.Seed] = struct{}{}
		assert.Equal(t, Variants[i%len(Variants)], c.Variant)
		assert.Len(t, membership(c.Partition.Groups), 18)
		assert.False(t, c.GeneratedAt.IsZero())
	}
	assert.Len(t, ids, 4, "candidate ids are unique")
	assert.Len(t, seeds, 4, "each run derives its own seed")
}

func TestGenerateCandidatesAreReproducible(t *testing.T) {
	in := candidateInput()
	candidates, err := GenerateCandidates(in, Config{Seed: 99}, 3)
	require.NoError(t, err)

	for _, c := range candidates {
		replay, err := Generate(in, Config{Seed: c.Seed, Variant: c.Variant})
		require.NoError(t, err)
		assert.Equal(t, c.Partition.Groups, replay.Groups)
	}
}

func TestGenerateCandidatesClampsCount(t *testing.T) {
	candidates, err := GenerateCandidates(candidateInput(), Config{Seed: 1}, 99)
	require.NoError(t, err)
	assert.Len(t, candidates, MaxCandidateCount)

	candidates, err = GenerateCandidates(candidateInput(), Config{Seed: 1}, 0)
	require.NoError(t, err)
	assert.Len(t, candidates, DefaultCandidateCount)
}

func TestGenerateCandidatesLeadsWithRequestedVariant(t *testing.T) {
	candidates, err := GenerateCandidates(candidateInput(), Config{Seed: 5, Variant: VariantRoundRobin}, 4)
	require.NoError(t, err)

	assert.Equal(t, VariantRoundRobin, candidates[0].Variant)
	assert.Equal(t, VariantPreferenceFirst, candidates[1].Variant)
	assert.Equal(t, VariantBalanced, candidates[2].Variant)
	assert.Equal(t, VariantRandomShuffle, candidates[3].Variant)
}

func TestGenerateCandidatesFailsWholeSetOnBadInput(t *testing.T) {
	_, err := GenerateCandidates(Input{}, Config{GroupCount: 2}, 4)
	assert.ErrorIs(t, err, ErrEmptyRoster)
}
