package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-grouping-api/internal/dto"
	"github.com/noah-isme/sma-grouping-api/internal/models"
	appErrors "github.com/noah-isme/sma-grouping-api/pkg/errors"
)

func newAnalyticsFixture(existing *models.Partition, prefs []models.PreferenceRecord) *AnalyticsService {
	partitions := newPartitionStoreStub()
	if existing != nil {
		partitions.items[existing.ID] = existing
	}
	return NewAnalyticsService(partitions, preferenceReaderStub{items: prefs},
		NewCacheService(nil, nil, 0, nil, false), nil, nil, 0)
}

func TestAnalyticsServiceScoreActivity(t *testing.T) {
	existing := &models.Partition{
		ID:         "p-1",
		ActivityID: "act-1",
		Status:     models.PartitionStatusDraft,
		Snapshot:   []string{"s1", "s2"},
		Groups: []models.PartitionGroup{
			{GroupKey: "g1", Name: "A", Members: []string{"s1"}},
			{GroupKey: "g2", Name: "B", Members: []string{"s2"}},
		},
	}
	svc := newAnalyticsFixture(existing, []models.PreferenceRecord{
		{StudentID: "s1", RankedGroups: []string{"g1", "g2"}},
		{StudentID: "s2", RankedGroups: []string{"g1", "g2"}},
	})

	score, err := svc.ScoreActivity(context.Background(), "act-1")
	require.NoError(t, err)

	assert.InDelta(t, 50.0, score.TopChoicePct, 1e-9)
	assert.InDelta(t, 100.0, score.Top2Pct, 1e-9)
	require.NotNil(t, score.AverageRank)
	assert.InDelta(t, 1.5, *score.AverageRank, 1e-9)
}

func TestAnalyticsServiceScoreActivityNoActivePartition(t *testing.T) {
	svc := newAnalyticsFixture(nil, nil)

	_, err := svc.ScoreActivity(context.Background(), "act-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAnalyticsServiceScoreActivityNoPreferences(t *testing.T) {
	existing := &models.Partition{
		ID:         "p-1",
		ActivityID: "act-1",
		Status:     models.PartitionStatusDraft,
		Snapshot:   []string{"s1"},
		Groups: []models.PartitionGroup{
			{GroupKey: "g1", Name: "A", Members: []string{"s1"}},
		},
	}
	svc := newAnalyticsFixture(existing, nil)

	score, err := svc.ScoreActivity(context.Background(), "act-1")
	require.NoError(t, err)

	assert.Zero(t, score.TopChoicePct)
	assert.Nil(t, score.AverageRank, "no ranked preferences means no average")
}

func TestAnalyticsServiceScoreAdhoc(t *testing.T) {
	svc := newAnalyticsFixture(nil, nil)

	score, err := svc.ScoreAdhoc(context.Background(), dto.ScorePartitionRequest{
		Groups: []dto.ScoredGroupPayload{
			{Key: "g1", Name: "A", Members: []string{"s1", "s2"}},
		},
		Preferences: []dto.PreferencePayload{
			{StudentID: "s1", RankedGroups: []string{"g1"}},
		},
		Snapshot: []string{"s1", "s2"},
	})
	require.NoError(t, err)

	assert.InDelta(t, 100.0, score.TopChoicePct, 1e-9)
	require.NotNil(t, score.AverageRank)
	assert.InDelta(t, 1.0, *score.AverageRank, 1e-9)
}

func TestAnalyticsServiceScoreAdhocValidation(t *testing.T) {
	svc := newAnalyticsFixture(nil, nil)

	_, err := svc.ScoreAdhoc(context.Background(), dto.ScorePartitionRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
