package service

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-grouping-api/internal/dto"
	"github.com/noah-isme/sma-grouping-api/internal/engine"
	"github.com/noah-isme/sma-grouping-api/internal/models"
	"github.com/noah-isme/sma-grouping-api/internal/repository"
	appErrors "github.com/noah-isme/sma-grouping-api/pkg/errors"
)

func TestPartitionServiceGenerateSuccess(t *testing.T) {
	txProvider, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	svc, stores := newPartitionServiceFixture(t, partitionFixtureConfig{tx: txProvider, rosterSize: 12})

	resp, err := svc.Generate(context.Background(), "act-1", dto.GeneratePartitionRequest{GroupCount: 3, Seed: 7})
	require.NoError(t, err)

	assert.Equal(t, models.PartitionStatusDraft, resp.Partition.Status)
	assert.Len(t, resp.Partition.Groups, 3)
	assert.Len(t, resp.Partition.Snapshot, 12)
	require.NotNil(t, resp.Score)
	require.Len(t, stores.partitions.items, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPartitionServiceGenerateConflictsWithActivePartition(t *testing.T) {
	svc, _ := newPartitionServiceFixture(t, partitionFixtureConfig{
		rosterSize: 6,
		existing:   &models.Partition{ID: "p-1", ActivityID: "act-1", Status: models.PartitionStatusDraft},
	})

	_, err := svc.Generate(context.Background(), "act-1", dto.GeneratePartitionRequest{GroupCount: 2})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestPartitionServiceGenerateInfeasible(t *testing.T) {
	svc, _ := newPartitionServiceFixture(t, partitionFixtureConfig{rosterSize: 10})

	_, err := svc.Generate(context.Background(), "act-1", dto.GeneratePartitionRequest{
		Groups: []dto.GroupSpecPayload{
			{Key: "g1", Name: "A", Capacity: intPtr(3)},
			{Key: "g2", Name: "B", Capacity: intPtr(3)},
		},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInfeasible.Code, appErrors.FromError(err).Code)
}

func TestPartitionServiceGenerateEmptyRoster(t *testing.T) {
	svc, _ := newPartitionServiceFixture(t, partitionFixtureConfig{rosterSize: 0})

	_, err := svc.Generate(context.Background(), "act-1", dto.GeneratePartitionRequest{GroupCount: 2})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestPartitionServiceResetReplacesDraft(t *testing.T) {
	txProvider, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	svc, stores := newPartitionServiceFixture(t, partitionFixtureConfig{
		tx:         txProvider,
		rosterSize: 8,
		existing:   &models.Partition{ID: "p-old", ActivityID: "act-1", Status: models.PartitionStatusDraft},
	})

	resp, err := svc.Reset(context.Background(), "act-1", dto.GeneratePartitionRequest{GroupCount: 2, Seed: 3})
	require.NoError(t, err)

	assert.NotEqual(t, "p-old", resp.Partition.ID)
	require.Len(t, stores.partitions.items, 1)
	assert.True(t, stores.partitions.deleted["p-old"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPartitionServiceResetRefusesPublished(t *testing.T) {
	svc, _ := newPartitionServiceFixture(t, partitionFixtureConfig{
		rosterSize: 8,
		existing:   &models.Partition{ID: "p-1", ActivityID: "act-1", Status: models.PartitionStatusPublished},
	})

	_, err := svc.Reset(context.Background(), "act-1", dto.GeneratePartitionRequest{GroupCount: 2})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrFinalized.Code, appErrors.FromError(err).Code)
}

func TestPartitionServicePublishSnapshotsRanks(t *testing.T) {
	txProvider, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	existing := &models.Partition{
		ID:         "p-1",
		ActivityID: "act-1",
		Status:     models.PartitionStatusDraft,
		Snapshot:   []string{"s01", "s02"},
		Groups: []models.PartitionGroup{
			{GroupKey: "g1", Name: "Robotics", Members: []string{"s01"}},
			{GroupKey: "g2", Name: "Drama", Members: []string{"s02"}},
		},
	}
	svc, stores := newPartitionServiceFixture(t, partitionFixtureConfig{
		tx:         txProvider,
		rosterSize: 2,
		existing:   existing,
		preferences: []models.PreferenceRecord{
			{StudentID: "s01", RankedGroups: []string{"g2", "g1"}},
		},
	})

	partition, err := svc.Publish(context.Background(), "act-1")
	require.NoError(t, err)
	assert.Equal(t, models.PartitionStatusPublished, partition.Status)

	placements := stores.placements.created
	require.Len(t, placements, 2)
	byStudent := make(map[string]models.Placement, len(placements))
	for _, p := range placements {
		byStudent[p.StudentID] = p
	}
	require.NotNil(t, byStudent["s01"].Rank)
	assert.Equal(t, 2, *byStudent["s01"].Rank)
	assert.Nil(t, byStudent["s02"].Rank, "students without preferences publish with no rank")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPartitionServicePublishRefusesNonDraft(t *testing.T) {
	svc, _ := newPartitionServiceFixture(t, partitionFixtureConfig{
		rosterSize: 4,
		existing:   &models.Partition{ID: "p-1", ActivityID: "act-1", Status: models.PartitionStatusPublished},
	})

	_, err := svc.Publish(context.Background(), "act-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrFinalized.Code, appErrors.FromError(err).Code)
}

func TestPartitionServiceArchivePublished(t *testing.T) {
	existing := &models.Partition{ID: "p-1", ActivityID: "act-1", Status: models.PartitionStatusPublished}
	svc, stores := newPartitionServiceFixture(t, partitionFixtureConfig{rosterSize: 4, existing: existing})

	require.NoError(t, svc.Archive(context.Background(), "act-1"))
	assert.Equal(t, models.PartitionStatusArchived, stores.partitions.items["p-1"].Status)
}

func TestPartitionServiceArchiveRefusesDraft(t *testing.T) {
	svc, _ := newPartitionServiceFixture(t, partitionFixtureConfig{
		rosterSize: 4,
		existing:   &models.Partition{ID: "p-1", ActivityID: "act-1", Status: models.PartitionStatusDraft},
	})

	err := svc.Archive(context.Background(), "act-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestPartitionServiceCurrentScoresPartition(t *testing.T) {
	existing := &models.Partition{
		ID:         "p-1",
		ActivityID: "act-1",
		Status:     models.PartitionStatusDraft,
		Snapshot:   []string{"s01", "s02"},
		Groups: []models.PartitionGroup{
			{GroupKey: "g1", Name: "A", Members: []string{"s01", "s02"}},
		},
	}
	svc, _ := newPartitionServiceFixture(t, partitionFixtureConfig{
		rosterSize: 2,
		existing:   existing,
		preferences: []models.PreferenceRecord{
			{StudentID: "s01", RankedGroups: []string{"g1"}},
			{StudentID: "s02", RankedGroups: []string{"g1"}},
		},
	})

	resp, err := svc.Current(context.Background(), "act-1")
	require.NoError(t, err)
	require.NotNil(t, resp.Score)
	assert.InDelta(t, 100.0, resp.Score.TopChoicePct, 1e-9)
}

func TestPartitionServiceCurrentNotFound(t *testing.T) {
	svc, _ := newPartitionServiceFixture(t, partitionFixtureConfig{rosterSize: 4})

	_, err := svc.Current(context.Background(), "act-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestToSatisfactionScoreNaNAverage(t *testing.T) {
	sat := toSatisfactionScore(engine.Score{AverageRank: math.NaN()})
	assert.Nil(t, sat.AverageRank)

	sat = toSatisfactionScore(engine.Score{TopChoicePct: 50, AverageRank: 1.5})
	require.NotNil(t, sat.AverageRank)
	assert.Equal(t, 1.5, *sat.AverageRank)
}

// --- Fixtures ---

type partitionFixtureConfig struct {
	tx          txProvider
	rosterSize  int
	existing    *models.Partition
	preferences []models.PreferenceRecord
}

type fixtureStores struct {
	partitions *partitionStoreStub
	placements *placementStoreStub
}

func newPartitionServiceFixture(t *testing.T, cfg partitionFixtureConfig) (*PartitionService, fixtureStores) {
	t.Helper()

	partitions := newPartitionStoreStub()
	if cfg.existing != nil {
		partitions.items[cfg.existing.ID] = cfg.existing
	}
	placements := &placementStoreStub{}
	tx := cfg.tx
	if tx == nil {
		tx = noopTxProvider{}
	}

	svc := NewPartitionService(
		activityReaderStub{},
		rosterReaderStub{size: cfg.rosterSize},
		preferenceReaderStub{items: cfg.preferences},
		partitions,
		placements,
		tx,
		NewCacheService(nil, nil, 0, nil, false),
		nil,
		nil,
		nil,
		PartitionServiceConfig{SwapFactor: 5},
	)
	return svc, fixtureStores{partitions: partitions, placements: placements}
}

type activityReaderStub struct{}

func (activityReaderStub) FindByID(ctx context.Context, id string) (*models.Activity, error) {
	return &models.Activity{ID: id}, nil
}

type rosterReaderStub struct {
	size int
}

func (s rosterReaderStub) ListRoster(ctx context.Context, activityID string) ([]models.RosterStudent, error) {
	roster := make([]models.RosterStudent, s.size)
	for i := range roster {
		roster[i] = models.RosterStudent{StudentID: fmt.Sprintf("s%02d", i+1), Position: i}
	}
	return roster, nil
}

type preferenceReaderStub struct {
	items []models.PreferenceRecord
}

func (s preferenceReaderStub) ListByActivity(ctx context.Context, activityID string) ([]models.PreferenceRecord, error) {
	return s.items, nil
}

type partitionStoreStub struct {
	items   map[string]*models.Partition
	deleted map[string]bool
	seq     int
}

func newPartitionStoreStub() *partitionStoreStub {
	return &partitionStoreStub{
		items:   make(map[string]*models.Partition),
		deleted: make(map[string]bool),
	}
}

func (s *partitionStoreStub) CreateIfAbsent(ctx context.Context, exec sqlx.ExtContext, partition *models.Partition, groups []models.PartitionGroup) error {
	for _, item := range s.items {
		if item.ActivityID == partition.ActivityID && item.Status != models.PartitionStatusArchived {
			return repository.ErrActivePartitionExists
		}
	}
	s.seq++
	partition.ID = fmt.Sprintf("part-%d", s.seq)
	stored := *partition
	stored.Groups = groups
	s.items[partition.ID] = &stored
	return nil
}

func (s *partitionStoreStub) FindActiveByActivity(ctx context.Context, activityID string) (*models.Partition, error) {
	for _, item := range s.items {
		if item.ActivityID == activityID && item.Status != models.PartitionStatusArchived {
			return item, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *partitionStoreStub) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if _, ok := s.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.items, id)
	s.deleted[id] = true
	return nil
}

func (s *partitionStoreStub) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.PartitionStatus) error {
	item, ok := s.items[id]
	if !ok {
		return sql.ErrNoRows
	}
	item.Status = status
	return nil
}

type placementStoreStub struct {
	created []models.Placement
}

func (s *placementStoreStub) BulkCreate(ctx context.Context, exec sqlx.ExtContext, placements []models.Placement) error {
	s.created = append(s.created, placements...)
	return nil
}

func (s *placementStoreStub) ListByActivity(ctx context.Context, activityID string) ([]models.Placement, error) {
	return s.created, nil
}

type noopTxProvider struct{}

func (noopTxProvider) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider unavailable")
}

type txProviderMock struct {
	db *sqlx.DB
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

func intPtr(v int) *int {
	return &v
}
