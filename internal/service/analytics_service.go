package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-grouping-api/internal/dto"
	"github.com/noah-isme/sma-grouping-api/internal/engine"
	"github.com/noah-isme/sma-grouping-api/internal/models"
	appErrors "github.com/noah-isme/sma-grouping-api/pkg/errors"
)

// AnalyticsService computes satisfaction scores for stored partitions and for
// ad-hoc partition shapes submitted by clients mid-edit.
type AnalyticsService struct {
	partitions partitionStore
	prefs      preferenceReader
	cache      *CacheService
	validator  *validator.Validate
	logger     *zap.Logger
	cacheTTL   time.Duration
}

// NewAnalyticsService wires scoring dependencies. cacheTTL zero disables the
// score cache.
func NewAnalyticsService(
	partitions partitionStore,
	prefs preferenceReader,
	cache *CacheService,
	validate *validator.Validate,
	logger *zap.Logger,
	cacheTTL time.Duration,
) *AnalyticsService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{
		partitions: partitions,
		prefs:      prefs,
		cache:      cache,
		validator:  validate,
		logger:     logger,
		cacheTTL:   cacheTTL,
	}
}

// ScoreActivity scores the activity's current partition. Results are cached
// keyed by partition id and update time, so edits naturally invalidate.
func (s *AnalyticsService) ScoreActivity(ctx context.Context, activityID string) (*models.SatisfactionScore, error) {
	if activityID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "activity id is required")
	}
	partition, err := s.partitions.FindActiveByActivity(ctx, activityID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no active partition for this activity")
	}

	key := scoreCacheKey(activityID, partition)
	if s.cache.Enabled() && s.cacheTTL > 0 {
		var cached models.SatisfactionScore
		if found, err := s.cache.Get(ctx, key, &cached); err == nil && found {
			return &cached, nil
		}
	}

	records, err := s.prefs.ListByActivity(ctx, activityID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load preferences")
	}

	score := engine.ScorePartition(modelGroupsToEngine(partition.Groups), preferencesToEngine(records), partition.Snapshot)
	sat := toSatisfactionScore(score)

	if s.cache.Enabled() && s.cacheTTL > 0 {
		if err := s.cache.Set(ctx, key, sat, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache score", zap.String("activity_id", activityID), zap.Error(err))
		}
	}
	return &sat, nil
}

// ScoreAdhoc scores an arbitrary partition shape without touching storage.
// Clients call it repeatedly while dragging students between groups.
func (s *AnalyticsService) ScoreAdhoc(ctx context.Context, req dto.ScorePartitionRequest) (*models.SatisfactionScore, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid score payload")
	}

	groups := make([]engine.Group, len(req.Groups))
	for i, g := range req.Groups {
		key := g.Key
		if key == "" {
			key = fmt.Sprintf("group-%d", i+1)
		}
		groups[i] = engine.Group{
			GroupSpec: engine.GroupSpec{Key: key, Name: g.Name},
			Members:   g.Members,
		}
	}
	prefs := make([]engine.Preference, len(req.Preferences))
	for i, p := range req.Preferences {
		prefs[i] = engine.Preference{
			StudentID:     p.StudentID,
			RankedGroups:  p.RankedGroups,
			AvoidStudents: p.AvoidStudents,
			AvoidGroups:   p.AvoidGroups,
		}
	}

	score := engine.ScorePartition(groups, prefs, req.Snapshot)
	sat := toSatisfactionScore(score)
	return &sat, nil
}

func scoreCacheKey(activityID string, partition *models.Partition) string {
	return fmt.Sprintf("score:%s:%s:%d", activityID, partition.ID, partition.UpdatedAt.Unix())
}
