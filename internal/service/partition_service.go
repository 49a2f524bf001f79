package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-grouping-api/internal/dto"
	"github.com/noah-isme/sma-grouping-api/internal/engine"
	"github.com/noah-isme/sma-grouping-api/internal/models"
	"github.com/noah-isme/sma-grouping-api/internal/repository"
	appErrors "github.com/noah-isme/sma-grouping-api/pkg/errors"
)

type activityReader interface {
	FindByID(ctx context.Context, id string) (*models.Activity, error)
}

type rosterReader interface {
	ListRoster(ctx context.Context, activityID string) ([]models.RosterStudent, error)
}

type preferenceReader interface {
	ListByActivity(ctx context.Context, activityID string) ([]models.PreferenceRecord, error)
}

type partitionStore interface {
	CreateIfAbsent(ctx context.Context, exec sqlx.ExtContext, partition *models.Partition, groups []models.PartitionGroup) error
	FindActiveByActivity(ctx context.Context, activityID string) (*models.Partition, error)
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.PartitionStatus) error
}

type placementStore interface {
	BulkCreate(ctx context.Context, exec sqlx.ExtContext, placements []models.Placement) error
	ListByActivity(ctx context.Context, activityID string) ([]models.Placement, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// PartitionService is the scenario lifecycle boundary: it generates draft
// partitions, resets them, publishes them into immutable placements, and
// archives them. The single-non-archived-partition rule is enforced here
// with a per-activity lock backed by the store's conditional insert; the
// heuristic itself knows nothing about it.
type PartitionService struct {
	activities activityReader
	students   rosterReader
	prefs      preferenceReader
	partitions partitionStore
	placements placementStore
	tx         txProvider
	cache      *CacheService
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	swapFactor int
	locks      activityLocks
}

// PartitionServiceConfig tunes generation behaviour.
type PartitionServiceConfig struct {
	SwapFactor int
}

// NewPartitionService wires lifecycle dependencies.
func NewPartitionService(
	activities activityReader,
	students rosterReader,
	prefs preferenceReader,
	partitions partitionStore,
	placements placementStore,
	tx txProvider,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg PartitionServiceConfig,
) *PartitionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PartitionService{
		activities: activities,
		students:   students,
		prefs:      prefs,
		partitions: partitions,
		placements: placements,
		tx:         tx,
		cache:      cache,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		swapFactor: cfg.SwapFactor,
	}
}

// Generate builds and persists a new DRAFT partition for the activity. It
// fails when a non-archived partition already exists; callers reset or
// archive first.
func (s *PartitionService) Generate(ctx context.Context, activityID string, req dto.GeneratePartitionRequest) (*dto.PartitionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generate payload")
	}
	if err := s.ensureActivity(ctx, activityID); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(activityID)
	defer unlock()

	if _, err := s.partitions.FindActiveByActivity(ctx, activityID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "activity already has a non-archived partition; reset or archive it first")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing partition")
	}

	return s.generateAndPersist(ctx, activityID, req, "")
}

// Reset deletes the current DRAFT and regenerates in one transaction, so the
// activity ends up with exactly one draft whose snapshot matches the current
// roster no matter how many groups existed before.
func (s *PartitionService) Reset(ctx context.Context, activityID string, req dto.GeneratePartitionRequest) (*dto.PartitionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reset payload")
	}
	if err := s.ensureActivity(ctx, activityID); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(activityID)
	defer unlock()

	replaceID := ""
	existing, err := s.partitions.FindActiveByActivity(ctx, activityID)
	switch {
	case err == nil:
		if existing.Status != models.PartitionStatusDraft {
			return nil, appErrors.Clone(appErrors.ErrFinalized, "only draft partitions can be reset")
		}
		replaceID = existing.ID
	case errors.Is(err, sql.ErrNoRows):
		// no draft yet, reset degrades to a plain generate
	default:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing partition")
	}

	return s.generateAndPersist(ctx, activityID, req, replaceID)
}

func (s *PartitionService) generateAndPersist(ctx context.Context, activityID string, req dto.GeneratePartitionRequest, replaceID string) (*dto.PartitionResponse, error) {
	input, err := s.loadEngineInput(ctx, activityID, req.Groups)
	if err != nil {
		return nil, err
	}

	cfg := engine.Config{
		GroupCount:      req.GroupCount,
		TargetGroupSize: req.TargetGroupSize,
		Seed:            req.Seed,
		Variant:         req.Algorithm,
		SwapFactor:      s.swapFactor,
	}

	start := time.Now()
	partition, err := engine.Generate(input, cfg)
	if err != nil {
		s.metrics.ObserveGeneration(cfg.Variant, "error", time.Since(start))
		return nil, s.mapEngineError(err)
	}
	s.metrics.ObserveGeneration(partition.Config.Variant, "ok", time.Since(start))

	record, groups, err := partitionToModels(activityID, partition)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode partition config")
	}

	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if replaceID != "" {
		if err := s.partitions.Delete(ctx, tx, replaceID); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete previous draft")
		}
	}
	if err := s.partitions.CreateIfAbsent(ctx, tx, record, groups); err != nil {
		if errors.Is(err, repository.ErrActivePartitionExists) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "activity already has a non-archived partition")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist partition")
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit partition")
	}
	committed = true

	s.invalidateScores(ctx, activityID)

	record.Groups = groups
	score := engine.ScorePartition(partition.Groups, input.Preferences, partition.Snapshot)
	sat := toSatisfactionScore(score)
	s.logger.Info("partition generated",
		zap.String("activity_id", activityID),
		zap.String("partition_id", record.ID),
		zap.String("variant", partition.Config.Variant),
		zap.Int64("seed", partition.Config.Seed),
		zap.Float64("top_choice_pct", score.TopChoicePct),
	)
	return &dto.PartitionResponse{Partition: *record, Score: &sat}, nil
}

// AdoptCandidate persists a previously generated candidate as the activity
// draft, subject to the same single-active rule as Generate.
func (s *PartitionService) AdoptCandidate(ctx context.Context, activityID string, candidate engine.Candidate) (*dto.PartitionResponse, error) {
	if err := s.ensureActivity(ctx, activityID); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(activityID)
	defer unlock()

	record, groups, err := partitionToModels(activityID, &candidate.Partition)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode partition config")
	}

	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := s.partitions.CreateIfAbsent(ctx, tx, record, groups); err != nil {
		if errors.Is(err, repository.ErrActivePartitionExists) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "activity already has a non-archived partition; reset or archive it first")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist partition")
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit partition")
	}
	committed = true

	s.invalidateScores(ctx, activityID)

	record.Groups = groups
	sat := toSatisfactionScore(candidate.Score)
	return &dto.PartitionResponse{Partition: *record, Score: &sat}, nil
}

// Publish moves the activity draft to PUBLISHED and snapshots each student's
// preference rank into immutable placement rows inside one transaction.
// Publishing is one-way: later roster or preference edits cannot change the
// recorded ranks.
func (s *PartitionService) Publish(ctx context.Context, activityID string) (*models.Partition, error) {
	unlock := s.locks.lock(activityID)
	defer unlock()

	partition, err := s.findActive(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if partition.Status != models.PartitionStatusDraft {
		return nil, appErrors.Clone(appErrors.ErrFinalized, "only draft partitions can be published")
	}

	records, err := s.prefs.ListByActivity(ctx, activityID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load preferences")
	}
	placements := buildPlacements(partition, preferencesToEngine(records))

	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := s.placements.BulkCreate(ctx, tx, placements); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write placements")
	}
	if err := s.partitions.UpdateStatus(ctx, tx, partition.ID, models.PartitionStatusPublished); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update partition status")
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit publish")
	}
	committed = true

	s.invalidateScores(ctx, activityID)

	partition.Status = models.PartitionStatusPublished
	s.logger.Info("partition published",
		zap.String("activity_id", activityID),
		zap.String("partition_id", partition.ID),
		zap.Int("placements", len(placements)),
	)
	return partition, nil
}

// Archive retires a published partition, freeing the activity for a fresh
// generation. Drafts are removed via Reset instead.
func (s *PartitionService) Archive(ctx context.Context, activityID string) error {
	unlock := s.locks.lock(activityID)
	defer unlock()

	partition, err := s.findActive(ctx, activityID)
	if err != nil {
		return err
	}
	if partition.Status != models.PartitionStatusPublished {
		return appErrors.Clone(appErrors.ErrConflict, "only published partitions can be archived")
	}
	if err := s.partitions.UpdateStatus(ctx, nil, partition.ID, models.PartitionStatusArchived); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive partition")
	}
	s.invalidateScores(ctx, activityID)
	return nil
}

// Current returns the activity's non-archived partition with a fresh score.
func (s *PartitionService) Current(ctx context.Context, activityID string) (*dto.PartitionResponse, error) {
	partition, err := s.findActive(ctx, activityID)
	if err != nil {
		return nil, err
	}
	records, err := s.prefs.ListByActivity(ctx, activityID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load preferences")
	}
	score := engine.ScorePartition(modelGroupsToEngine(partition.Groups), preferencesToEngine(records), partition.Snapshot)
	sat := toSatisfactionScore(score)
	return &dto.PartitionResponse{Partition: *partition, Score: &sat}, nil
}

// Placements returns the published placement history for an activity.
func (s *PartitionService) Placements(ctx context.Context, activityID string) ([]models.Placement, error) {
	if activityID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "activity id is required")
	}
	placements, err := s.placements.ListByActivity(ctx, activityID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list placements")
	}
	return placements, nil
}

func (s *PartitionService) ensureActivity(ctx context.Context, activityID string) error {
	if activityID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "activity id is required")
	}
	if s.activities == nil {
		return nil
	}
	if _, err := s.activities.FindByID(ctx, activityID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "activity not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}
	return nil
}

func (s *PartitionService) findActive(ctx context.Context, activityID string) (*models.Partition, error) {
	partition, err := s.partitions.FindActiveByActivity(ctx, activityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no active partition for this activity")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load partition")
	}
	return partition, nil
}

func (s *PartitionService) loadEngineInput(ctx context.Context, activityID string, groups []dto.GroupSpecPayload) (engine.Input, error) {
	roster, err := s.students.ListRoster(ctx, activityID)
	if err != nil {
		return engine.Input{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	records, err := s.prefs.ListByActivity(ctx, activityID)
	if err != nil {
		return engine.Input{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load preferences")
	}

	ids := make([]string, len(roster))
	for i, entry := range roster {
		ids[i] = entry.StudentID
	}
	return engine.Input{
		Roster:      ids,
		Groups:      groupPayloadsToEngine(groups),
		Preferences: preferencesToEngine(records),
	}, nil
}

// mapEngineError translates engine sentinels into API errors. Invariant
// breaches are defects and are logged for alerting, distinct from ordinary
// infeasibility.
func (s *PartitionService) mapEngineError(err error) error {
	var infeasible *engine.InfeasibleError
	switch {
	case errors.Is(err, engine.ErrEmptyRoster):
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "activity roster is empty")
	case errors.Is(err, engine.ErrNoGroups):
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "groups, groupCount or targetGroupSize must resolve to at least one group")
	case errors.As(err, &infeasible):
		return appErrors.Wrap(err, appErrors.ErrInfeasible.Code, appErrors.ErrInfeasible.Status, infeasible.Error())
	case errors.Is(err, engine.ErrInvariant):
		s.logger.Error("partition invariant violated", zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "partition generation produced an invalid result")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "partition generation failed")
	}
}

func (s *PartitionService) invalidateScores(ctx context.Context, activityID string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Invalidate(ctx, "score:"+activityID+":*")
	_ = s.cache.Delete(ctx, candidateCacheKey(activityID))
}

// --- Per-activity serialization ---

// activityLocks serializes generation, reset and publish per activity so two
// concurrent requests cannot both pass the "no active partition" check. The
// store's conditional insert remains the hard backstop.
type activityLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *activityLocks) lock(activityID string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	lock, ok := l.locks[activityID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[activityID] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// --- Conversions ---

func groupPayloadsToEngine(payloads []dto.GroupSpecPayload) []engine.GroupSpec {
	if len(payloads) == 0 {
		return nil
	}
	specs := make([]engine.GroupSpec, len(payloads))
	for i, p := range payloads {
		key := p.Key
		if key == "" {
			key = fmt.Sprintf("group-%d", i+1)
		}
		capacity := 0
		if p.Capacity != nil {
			capacity = *p.Capacity
		}
		specs[i] = engine.GroupSpec{Key: key, Name: p.Name, Capacity: capacity}
	}
	return specs
}

func preferencesToEngine(records []models.PreferenceRecord) []engine.Preference {
	prefs := make([]engine.Preference, len(records))
	for i, rec := range records {
		prefs[i] = engine.Preference{
			StudentID:     rec.StudentID,
			RankedGroups:  rec.RankedGroups,
			AvoidStudents: rec.AvoidStudents,
			AvoidGroups:   rec.AvoidGroups,
		}
	}
	return prefs
}

func partitionToModels(activityID string, partition *engine.Partition) (*models.Partition, []models.PartitionGroup, error) {
	configJSON, err := json.Marshal(partition.Config)
	if err != nil {
		return nil, nil, err
	}
	record := &models.Partition{
		ActivityID: activityID,
		Status:     models.PartitionStatusDraft,
		Snapshot:   append([]string(nil), partition.Snapshot...),
		Config:     types.JSONText(configJSON),
	}
	groups := make([]models.PartitionGroup, len(partition.Groups))
	for i, g := range partition.Groups {
		var capacity *int
		if g.Capacity > 0 {
			c := g.Capacity
			capacity = &c
		}
		groups[i] = models.PartitionGroup{
			GroupKey: g.Key,
			Name:     g.Name,
			Capacity: capacity,
			Members:  append([]string(nil), g.Members...),
			Position: i,
		}
	}
	return record, groups, nil
}

func modelGroupsToEngine(groups []models.PartitionGroup) []engine.Group {
	result := make([]engine.Group, len(groups))
	for i, g := range groups {
		capacity := 0
		if g.Capacity != nil {
			capacity = *g.Capacity
		}
		result[i] = engine.Group{
			GroupSpec: engine.GroupSpec{Key: g.GroupKey, Name: g.Name, Capacity: capacity},
			Members:   append([]string(nil), g.Members...),
		}
	}
	return result
}

func buildPlacements(partition *models.Partition, prefs []engine.Preference) []models.Placement {
	prefByStudent := make(map[string]engine.Preference, len(prefs))
	for _, p := range prefs {
		prefByStudent[p.StudentID] = p
	}

	now := time.Now().UTC()
	placements := make([]models.Placement, 0, len(partition.Snapshot))
	for _, g := range partition.Groups {
		group := engine.Group{GroupSpec: engine.GroupSpec{Key: g.GroupKey, Name: g.Name}}
		for _, studentID := range g.Members {
			placement := models.Placement{
				PartitionID: partition.ID,
				ActivityID:  partition.ActivityID,
				StudentID:   studentID,
				GroupKey:    g.GroupKey,
				GroupName:   g.Name,
				PublishedAt: now,
			}
			if pref, ok := prefByStudent[studentID]; ok && len(pref.RankedGroups) > 0 {
				if rank := engine.RankFor(pref.RankedGroups, group); rank > 0 {
					placement.Rank = &rank
				}
			}
			placements = append(placements, placement)
		}
	}
	return placements
}

func toSatisfactionScore(score engine.Score) models.SatisfactionScore {
	sat := models.SatisfactionScore{
		TopChoicePct: score.TopChoicePct,
		Top2Pct:      score.Top2Pct,
	}
	if !math.IsNaN(score.AverageRank) {
		avg := score.AverageRank
		sat.AverageRank = &avg
	}
	return sat
}

func candidateCacheKey(activityID string) string {
	return "candidates:" + activityID
}
