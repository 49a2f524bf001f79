package service

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-grouping-api/internal/dto"
	"github.com/noah-isme/sma-grouping-api/internal/engine"
	appErrors "github.com/noah-isme/sma-grouping-api/pkg/errors"
)

// candidateSet is a short-lived comparison set. Candidates are never
// persisted; adopting one writes a regular draft partition and the set is
// discarded.
type candidateSet struct {
	ActivityID  string             `json:"activityId"`
	Candidates  []engine.Candidate `json:"candidates"`
	GeneratedAt time.Time          `json:"generatedAt"`
}

// candidateStore keeps candidate sets in memory with a TTL, so comparison
// still works when Redis is disabled. Writes replace the whole set for an
// activity.
type candidateStore struct {
	mu   sync.RWMutex
	sets map[string]candidateEntry
	ttl  time.Duration
}

type candidateEntry struct {
	set       candidateSet
	expiresAt time.Time
}

func newCandidateStore(ttl time.Duration) *candidateStore {
	return &candidateStore{
		sets: make(map[string]candidateEntry),
		ttl:  ttl,
	}
}

func (s *candidateStore) put(activityID string, set candidateSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets[activityID] = candidateEntry{set: set, expiresAt: time.Now().Add(s.ttl)}
}

func (s *candidateStore) get(activityID string) (candidateSet, bool) {
	s.mu.RLock()
	entry, ok := s.sets[activityID]
	s.mu.RUnlock()
	if !ok {
		return candidateSet{}, false
	}
	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.sets, activityID)
		s.mu.Unlock()
		return candidateSet{}, false
	}
	return entry.set, true
}

func (s *candidateStore) remove(activityID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sets, activityID)
}

// CandidateService generates, caches and adopts partition candidates. The
// authoritative copy lives in the local store; Redis, when enabled, lets a
// set survive a restart and be shared across replicas.
type CandidateService struct {
	partitions   *PartitionService
	cache        *CacheService
	store        *candidateStore
	validator    *validator.Validate
	logger       *zap.Logger
	defaultCount int
	maxCount     int
	ttl          time.Duration
}

// CandidateServiceConfig tunes candidate generation. MaxCount caps a single
// set below the engine ceiling; zero keeps the ceiling.
type CandidateServiceConfig struct {
	DefaultCount int
	MaxCount     int
	TTL          time.Duration
}

// NewCandidateService wires candidate generation on top of the partition
// lifecycle service.
func NewCandidateService(
	partitions *PartitionService,
	cache *CacheService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg CandidateServiceConfig,
) *CandidateService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	defaultCount := cfg.DefaultCount
	if defaultCount <= 0 {
		defaultCount = engine.DefaultCandidateCount
	}
	maxCount := cfg.MaxCount
	if maxCount <= 0 || maxCount > engine.MaxCandidateCount {
		maxCount = engine.MaxCandidateCount
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &CandidateService{
		partitions:   partitions,
		cache:        cache,
		store:        newCandidateStore(ttl),
		validator:    validate,
		logger:       logger,
		defaultCount: defaultCount,
		maxCount:     maxCount,
		ttl:          ttl,
	}
}

// GenerateSet builds count independent candidates for the activity and caches
// them for later adoption. Each request replaces the previous set.
func (s *CandidateService) GenerateSet(ctx context.Context, activityID string, req dto.GenerateCandidatesRequest) (*dto.CandidateSetResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid candidates payload")
	}
	if err := s.partitions.ensureActivity(ctx, activityID); err != nil {
		return nil, err
	}

	count := req.Count
	if count == 0 {
		count = s.defaultCount
	}
	if count > s.maxCount {
		count = s.maxCount
	}

	input, err := s.partitions.loadEngineInput(ctx, activityID, req.Groups)
	if err != nil {
		return nil, err
	}
	cfg := engine.Config{
		GroupCount:      req.GroupCount,
		TargetGroupSize: req.TargetGroupSize,
		Seed:            req.Seed,
		Variant:         req.Algorithm,
		SwapFactor:      s.partitions.swapFactor,
	}

	candidates, err := engine.GenerateCandidates(input, cfg, count)
	if err != nil {
		return nil, s.partitions.mapEngineError(err)
	}

	set := candidateSet{
		ActivityID:  activityID,
		Candidates:  candidates,
		GeneratedAt: time.Now().UTC(),
	}
	s.store.put(activityID, set)
	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, candidateCacheKey(activityID), set, s.ttl); err != nil {
			s.logger.Warn("failed to cache candidate set", zap.String("activity_id", activityID), zap.Error(err))
		}
	}

	s.logger.Info("candidate set generated",
		zap.String("activity_id", activityID),
		zap.Int("count", len(candidates)),
	)
	resp := toCandidateSetResponse(set)
	return &resp, nil
}

// GetSet returns the cached candidate set for an activity, checking the
// local store first and Redis second.
func (s *CandidateService) GetSet(ctx context.Context, activityID string) (*dto.CandidateSetResponse, error) {
	if activityID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "activity id is required")
	}
	set, ok := s.lookup(ctx, activityID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no candidate set for this activity; generate one first")
	}
	resp := toCandidateSetResponse(set)
	return &resp, nil
}

// Adopt persists the identified candidate as the activity's draft partition
// and discards the set.
func (s *CandidateService) Adopt(ctx context.Context, activityID, candidateID string) (*dto.PartitionResponse, error) {
	if activityID == "" || candidateID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "activity id and candidate id are required")
	}
	set, ok := s.lookup(ctx, activityID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no candidate set for this activity; generate one first")
	}

	var chosen *engine.Candidate
	for i := range set.Candidates {
		if set.Candidates[i].ID == candidateID {
			chosen = &set.Candidates[i]
			break
		}
	}
	if chosen == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "candidate not found in the current set")
	}

	resp, err := s.partitions.AdoptCandidate(ctx, activityID, *chosen)
	if err != nil {
		return nil, err
	}

	s.store.remove(activityID)
	if s.cache.Enabled() {
		_ = s.cache.Delete(ctx, candidateCacheKey(activityID))
	}

	s.logger.Info("candidate adopted",
		zap.String("activity_id", activityID),
		zap.String("candidate_id", candidateID),
		zap.String("partition_id", resp.Partition.ID),
	)
	return resp, nil
}

func (s *CandidateService) lookup(ctx context.Context, activityID string) (candidateSet, bool) {
	if set, ok := s.store.get(activityID); ok {
		return set, true
	}
	if !s.cache.Enabled() {
		return candidateSet{}, false
	}
	var set candidateSet
	found, err := s.cache.Get(ctx, candidateCacheKey(activityID), &set)
	if err != nil || !found {
		return candidateSet{}, false
	}
	s.store.put(activityID, set)
	return set, true
}

func toCandidateSetResponse(set candidateSet) dto.CandidateSetResponse {
	resp := dto.CandidateSetResponse{
		ActivityID:  set.ActivityID,
		Candidates:  make([]dto.CandidateResponse, len(set.Candidates)),
		GeneratedAt: set.GeneratedAt,
	}
	for i, c := range set.Candidates {
		groups := make([]dto.CandidateGroupPayload, len(c.Partition.Groups))
		for j, g := range c.Partition.Groups {
			var capacity *int
			if g.Capacity > 0 {
				v := g.Capacity
				capacity = &v
			}
			groups[j] = dto.CandidateGroupPayload{
				Key:      g.Key,
				Name:     g.Name,
				Capacity: capacity,
				Members:  append([]string(nil), g.Members...),
			}
		}
		resp.Candidates[i] = dto.CandidateResponse{
			ID:          c.ID,
			Groups:      groups,
			Snapshot:    append([]string(nil), c.Partition.Snapshot...),
			Score:       toSatisfactionScore(c.Score),
			Variant:     c.Variant,
			Seed:        c.Seed,
			GeneratedAt: c.GeneratedAt,
		}
	}
	return resp
}
