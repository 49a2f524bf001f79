package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultCandidateCount is used when the caller does not ask for a
	// specific number of alternatives.
	DefaultCandidateCount = 4
	// MaxCandidateCount bounds a single comparison set.
	MaxCandidateCount = 8

	// seedStride separates per-candidate seeds derived from one base seed.
	seedStride = 7919
)

// Candidate is one independently generated partition offered for comparison.
// Variant and Seed reproduce this exact candidate when fed back to Generate.
type Candidate struct {
	ID          string    `json:"id"`
	Partition   Partition `json:"partition"`
	Score       Score     `json:"score"`
	Variant     string    `json:"variant"`
	Seed        int64     `json:"seed"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// GenerateCandidates runs the heuristic count times with derived seeds and a
// cycling variant catalog, scoring each result. Runs share no mutable state
// and execute concurrently; failure of any run fails the whole set.
func GenerateCandidates(in Input, cfg Config, count int) ([]Candidate, error) {
	if count <= 0 {
		count = DefaultCandidateCount
	}
	if count > MaxCandidateCount {
		count = MaxCandidateCount
	}

	base := cfg.Seed
	if base == 0 {
		base = time.Now().UnixNano()
	}
	catalog := rotateVariants(cfg.Variant)

	candidates := make([]Candidate, count)
	errs := make([]error, count)

	var wg sync.WaitGroup
	for i := 0; i < count; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			runCfg := cfg
			runCfg.Seed = base + int64(idx)*seedStride
			runCfg.Variant = catalog[idx%len(catalog)]

			partition, err := Generate(in, runCfg)
			if err != nil {
				errs[idx] = fmt.Errorf("candidate %d (%s): %w", idx+1, runCfg.Variant, err)
				return
			}

			candidates[idx] = Candidate{
				ID:          uuid.NewString(),
				Partition:   *partition,
				Score:       ScorePartition(partition.Groups, in.Preferences, partition.Snapshot),
				Variant:     partition.Config.Variant,
				Seed:        partition.Config.Seed,
				GeneratedAt: time.Now().UTC(),
			}
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return candidates, nil
}

// rotateVariants starts the catalog at the requested variant so an explicit
// choice leads the set, without losing diversity across the rest.
func rotateVariants(first string) []string {
	for i, v := range Variants {
		if v == first {
			rotated := make([]string, 0, len(Variants))
			rotated = append(rotated, Variants[i:]...)
			rotated = append(rotated, Variants[:i]...)
			return rotated
		}
	}
	return Variants
}
