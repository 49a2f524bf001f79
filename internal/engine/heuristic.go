// Package engine implements the partition engine: constraint resolution, the
// two-phase assignment heuristic, candidate generation, and satisfaction
// analytics. Everything in this package is pure computation over read-only
// snapshots; persistence and transport live with the callers.
package engine

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	weightedrand "github.com/mroth/weightedrand/v2"
	"github.com/samber/lo"
)

// Algorithm variants. Each produces a valid partition; they differ in student
// ordering and slot choice so a candidate set is visibly diverse.
const (
	VariantBalanced        = "balanced"
	VariantRandomShuffle   = "random-shuffle"
	VariantRoundRobin      = "round-robin"
	VariantPreferenceFirst = "preference-first"
)

// Variants is the fixed catalog cycled by the candidate generator.
var Variants = []string{VariantBalanced, VariantRandomShuffle, VariantRoundRobin, VariantPreferenceFirst}

const (
	defaultSwapFactor = 30
	avoidPenalty      = 10
)

// Sentinel failures. These are inputs the engine refuses rather than degrades
// on; everything else is absorbed per the placement rules.
var (
	ErrEmptyRoster = errors.New("roster is empty")
	ErrNoGroups    = errors.New("no groups could be derived from the configuration")
	ErrInvariant   = errors.New("partition invariant violated")
)

// InfeasibleError reports a capacity shortfall with enough detail for the
// caller to adjust capacities.
type InfeasibleError struct {
	Required int
	Capacity int
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("total group capacity %d is below roster size %d", e.Capacity, e.Required)
}

// GroupSpec describes one target group. Capacity zero means unlimited.
type GroupSpec struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity,omitempty"`
}

// Group is a GroupSpec with a concrete member list.
type Group struct {
	GroupSpec
	Members []string `json:"members"`
}

// Partition assigns every roster student to exactly one group. Snapshot
// freezes the roster ids that were partitioned.
type Partition struct {
	Groups   []Group  `json:"groups"`
	Snapshot []string `json:"snapshot"`
	Config   Config   `json:"config"`
}

// Config is the generation configuration bag. Seed zero means "pick one";
// the resolved seed is recorded on the returned partition so any run can be
// reproduced exactly.
type Config struct {
	GroupCount      int    `json:"groupCount,omitempty"`
	TargetGroupSize int    `json:"targetGroupSize,omitempty"`
	Seed            int64  `json:"seed"`
	Variant         string `json:"variant"`
	SwapFactor      int    `json:"swapFactor,omitempty"`
}

// Input bundles the read-only snapshots a generation run consumes. Groups may
// be empty, in which case specs are derived from Config.
type Input struct {
	Roster      []string
	Groups      []GroupSpec
	Preferences []Preference
}

// Generate produces one partition. Two phases: a greedy seed pass placing
// heavily constrained students first, then a seeded randomized pairwise-swap
// improvement pass. Identical inputs and seed yield identical output.
func Generate(in Input, cfg Config) (*Partition, error) {
	roster := lo.Uniq(in.Roster)
	if len(roster) == 0 {
		return nil, ErrEmptyRoster
	}

	groups, err := resolveGroups(in.Groups, cfg, len(roster))
	if err != nil {
		return nil, err
	}
	if err := checkFeasible(groups, len(roster)); err != nil {
		return nil, err
	}

	cfg = normalizeConfig(cfg)
	constraints := BuildConstraints(roster, groups, in.Preferences)
	rng := rand.New(rand.NewSource(cfg.Seed))

	state := newAssignState(groups)
	order := placementOrder(roster, constraints, cfg.Variant, rng)
	for _, studentID := range order {
		state.place(studentID, constraints, cfg.Variant, rng)
	}

	state.improve(constraints, cfg.SwapFactor*len(roster), rng)

	result := state.export()
	if err := checkInvariant(result, roster); err != nil {
		return nil, err
	}

	return &Partition{
		Groups:   result,
		Snapshot: roster,
		Config:   cfg,
	}, nil
}

func normalizeConfig(cfg Config) Config {
	if cfg.Seed == 0 {
		cfg.Seed = rand.Int63()
	}
	if cfg.SwapFactor <= 0 {
		cfg.SwapFactor = defaultSwapFactor
	}
	switch cfg.Variant {
	case VariantBalanced, VariantRandomShuffle, VariantRoundRobin, VariantPreferenceFirst:
	default:
		cfg.Variant = VariantBalanced
	}
	return cfg
}

// resolveGroups returns the caller's specs or derives them from the
// configured count or target size. Derived capacities are ceiling-rounded so
// no group exceeds the even split by more than one member.
func resolveGroups(specs []GroupSpec, cfg Config, rosterSize int) ([]GroupSpec, error) {
	if len(specs) > 0 {
		seenKey := make(map[string]struct{}, len(specs))
		seenName := make(map[string]struct{}, len(specs))
		for _, g := range specs {
			if g.Key == "" || g.Name == "" {
				return nil, fmt.Errorf("group key and name are required: %w", ErrNoGroups)
			}
			if _, dup := seenKey[g.Key]; dup {
				return nil, fmt.Errorf("duplicate group key %q: %w", g.Key, ErrNoGroups)
			}
			if _, dup := seenName[g.Name]; dup {
				return nil, fmt.Errorf("duplicate group name %q: %w", g.Name, ErrNoGroups)
			}
			seenKey[g.Key] = struct{}{}
			seenName[g.Name] = struct{}{}
		}
		return specs, nil
	}

	count := cfg.GroupCount
	if count <= 0 && cfg.TargetGroupSize > 0 {
		count = (rosterSize + cfg.TargetGroupSize - 1) / cfg.TargetGroupSize
	}
	if count <= 0 {
		return nil, ErrNoGroups
	}
	if count > rosterSize {
		count = rosterSize
	}

	capacity := (rosterSize + count - 1) / count
	derived := make([]GroupSpec, count)
	for i := range derived {
		derived[i] = GroupSpec{
			Key:      fmt.Sprintf("group-%d", i+1),
			Name:     fmt.Sprintf("Group %d", i+1),
			Capacity: capacity,
		}
	}
	return derived, nil
}

func checkFeasible(groups []GroupSpec, rosterSize int) error {
	total := 0
	for _, g := range groups {
		if g.Capacity <= 0 {
			return nil // an uncapped group can absorb any overflow
		}
		total += g.Capacity
	}
	if total < rosterSize {
		return &InfeasibleError{Required: rosterSize, Capacity: total}
	}
	return nil
}

func checkInvariant(groups []Group, roster []string) error {
	placed := make(map[string]int, len(roster))
	for _, g := range groups {
		for _, id := range g.Members {
			placed[id]++
		}
	}
	if len(placed) != len(roster) {
		return fmt.Errorf("placed %d of %d roster students: %w", len(placed), len(roster), ErrInvariant)
	}
	for _, id := range roster {
		if placed[id] != 1 {
			return fmt.Errorf("student %s placed %d times: %w", id, placed[id], ErrInvariant)
		}
	}
	return nil
}

// placementOrder sorts the roster so heavily constrained students are placed
// first; ties keep roster order. The random-shuffle variant randomizes the
// tie order instead, and preference-first leads with wish-list length.
func placementOrder(roster []string, constraints ConstraintSet, variant string, rng *rand.Rand) []string {
	order := make([]string, len(roster))
	copy(order, roster)

	if variant == VariantRandomShuffle {
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}

	sort.SliceStable(order, func(i, j int) bool {
		if variant == VariantPreferenceFirst {
			wi, wj := 0, 0
			if c, ok := constraints.Lookup(order[i]); ok {
				wi = len(c.Wishes)
			}
			if c, ok := constraints.Lookup(order[j]); ok {
				wj = len(c.Wishes)
			}
			if wi != wj {
				return wi > wj
			}
		}
		return constraints.Weight(order[i]) > constraints.Weight(order[j])
	})
	return order
}

// --- Assignment state ---

type groupState struct {
	spec      GroupSpec
	members   []string
	memberSet map[string]struct{}
}

func (g *groupState) open() bool {
	return g.spec.Capacity <= 0 || len(g.members) < g.spec.Capacity
}

func (g *groupState) add(id string) {
	g.members = append(g.members, id)
	g.memberSet[id] = struct{}{}
}

func (g *groupState) remove(id string) {
	delete(g.memberSet, id)
	for i, member := range g.members {
		if member == id {
			g.members = append(g.members[:i], g.members[i+1:]...)
			return
		}
	}
}

type assignState struct {
	groups  []*groupState
	byKey   map[string]*groupState
	located map[string]*groupState
	rrNext  int
}

func newAssignState(specs []GroupSpec) *assignState {
	state := &assignState{
		groups:  make([]*groupState, len(specs)),
		byKey:   make(map[string]*groupState, len(specs)),
		located: make(map[string]*groupState),
	}
	for i, spec := range specs {
		g := &groupState{spec: spec, memberSet: make(map[string]struct{})}
		state.groups[i] = g
		state.byKey[spec.Key] = g
	}
	return state
}

// avoidConflicts counts symmetric avoidance violations between a student and
// the current members of a group.
func avoidConflicts(studentID string, c Constraint, ok bool, g *groupState, constraints ConstraintSet, exclude string) int {
	conflicts := 0
	for _, member := range g.members {
		if member == exclude || member == studentID {
			continue
		}
		if ok {
			if _, avoided := c.AvoidStudents[member]; avoided {
				conflicts++
				continue
			}
		}
		if mc, found := constraints.Lookup(member); found {
			if _, avoided := mc.AvoidStudents[studentID]; avoided {
				conflicts++
			}
		}
	}
	return conflicts
}

// violations tallies how objectionable placing the student into the group
// would be right now: avoidance conflicts plus an avoided group. Capacity is
// not counted here; it is a hard constraint and ranks above all of these.
func (s *assignState) violations(studentID string, g *groupState, constraints ConstraintSet) int {
	c, ok := constraints.Lookup(studentID)
	count := avoidConflicts(studentID, c, ok, g, constraints, "")
	if ok {
		if _, avoided := c.AvoidGroups[g.spec.Key]; avoided {
			count++
		}
	}
	return count
}

func (s *assignState) compatible(studentID string, g *groupState, constraints ConstraintSet) bool {
	if !g.open() {
		return false
	}
	c, ok := constraints.Lookup(studentID)
	if ok {
		if _, avoided := c.AvoidGroups[g.spec.Key]; avoided {
			return false
		}
	}
	return avoidConflicts(studentID, c, ok, g, constraints, "") == 0
}

// place assigns one student following the greedy rules: best compatible wish
// first, then the most under-filled compatible group, then the least-bad
// group. A student is never left unassigned.
func (s *assignState) place(studentID string, constraints ConstraintSet, variant string, rng *rand.Rand) {
	if g := s.wishedGroup(studentID, constraints, variant, rng); g != nil {
		s.assign(studentID, g)
		return
	}
	if g := s.fallbackGroup(studentID, constraints, variant); g != nil {
		s.assign(studentID, g)
		return
	}
	s.assign(studentID, s.leastBadGroup(studentID, constraints))
}

func (s *assignState) assign(studentID string, g *groupState) {
	g.add(studentID)
	s.located[studentID] = g
}

func (s *assignState) wishedGroup(studentID string, constraints ConstraintSet, variant string, rng *rand.Rand) *groupState {
	c, ok := constraints.Lookup(studentID)
	if !ok || len(c.Wishes) == 0 {
		return nil
	}

	if variant == VariantPreferenceFirst {
		return s.weightedWish(studentID, c, constraints, rng)
	}

	for _, wish := range c.Wishes {
		g, found := s.byKey[wish]
		if !found {
			continue
		}
		if s.compatible(studentID, g, constraints) {
			return g
		}
	}
	return nil
}

// weightedWish picks among all compatible wished groups with rank-decaying
// weights instead of strictly taking the highest remaining rank.
func (s *assignState) weightedWish(studentID string, c Constraint, constraints ConstraintSet, rng *rand.Rand) *groupState {
	choices := make([]weightedrand.Choice[*groupState, int], 0, len(c.Wishes))
	for idx, wish := range c.Wishes {
		g, found := s.byKey[wish]
		if !found || !s.compatible(studentID, g, constraints) {
			continue
		}
		weight := len(c.Wishes) - idx + 1
		choices = append(choices, weightedrand.NewChoice(g, weight))
	}
	if len(choices) == 0 {
		return nil
	}
	chooser, err := weightedrand.NewChooser(choices...)
	if err != nil {
		return choices[0].Item
	}
	return chooser.PickSource(rng)
}

// fallbackGroup serves students with no usable wish: the most under-filled
// compatible group, ties broken by group key. The round-robin variant cycles
// groups instead of balancing.
func (s *assignState) fallbackGroup(studentID string, constraints ConstraintSet, variant string) *groupState {
	if variant == VariantRoundRobin {
		for i := 0; i < len(s.groups); i++ {
			g := s.groups[(s.rrNext+i)%len(s.groups)]
			if s.compatible(studentID, g, constraints) {
				s.rrNext = (s.rrNext + i + 1) % len(s.groups)
				return g
			}
		}
		return nil
	}

	var best *groupState
	for _, g := range s.groups {
		if !s.compatible(studentID, g, constraints) {
			continue
		}
		if best == nil || len(g.members) < len(best.members) ||
			(len(g.members) == len(best.members) && g.spec.Key < best.spec.Key) {
			best = g
		}
	}
	return best
}

// leastBadGroup is the terminal fallback: any open group beats every full
// one, then fewest violations, then smallest, then lowest key. Capacity is
// only exceeded when no group has room; the roster is always fully placed.
func (s *assignState) leastBadGroup(studentID string, constraints ConstraintSet) *groupState {
	best := s.groups[0]
	bestOpen := best.open()
	bestViolations := s.violations(studentID, best, constraints)
	for _, g := range s.groups[1:] {
		open := g.open()
		v := s.violations(studentID, g, constraints)
		switch {
		case open != bestOpen:
			if open {
				best, bestOpen, bestViolations = g, open, v
			}
		case v < bestViolations:
			best, bestViolations = g, v
		case v == bestViolations && len(g.members) < len(best.members):
			best = g
		case v == bestViolations && len(g.members) == len(best.members) && g.spec.Key < best.spec.Key:
			best = g
		}
	}
	return best
}

// placementCost is the swap objective: preference rank (0 for the top choice)
// plus weighted avoidance violations. Students outside their own wish list
// pay slightly more than the worst rank.
func (s *assignState) placementCost(studentID string, g *groupState, constraints ConstraintSet, exclude string) int {
	c, ok := constraints.Lookup(studentID)
	cost := 0
	if ok && len(c.Wishes) > 0 {
		rank := len(c.Wishes) + 2
		for idx, wish := range c.Wishes {
			if wish == g.spec.Key {
				rank = idx
				break
			}
		}
		cost += rank
	}
	if ok {
		if _, avoided := c.AvoidGroups[g.spec.Key]; avoided {
			cost += avoidPenalty
		}
	}
	cost += avoidPenalty * avoidConflicts(studentID, c, ok, g, constraints, exclude)
	return cost
}

// improve runs the bounded local search: random pairwise swap trials, keeping
// only swaps that strictly lower the combined cost. Swaps preserve group
// sizes, so capacity constraints can never regress here.
func (s *assignState) improve(constraints ConstraintSet, trials int, rng *rand.Rand) int {
	students := make([]string, 0, len(s.located))
	for _, g := range s.groups {
		students = append(students, g.members...)
	}
	if len(students) < 2 {
		return 0
	}

	improved := 0
	for trial := 0; trial < trials; trial++ {
		a := students[rng.Intn(len(students))]
		b := students[rng.Intn(len(students))]
		if a == b {
			continue
		}
		ga, gb := s.located[a], s.located[b]
		if ga == gb {
			continue
		}

		current := s.placementCost(a, ga, constraints, "") + s.placementCost(b, gb, constraints, "")
		swapped := s.placementCost(a, gb, constraints, b) + s.placementCost(b, ga, constraints, a)
		if swapped >= current {
			continue
		}

		ga.remove(a)
		gb.remove(b)
		ga.add(b)
		gb.add(a)
		s.located[a] = gb
		s.located[b] = ga
		improved++
	}
	return improved
}

func (s *assignState) export() []Group {
	groups := make([]Group, len(s.groups))
	for i, g := range s.groups {
		members := make([]string, len(g.members))
		copy(members, g.members)
		groups[i] = Group{GroupSpec: g.spec, Members: members}
	}
	return groups
}
