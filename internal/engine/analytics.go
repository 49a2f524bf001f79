package engine

import (
	"math"
	"strings"
)

// Score summarises how well a partition satisfies ranked preferences.
// AverageRank is NaN when no snapshot student resolved a rank; callers must
// treat that as "not applicable", never as zero.
type Score struct {
	TopChoicePct float64 `json:"percentAssignedTopChoice"`
	Top2Pct      float64 `json:"percentAssignedTop2"`
	AverageRank  float64 `json:"averagePreferenceRankAssigned"`
}

// ScorePartition scores any partition, engine output or hand-edited, against
// raw preference records. It never fails: absent or inconsistent data
// degrades to the documented zero/NaN outputs.
//
// Wish entries match the assigned group by key first, then by
// case-insensitive name, so groups renamed after the preference was recorded
// still resolve. A student whose non-empty wish list does not contain the
// assigned group counts toward the percentage denominators but not toward the
// rank average. Students outside the snapshot contribute nothing.
func ScorePartition(groups []Group, prefs []Preference, snapshot []string) Score {
	inSnapshot := make(map[string]struct{}, len(snapshot))
	for _, id := range snapshot {
		inSnapshot[id] = struct{}{}
	}

	assigned := make(map[string]Group, len(snapshot))
	for _, g := range groups {
		for _, member := range g.Members {
			if _, ok := inSnapshot[member]; !ok {
				continue
			}
			if _, dup := assigned[member]; dup {
				continue
			}
			assigned[member] = g
		}
	}

	prefByStudent := make(map[string]Preference, len(prefs))
	for _, p := range prefs {
		prefByStudent[p.StudentID] = p
	}

	withWishes := 0
	ranked := 0
	topChoice := 0
	top2 := 0
	rankSum := 0

	for _, id := range snapshot {
		pref, ok := prefByStudent[id]
		if !ok || len(pref.RankedGroups) == 0 {
			continue
		}
		group, placed := assigned[id]
		if !placed {
			continue
		}
		withWishes++

		rank := RankFor(pref.RankedGroups, group)
		if rank == 0 {
			continue
		}
		ranked++
		rankSum += rank
		if rank == 1 {
			topChoice++
		}
		if rank <= 2 {
			top2++
		}
	}

	score := Score{AverageRank: math.NaN()}
	if withWishes > 0 {
		score.TopChoicePct = float64(topChoice) / float64(withWishes) * 100
		score.Top2Pct = float64(top2) / float64(withWishes) * 100
	}
	if ranked > 0 {
		score.AverageRank = float64(rankSum) / float64(ranked)
	}
	return score
}

// RankFor returns the 1-indexed position of the group within the wish list,
// or zero when the group is absent from it. Duplicate entries collapse onto
// their first occurrence so ranks match the resolved constraint model.
func RankFor(wishes []string, group Group) int {
	rank := 0
	seen := make(map[string]struct{}, len(wishes))
	for _, wish := range wishes {
		folded := strings.ToLower(wish)
		if _, dup := seen[folded]; dup {
			continue
		}
		seen[folded] = struct{}{}
		rank++
		if wish == group.Key || strings.EqualFold(wish, group.Name) {
			return rank
		}
	}
	return 0
}
