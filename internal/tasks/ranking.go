package tasks

import (
	"cmp"
	"slices"

	"github.com/desertthunder/fiply/internal/models"
)

// Ranking is the occurrence count of every distinct title in a window.
type Ranking struct {
	MostPlayed []models.RankedGroup // every title, count descending
	PlayedOnce []models.RankedGroup // titles with exactly one play
}

// Rank groups events by exact title and orders the groups by play count.
//
// Ties keep the order in which titles were first seen. Each group carries the last event seen for
// its title.
func Rank(events []models.PlayEvent) Ranking {
	index := make(map[string]int, len(events))
	groups := make([]models.RankedGroup, 0, len(events))

	for _, ev := range events {
		if i, ok := index[ev.Title]; ok {
			groups[i].Count++
			groups[i].Event = ev
			continue
		}
		index[ev.Title] = len(groups)
		groups = append(groups, models.RankedGroup{Event: ev, Count: 1})
	}

	once := make([]models.RankedGroup, 0)
	for _, g := range groups {
		if g.Count == 1 {
			once = append(once, g)
		}
	}

	slices.SortStableFunc(groups, func(a, b models.RankedGroup) int {
		return cmp.Compare(b.Count, a.Count)
	})

	return Ranking{MostPlayed: groups, PlayedOnce: once}
}

// Plays returns the total number of events ranked.
func (r Ranking) Plays() int {
	n := 0
	for _, g := range r.MostPlayed {
		n += g.Count
	}
	return n
}

// CandidateLimit is the play count of the group at the 1-based position rank, or of the last
// group when there are fewer. It is 0 for an empty ranking.
func (r Ranking) CandidateLimit(rank int) int {
	if len(r.MostPlayed) == 0 {
		return 0
	}
	if rank < 1 || rank > len(r.MostPlayed) {
		rank = len(r.MostPlayed)
	}
	return r.MostPlayed[rank-1].Count
}

// MostPlayedCandidates returns the leading groups played at least as often as the group at rank.
func (r Ranking) MostPlayedCandidates(rank int) []models.RankedGroup {
	limit := r.CandidateLimit(rank)
	out := make([]models.RankedGroup, 0, len(r.MostPlayed))
	for _, g := range r.MostPlayed {
		if g.Count < limit {
			break
		}
		out = append(out, g)
	}
	return out
}

// PlayedOnceCandidates returns the first n played-once groups, or all of them when n <= 0.
func (r Ranking) PlayedOnceCandidates(n int) []models.RankedGroup {
	if n <= 0 || n >= len(r.PlayedOnce) {
		return slices.Clone(r.PlayedOnce)
	}
	return slices.Clone(r.PlayedOnce[:n])
}
