// Package rank orders a candidate pool for one viewer: hard filters first,
// then scoring, then a deterministic sort with offset pagination.
//
// Like the scorer it is pure computation: the pool and the exclusion sets
// are provided up front, so ranking can run fully in parallel across users
// and be safely cancelled mid-call without corrupting anything.
package rank

import (
	"sort"
	"time"

	"github.com/sangamlabs/match-engine/internal/config"
	"github.com/sangamlabs/match-engine/internal/db"
	"github.com/sangamlabs/match-engine/internal/engine/score"
)

// Exclusions are per-viewer pair states the ranker must honor, built from
// the match store before ranking.
type Exclusions struct {
	// Acted holds counterpart ids the viewer already acted on.
	Acted map[uint64]bool
	// Blocked holds counterpart ids where either direction is blocked.
	Blocked map[uint64]bool
}

// Candidate is one ranked result.
type Candidate struct {
	Profile db.Profile
	Score   score.Score
}

type Ranker struct {
	scorer *score.Scorer
	now    func() time.Time
}

func NewRanker(eng config.Engine, horoscope score.HoroscopeScorer) *Ranker {
	return &Ranker{
		scorer: score.NewScorer(eng, horoscope),
		now:    time.Now,
	}
}

// WithClock fixes the ranker's clock for reproducible output.
func (r *Ranker) WithClock(now func() time.Time) *Ranker {
	clone := *r
	clone.now = now
	clone.scorer = r.scorer.WithClock(now)
	return &clone
}

// Scorer exposes the underlying scorer for display-time pair scoring.
func (r *Ranker) Scorer() *score.Scorer { return r.scorer }

// Rank filters, scores, sorts and paginates the pool for the viewer.
//
// Hard filters run cheapest-first: self, inactive/unapproved, same gender,
// blocked pairs, already-acted pairs (unless includeActed), then the
// viewer's strict age/height/income ranges. Candidates outside a range are
// dropped, not down-ranked.
//
// Sort order: score desc, premium tier first, most recent activity, id asc.
// The final id tie-break makes repeated calls over an unchanged pool return
// identical ordering, which the daily batch generator depends on.
//
// total is the post-filter, pre-pagination size so callers can compute page
// counts. page is 1-based; out-of-range pages return an empty slice.
func (r *Ranker) Rank(viewer db.Profile, pool []db.Profile, prefs *db.Preference, excl Exclusions, includeActed bool, page, pageSize int) ([]Candidate, int) {
	now := r.now()

	candidates := make([]Candidate, 0, len(pool))
	for _, p := range pool {
		if p.ID == viewer.ID {
			continue
		}
		if !p.Active || !p.Approved {
			continue
		}
		if p.Gender == viewer.Gender {
			continue
		}
		if excl.Blocked[p.ID] {
			continue
		}
		if !includeActed && excl.Acted[p.ID] {
			continue
		}
		if !withinRanges(p, prefs, now) {
			continue
		}

		sc := r.scorer.Score(viewer, p, prefs)
		if prefs != nil && prefs.MinScore > 0 && sc.Overall < prefs.MinScore {
			continue
		}
		candidates = append(candidates, Candidate{Profile: p, Score: sc})
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score.Overall != b.Score.Overall {
			return a.Score.Overall > b.Score.Overall
		}
		aPremium := a.Profile.Tier == config.TierPremium
		bPremium := b.Profile.Tier == config.TierPremium
		if aPremium != bPremium {
			return aPremium
		}
		if !a.Profile.LastActiveAt.Equal(b.Profile.LastActiveAt) {
			return a.Profile.LastActiveAt.After(b.Profile.LastActiveAt)
		}
		return a.Profile.ID < b.Profile.ID
	})

	total := len(candidates)

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		return nil, total
	}
	start := (page - 1) * pageSize
	if start >= total {
		return nil, total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return candidates[start:end], total
}

// withinRanges applies the viewer's strict inclusion ranges. Zero values
// mean the bound is unset; a missing candidate attribute only fails a bound
// that is actually set.
func withinRanges(p db.Profile, prefs *db.Preference, now time.Time) bool {
	if prefs == nil {
		return true
	}

	age := p.Age(now)
	if prefs.AgeMin > 0 && (age <= 0 || age < prefs.AgeMin) {
		return false
	}
	if prefs.AgeMax > 0 && age > prefs.AgeMax {
		return false
	}

	if prefs.HeightMinCM > 0 && (p.HeightCM <= 0 || p.HeightCM < prefs.HeightMinCM) {
		return false
	}
	if prefs.HeightMaxCM > 0 && p.HeightCM > prefs.HeightMaxCM {
		return false
	}

	if prefs.IncomeMin > 0 && p.AnnualIncome < prefs.IncomeMin {
		return false
	}

	return true
}
