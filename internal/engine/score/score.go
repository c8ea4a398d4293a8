// Package score computes directional compatibility between two profiles.
//
// Scoring is a pure function of its inputs: no I/O, no clock reads beyond an
// injected now(), no error paths. Missing data never fails a call; each
// factor degrades to a neutral 50 and incomplete profiles are discounted by
// a completeness multiplier instead.
package score

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/sangamlabs/match-engine/internal/config"
	"github.com/sangamlabs/match-engine/internal/db"
)

const neutral = 50.0

// FactorScore is one named component of the overall score.
type FactorScore struct {
	Factor string  `json:"factor"`
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
}

// Score is the structured result of scoring one direction of a pair.
// Overall is always within [0,100]; so is every factor sub-score.
type Score struct {
	Overall float64       `json:"overall"`
	Factors []FactorScore `json:"factors"`
}

// Mutual is the aggregate figure shown when a pair matches: the arithmetic
// mean of the two directional scores. Computed at display time, never stored.
func Mutual(a, b Score) float64 {
	return (a.Overall + b.Overall) / 2
}

// HoroscopeScorer is the pluggable astrological input. Implementations score
// a pair in [0,100]; ok=false means the data needed is absent and the factor
// falls back to neutral.
type HoroscopeScorer interface {
	Score(viewer, candidate db.Profile) (value float64, ok bool)
}

// Scorer computes weighted compatibility scores. Weights come from config
// and sum to 100; factors a viewer declared "no bar" on are excluded
// entirely (not zero-weighted) and the remaining weights are renormalized,
// so declared indifference never penalizes a candidate twice.
type Scorer struct {
	weights   map[string]float64
	horoscope HoroscopeScorer
	now       func() time.Time
}

func NewScorer(eng config.Engine, horoscope HoroscopeScorer) *Scorer {
	if horoscope == nil {
		horoscope = DefaultHoroscope{}
	}
	return &Scorer{
		weights:   eng.Weights,
		horoscope: horoscope,
		now:       time.Now,
	}
}

// WithClock fixes the scorer's clock. Used by ranking and tests so repeated
// calls within the same instant are identical.
func (s *Scorer) WithClock(now func() time.Time) *Scorer {
	clone := *s
	clone.now = now
	return &clone
}

// Score computes the viewer->candidate compatibility under the viewer's
// preferences. The reverse direction uses the candidate's own preferences
// and is not required to be equal.
func (s *Scorer) Score(viewer, candidate db.Profile, prefs *db.Preference) Score {
	type factorFn struct {
		name    string
		skipped bool
		compute func() float64
	}

	factors := []factorFn{
		{config.FactorAge, false, func() float64 { return s.ageScore(viewer, candidate) }},
		{config.FactorLocation, false, func() float64 { return locationScore(viewer, candidate) }},
		{config.FactorReligion, prefs != nil && prefs.ReligionNoBar, func() float64 { return religionScore(viewer, candidate, prefs) }},
		{config.FactorLifestyle, false, func() float64 { return lifestyleScore(viewer, candidate, prefs) }},
		{config.FactorEducation, false, func() float64 { return educationScore(viewer, candidate, prefs) }},
		{config.FactorHoroscope, false, func() float64 { return s.horoscopeScore(viewer, candidate, prefs) }},
	}

	var (
		out         Score
		totalWeight float64
		weightedSum float64
	)
	for _, f := range factors {
		if f.skipped {
			continue
		}
		w := s.weights[f.name]
		if w <= 0 {
			continue
		}
		v := clamp(f.compute())
		out.Factors = append(out.Factors, FactorScore{Factor: f.name, Score: v, Weight: w})
		totalWeight += w
		weightedSum += v * w
	}

	if totalWeight > 0 {
		out.Overall = weightedSum / totalWeight
	} else {
		out.Overall = neutral
	}

	// Sparse candidate profiles rank below complete ones at equal factor
	// scores. The multiplier stays internal; factor sub-scores are reported
	// undiscounted.
	out.Overall = clamp(out.Overall * (0.7 + 0.3*candidate.Completeness))

	sort.Slice(out.Factors, func(i, j int) bool { return out.Factors[i].Factor < out.Factors[j].Factor })
	return out
}

// ageScore rewards small age gaps. A couple of years apart is as good as
// exact; the score then falls off linearly.
func (s *Scorer) ageScore(viewer, candidate db.Profile) float64 {
	now := s.now()
	va, ca := viewer.Age(now), candidate.Age(now)
	if va <= 0 || ca <= 0 {
		return neutral
	}
	gap := math.Abs(float64(va - ca))
	if gap <= 2 {
		return 100
	}
	return 100 - 6*(gap-2)
}

func locationScore(viewer, candidate db.Profile) float64 {
	if viewer.Country == "" || candidate.Country == "" {
		return neutral
	}
	if !strings.EqualFold(viewer.Country, candidate.Country) {
		return 20
	}
	if viewer.State != "" && strings.EqualFold(viewer.State, candidate.State) {
		if viewer.City != "" && strings.EqualFold(viewer.City, candidate.City) {
			return 100
		}
		return 80
	}
	return 55
}

// religionScore blends religion, caste and mother tongue at 50/30/20.
// The expectation for each part is the viewer's stated preference when
// present, otherwise their own attribute. A no-bar on caste or mother
// tongue drops that part and the remaining weights are renormalized.
func religionScore(viewer, candidate db.Profile, prefs *db.Preference) float64 {
	wantReligion := viewer.Religion
	wantCaste := viewer.Caste
	wantTongue := viewer.MotherTongue
	casteNoBar := false
	tongueNoBar := false
	if prefs != nil {
		if prefs.Religion != "" {
			wantReligion = prefs.Religion
		}
		if prefs.Caste != "" {
			wantCaste = prefs.Caste
		}
		if prefs.MotherTongue != "" {
			wantTongue = prefs.MotherTongue
		}
		casteNoBar = prefs.CasteNoBar
		tongueNoBar = prefs.MotherTongueNoBar
	}

	religionPart := neutral
	if wantReligion != "" && candidate.Religion != "" {
		if strings.EqualFold(wantReligion, candidate.Religion) {
			religionPart = 100
		} else {
			religionPart = 10
		}
	}

	sum := 0.5 * religionPart
	weight := 0.5

	if !casteNoBar {
		castePart := neutral
		if wantCaste != "" && candidate.Caste != "" {
			switch {
			case strings.EqualFold(wantCaste, candidate.Caste):
				castePart = 100
			case religionPart == 100:
				// same religion, different caste
				castePart = 40
			default:
				castePart = 10
			}
		}
		sum += 0.3 * castePart
		weight += 0.3
	}

	if !tongueNoBar {
		tonguePart := neutral
		if wantTongue != "" && candidate.MotherTongue != "" {
			if strings.EqualFold(wantTongue, candidate.MotherTongue) {
				tonguePart = 100
			} else {
				tonguePart = 35
			}
		}
		sum += 0.2 * tonguePart
		weight += 0.2
	}

	return sum / weight
}

// habitLadder positions for smoking/drinking comparisons.
var habitLadder = map[string]int{
	"never":        0,
	"occasionally": 1,
	"regularly":    2,
}

func habitScore(a, b string) (float64, bool) {
	ra, okA := habitLadder[strings.ToLower(a)]
	rb, okB := habitLadder[strings.ToLower(b)]
	if !okA || !okB {
		return 0, false
	}
	switch abs(ra - rb) {
	case 0:
		return 100, true
	case 1:
		return 50, true
	default:
		return 0, true
	}
}

func dietScore(a, b string) (float64, bool) {
	if a == "" || b == "" {
		return 0, false
	}
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return 100, true
	}
	strictVeg := func(d string) bool { return d == "veg" || d == "vegan" }
	if strictVeg(a) && b == "non_veg" || strictVeg(b) && a == "non_veg" {
		return 0, true
	}
	return 50, true
}

// lifestyleScore averages the diet, smoking and drinking sub-scores that
// have data on both sides. A diet no-bar drops the diet sub-score.
func lifestyleScore(viewer, candidate db.Profile, prefs *db.Preference) float64 {
	var sum float64
	var n int

	if prefs == nil || !prefs.DietNoBar {
		want := viewer.Diet
		if prefs != nil && prefs.Diet != "" {
			want = prefs.Diet
		}
		if v, ok := dietScore(want, candidate.Diet); ok {
			sum += v
			n++
		}
	}
	if v, ok := habitScore(viewer.Smoking, candidate.Smoking); ok {
		sum += v
		n++
	}
	if v, ok := habitScore(viewer.Drinking, candidate.Drinking); ok {
		sum += v
		n++
	}

	if n == 0 {
		return neutral
	}
	return sum / float64(n)
}

// educationRank orders education levels for closeness comparisons.
var educationRank = map[string]int{
	"high_school": 1,
	"diploma":     2,
	"bachelors":   3,
	"masters":     4,
	"doctorate":   5,
}

func educationScore(viewer, candidate db.Profile, prefs *db.Preference) float64 {
	cr, okC := educationRank[strings.ToLower(candidate.Education)]

	eduPart := neutral
	if okC {
		if prefs != nil && prefs.EducationMin != "" {
			if min, ok := educationRank[strings.ToLower(prefs.EducationMin)]; ok {
				if cr >= min {
					eduPart = 100
				} else {
					eduPart = clamp(100 - 30*float64(min-cr))
				}
			}
		} else if vr, okV := educationRank[strings.ToLower(viewer.Education)]; okV {
			eduPart = clamp(100 - 20*math.Abs(float64(vr-cr)))
		}
	}

	// Income contributes only when the viewer stated a floor.
	if prefs == nil || prefs.IncomeMin <= 0 {
		return eduPart
	}
	incomePart := 0.0
	if candidate.AnnualIncome >= prefs.IncomeMin {
		incomePart = 100
	} else if candidate.AnnualIncome > 0 {
		incomePart = 100 * float64(candidate.AnnualIncome) / float64(prefs.IncomeMin)
	} else {
		incomePart = neutral
	}
	return 0.6*eduPart + 0.4*incomePart
}

func (s *Scorer) horoscopeScore(viewer, candidate db.Profile, prefs *db.Preference) float64 {
	v, ok := s.horoscope.Score(viewer, candidate)
	if !ok {
		v = neutral
	}
	// Manglik expectation sits outside the pluggable scorer so every
	// implementation honors the same preference semantics.
	if prefs != nil && !prefs.ManglikNoBar && candidate.Manglik && !prefs.AcceptManglik {
		v -= 30
	}
	return v
}

func clamp(v float64) float64 {
	return math.Min(100, math.Max(0, v))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
