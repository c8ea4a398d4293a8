package score_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sangamlabs/match-engine/internal/config"
	"github.com/sangamlabs/match-engine/internal/db"
	"github.com/sangamlabs/match-engine/internal/engine/score"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestScorer(t *testing.T) *score.Scorer {
	t.Helper()
	cfg := config.New()
	return score.NewScorer(cfg.Engine, nil).WithClock(func() time.Time { return testNow })
}

// born returns a birth date yielding exactly the given age at testNow.
func born(age int) time.Time {
	return testNow.AddDate(-age, 0, -1)
}

func fullProfile(id uint64, gender string, age int) db.Profile {
	return db.Profile{
		ID: id, Gender: gender, BirthDate: born(age),
		HeightCM: 170, Country: "India", State: "Maharashtra", City: "Mumbai",
		Religion: "hindu", Caste: "maratha", MotherTongue: "marathi",
		Education: "masters", AnnualIncome: 1200000,
		Diet: "veg", Smoking: "never", Drinking: "never",
		Zodiac: "leo", Manglik: false,
		Tier: config.TierFree, Active: true, Approved: true, Completeness: 1,
	}
}

func TestScoreBounds(t *testing.T) {
	s := newTestScorer(t)

	// worst case on every factor, still within [0,100]
	viewer := fullProfile(1, "male", 30)
	candidate := db.Profile{
		ID: 2, Gender: "female", BirthDate: born(55),
		Country: "Canada", Religion: "christian", Caste: "other",
		Education: "high_school", Diet: "non_veg",
		Smoking: "regularly", Drinking: "regularly",
		Zodiac: "virgo", Manglik: true, Completeness: 0,
	}
	got := s.Score(viewer, candidate, &db.Preference{IncomeMin: 1000000})
	assert.GreaterOrEqual(t, got.Overall, 0.0)
	assert.LessOrEqual(t, got.Overall, 100.0)
	for _, f := range got.Factors {
		assert.GreaterOrEqual(t, f.Score, 0.0, f.Factor)
		assert.LessOrEqual(t, f.Score, 100.0, f.Factor)
	}

	// best case: identical twins minus the gender
	twin := fullProfile(2, "female", 30)
	got = s.Score(viewer, twin, nil)
	assert.LessOrEqual(t, got.Overall, 100.0)
	assert.Greater(t, got.Overall, 85.0)
}

func TestScoreMissingDataIsNeutral(t *testing.T) {
	s := newTestScorer(t)

	// two empty profiles: every factor neutral, then discounted for the
	// candidate's zero completeness
	got := s.Score(db.Profile{ID: 1}, db.Profile{ID: 2}, nil)
	for _, f := range got.Factors {
		assert.Equal(t, 50.0, f.Score, f.Factor)
	}
	assert.InDelta(t, 35.0, got.Overall, 0.01) // 50 * 0.7
}

func TestScoreCompletenessMultiplier(t *testing.T) {
	s := newTestScorer(t)
	viewer := fullProfile(1, "male", 30)
	full := fullProfile(2, "female", 30)
	sparse := fullProfile(3, "female", 30)
	sparse.Completeness = 0.5

	a := s.Score(viewer, full, nil)
	b := s.Score(viewer, sparse, nil)
	assert.Greater(t, a.Overall, b.Overall)

	// factor sub-scores themselves are not discounted
	require.Equal(t, len(a.Factors), len(b.Factors))
	for i := range a.Factors {
		assert.Equal(t, a.Factors[i].Score, b.Factors[i].Score)
	}
}

func TestScoreNoBarExcludesFactor(t *testing.T) {
	s := newTestScorer(t)
	viewer := fullProfile(1, "male", 30)
	candidate := fullProfile(2, "female", 30)
	candidate.Religion = "christian" // religion mismatch
	candidate.Caste = "other"

	with := s.Score(viewer, candidate, &db.Preference{})
	without := s.Score(viewer, candidate, &db.Preference{ReligionNoBar: true})

	// excluded, not zero-weighted: the mismatch stops dragging the overall down
	assert.Greater(t, without.Overall, with.Overall)
	for _, f := range without.Factors {
		assert.NotEqual(t, config.FactorReligion, f.Factor)
	}
}

func TestScoreDirectionality(t *testing.T) {
	s := newTestScorer(t)
	a := fullProfile(1, "male", 30)
	b := fullProfile(2, "female", 30)
	b.Religion = "christian"
	b.Caste = "other"

	aPrefs := &db.Preference{Religion: "hindu"}
	bPrefs := &db.Preference{ReligionNoBar: true}

	ab := s.Score(a, b, aPrefs)
	ba := s.Score(b, a, bPrefs)

	// a cares about religion and b mismatches; b declared no bar
	assert.NotEqual(t, ab.Overall, ba.Overall)
	assert.Greater(t, ba.Overall, ab.Overall)

	assert.InDelta(t, (ab.Overall+ba.Overall)/2, score.Mutual(ab, ba), 0.0001)
}

func TestScorePreferenceOverridesOwnAttribute(t *testing.T) {
	s := newTestScorer(t)
	viewer := fullProfile(1, "male", 30)
	viewer.Religion = "hindu"
	candidate := fullProfile(2, "female", 30)
	candidate.Religion = "jain"
	candidate.Caste = ""

	// own attribute mismatches, stated preference matches
	own := s.Score(viewer, candidate, &db.Preference{})
	stated := s.Score(viewer, candidate, &db.Preference{Religion: "jain"})
	assert.Greater(t, stated.Overall, own.Overall)
}

func TestScoreMotherTongue(t *testing.T) {
	s := newTestScorer(t)
	viewer := fullProfile(1, "male", 30) // marathi

	same := fullProfile(2, "female", 30)
	other := fullProfile(3, "female", 30)
	other.MotherTongue = "tamil"

	// shared tongue outranks a mismatch, all else equal
	a := s.Score(viewer, same, &db.Preference{})
	b := s.Score(viewer, other, &db.Preference{})
	assert.Greater(t, a.Overall, b.Overall)

	// a stated preference overrides the viewer's own tongue
	stated := s.Score(viewer, other, &db.Preference{MotherTongue: "tamil"})
	assert.Greater(t, stated.Overall, b.Overall)

	// no bar drops the sub-score so the mismatch stops counting
	noBar := s.Score(viewer, other, &db.Preference{MotherTongueNoBar: true})
	assert.Greater(t, noBar.Overall, b.Overall)
}

func TestScoreManglikPenalty(t *testing.T) {
	s := newTestScorer(t)
	viewer := fullProfile(1, "male", 30)
	manglik := fullProfile(2, "female", 30)
	manglik.Manglik = true

	rejecting := s.Score(viewer, manglik, &db.Preference{})
	accepting := s.Score(viewer, manglik, &db.Preference{AcceptManglik: true})
	noBar := s.Score(viewer, manglik, &db.Preference{ManglikNoBar: true})

	assert.Greater(t, accepting.Overall, rejecting.Overall)
	assert.Greater(t, noBar.Overall, rejecting.Overall)
}

func TestScoreAgeGap(t *testing.T) {
	s := newTestScorer(t)
	viewer := fullProfile(1, "male", 30)

	near := s.Score(viewer, fullProfile(2, "female", 31), nil)
	far := s.Score(viewer, fullProfile(3, "female", 45), nil)
	assert.Greater(t, near.Overall, far.Overall)
}

func TestScoreDeterministic(t *testing.T) {
	s := newTestScorer(t)
	viewer := fullProfile(1, "male", 30)
	candidate := fullProfile(2, "female", 28)
	prefs := &db.Preference{Religion: "hindu", IncomeMin: 500000}

	first := s.Score(viewer, candidate, prefs)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, s.Score(viewer, candidate, prefs))
	}
}

func TestDefaultHoroscope(t *testing.T) {
	h := score.DefaultHoroscope{}

	// same element (leo+aries = fire), manglik agreement
	v, ok := h.Score(db.Profile{Zodiac: "leo"}, db.Profile{Zodiac: "aries"})
	require.True(t, ok)
	assert.Equal(t, 100.0, v)

	// unknown sign means no data
	_, ok = h.Score(db.Profile{Zodiac: "ophiuchus"}, db.Profile{Zodiac: "leo"})
	assert.False(t, ok)

	// manglik disagreement drags the pair down
	agree, _ := h.Score(db.Profile{Zodiac: "taurus"}, db.Profile{Zodiac: "virgo"})
	disagree, _ := h.Score(db.Profile{Zodiac: "taurus"}, db.Profile{Zodiac: "virgo", Manglik: true})
	assert.Greater(t, agree, disagree)
}
