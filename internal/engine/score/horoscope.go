package score

import (
	"strings"

	"github.com/sangamlabs/match-engine/internal/db"
)

// zodiacElement groups signs by classical element. Same-element pairs read
// as harmonious; fire-air and earth-water are the complementary pairings.
var zodiacElement = map[string]string{
	"aries": "fire", "leo": "fire", "sagittarius": "fire",
	"taurus": "earth", "virgo": "earth", "capricorn": "earth",
	"gemini": "air", "libra": "air", "aquarius": "air",
	"cancer": "water", "scorpio": "water", "pisces": "water",
}

var complementary = map[string]string{
	"fire":  "air",
	"air":   "fire",
	"earth": "water",
	"water": "earth",
}

// DefaultHoroscope is the built-in astrological input: a coarse
// element-affinity heuristic plus manglik-status agreement. Platforms with a
// real jyotish service supply their own HoroscopeScorer instead.
type DefaultHoroscope struct{}

func (DefaultHoroscope) Score(viewer, candidate db.Profile) (float64, bool) {
	ev, okV := zodiacElement[strings.ToLower(viewer.Zodiac)]
	ec, okC := zodiacElement[strings.ToLower(candidate.Zodiac)]
	if !okV || !okC {
		return 0, false
	}

	var v float64
	switch {
	case ev == ec:
		v = 90
	case complementary[ev] == ec:
		v = 72
	default:
		v = 45
	}

	if viewer.Manglik == candidate.Manglik {
		v += 10
	} else {
		v -= 20
	}

	return clamp(v), true
}
