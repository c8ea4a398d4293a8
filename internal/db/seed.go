package db

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	seedReligions  = []string{"hindu", "muslim", "christian", "sikh", "jain"}
	seedCastes     = []string{"brahmin", "kshatriya", "maratha", "reddy", "nair", "other"}
	seedTongues    = []string{"hindi", "marathi", "tamil", "telugu", "punjabi", "kannada"}
	seedEducations = []string{"high_school", "diploma", "bachelors", "masters", "doctorate"}
	seedDiets      = []string{"veg", "non_veg", "eggetarian", "vegan"}
	seedHabits     = []string{"never", "occasionally", "regularly"}
	seedZodiacs    = []string{
		"aries", "taurus", "gemini", "cancer", "leo", "virgo",
		"libra", "scorpio", "sagittarius", "capricorn", "aquarius", "pisces",
	}
	seedCities = []struct {
		city, state string
	}{
		{"Mumbai", "Maharashtra"},
		{"Pune", "Maharashtra"},
		{"Bengaluru", "Karnataka"},
		{"Chennai", "Tamil Nadu"},
		{"Delhi", "Delhi"},
		{"Hyderabad", "Telangana"},
	}
)

// SeedTestData resets the database and populates it with demo profiles,
// preferences and a sprinkling of actions.
//
// Behavior:
//  1. Clears existing rows in all engine tables.
//  2. Creates 30 approved profiles (15 male, 15 female) with hashed
//     passwords, randomized attributes and ~20% premium accounts.
//  3. Creates a preference row for roughly two thirds of them.
//  4. Records ~60 directional actions with a bias toward likes; every 4th
//     like is answered so mutual matches exist out of the box.
//
// Compatible with both MySQL and SQLite.
func SeedTestData(gdb *gorm.DB) error {
	r := rand.New(rand.NewSource(42)) // stable demo dataset across runs

	// --- Fresh start ---
	for _, table := range []string{"daily_batches", "match_records", "preferences", "profiles"} {
		if err := gdb.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	switch gdb.Dialector.Name() {
	case "mysql":
		gdb.Exec("ALTER TABLE profiles AUTO_INCREMENT = 1")
		gdb.Exec("ALTER TABLE daily_batches AUTO_INCREMENT = 1")
	case "sqlite":
		gdb.Exec("DELETE FROM sqlite_sequence WHERE name IN ('profiles', 'daily_batches')")
	}
	log.Println("Cleared existing data")

	// --- Profiles ---
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	for i := 1; i <= 30; i++ {
		gender := "male"
		if i > 15 {
			gender = "female"
		}
		loc := seedCities[r.Intn(len(seedCities))]
		tier := "free"
		if r.Intn(100) < 20 {
			tier = "premium"
		}

		profile := Profile{
			DisplayName:  fmt.Sprintf("user%d", i),
			Email:        fmt.Sprintf("user%d@example.com", i),
			PasswordHash: string(hash),
			Gender:       gender,
			BirthDate:    now.AddDate(-(22 + r.Intn(16)), -r.Intn(12), -r.Intn(28)),
			HeightCM:     150 + r.Intn(45),
			Country:      "India",
			State:        loc.state,
			City:         loc.city,
			Religion:     seedReligions[r.Intn(len(seedReligions))],
			Caste:        seedCastes[r.Intn(len(seedCastes))],
			MotherTongue: seedTongues[r.Intn(len(seedTongues))],
			Education:    seedEducations[r.Intn(len(seedEducations))],
			Occupation:   "engineer",
			AnnualIncome: int64(400000 + r.Intn(30)*100000),
			Diet:         seedDiets[r.Intn(len(seedDiets))],
			Smoking:      seedHabits[r.Intn(len(seedHabits))],
			Drinking:     seedHabits[r.Intn(len(seedHabits))],
			Zodiac:       seedZodiacs[r.Intn(len(seedZodiacs))],
			Manglik:      r.Intn(100) < 15,
			Tier:         tier,
			Active:       true,
			Approved:     true,
			Completeness: 0.6 + 0.4*r.Float64(),
			LastActiveAt: now.Add(-time.Duration(r.Intn(72)) * time.Hour),
		}
		if err := gdb.Create(&profile).Error; err != nil {
			return fmt.Errorf("failed to seed profile: %w", err)
		}

		// ~2/3 of users have stated preferences
		if r.Intn(3) < 2 {
			pref := Preference{
				UserID:   profile.ID,
				AgeMin:   22,
				AgeMax:   40,
				Religion: profile.Religion,
			}
			if r.Intn(2) == 0 {
				pref.CasteNoBar = true
			}
			if err := gdb.Create(&pref).Error; err != nil {
				return fmt.Errorf("failed to seed preference: %w", err)
			}
		}
	}
	log.Println("Seeded 30 profiles.")

	// --- Actions ---
	likes := 0
	for n := 0; n < 60; n++ {
		actorID := uint64(r.Intn(30) + 1)
		targetID := uint64(r.Intn(30) + 1)
		if actorID == targetID {
			continue
		}
		// keep seed pairs cross-gender like the real flow would
		if (actorID <= 15) == (targetID <= 15) {
			continue
		}

		action := ActionLiked
		if r.Intn(100) >= 70 {
			action = ActionDisliked
		}

		if err := seedAction(gdb, actorID, targetID, action); err != nil {
			return err
		}
		if action == ActionLiked {
			likes++
			// every 4th like is answered → guaranteed matches
			if likes%4 == 0 {
				if err := seedAction(gdb, targetID, actorID, ActionLiked); err != nil {
					return err
				}
			}
		}
	}

	log.Println("Seeding completed.")
	return nil
}

// seedAction writes one directional action straight into the pair row,
// mirroring what repository.RecordAction would produce.
func seedAction(gdb *gorm.DB, actorID, targetID uint64, action string) error {
	aID, bID := actorID, targetID
	if bID < aID {
		aID, bID = bID, aID
	}

	seed := MatchRecord{UserAID: aID, UserBID: bID, AToBAction: ActionPending, BToAAction: ActionPending}
	if err := gdb.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return fmt.Errorf("failed to seed pair row: %w", err)
	}

	var rec MatchRecord
	if err := gdb.Where("user_a_id = ? AND user_b_id = ?", aID, bID).First(&rec).Error; err != nil {
		return fmt.Errorf("failed to load pair row: %w", err)
	}

	now := time.Now()
	if actorID == aID {
		rec.AToBAction = action
		rec.AActedAt = &now
	} else {
		rec.BToAAction = action
		rec.BActedAt = &now
	}
	if IsLike(rec.AToBAction) && IsLike(rec.BToAAction) && rec.MatchedAt == nil {
		rec.MatchedAt = &now
	}

	if err := gdb.Save(&rec).Error; err != nil {
		return fmt.Errorf("failed to seed action: %w", err)
	}
	return nil
}
