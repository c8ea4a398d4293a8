package db

import (
	"time"
)

// Directional actions recorded on a pair.
const (
	ActionPending    = "pending"
	ActionLiked      = "liked"
	ActionSuperLiked = "super_liked"
	ActionDisliked   = "disliked"
	ActionBlocked    = "blocked"
)

// IsLike reports whether an action counts toward a mutual match.
func IsLike(action string) bool {
	return action == ActionLiked || action == ActionSuperLiked
}

// Profile is the engine's read view of a platform user. It is owned by the
// profile collaborator; the engine only ever reads it.
type Profile struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	DisplayName  string `gorm:"size:64;not null"`
	Email        string `gorm:"uniqueIndex;size:128;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	Gender       string `gorm:"size:16;not null;index"`
	BirthDate    time.Time

	HeightCM int
	Country  string `gorm:"size:64"`
	State    string `gorm:"size:64"`
	City     string `gorm:"size:64"`

	Religion     string `gorm:"size:32"`
	Caste        string `gorm:"size:32"`
	MotherTongue string `gorm:"size:32"`

	Education     string `gorm:"size:32"`
	Occupation    string `gorm:"size:64"`
	AnnualIncome  int64
	Diet          string `gorm:"size:16"`
	Smoking       string `gorm:"size:16"`
	Drinking      string `gorm:"size:16"`
	MaritalStatus string `gorm:"size:24"`

	Zodiac    string `gorm:"size:16"`
	Nakshatra string `gorm:"size:24"`
	Manglik   bool

	Tier         string  `gorm:"size:16;not null;default:free"`
	Active       bool    `gorm:"default:true"`
	Approved     bool    `gorm:"default:false"`
	Completeness float64 `gorm:"not null;default:0"`
	LastActiveAt time.Time

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Age derives the profile's age at the given instant. Returns 0 when the
// birth date is unset (zero value), which scorers treat as missing data.
func (p Profile) Age(now time.Time) int {
	if p.BirthDate.IsZero() {
		return 0
	}
	years := now.Year() - p.BirthDate.Year()
	anniversary := p.BirthDate.AddDate(years, 0, 0)
	if anniversary.After(now) {
		years--
	}
	return years
}

// Preference holds a user's partner preferences. One optional row per user;
// absence means fully permissive defaults. "NoBar" flags disable both the
// hard filter and the scoring factor for that field.
type Preference struct {
	UserID uint64 `gorm:"primaryKey;autoIncrement:false"`

	AgeMin      int
	AgeMax      int
	HeightMinCM int
	HeightMaxCM int
	IncomeMin   int64

	Religion     string `gorm:"size:32"`
	Caste        string `gorm:"size:32"`
	MotherTongue string `gorm:"size:32"`
	EducationMin string `gorm:"size:32"`
	Diet         string `gorm:"size:16"`

	AcceptManglik bool

	ReligionNoBar     bool
	CasteNoBar        bool
	MotherTongueNoBar bool
	DietNoBar         bool
	ManglikNoBar      bool

	// MinScore drops candidates scoring below this threshold from ranking.
	MinScore float64

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// MatchRecord is the canonical row for a user pair.
//
// Composite PK: (UserAID, UserBID) with UserAID < UserBID always, so each
// unordered pair maps to exactly one row. Actions are stored per direction:
// AToBAction is what user A did to user B, BToAAction the reverse.
//
// MatchedAt is set exactly once when both directions resolve to a like, and
// cleared only by an explicit unmatch or block. Rows are never hard-deleted;
// blocking is a state, not a deletion.
type MatchRecord struct {
	UserAID uint64 `gorm:"primaryKey;autoIncrement:false;index:idx_b_to_a_action,priority:2"`
	UserBID uint64 `gorm:"primaryKey;autoIncrement:false;index:idx_a_to_b_action,priority:2"`

	AToBAction string `gorm:"size:16;not null;default:pending;index:idx_a_to_b_action,priority:1"`
	AActedAt   *time.Time
	BToAAction string `gorm:"size:16;not null;default:pending;index:idx_b_to_a_action,priority:1"`
	BActedAt   *time.Time

	MatchedAt *time.Time `gorm:"index"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Direction returns the actor's recorded action and timestamp.
func (m MatchRecord) Direction(actorID uint64) (string, *time.Time) {
	if actorID == m.UserAID {
		return m.AToBAction, m.AActedAt
	}
	return m.BToAAction, m.BActedAt
}

// BlockedEither reports whether either side has blocked the other.
func (m MatchRecord) BlockedEither() bool {
	return m.AToBAction == ActionBlocked || m.BToAAction == ActionBlocked
}

// DailyBatch is the frozen once-per-day curated candidate list for a user.
//
// Unique index on (UserID, BatchDate) enforces the one-batch-per-day
// invariant; regeneration attempts hit the conflict and return the stored
// snapshot unchanged.
type DailyBatch struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	UserID    uint64 `gorm:"uniqueIndex:idx_user_batch_date,priority:1;not null"`
	BatchDate string `gorm:"size:10;uniqueIndex:idx_user_batch_date,priority:2;not null"`

	// Entries is the ordered JSON list of {candidate_id, score} pairs.
	Entries []byte `gorm:"type:json;not null"`

	GeneratedAt time.Time `gorm:"not null"`
}

// BatchEntry is one element of DailyBatch.Entries.
type BatchEntry struct {
	CandidateID uint64  `json:"candidate_id"`
	Score       float64 `json:"score"`
}
