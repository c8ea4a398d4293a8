package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/sangamlabs/match-engine/internal/db"
)

// ProfileRepository is the engine's read-side access to profiles and
// preferences. The engine never writes either table; ownership stays with
// the profile service that feeds them.
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new repository bound to the given DB connection.
func NewProfileRepository(database *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: database}
}

// GetProfile loads one profile by id.
func (r *ProfileRepository) GetProfile(ctx context.Context, userID uint64) (*db.Profile, error) {
	var p db.Profile
	if err := r.db.WithContext(ctx).First(&p, userID).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPreferences loads a user's preference row. A missing row is not an
// error; it means fully permissive defaults and returns nil.
func (r *ProfileRepository) GetPreferences(ctx context.Context, userID uint64) (*db.Preference, error) {
	var pref db.Preference
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&pref).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pref, nil
}

// EligiblePool loads the profiles rankable for the given viewer: active,
// approved, and of the opposite gender. Finer filtering (ranges, pair
// state, score thresholds) happens in the ranker.
func (r *ProfileRepository) EligiblePool(ctx context.Context, viewer *db.Profile) ([]db.Profile, error) {
	var pool []db.Profile
	err := r.db.WithContext(ctx).
		Where("active = ? AND approved = ? AND id <> ? AND gender <> ?",
			true, true, viewer.ID, viewer.Gender).
		Find(&pool).Error
	return pool, err
}

// GetProfiles loads a set of profiles by id, keyed for lookup.
func (r *ProfileRepository) GetProfiles(ctx context.Context, ids []uint64) (map[uint64]db.Profile, error) {
	if len(ids) == 0 {
		return map[uint64]db.Profile{}, nil
	}
	var profiles []db.Profile
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&profiles).Error; err != nil {
		return nil, err
	}
	out := make(map[uint64]db.Profile, len(profiles))
	for _, p := range profiles {
		out[p.ID] = p
	}
	return out, nil
}

// ActiveUserIDs lists every active approved user id, for fleet-wide batch
// generation.
func (r *ProfileRepository) ActiveUserIDs(ctx context.Context) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("active = ? AND approved = ?", true, true).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}
