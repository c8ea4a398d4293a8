package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sangamlabs/match-engine/internal/db"
)

// BatchRepository persists the frozen daily batches.
type BatchRepository struct {
	db *gorm.DB
}

// NewBatchRepository creates a new repository bound to the given DB connection.
func NewBatchRepository(database *gorm.DB) *BatchRepository {
	return &BatchRepository{db: database}
}

// GetBatch loads the stored batch for a user and date, or nil when absent.
func (r *BatchRepository) GetBatch(ctx context.Context, userID uint64, date string) (*db.DailyBatch, error) {
	var batch db.DailyBatch
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND batch_date = ?", userID, date).
		First(&batch).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

// InsertBatch stores a freshly computed batch. The unique (user_id,
// batch_date) index arbitrates concurrent generators: the insert that loses
// reports inserted=false and the caller re-reads the winner's snapshot.
func (r *BatchRepository) InsertBatch(ctx context.Context, batch *db.DailyBatch) (inserted bool, err error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(batch)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
