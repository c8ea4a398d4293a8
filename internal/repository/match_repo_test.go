package repository_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sangamlabs/match-engine/internal/db"
	apperrors "github.com/sangamlabs/match-engine/internal/errors"
	"github.com/sangamlabs/match-engine/internal/repository"
)

// setup in-memory DB
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.AutoMigrate(&db.Profile{}, &db.Preference{}, &db.MatchRecord{}, &db.DailyBatch{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return database
}

func TestRecordActionMutualMatch(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMatchRepository(setupTestDB(t))

	// one-way like: no match yet
	out, err := repo.RecordAction(ctx, 2, 1, db.ActionLiked)
	require.NoError(t, err)
	assert.False(t, out.Matched)
	assert.Nil(t, out.Record.MatchedAt)

	// like back → mutual
	out, err = repo.RecordAction(ctx, 1, 2, db.ActionSuperLiked)
	require.NoError(t, err)
	assert.True(t, out.Matched)
	require.NotNil(t, out.Record.MatchedAt)

	// canonical row: user 1 is side A regardless of who acted first
	assert.Equal(t, uint64(1), out.Record.UserAID)
	assert.Equal(t, uint64(2), out.Record.UserBID)
	assert.Equal(t, db.ActionSuperLiked, out.Record.AToBAction)
	assert.Equal(t, db.ActionLiked, out.Record.BToAAction)
}

func TestRecordActionIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMatchRepository(setupTestDB(t))

	_, err := repo.RecordAction(ctx, 1, 2, db.ActionLiked)
	require.NoError(t, err)

	// replaying the same like is a no-op, not an error
	out, err := repo.RecordAction(ctx, 1, 2, db.ActionLiked)
	require.NoError(t, err)
	assert.True(t, out.AlreadyActed)

	// replay after the pair matched must not signal a second match
	_, err = repo.RecordAction(ctx, 2, 1, db.ActionLiked)
	require.NoError(t, err)
	out, err = repo.RecordAction(ctx, 1, 2, db.ActionLiked)
	require.NoError(t, err)
	assert.True(t, out.AlreadyActed)
	assert.False(t, out.Matched)
}

func TestRecordActionRejectsChangeAfterMatch(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMatchRepository(setupTestDB(t))

	_, err := repo.RecordAction(ctx, 1, 2, db.ActionLiked)
	require.NoError(t, err)
	_, err = repo.RecordAction(ctx, 2, 1, db.ActionLiked)
	require.NoError(t, err)

	// a matched pair is frozen against everything but block
	_, err = repo.RecordAction(ctx, 1, 2, db.ActionDisliked)
	assert.ErrorIs(t, err, apperrors.AlreadyMatched())
	_, err = repo.RecordAction(ctx, 1, 2, db.ActionSuperLiked)
	assert.ErrorIs(t, err, apperrors.AlreadyMatched())
}

func TestRecordActionValidation(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMatchRepository(setupTestDB(t))

	_, err := repo.RecordAction(ctx, 1, 1, db.ActionLiked)
	assert.ErrorIs(t, err, apperrors.InvalidInput(""))

	_, err = repo.RecordAction(ctx, 1, 2, "winked")
	assert.ErrorIs(t, err, apperrors.InvalidInput(""))
}

func TestBlockSemantics(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMatchRepository(setupTestDB(t))

	// 1 spends a like, then blocks: the like is reported for refund
	_, err := repo.RecordAction(ctx, 1, 2, db.ActionLiked)
	require.NoError(t, err)
	out, err := repo.RecordAction(ctx, 1, 2, db.ActionBlocked)
	require.NoError(t, err)
	assert.Equal(t, db.ActionLiked, out.RefundAction)

	// repeated block is a no-op
	out, err = repo.RecordAction(ctx, 1, 2, db.ActionBlocked)
	require.NoError(t, err)
	assert.True(t, out.AlreadyActed)

	// blocker must unblock before acting again
	_, err = repo.RecordAction(ctx, 1, 2, db.ActionLiked)
	assert.ErrorIs(t, err, apperrors.AlreadyBlocked())

	// the blocked side cannot like or dislike
	_, err = repo.RecordAction(ctx, 2, 1, db.ActionLiked)
	assert.ErrorIs(t, err, apperrors.AlreadyBlocked())
	_, err = repo.RecordAction(ctx, 2, 1, db.ActionDisliked)
	assert.ErrorIs(t, err, apperrors.AlreadyBlocked())

	// but blocking back is always permitted
	out, err = repo.RecordAction(ctx, 2, 1, db.ActionBlocked)
	require.NoError(t, err)
	assert.False(t, out.AlreadyActed)

	// with both sides blocked, one unblock does not reopen the pair
	require.NoError(t, repo.Unblock(ctx, 1, 2))
	_, err = repo.RecordAction(ctx, 1, 2, db.ActionLiked)
	assert.ErrorIs(t, err, apperrors.AlreadyBlocked())
}

func TestBlockDissolvesMatch(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMatchRepository(setupTestDB(t))

	_, err := repo.RecordAction(ctx, 1, 2, db.ActionLiked)
	require.NoError(t, err)
	_, err = repo.RecordAction(ctx, 2, 1, db.ActionLiked)
	require.NoError(t, err)

	out, err := repo.RecordAction(ctx, 2, 1, db.ActionBlocked)
	require.NoError(t, err)
	assert.Nil(t, out.Record.MatchedAt)

	matches, err := repo.ListMutualMatches(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestBlockClearsBothDirections(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMatchRepository(setupTestDB(t))

	_, err := repo.RecordAction(ctx, 2, 1, db.ActionLiked)
	require.NoError(t, err)
	out, err := repo.RecordAction(ctx, 1, 2, db.ActionBlocked)
	require.NoError(t, err)

	// the counterpart's like is wiped in the same write as the block
	other, otherAt := out.Record.Direction(2)
	assert.Equal(t, db.ActionPending, other)
	assert.Nil(t, otherAt)

	// only the blocker may unblock
	err = repo.Unblock(ctx, 2, 1)
	assert.ErrorIs(t, err, apperrors.InvalidInput(""))

	require.NoError(t, repo.Unblock(ctx, 1, 2))

	rec, err := repo.GetPair(ctx, 1, 2)
	require.NoError(t, err)
	own, _ := rec.Direction(1)
	other, _ = rec.Direction(2)
	assert.Equal(t, db.ActionPending, own)
	assert.Equal(t, db.ActionPending, other)

	// the pre-block like must not resurface as an instant match
	liked, err := repo.RecordAction(ctx, 1, 2, db.ActionLiked)
	require.NoError(t, err)
	assert.False(t, liked.Matched)

	// both sides acting fresh still match normally
	liked, err = repo.RecordAction(ctx, 2, 1, db.ActionLiked)
	require.NoError(t, err)
	assert.True(t, liked.Matched)
}

func TestUnmatch(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMatchRepository(setupTestDB(t))

	// no match yet → not found
	err := repo.Unmatch(ctx, 1, 2)
	assert.Error(t, err)

	_, err = repo.RecordAction(ctx, 1, 2, db.ActionLiked)
	require.NoError(t, err)
	_, err = repo.RecordAction(ctx, 2, 1, db.ActionLiked)
	require.NoError(t, err)

	require.NoError(t, repo.Unmatch(ctx, 1, 2))

	rec, err := repo.GetPair(ctx, 1, 2)
	require.NoError(t, err)
	assert.Nil(t, rec.MatchedAt)
	own, _ := rec.Direction(1)
	other, _ := rec.Direction(2)
	assert.Equal(t, db.ActionDisliked, own)
	assert.Equal(t, db.ActionLiked, other)
}

func TestListLikersAndPagination(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMatchRepository(setupTestDB(t))

	// users 2,3,4 liked user 1; spaced out so ordering is deterministic
	for _, actor := range []uint64{2, 3, 4} {
		_, err := repo.RecordAction(ctx, actor, 1, db.ActionLiked)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}
	// user 1 disliked user 3 → excluded
	_, err := repo.RecordAction(ctx, 1, 3, db.ActionDisliked)
	require.NoError(t, err)
	// user 5 liked user 1 but then 1 liked back → matched, excluded
	_, err = repo.RecordAction(ctx, 5, 1, db.ActionLiked)
	require.NoError(t, err)
	_, err = repo.RecordAction(ctx, 1, 5, db.ActionLiked)
	require.NoError(t, err)
	// user 6 liked user 1 but 1 blocked them → excluded
	_, err = repo.RecordAction(ctx, 6, 1, db.ActionLiked)
	require.NoError(t, err)
	_, err = repo.RecordAction(ctx, 1, 6, db.ActionBlocked)
	require.NoError(t, err)

	likers, next, err := repo.ListLikers(ctx, 1, nil, 10)
	require.NoError(t, err)
	assert.Nil(t, next)
	require.Len(t, likers, 2)
	// newest like first
	assert.Equal(t, uint64(4), likers[0].LikerID)
	assert.Equal(t, uint64(2), likers[1].LikerID)

	// page of 1 yields a cursor; following it returns the remainder
	page1, next, err := repo.ListLikers(ctx, 1, nil, 1)
	require.NoError(t, err)
	require.NotNil(t, next)
	require.Len(t, page1, 1)
	assert.Equal(t, uint64(4), page1[0].LikerID)

	page2, next, err := repo.ListLikers(ctx, 1, next, 1)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, uint64(2), page2[0].LikerID)
	assert.Nil(t, next)

	// garbage token is rejected as bad input
	bad := "not-a-token"
	_, _, err = repo.ListLikers(ctx, 1, &bad, 10)
	assert.ErrorIs(t, err, apperrors.InvalidInput(""))
}

func TestConcurrentLikesCreateOneMatch(t *testing.T) {
	ctx := context.Background()

	// a plain ":memory:" DSN gives every pooled connection its own
	// database, so concurrent access needs a shared-cache one
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	database, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(&db.Profile{}, &db.Preference{}, &db.MatchRecord{}, &db.DailyBatch{}))

	repo := repository.NewMatchRepository(database)

	var matched, failures atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		actor, target := uint64(1), uint64(2)
		if i%2 == 1 {
			actor, target = target, actor
		}
		wg.Add(1)
		go func(actor, target uint64) {
			defer wg.Done()
			out, err := repo.RecordAction(ctx, actor, target, db.ActionLiked)
			if err != nil {
				failures.Add(1)
				return
			}
			if out.Matched {
				matched.Add(1)
			}
		}(actor, target)
	}
	wg.Wait()

	// exactly one writer observes the transition to matched
	assert.EqualValues(t, 0, failures.Load())
	assert.EqualValues(t, 1, matched.Load())

	rec, err := repo.GetPair(ctx, 1, 2)
	require.NoError(t, err)
	assert.NotNil(t, rec.MatchedAt)
}

func TestPairStates(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMatchRepository(setupTestDB(t))

	_, err := repo.RecordAction(ctx, 1, 2, db.ActionLiked)
	require.NoError(t, err)
	_, err = repo.RecordAction(ctx, 1, 3, db.ActionBlocked)
	require.NoError(t, err)
	_, err = repo.RecordAction(ctx, 4, 1, db.ActionLiked) // incoming only
	require.NoError(t, err)

	acted, blocked, err := repo.PairStates(ctx, 1)
	require.NoError(t, err)

	assert.True(t, acted[2])
	assert.True(t, acted[3])
	assert.False(t, acted[4]) // 1 has not acted on 4
	assert.True(t, blocked[3])
	assert.False(t, blocked[2])
}
