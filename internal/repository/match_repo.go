package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sangamlabs/match-engine/internal/db"
	apperrors "github.com/sangamlabs/match-engine/internal/errors"
	"github.com/sangamlabs/match-engine/internal/utils/pagination"
)

// MatchRepository provides data access for the canonical pair rows.
// It owns the pair state machine: every directional action funnels through
// RecordAction under a row lock, so concurrent mutual likes resolve to
// exactly one match.
type MatchRepository struct {
	db *gorm.DB
}

// NewMatchRepository creates a new repository bound to the given DB connection.
func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

// canonical orders a pair so (a, b) always has a < b, matching the row layout.
func canonical(x, y uint64) (a, b uint64, xIsA bool) {
	if x < y {
		return x, y, true
	}
	return y, x, false
}

// ActionOutcome reports what RecordAction did.
type ActionOutcome struct {
	Record db.MatchRecord

	// Matched is true only on the call that created the mutual match.
	// Replays of the same like keep it false so match events fire once.
	Matched bool

	// AlreadyActed is true when the action repeated the stored state and
	// nothing was written.
	AlreadyActed bool

	// RefundAction names a previously spent like the caller should refund
	// (set when a block overwrites the blocker's own like).
	RefundAction string

	// Unmatched is true when this action dissolved an existing match.
	Unmatched bool
}

// Liker is one row of the liked-me feed: who liked the user, how, and when.
type Liker struct {
	LikerID uint64    `gorm:"column:liker_id"`
	Action  string    `gorm:"column:liker_action"`
	ActedAt time.Time `gorm:"column:acted_at"`
}

// RecordAction applies one directional action to the pair row.
//
// The row is created on first contact (insert-if-absent), then loaded under
// a FOR UPDATE lock so the state transition and the mutual-match check are
// atomic. Rules, in order:
//
//   - blocking is always permitted, even against a counterpart who blocked
//     first; every other action on a pair blocked by the other side is
//     rejected
//   - the actor's own block only accepts a repeated block (no-op); any other
//     action requires an explicit Unblock first
//   - repeating the stored action is a no-op, never an error
//   - a matched pair is frozen: only block changes it (and dissolves it);
//     like-kind changes and dislikes are rejected
//   - both directions resolving to a like sets matched_at exactly once
//   - a block clears matched_at, wipes the counterpart's pending/like state
//     (their own block stays), and reports the actor's overwritten like for
//     quota refund
func (r *MatchRepository) RecordAction(
	ctx context.Context,
	actorID, targetID uint64,
	action string,
) (ActionOutcome, error) {
	var out ActionOutcome

	if actorID == targetID {
		return out, apperrors.InvalidInput("cannot act on yourself")
	}
	switch action {
	case db.ActionLiked, db.ActionSuperLiked, db.ActionDisliked, db.ActionBlocked:
	default:
		return out, apperrors.InvalidInput("unknown action %q", action)
	}

	aID, bID, actorIsA := canonical(actorID, targetID)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// ensure the row exists before locking it
		seed := db.MatchRecord{
			UserAID:    aID,
			UserBID:    bID,
			AToBAction: db.ActionPending,
			BToAAction: db.ActionPending,
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return err
		}

		var rec db.MatchRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_a_id = ? AND user_b_id = ?", aID, bID).
			First(&rec).Error; err != nil {
			return err
		}

		own, other := rec.AToBAction, rec.BToAAction
		if !actorIsA {
			own, other = other, own
		}

		if own == db.ActionBlocked {
			if action == db.ActionBlocked {
				out = ActionOutcome{Record: rec, AlreadyActed: true}
				return nil
			}
			return apperrors.AlreadyBlocked()
		}
		// a block from the other side rejects everything except the actor's
		// own block, which is always permitted
		if other == db.ActionBlocked && action != db.ActionBlocked {
			return apperrors.AlreadyBlocked()
		}

		if own == action {
			out = ActionOutcome{Record: rec, AlreadyActed: true}
			return nil
		}

		if rec.MatchedAt != nil && action != db.ActionBlocked {
			return apperrors.AlreadyMatched()
		}

		now := time.Now()
		if actorIsA {
			rec.AToBAction = action
			rec.AActedAt = &now
		} else {
			rec.BToAAction = action
			rec.BActedAt = &now
		}

		switch {
		case action == db.ActionBlocked:
			out.Unmatched = rec.MatchedAt != nil
			rec.MatchedAt = nil
			if db.IsLike(own) {
				out.RefundAction = own
			}
			// blocking clears the counterpart's pending/like state in the
			// same write; only their own block survives it
			if other != db.ActionBlocked {
				if actorIsA {
					rec.BToAAction = db.ActionPending
					rec.BActedAt = nil
				} else {
					rec.AToBAction = db.ActionPending
					rec.AActedAt = nil
				}
			}
		case db.IsLike(action) && db.IsLike(other) && rec.MatchedAt == nil:
			rec.MatchedAt = &now
			out.Matched = true
		}

		if err := tx.Save(&rec).Error; err != nil {
			return err
		}
		out.Record = rec
		return nil
	})
	if err != nil {
		return ActionOutcome{}, err
	}
	return out, nil
}

// Unmatch dissolves an existing match on the initiator's behalf: their
// direction flips to dislike, matched_at clears, and the other side's like
// stays recorded. The pair can match again only after the initiator re-likes.
func (r *MatchRepository) Unmatch(ctx context.Context, actorID, targetID uint64) error {
	if actorID == targetID {
		return apperrors.InvalidInput("cannot act on yourself")
	}
	aID, bID, actorIsA := canonical(actorID, targetID)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec db.MatchRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_a_id = ? AND user_b_id = ?", aID, bID).
			First(&rec).Error; err != nil {
			return err
		}
		if rec.MatchedAt == nil {
			return apperrors.NotFound("no match between %d and %d", actorID, targetID)
		}

		now := time.Now()
		if actorIsA {
			rec.AToBAction = db.ActionDisliked
			rec.AActedAt = &now
		} else {
			rec.BToAAction = db.ActionDisliked
			rec.BActedAt = &now
		}
		rec.MatchedAt = nil
		return tx.Save(&rec).Error
	})
}

// Unblock lifts the actor's own block, returning their direction to
// pending. The counterpart's direction was already cleared when the block
// landed, so the pair restarts from scratch; a block from the other side
// stays in force.
func (r *MatchRepository) Unblock(ctx context.Context, actorID, targetID uint64) error {
	if actorID == targetID {
		return apperrors.InvalidInput("cannot act on yourself")
	}
	aID, bID, actorIsA := canonical(actorID, targetID)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec db.MatchRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_a_id = ? AND user_b_id = ?", aID, bID).
			First(&rec).Error; err != nil {
			return err
		}

		own, _ := rec.Direction(actorID)
		if own != db.ActionBlocked {
			return apperrors.InvalidInput("user %d has not blocked user %d", actorID, targetID)
		}

		if actorIsA {
			rec.AToBAction = db.ActionPending
			rec.AActedAt = nil
		} else {
			rec.BToAAction = db.ActionPending
			rec.BActedAt = nil
		}
		return tx.Save(&rec).Error
	})
}

// GetPair loads the canonical row for a pair, if any.
func (r *MatchRepository) GetPair(ctx context.Context, x, y uint64) (*db.MatchRecord, error) {
	aID, bID, _ := canonical(x, y)
	var rec db.MatchRecord
	err := r.db.WithContext(ctx).
		Where("user_a_id = ? AND user_b_id = ?", aID, bID).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListMutualMatches returns the user's current matches, newest first.
func (r *MatchRepository) ListMutualMatches(ctx context.Context, userID uint64) ([]db.MatchRecord, error) {
	var recs []db.MatchRecord
	err := r.db.WithContext(ctx).
		Where("(user_a_id = ? OR user_b_id = ?) AND matched_at IS NOT NULL", userID, userID).
		Order("matched_at DESC, user_a_id ASC, user_b_id ASC").
		Find(&recs).Error
	return recs, err
}

// likerAction and likerActedAt pick the incoming direction's columns
// relative to the viewing user, whichever side of the canonical pair they
// sit on.
const (
	likerID      = "CASE WHEN m.user_a_id = ? THEN m.user_b_id ELSE m.user_a_id END"
	likerAction  = "CASE WHEN m.user_a_id = ? THEN m.b_to_a_action ELSE m.a_to_b_action END"
	likerActedAt = "CASE WHEN m.user_a_id = ? THEN m.b_acted_at ELSE m.a_acted_at END"
	ownAction    = "CASE WHEN m.user_a_id = ? THEN m.a_to_b_action ELSE m.b_to_a_action END"
)

// ListLikers returns users who liked the viewer and are still awaiting a
// response: pending on the viewer's side, not matched, not blocked either
// way. Ordered by like time DESC then liker id DESC, with an opaque cursor.
func (r *MatchRepository) ListLikers(
	ctx context.Context,
	userID uint64,
	paginationToken *string,
	limit int,
) ([]Liker, *string, error) {
	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, apperrors.InvalidInput("%s", err.Error())
	}

	query := r.db.WithContext(ctx).
		Table("match_records m").
		Select(
			likerID+" AS liker_id, "+likerAction+" AS liker_action, "+likerActedAt+" AS acted_at",
			userID, userID, userID,
		).
		Where("m.user_a_id = ? OR m.user_b_id = ?", userID, userID).
		Where(likerAction+" IN ?", userID, []string{db.ActionLiked, db.ActionSuperLiked}).
		Where(ownAction+" = ?", userID, db.ActionPending).
		Where("m.matched_at IS NULL").
		Order("acted_at DESC, liker_id DESC").
		Limit(limit + 1)

	// apply cursor
	if cursor.LikerID > 0 && cursor.ActedUnix > 0 {
		ts := time.UnixMilli(cursor.ActedUnix)
		query = query.Where(
			"("+likerActedAt+" < ? OR ("+likerActedAt+" = ? AND "+likerID+" < ?))",
			userID, ts, userID, ts, userID, cursor.LikerID,
		)
	}

	var likers []Liker
	if err := query.Scan(&likers).Error; err != nil {
		return nil, nil, err
	}

	// pagination: build next cursor if needed
	var nextToken *string
	if len(likers) > limit {
		last := likers[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			LikerID:   last.LikerID,
			ActedUnix: last.ActedAt.UnixMilli(),
		})
		nextToken = &token
		likers = likers[:limit]
	}

	return likers, nextToken, nil
}

// PairStates summarizes the user's pair rows for ranking exclusions:
// counterparts they already acted on, and pairs blocked in either direction.
func (r *MatchRepository) PairStates(ctx context.Context, userID uint64) (acted, blocked map[uint64]bool, err error) {
	var recs []db.MatchRecord
	if err := r.db.WithContext(ctx).
		Where("user_a_id = ? OR user_b_id = ?", userID, userID).
		Find(&recs).Error; err != nil {
		return nil, nil, err
	}

	acted = make(map[uint64]bool, len(recs))
	blocked = make(map[uint64]bool)
	for _, rec := range recs {
		counterpart := rec.UserAID
		if counterpart == userID {
			counterpart = rec.UserBID
		}
		if own, _ := rec.Direction(userID); own != db.ActionPending {
			acted[counterpart] = true
		}
		if rec.BlockedEither() {
			blocked[counterpart] = true
		}
	}
	return acted, blocked, nil
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
