package match

import (
	"context"
	"time"

	"github.com/sangamlabs/match-engine/internal/app"
	"github.com/sangamlabs/match-engine/internal/db"
	"github.com/sangamlabs/match-engine/internal/engine/batch"
	"github.com/sangamlabs/match-engine/internal/engine/rank"
	"github.com/sangamlabs/match-engine/internal/engine/score"
	svcErr "github.com/sangamlabs/match-engine/internal/errors"
	"github.com/sangamlabs/match-engine/internal/event"
	"github.com/sangamlabs/match-engine/internal/metrics"
	"github.com/sangamlabs/match-engine/internal/quota"
	"github.com/sangamlabs/match-engine/internal/repository"
)

// Facade-level actions. The first four are stored pair states; unblock and
// unmatch are transitions on existing state.
const (
	ActionUnblock = "unblock"
	ActionUnmatch = "unmatch"
)

// Service is the matching engine's facade. It owns the orchestration order
// (quota before state, events after commit) on top of the repository,
// quota and engine layers.
type Service struct {
	appCtx       *app.AppContext
	profileRepo  *repository.ProfileRepository
	matchRepo    *repository.MatchRepository
	ranker       *rank.Ranker
	enforcer     *quota.Enforcer
	generator    *batch.Generator
	sink         event.Sink
	bootstrapper event.ConversationBootstrapper
}

// NewService wires the facade from AppContext. Pass nil sink/bootstrapper
// for the logging and no-op defaults.
func NewService(appCtx *app.AppContext, sink event.Sink, bootstrapper event.ConversationBootstrapper) *Service {
	if sink == nil {
		sink = event.NewLogSink(appCtx.Logger)
	}
	if bootstrapper == nil {
		bootstrapper = event.NoopBootstrapper{}
	}
	ranker := rank.NewRanker(appCtx.Cfg.Engine, nil)
	return &Service{
		appCtx:       appCtx,
		profileRepo:  repository.NewProfileRepository(appCtx.DB),
		matchRepo:    repository.NewMatchRepository(appCtx.DB),
		ranker:       ranker,
		enforcer:     quota.NewEnforcer(appCtx.RedisCache, appCtx.Cfg.Engine),
		generator:    batch.NewGenerator(appCtx, ranker),
		sink:         sink,
		bootstrapper: bootstrapper,
	}
}

// CandidateView is one ranked candidate as served to clients.
type CandidateView struct {
	UserID      uint64              `json:"user_id"`
	DisplayName string              `json:"display_name"`
	Age         int                 `json:"age,omitempty"`
	City        string              `json:"city,omitempty"`
	Score       float64             `json:"score"`
	Factors     []score.FactorScore `json:"factors,omitempty"`
}

// CandidatesPage is the FindCandidates result.
type CandidatesPage struct {
	Candidates []CandidateView `json:"candidates"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
}

// FindCandidates ranks the live eligible pool for the viewer.
func (s *Service) FindCandidates(ctx context.Context, userID uint64, page, pageSize int, includeActed bool) (*CandidatesPage, error) {
	s.appCtx.Logger.Debug("FindCandidates called", "user_id", userID, "page", page, "include_acted", includeActed)

	viewer, err := s.profileRepo.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !viewer.Active || !viewer.Approved {
		return nil, svcErr.InvalidInput("user %d is not eligible for matching", userID)
	}
	prefs, err := s.profileRepo.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	pool, err := s.profileRepo.EligiblePool(ctx, viewer)
	if err != nil {
		return nil, err
	}
	acted, blocked, err := s.matchRepo.PairStates(ctx, userID)
	if err != nil {
		return nil, err
	}

	if pageSize <= 0 {
		pageSize = s.appCtx.Cfg.Engine.DefaultPageSize
	}
	ranked, total := s.ranker.Rank(*viewer, pool, prefs,
		rank.Exclusions{Acted: acted, Blocked: blocked}, includeActed, page, pageSize)

	out := &CandidatesPage{
		Candidates: make([]CandidateView, 0, len(ranked)),
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
	}
	now := time.Now()
	for _, c := range ranked {
		out.Candidates = append(out.Candidates, CandidateView{
			UserID:      c.Profile.ID,
			DisplayName: c.Profile.DisplayName,
			Age:         c.Profile.Age(now),
			City:        c.Profile.City,
			Score:       c.Score.Overall,
			Factors:     c.Score.Factors,
		})
	}
	return out, nil
}

// ActionResult is the ProcessAction response.
type ActionResult struct {
	Action string `json:"action"`
	// Matched is true only when this call created the mutual match.
	Matched bool `json:"matched"`
	// MutualScore accompanies Matched, mean of the two directional scores.
	MutualScore float64 `json:"mutual_score,omitempty"`
	// Remaining is the leftover daily budget for limited actions, -1 for
	// unlimited ones.
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at,omitempty"`
}

// ProcessAction applies one action from actor to target.
//
// Order matters: quota is consumed before the state write so an exhausted
// budget can never leak a state change, and refunded again when the write
// fails or turns out to be a replay. Events and conversation bootstrap run
// after commit, fire and forget; a sink outage never rolls back a match.
func (s *Service) ProcessAction(ctx context.Context, actorID, targetID uint64, action string) (*ActionResult, error) {
	s.appCtx.Logger.Debug("ProcessAction called", "actor", actorID, "target", targetID, "action", action)

	switch action {
	case ActionUnblock:
		if err := s.matchRepo.Unblock(ctx, actorID, targetID); err != nil {
			return nil, err
		}
		return &ActionResult{Action: action, Remaining: -1}, nil
	case ActionUnmatch:
		if err := s.matchRepo.Unmatch(ctx, actorID, targetID); err != nil {
			return nil, err
		}
		s.emitMatchEnded(actorID, targetID, "unmatched")
		return &ActionResult{Action: action, Remaining: -1}, nil
	}

	actor, err := s.profileRepo.GetProfile(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if _, err := s.profileRepo.GetProfile(ctx, targetID); err != nil {
		return nil, err
	}

	res := quota.Result{Remaining: -1}
	consumed := false
	if s.enforcer.Limited(action) {
		res, err = s.enforcer.TryConsume(ctx, actorID, actor.Tier, action)
		if err != nil {
			if svcErr.KindOf(err) == svcErr.KindQuotaExceeded {
				metrics.QuotaRejections.WithLabelValues(action).Inc()
			}
			return nil, err
		}
		consumed = true
	}

	out, err := s.matchRepo.RecordAction(ctx, actorID, targetID, action)
	if err != nil {
		if consumed {
			s.refund(actorID, action)
		}
		return nil, err
	}
	if out.AlreadyActed {
		// replayed request: give the unit back so retries stay free
		if consumed {
			s.refund(actorID, action)
		}
		return &ActionResult{Action: action, Matched: false, Remaining: res.Remaining, ResetAt: res.ResetAt}, nil
	}
	if out.RefundAction != "" {
		s.refund(actorID, out.RefundAction)
	}
	metrics.ActionsRecorded.WithLabelValues(action).Inc()

	result := &ActionResult{Action: action, Matched: out.Matched, Remaining: res.Remaining, ResetAt: res.ResetAt}

	switch {
	case out.Matched:
		metrics.MatchesCreated.Inc()
		result.MutualScore = s.mutualScore(ctx, actorID, targetID)
		s.emitMatchCreated(actorID, targetID, result.MutualScore)
	case db.IsLike(action):
		s.emitLikeReceived(actorID, targetID, action)
	case out.Unmatched:
		s.emitMatchEnded(actorID, targetID, "blocked")
	}

	return result, nil
}

// MatchView is one mutual match as served to clients.
type MatchView struct {
	PartnerID   uint64    `json:"partner_id"`
	DisplayName string    `json:"display_name,omitempty"`
	MatchedAt   time.Time `json:"matched_at"`
	MutualScore float64   `json:"mutual_score,omitempty"`
}

// ListMutualMatches returns the user's current matches, newest first, with
// the display-time mutual score.
func (s *Service) ListMutualMatches(ctx context.Context, userID uint64) ([]MatchView, error) {
	s.appCtx.Logger.Debug("ListMutualMatches called", "user_id", userID)

	recs, err := s.matchRepo.ListMutualMatches(ctx, userID)
	if err != nil {
		return nil, err
	}

	partnerIDs := make([]uint64, 0, len(recs))
	for _, rec := range recs {
		partner := rec.UserAID
		if partner == userID {
			partner = rec.UserBID
		}
		partnerIDs = append(partnerIDs, partner)
	}
	partners, err := s.profileRepo.GetProfiles(ctx, partnerIDs)
	if err != nil {
		return nil, err
	}

	out := make([]MatchView, 0, len(recs))
	for i, rec := range recs {
		partnerID := partnerIDs[i]
		view := MatchView{
			PartnerID:   partnerID,
			MutualScore: s.mutualScore(ctx, userID, partnerID),
		}
		if rec.MatchedAt != nil {
			view.MatchedAt = *rec.MatchedAt
		}
		if p, ok := partners[partnerID]; ok {
			view.DisplayName = p.DisplayName
		}
		out = append(out, view)
	}
	return out, nil
}

// LikerView is one liked-me row as served to clients.
type LikerView struct {
	UserID      uint64    `json:"user_id"`
	DisplayName string    `json:"display_name,omitempty"`
	Action      string    `json:"action"`
	LikedAt     time.Time `json:"liked_at"`
}

// LikersPage is the ListWhoLikedMe result.
type LikersPage struct {
	Likers    []LikerView `json:"likers"`
	NextToken *string     `json:"next_pagination_token,omitempty"`
}

// ListWhoLikedMe returns unanswered incoming likes, newest first. Whether
// the caller may see it (premium gating) is the platform's concern, not
// the engine's.
func (s *Service) ListWhoLikedMe(ctx context.Context, userID uint64, paginationToken *string, limit int) (*LikersPage, error) {
	s.appCtx.Logger.Debug("ListWhoLikedMe called", "user_id", userID)

	if limit <= 0 {
		limit = s.appCtx.Cfg.Engine.DefaultPageSize
	}
	likers, nextToken, err := s.matchRepo.ListLikers(ctx, userID, paginationToken, limit)
	if err != nil {
		return nil, err
	}

	ids := make([]uint64, len(likers))
	for i, l := range likers {
		ids[i] = l.LikerID
	}
	profiles, err := s.profileRepo.GetProfiles(ctx, ids)
	if err != nil {
		return nil, err
	}

	page := &LikersPage{Likers: make([]LikerView, 0, len(likers)), NextToken: nextToken}
	for _, l := range likers {
		view := LikerView{UserID: l.LikerID, Action: l.Action, LikedAt: l.ActedAt}
		if p, ok := profiles[l.LikerID]; ok {
			view.DisplayName = p.DisplayName
		}
		page.Likers = append(page.Likers, view)
	}
	return page, nil
}

// BatchView is the GetDailyBatch result.
type BatchView struct {
	BatchDate   string          `json:"batch_date"`
	GeneratedAt time.Time       `json:"generated_at"`
	Candidates  []CandidateView `json:"candidates"`
}

// GetDailyBatch serves today's frozen batch, generating it on first call.
func (s *Service) GetDailyBatch(ctx context.Context, userID uint64) (*BatchView, error) {
	s.appCtx.Logger.Debug("GetDailyBatch called", "user_id", userID)

	stored, entries, err := s.generator.GenerateFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]uint64, len(entries))
	for i, e := range entries {
		ids[i] = e.CandidateID
	}
	profiles, err := s.profileRepo.GetProfiles(ctx, ids)
	if err != nil {
		return nil, err
	}

	view := &BatchView{
		BatchDate:   stored.BatchDate,
		GeneratedAt: stored.GeneratedAt,
		Candidates:  make([]CandidateView, 0, len(entries)),
	}
	now := time.Now()
	for _, e := range entries {
		cv := CandidateView{UserID: e.CandidateID, Score: e.Score}
		// profile fields are hydrated live; the frozen part is the list and
		// its scores
		if p, ok := profiles[e.CandidateID]; ok {
			cv.DisplayName = p.DisplayName
			cv.Age = p.Age(now)
			cv.City = p.City
		}
		view.Candidates = append(view.Candidates, cv)
	}
	return view, nil
}

// Generator exposes the batch generator for the cron entry point.
func (s *Service) Generator() *batch.Generator { return s.generator }

// mutualScore computes the pair's display figure: each direction under its
// own preferences, averaged. Errors degrade to zero; the score is garnish,
// not contract.
func (s *Service) mutualScore(ctx context.Context, xID, yID uint64) float64 {
	x, err := s.profileRepo.GetProfile(ctx, xID)
	if err != nil {
		return 0
	}
	y, err := s.profileRepo.GetProfile(ctx, yID)
	if err != nil {
		return 0
	}
	xPrefs, _ := s.profileRepo.GetPreferences(ctx, xID)
	yPrefs, _ := s.profileRepo.GetPreferences(ctx, yID)

	scorer := s.ranker.Scorer()
	return score.Mutual(scorer.Score(*x, *y, xPrefs), scorer.Score(*y, *x, yPrefs))
}

func (s *Service) refund(userID uint64, action string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.enforcer.Refund(ctx, userID, action); err != nil {
		s.appCtx.Logger.Error("quota refund failed", "user_id", userID, "action", action, "error", err)
	}
}

func (s *Service) emitLikeReceived(actorID, targetID uint64, action string) {
	ev := event.New(event.TypeLikeReceived, event.LikePayload{
		ActorID: actorID, TargetID: targetID, Action: action,
	})
	s.appCtx.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.sink.Emit(ctx, ev)
	})
}

func (s *Service) emitMatchCreated(actorID, targetID uint64, mutualScore float64) {
	// one addressed event per side
	evs := []event.Event{
		event.New(event.TypeMatchCreated, event.MatchPayload{UserID: actorID, PartnerID: targetID, Score: mutualScore}),
		event.New(event.TypeMatchCreated, event.MatchPayload{UserID: targetID, PartnerID: actorID, Score: mutualScore}),
	}
	s.appCtx.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.bootstrapper.Bootstrap(ctx, actorID, targetID); err != nil {
			s.appCtx.Logger.Error("conversation bootstrap failed", "user_a", actorID, "user_b", targetID, "error", err)
		}
		for _, ev := range evs {
			_ = s.sink.Emit(ctx, ev)
		}
	})
}

func (s *Service) emitMatchEnded(actorID, targetID uint64, reason string) {
	evs := []event.Event{
		event.New(event.TypeMatchEnded, event.MatchPayload{UserID: actorID, PartnerID: targetID, Reason: reason}),
		event.New(event.TypeMatchEnded, event.MatchPayload{UserID: targetID, PartnerID: actorID, Reason: reason}),
	}
	s.appCtx.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, ev := range evs {
			_ = s.sink.Emit(ctx, ev)
		}
	})
}
