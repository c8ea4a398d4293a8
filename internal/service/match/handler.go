package match

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sangamlabs/match-engine/internal/app"
	svcErr "github.com/sangamlabs/match-engine/internal/errors"
	"github.com/sangamlabs/match-engine/internal/event"
)

// Registrar ties the match service into the HTTP server.
type Registrar struct {
	svc *Service
}

// NewRegistrar creates a new Registrar for the match service.
func NewRegistrar(appCtx *app.AppContext, sink event.Sink, bootstrapper event.ConversationBootstrapper) *Registrar {
	return &Registrar{svc: NewService(appCtx, sink, bootstrapper)}
}

// Service exposes the wired facade (used by cmd/batch).
func (r *Registrar) Service() *Service { return r.svc }

// Register attaches the match routes to the router.
func (r *Registrar) Register(router *gin.Engine) {
	v1 := router.Group("/v1")
	{
		v1.POST("/actions", r.postAction)
		v1.GET("/candidates", r.getCandidates)
		v1.GET("/matches", r.getMatches)
		v1.GET("/liked-me", r.getLikedMe)
		v1.GET("/daily-batch", r.getDailyBatch)
	}
}

type actionRequest struct {
	ActorID  uint64 `json:"actor_id" binding:"required"`
	TargetID uint64 `json:"target_id" binding:"required"`
	Action   string `json:"action" binding:"required"`
}

func (r *Registrar) postAction(c *gin.Context) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, svcErr.InvalidInput("invalid request body: %s", err.Error()))
		return
	}

	res, err := r.svc.ProcessAction(c.Request.Context(), req.ActorID, req.TargetID, req.Action)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (r *Registrar) getCandidates(c *gin.Context) {
	userID, err := queryUserID(c)
	if err != nil {
		writeError(c, err)
		return
	}
	page := queryInt(c, "page", 1)
	pageSize := queryInt(c, "page_size", 0)
	includeActed := c.Query("include_acted") == "true"

	res, err := r.svc.FindCandidates(c.Request.Context(), userID, page, pageSize, includeActed)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (r *Registrar) getMatches(c *gin.Context) {
	userID, err := queryUserID(c)
	if err != nil {
		writeError(c, err)
		return
	}
	res, err := r.svc.ListMutualMatches(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": res})
}

func (r *Registrar) getLikedMe(c *gin.Context) {
	userID, err := queryUserID(c)
	if err != nil {
		writeError(c, err)
		return
	}
	var token *string
	if t := c.Query("pagination_token"); t != "" {
		token = &t
	}
	limit := queryInt(c, "limit", 0)

	res, err := r.svc.ListWhoLikedMe(c.Request.Context(), userID, token, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (r *Registrar) getDailyBatch(c *gin.Context) {
	userID, err := queryUserID(c)
	if err != nil {
		writeError(c, err)
		return
	}
	res, err := r.svc.GetDailyBatch(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func queryUserID(c *gin.Context) (uint64, error) {
	raw := c.Query("user_id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, svcErr.InvalidInput("user_id must be a valid uint64")
	}
	return id, nil
}

func queryInt(c *gin.Context, key string, def int) int {
	if raw := c.Query(key); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	return def
}

// writeError maps domain errors onto HTTP statuses. Quota errors carry the
// reset instant so clients can render a countdown.
func writeError(c *gin.Context, err error) {
	status := svcErr.HTTPStatus(err)
	body := gin.H{"error": err.Error()}

	if e, ok := svcErr.As(err); ok && e.Kind == svcErr.KindQuotaExceeded {
		body["remaining"] = e.Remaining
		body["reset_at"] = e.ResetAt
	}
	c.AbortWithStatusJSON(status, body)
}
