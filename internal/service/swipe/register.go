package swipe

import (
	"github.com/gin-gonic/gin"

	"github.com/cruxline/crux-engine/internal/app"
	"github.com/cruxline/crux-engine/internal/apperr"
	"github.com/cruxline/crux-engine/internal/server"
)

// Registrar ties the swipe endpoints into the HTTP router
type Registrar struct {
	appCtx *app.AppContext
}

// NewRegistrar creates a new Registrar for the swipe feature
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the swipe routes to the router group
func (r *Registrar) Register(g *gin.RouterGroup) {
	svc := NewService(r.appCtx)

	g.PUT("/swipes", putSwipe(svc))
	g.GET("/matches", listMatches(svc))
}

type putSwipeRequest struct {
	TargetID uint64 `json:"target_id" binding:"required"`
	Action   string `json:"action" binding:"required"`
}

func putSwipe(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req putSwipeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			server.Fail(c, apperr.Validation("invalid request body: %v", err))
			return
		}

		result, err := svc.PutSwipe(c.Request.Context(), server.CurrentUser(c), req.TargetID, req.Action)
		if err != nil {
			server.Fail(c, err)
			return
		}
		server.Respond(c, result)
	}
}

func listMatches(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		matches, err := svc.ListMatches(c.Request.Context(), server.CurrentUser(c))
		if err != nil {
			server.Fail(c, err)
			return
		}
		server.Respond(c, gin.H{"matches": matches})
	}
}
