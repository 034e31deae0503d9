package stream

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/cruxline/crux-engine/internal/app"
	"github.com/cruxline/crux-engine/internal/apperr"
	"github.com/cruxline/crux-engine/internal/repository"
	"github.com/cruxline/crux-engine/internal/server"
	"github.com/cruxline/crux-engine/internal/service/chat"
	"github.com/cruxline/crux-engine/internal/toast"
	"github.com/cruxline/crux-engine/internal/unread"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Registrar ties the live-update endpoints into the HTTP router
type Registrar struct {
	appCtx *app.AppContext
}

// NewRegistrar creates a new Registrar for the realtime session feature
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the websocket and device routes to the router group
func (r *Registrar) Register(g *gin.RouterGroup) {
	g.GET("/ws", r.handleWS)
	g.POST("/devices", r.registerDevice)
}

func (r *Registrar) handleWS(c *gin.Context) {
	viewerID := server.CurrentUser(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	threads := repository.NewThreadRepository(r.appCtx.DB)
	messages := repository.NewMessageRepository(r.appCtx.DB)
	chatSvc := chat.NewService(r.appCtx)

	s := &session{
		appCtx:        r.appCtx,
		viewerID:      viewerID,
		conn:          conn,
		threads:       threads,
		tracker:       unread.NewTracker(threads, messages, r.appCtx.RedisCache, r.appCtx.Logger),
		toasts:        toast.NewDispatcher(viewerID, r.appCtx.Profiles),
		markDelivered: chatSvc.MarkThreadDelivered,
	}
	s.run(c.Request.Context())
}

func (r *Registrar) registerDevice(c *gin.Context) {
	type req struct {
		Token string `json:"token" binding:"required"`
	}
	var body req
	if err := c.ShouldBindJSON(&body); err != nil {
		server.Fail(c, apperr.Validation("invalid request body: %v", err))
		return
	}

	devices := repository.NewDeviceTokenRepository(r.appCtx.DB)
	if err := devices.Register(c.Request.Context(), server.CurrentUser(c), body.Token); err != nil {
		server.Fail(c, err)
		return
	}
	server.Respond(c, nil)
}
