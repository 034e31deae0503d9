package chat

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cruxline/crux-engine/internal/app"
	"github.com/cruxline/crux-engine/internal/apperr"
	"github.com/cruxline/crux-engine/internal/server"
)

// Registrar ties the thread and message endpoints into the HTTP router
type Registrar struct {
	appCtx *app.AppContext
}

// NewRegistrar creates a new Registrar for the chat feature
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the chat routes to the router group
func (r *Registrar) Register(g *gin.RouterGroup) {
	svc := NewService(r.appCtx)

	g.GET("/threads", listThreads(svc))
	g.GET("/crew-threads", listCrewThreads(svc))
	g.POST("/threads/direct", ensureDirectThread(svc))
	g.POST("/threads/gym", ensureGymThread(svc))
	g.POST("/threads/crew", ensureCrewThread(svc))
	g.POST("/threads/:id/join", joinThread(svc))
	g.GET("/threads/:id/messages", listMessages(svc))
	g.POST("/threads/:id/messages", sendMessage(svc))
	g.POST("/threads/:id/read", markRead(svc))
	g.POST("/threads/:id/delivered", markDelivered(svc))
	g.GET("/unread", unreadState(svc))
	g.GET("/unread/badges", unreadBadges(svc))
}

func threadID(c *gin.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("thread id must be a positive integer")
	}
	return id, nil
}

func listThreads(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		threads, err := svc.ListThreadsFor(c.Request.Context(), server.CurrentUser(c))
		if err != nil {
			server.Fail(c, err)
			return
		}
		server.Respond(c, gin.H{"threads": threads})
	}
}

func listCrewThreads(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		threads, err := svc.ListCrewThreadsFor(c.Request.Context(), server.CurrentUser(c))
		if err != nil {
			server.Fail(c, err)
			return
		}
		server.Respond(c, gin.H{"threads": threads})
	}
}

func ensureDirectThread(svc *Service) gin.HandlerFunc {
	type req struct {
		MatchID uint64 `json:"match_id" binding:"required"`
	}
	return func(c *gin.Context) {
		var body req
		if err := c.ShouldBindJSON(&body); err != nil {
			server.Fail(c, apperr.Validation("invalid request body: %v", err))
			return
		}
		thread, err := svc.EnsureDirectThread(c.Request.Context(), body.MatchID, server.CurrentUser(c))
		if err != nil {
			server.Fail(c, err)
			return
		}
		server.Respond(c, thread)
	}
}

func ensureGymThread(svc *Service) gin.HandlerFunc {
	type req struct {
		GymID uint64 `json:"gym_id" binding:"required"`
		Title string `json:"title" binding:"required"`
	}
	return func(c *gin.Context) {
		var body req
		if err := c.ShouldBindJSON(&body); err != nil {
			server.Fail(c, apperr.Validation("invalid request body: %v", err))
			return
		}
		thread, err := svc.EnsureGymThread(c.Request.Context(), body.GymID, body.Title, server.CurrentUser(c))
		if err != nil {
			server.Fail(c, err)
			return
		}
		server.Respond(c, thread)
	}
}

func ensureCrewThread(svc *Service) gin.HandlerFunc {
	type req struct {
		CrewID uint64 `json:"crew_id" binding:"required"`
		Title  string `json:"title"`
	}
	return func(c *gin.Context) {
		var body req
		if err := c.ShouldBindJSON(&body); err != nil {
			server.Fail(c, apperr.Validation("invalid request body: %v", err))
			return
		}
		thread, err := svc.EnsureCrewThread(c.Request.Context(), body.CrewID, body.Title, server.CurrentUser(c))
		if err != nil {
			server.Fail(c, err)
			return
		}
		server.Respond(c, thread)
	}
}

func joinThread(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := threadID(c)
		if err != nil {
			server.Fail(c, err)
			return
		}
		if err := svc.JoinThread(c.Request.Context(), id, server.CurrentUser(c)); err != nil {
			server.Fail(c, err)
			return
		}
		server.Respond(c, nil)
	}
}

func listMessages(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := threadID(c)
		if err != nil {
			server.Fail(c, err)
			return
		}

		var token *string
		if raw := c.Query("page_token"); raw != "" {
			token = &raw
		}
		limit := 0
		if raw := c.Query("limit"); raw != "" {
			limit, _ = strconv.Atoi(raw)
		}

		messages, nextToken, err := svc.ListMessages(c.Request.Context(), id, server.CurrentUser(c), token, limit)
		if err != nil {
			server.Fail(c, err)
			return
		}
		resp := gin.H{"messages": messages}
		if nextToken != nil {
			resp["next_page_token"] = *nextToken
		}
		server.Respond(c, resp)
	}
}

func sendMessage(svc *Service) gin.HandlerFunc {
	type req struct {
		Body string `json:"body" binding:"required"`
	}
	return func(c *gin.Context) {
		id, err := threadID(c)
		if err != nil {
			server.Fail(c, err)
			return
		}
		var body req
		if err := c.ShouldBindJSON(&body); err != nil {
			server.Fail(c, apperr.Validation("invalid request body: %v", err))
			return
		}
		msg, err := svc.SendMessage(c.Request.Context(), id, server.CurrentUser(c), body.Body)
		if err != nil {
			server.Fail(c, err)
			return
		}
		server.Respond(c, msg)
	}
}

func markRead(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := threadID(c)
		if err != nil {
			server.Fail(c, err)
			return
		}
		if err := svc.MarkThreadRead(c.Request.Context(), id, server.CurrentUser(c)); err != nil {
			server.Fail(c, err)
			return
		}
		server.Respond(c, nil)
	}
}

func markDelivered(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := threadID(c)
		if err != nil {
			server.Fail(c, err)
			return
		}
		if err := svc.MarkThreadDelivered(c.Request.Context(), id, server.CurrentUser(c)); err != nil {
			server.Fail(c, err)
			return
		}
		server.Respond(c, nil)
	}
}

func unreadState(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := svc.Unread(c.Request.Context(), server.CurrentUser(c))
		if err != nil {
			server.Fail(c, err)
			return
		}
		server.Respond(c, snap)
	}
}

func unreadBadges(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		chats, crew, err := svc.UnreadBadges(c.Request.Context(), server.CurrentUser(c))
		if err != nil {
			server.Fail(c, err)
			return
		}
		server.Respond(c, gin.H{"chats_unread": chats, "crew_unread": crew})
	}
}
