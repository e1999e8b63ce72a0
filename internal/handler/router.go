package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/devaloi/socialchat/internal/conversation"
	"github.com/devaloi/socialchat/internal/middleware"
	"github.com/devaloi/socialchat/internal/session"
)

// NewRouter wires every HTTP route of the service.
func NewRouter(deps *session.Deps, svc *conversation.Service, production bool) *gin.Engine {
	if production {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.RequestLogger(deps.Log))

	r.GET("/health", Health())
	r.GET("/ws", ServeWS(deps))

	api := r.Group("/api")
	api.Use(middleware.RequireAuth(deps.Verifier))
	{
		api.GET("/rooms", ListRooms(deps.Hub))
		api.GET("/rooms/:name", RoomInfo(deps.Hub))
		api.GET("/presence/:userId", PresenceStatus(deps.Presence, deps.Mirror))

		convs := NewConversations(svc)
		api.POST("/conversations", convs.OpenDirect)
		api.POST("/conversations/group", convs.CreateGroup)
		api.GET("/conversations", convs.List)
		api.PUT("/conversations/:id/members", convs.AddMembers)
		api.DELETE("/conversations/:id/members/:userId", convs.RemoveMember)
		api.GET("/conversations/:id/messages", convs.History)
	}
	return r
}
