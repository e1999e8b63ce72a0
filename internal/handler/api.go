package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/devaloi/socialchat/internal/conversation"
	"github.com/devaloi/socialchat/internal/domain"
	"github.com/devaloi/socialchat/internal/hub"
	"github.com/devaloi/socialchat/internal/middleware"
	"github.com/devaloi/socialchat/internal/presence"
)

const presenceLookupTimeout = 2 * time.Second

// Health returns a simple health check handler.
func Health() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// ListRooms returns all active rooms with user counts.
func ListRooms(h *hub.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, h.ListRooms())
	}
}

// RoomInfo returns details about a specific room.
func RoomInfo(h *hub.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		info := h.RoomInfo(c.Param("name"))
		if info == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

// PresenceStatus reports whether a user is online and through which socket.
func PresenceStatus(reg *presence.Registry, mirror presence.Mirror) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userId")
		resp := gin.H{"user_id": userID, "online": false, "socket_id": nil}
		if h, ok := reg.Lookup(userID); ok {
			resp["online"], resp["socket_id"] = true, h.ID()
			c.JSON(http.StatusOK, resp)
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), presenceLookupTimeout)
		defer cancel()
		if socketID, ok, err := mirror.Lookup(ctx, userID); err == nil && ok {
			resp["online"], resp["socket_id"] = true, socketID
		}
		c.JSON(http.StatusOK, resp)
	}
}

type openDirectRequest struct {
	ReceiverID string `json:"receiverId" binding:"required"`
}

type createGroupRequest struct {
	Name    string   `json:"name" binding:"required"`
	Members []string `json:"members" binding:"required"`
}

type addMembersRequest struct {
	Members []string `json:"newMembers" binding:"required"`
}

// Conversations serves the conversation REST endpoints.
type Conversations struct {
	svc *conversation.Service
}

// NewConversations creates the conversation handlers.
func NewConversations(svc *conversation.Service) *Conversations {
	return &Conversations{svc: svc}
}

// OpenDirect finds or creates a direct chat with receiverId.
func (h *Conversations) OpenDirect(c *gin.Context) {
	var req openDirectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	conv, err := h.svc.OpenDirect(c.Request.Context(), middleware.UserID(c), req.ReceiverID)
	respond(c, http.StatusOK, conv, err)
}

// CreateGroup creates a group owned by the caller.
func (h *Conversations) CreateGroup(c *gin.Context) {
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	conv, err := h.svc.CreateGroup(c.Request.Context(), middleware.UserID(c), req.Name, req.Members)
	respond(c, http.StatusCreated, conv, err)
}

// List returns the caller's conversations.
func (h *Conversations) List(c *gin.Context) {
	convs, err := h.svc.List(c.Request.Context(), middleware.UserID(c))
	if convs == nil {
		convs = []domain.Conversation{}
	}
	respond(c, http.StatusOK, convs, err)
}

// AddMembers adds members to a group the caller created.
func (h *Conversations) AddMembers(c *gin.Context) {
	var req addMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	conv, err := h.svc.AddMembers(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.Members)
	respond(c, http.StatusOK, conv, err)
}

// RemoveMember removes a member from a group the caller created.
func (h *Conversations) RemoveMember(c *gin.Context) {
	conv, err := h.svc.RemoveMember(c.Request.Context(), middleware.UserID(c), c.Param("id"), c.Param("userId"))
	respond(c, http.StatusOK, conv, err)
}

// History returns recent messages of a conversation the caller belongs to.
func (h *Conversations) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	msgs, err := h.svc.History(c.Request.Context(), middleware.UserID(c), c.Param("id"), limit)
	respond(c, http.StatusOK, msgs, err)
}

func respond(c *gin.Context, status int, body any, err error) {
	if err != nil {
		c.JSON(domain.HTTPStatus(err), gin.H{"error": domain.Reason(err)})
		return
	}
	c.JSON(status, body)
}
