package rest

import (
	"log/slog"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ideateGudy/chat-backend/internal/store"
	"github.com/ideateGudy/chat-backend/pkg/config"
)

// Handler bundles the REST surface. It performs the same store
// operations as the realtime gateway, without connection affinity, so
// both entry paths share one state machine.
type Handler struct {
	logger   *slog.Logger
	messages store.MessageStore
	groups   store.GroupStore
	presence store.PresenceStore
}

func NewHandler(logger *slog.Logger, messages store.MessageStore, groups store.GroupStore, presence store.PresenceStore) *Handler {
	return &Handler{
		logger:   logger.With(slog.String("component", "rest")),
		messages: messages,
		groups:   groups,
		presence: presence,
	}
}

// Router builds the gin engine with all routes mounted under /api.
func (h *Handler) Router(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowOrigins = cfg.Server.CORSOrigins
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	r.Use(cors.New(corsCfg))

	api := r.Group("/api", RequireAuth(h.logger, cfg.Server.Auth.JWTSecret))

	messages := api.Group("/messages")
	{
		messages.POST("", h.createMessage)
		messages.GET("/room/:roomId", h.roomMessages)
		messages.GET("/undelivered", h.undeliveredMessages)
		messages.PATCH("/status/:messageId", h.updateMessageStatus)
		messages.POST("/mark-delivered", h.bulkMarkDelivered)
		messages.POST("/mark-read", h.bulkMarkRead)
	}

	api.GET("/chat-rooms", h.chatRooms)

	groups := api.Group("/groups")
	{
		groups.POST("", h.createGroup)
		groups.GET("", h.listGroups)
		groups.GET("/:groupId", h.getGroup)
		groups.PATCH("/:groupId", h.updateGroup)
		groups.DELETE("/:groupId", h.deactivateGroup)
		groups.GET("/:groupId/members", h.groupMembers)
		groups.POST("/:groupId/members", h.addGroupMember)
		groups.DELETE("/:groupId/members/:userId", h.removeGroupMember)
		groups.POST("/:groupId/invite/revoke", h.revokeInviteCode)
	}
	api.POST("/invites/:code/join", h.joinByInviteCode)

	users := api.Group("/users")
	{
		users.GET("/:userId/status", h.userStatus)
		users.GET("/:userId/last-seen", h.lastSeen)
	}
	api.PUT("/presence/last-seen", h.updateLastSeen)

	return r
}
