package rest

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ideateGudy/chat-backend/internal/store"
)

func (h *Handler) userStatus(c *gin.Context) {
	p, err := h.presence.Get(c.Request.Context(), c.Param("userId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"userId":   p.UserID,
		"isOnline": p.IsOnline,
		"lastSeen": p.LastSeen,
	})
}

func (h *Handler) lastSeen(c *gin.Context) {
	p, err := h.presence.Get(c.Request.Context(), c.Param("userId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"userId":   p.UserID,
		"lastSeen": p.LastSeen,
	})
}

type updateLastSeenRequest struct {
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

// updateLastSeen stamps the caller's last-seen time and, as a
// consequence, marks them offline; a client that reports its own
// last-seen is not actively connected.
func (h *Handler) updateLastSeen(c *gin.Context) {
	// An empty body means "now".
	var req updateLastSeenRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		fail(c, store.ErrInvalid)
		return
	}

	at := time.Now().UTC()
	if req.LastSeen != nil {
		at = req.LastSeen.UTC()
	}

	p, err := h.presence.UpdateLastSeen(c.Request.Context(), currentUser(c), at)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"userId":   p.UserID,
		"isOnline": p.IsOnline,
		"lastSeen": p.LastSeen,
	})
}
