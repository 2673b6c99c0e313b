package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ideateGudy/chat-backend/internal/store"
)

type createGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
}

func (h *Handler) createGroup(c *gin.Context) {
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, store.ErrInvalid)
		return
	}

	g := &store.Group{
		Name:        req.Name,
		Description: req.Description,
		Avatar:      req.Avatar,
		CreatedBy:   currentUser(c),
	}
	if err := h.groups.Create(c.Request.Context(), g); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

// listGroups returns the caller's groups, or a name search when the
// search query parameter is present.
func (h *Handler) listGroups(c *gin.Context) {
	ctx := c.Request.Context()
	if q := c.Query("search"); q != "" {
		groups, err := h.groups.Search(ctx, q)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"groups": groups})
		return
	}

	groups, err := h.groups.MemberGroups(ctx, currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

func (h *Handler) getGroup(c *gin.Context) {
	g, err := h.groups.Get(c.Request.Context(), c.Param("groupId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

type updateGroupRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Avatar      *string `json:"avatar,omitempty"`
}

func (h *Handler) updateGroup(c *gin.Context) {
	var req updateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, store.ErrInvalid)
		return
	}

	g, err := h.groups.Update(c.Request.Context(), c.Param("groupId"), req.Name, req.Description, req.Avatar)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *Handler) deactivateGroup(c *gin.Context) {
	if err := h.groups.Deactivate(c.Request.Context(), c.Param("groupId"), currentUser(c)); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) groupMembers(c *gin.Context) {
	members, err := h.groups.Members(c.Request.Context(), c.Param("groupId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

type memberRequest struct {
	UserID string `json:"userId"`
}

func (h *Handler) addGroupMember(c *gin.Context) {
	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
		fail(c, store.ErrInvalid)
		return
	}

	if err := h.groups.AddMember(c.Request.Context(), c.Param("groupId"), req.UserID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) removeGroupMember(c *gin.Context) {
	if err := h.groups.RemoveMember(c.Request.Context(), c.Param("groupId"), c.Param("userId")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// revokeInviteCode rotates the group's invite code so previously shared
// codes stop working. Admin only.
func (h *Handler) revokeInviteCode(c *gin.Context) {
	code, err := h.groups.RevokeInviteCode(c.Request.Context(), c.Param("groupId"), currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"inviteCode": code})
}

func (h *Handler) joinByInviteCode(c *gin.Context) {
	g, err := h.groups.JoinByInviteCode(c.Request.Context(), c.Param("code"), currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}
