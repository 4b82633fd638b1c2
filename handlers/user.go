package handlers

import (
	"net/http"

	"socialapi/store"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Follow(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	targetID, ok := h.pathID(c, store.ErrUserNotFound)
	if !ok {
		return
	}

	ctx, cancel := h.context(c)
	defer cancel()

	if err := h.users.Follow(ctx, userID, targetID); err != nil {
		h.respondError(c, "follow", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User followed successfully"})
}

func (h *Handler) Unfollow(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	targetID, ok := h.pathID(c, store.ErrUserNotFound)
	if !ok {
		return
	}

	ctx, cancel := h.context(c)
	defer cancel()

	if err := h.users.Unfollow(ctx, userID, targetID); err != nil {
		h.respondError(c, "unfollow", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User unfollowed successfully"})
}

// GetProfile returns the caller's name and follow counts.
func (h *Handler) GetProfile(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}

	ctx, cancel := h.context(c)
	defer cancel()

	profile, err := h.users.Profile(ctx, userID)
	if err != nil {
		h.respondError(c, "profile", err)
		return
	}
	c.JSON(http.StatusOK, profile)
}
