package handlers

import (
	"net/http"
	"strings"

	"socialapi/store"

	"github.com/gin-gonic/gin"
)

// IdempotencyKeyHeader lets a client retry a comment without duplicating it.
const IdempotencyKeyHeader = "Idempotency-Key"

type AddCommentRequest struct {
	Comment string `json:"comment" binding:"required"`
}

func (h *Handler) AddComment(c *gin.Context) {
	var req AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	postID, ok := h.pathID(c, store.ErrPostNotFound)
	if !ok {
		return
	}

	ctx, cancel := h.context(c)
	defer cancel()

	requestKey := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
	comment, err := h.comments.AddComment(ctx, userID, postID, req.Comment, requestKey)
	if err != nil {
		h.respondError(c, "add comment", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"commentId": comment.ID.Hex()})
}
