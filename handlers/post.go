package handlers

import (
	"errors"
	"net/http"

	"socialapi/store"

	"github.com/gin-gonic/gin"
)

type CreatePostRequest struct {
	Title string `json:"title" binding:"required"`
	Desc  string `json:"desc"`
}

func (h *Handler) CreatePost(c *gin.Context) {
	var req CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	userID, ok := h.currentUser(c)
	if !ok {
		return
	}

	ctx, cancel := h.context(c)
	defer cancel()

	post, err := h.posts.CreatePost(ctx, userID, req.Title, req.Desc)
	if err != nil {
		h.respondError(c, "create post", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"postId":    post.ID.Hex(),
		"title":     post.Title,
		"desc":      post.Desc,
		"createdAt": post.CreatedAt,
	})
}

func (h *Handler) DeletePost(c *gin.Context) {
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

	err := h.posts.DeletePost(ctx, userID, postID)
	if errors.Is(err, store.ErrPostNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found or unauthorized"})
		return
	}
	if err != nil {
		h.respondError(c, "delete post", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Post deleted"})
}

func (h *Handler) LikePost(c *gin.Context) {
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

	likes, err := h.posts.Like(ctx, userID, postID)
	if err != nil {
		h.respondError(c, "like", err)
		return
	}
	c.JSON(http.StatusOK, likes)
}

func (h *Handler) UnlikePost(c *gin.Context) {
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

	likes, err := h.posts.Unlike(ctx, userID, postID)
	if err != nil {
		h.respondError(c, "unlike", err)
		return
	}
	c.JSON(http.StatusOK, likes)
}

// GetPost returns one post with its owner and comment authors populated.
func (h *Handler) GetPost(c *gin.Context) {
	if _, ok := h.currentUser(c); !ok {
		return
	}
	postID, ok := h.pathID(c, store.ErrPostNotFound)
	if !ok {
		return
	}

	ctx, cancel := h.context(c)
	defer cancel()

	post, err := h.posts.GetPost(ctx, postID)
	if err != nil {
		h.respondError(c, "get post", err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// GetMyPosts lists the caller's posts, newest first.
func (h *Handler) GetMyPosts(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}

	ctx, cancel := h.context(c)
	defer cancel()

	posts, err := h.posts.ListPostsByOwner(ctx, userID)
	if err != nil {
		h.respondError(c, "list posts", err)
		return
	}
	c.JSON(http.StatusOK, posts)
}
