// Package handlers implements the JSON API on top of the store contracts.
// Every handler except Authenticate runs behind the auth middleware and
// acts as the user id the middleware verified.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"socialapi/middleware"
	"socialapi/store"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const serverError = "Server Error"

// TokenIssuer signs a token for an authenticated user id.
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

type Handler struct {
	users    store.UserDirectory
	posts    store.PostStore
	comments store.CommentStore
	tokens   TokenIssuer
	log      logrus.FieldLogger
	timeout  time.Duration
}

type Options struct {
	Users    store.UserDirectory
	Posts    store.PostStore
	Comments store.CommentStore
	Tokens   TokenIssuer
	Log      logrus.FieldLogger
	// Timeout bounds the store work of a single request.
	Timeout time.Duration
}

func New(opts Options) *Handler {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		users:    opts.Users,
		posts:    opts.Posts,
		comments: opts.Comments,
		tokens:   opts.Tokens,
		log:      log,
		timeout:  timeout,
	}
}

func (h *Handler) context(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

// currentUser returns the verified caller. A token whose subject is not an
// ObjectID cannot name a user, so it is rejected like a bad token.
func (h *Handler) currentUser(c *gin.Context) (primitive.ObjectID, bool) {
	userID, err := primitive.ObjectIDFromHex(c.GetString(middleware.UserIDKey))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token is not valid"})
		return primitive.NilObjectID, false
	}
	return userID, true
}

// pathID parses the :id parameter. A malformed id cannot match any
// document, so it is answered with notFound.
func (h *Handler) pathID(c *gin.Context, notFound error) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": notFound.Error()})
		return primitive.NilObjectID, false
	}
	return id, true
}

// respondError translates a store failure into a status and payload.
// Internal failures are logged with detail and reported generically.
func (h *Handler) respondError(c *gin.Context, op string, err error) {
	switch store.KindOf(err) {
	case store.KindNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case store.KindConflict:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		entry := h.log.WithFields(logrus.Fields{
			"op":        op,
			"requestId": c.GetString("requestId"),
		}).WithError(err)
		if errors.Is(err, context.DeadlineExceeded) {
			entry.Error("store operation timed out")
		} else {
			entry.Error("store operation failed")
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": serverError})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
