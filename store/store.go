// Package store defines the persistence contracts of the social graph API
// and an in-memory implementation of them. The MongoDB implementation lives
// in package database.
package store

import (
	"context"

	"socialapi/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserDirectory stores users and their follow relationships.
type UserDirectory interface {
	GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error

	// Follow adds target to follower.following and follower to
	// target.followers. Both sides change together or the call fails.
	Follow(ctx context.Context, followerID, targetID primitive.ObjectID) error
	Unfollow(ctx context.Context, followerID, targetID primitive.ObjectID) error

	Profile(ctx context.Context, id primitive.ObjectID) (*models.Profile, error)
}

// PostStore stores posts and their embedded likes.
type PostStore interface {
	CreatePost(ctx context.Context, ownerID primitive.ObjectID, title, desc string) (*models.Post, error)

	// DeletePost reports ErrPostNotFound both when the post is missing and
	// when it belongs to someone else.
	DeletePost(ctx context.Context, ownerID, postID primitive.ObjectID) error

	Like(ctx context.Context, userID, postID primitive.ObjectID) ([]models.Like, error)
	Unlike(ctx context.Context, userID, postID primitive.ObjectID) ([]models.Like, error)

	GetPost(ctx context.Context, postID primitive.ObjectID) (*models.PostView, error)
	ListPostsByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.PostView, error)
}

// CommentStore creates comments and links them to their post.
type CommentStore interface {
	// AddComment is safe to retry. A non-empty requestKey identifies the
	// logical request; repeating it returns the comment created first.
	AddComment(ctx context.Context, authorID, postID primitive.ObjectID, text, requestKey string) (*models.Comment, error)
}
