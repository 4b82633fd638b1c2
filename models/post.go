package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Post struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Title     string               `bson:"title" json:"title"`
	Desc      string               `bson:"desc" json:"desc"`
	CreatedBy primitive.ObjectID   `bson:"createdBy" json:"createdBy"`
	CreatedAt time.Time            `bson:"createdAt" json:"createdAt"`
	Likes     []Like               `bson:"likes" json:"likes"`
	Comments  []primitive.ObjectID `bson:"comments" json:"comments"`
}

// Like is embedded in Post.Likes, most recent first.
type Like struct {
	User primitive.ObjectID `bson:"user" json:"user"`
}

// LikedBy reports whether userID appears among the post's likes.
func (p *Post) LikedBy(userID primitive.ObjectID) bool {
	for _, like := range p.Likes {
		if like.User == userID {
			return true
		}
	}
	return false
}

// HasComment reports whether commentID is referenced by the post.
func (p *Post) HasComment(commentID primitive.ObjectID) bool {
	return containsID(p.Comments, commentID)
}

// PostView is a post with its owner and comments populated.
type PostView struct {
	ID        primitive.ObjectID `json:"id"`
	Title     string             `json:"title"`
	Desc      string             `json:"desc"`
	CreatedBy UserRef            `json:"createdBy"`
	CreatedAt time.Time          `json:"createdAt"`
	Likes     []Like             `json:"likes"`
	Comments  []CommentView      `json:"comments"`
}
