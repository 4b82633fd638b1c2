package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Comment struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	User       primitive.ObjectID `bson:"user" json:"user"`
	Post       primitive.ObjectID `bson:"post" json:"post"`
	Text       string             `bson:"text" json:"text"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	RequestKey string             `bson:"requestKey,omitempty" json:"-"` // client retry key
}

// CommentView is a comment with its author populated.
type CommentView struct {
	ID        primitive.ObjectID `json:"id"`
	User      UserRef            `json:"user"`
	Post      primitive.ObjectID `json:"post"`
	Text      string             `json:"text"`
	CreatedAt time.Time          `json:"createdAt"`
}
