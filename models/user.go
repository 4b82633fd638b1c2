package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name         string               `bson:"name" json:"name"`
	Email        string               `bson:"email" json:"email"`
	PasswordHash string               `bson:"passwordHash" json:"-"`
	Following    []primitive.ObjectID `bson:"following" json:"following"`
	Followers    []primitive.ObjectID `bson:"followers" json:"followers"`
	CreatedAt    time.Time            `bson:"createdAt" json:"createdAt"`
}

// IsFollowing reports whether u follows target.
func (u *User) IsFollowing(target primitive.ObjectID) bool {
	return containsID(u.Following, target)
}

// Profile is the read-time summary returned by GET /api/user.
type Profile struct {
	Name         string `json:"name"`
	NumFollowers int    `json:"numFollowers"`
	NumFollowing int    `json:"numFollowing"`
}

func (u *User) Profile() Profile {
	return Profile{
		Name:         u.Name,
		NumFollowers: len(u.Followers),
		NumFollowing: len(u.Following),
	}
}

// UserRef is a populated reference to a user.
type UserRef struct {
	ID   primitive.ObjectID `bson:"_id" json:"id"`
	Name string             `bson:"name" json:"name"`
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

// NormalizeEmail is the stored and looked-up form of an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
