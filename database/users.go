package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"socialapi/models"
	"socialapi/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserDirectory is the MongoDB store for users and follow relationships.
//
// Without transactions a follow writes the follower's "following" list
// first and the target's "followers" list second; unfollow uses the same
// order. "following" is therefore the authoritative side and the
// reconciler repairs "followers" from it.
type UserDirectory struct {
	users *mongo.Collection
	tx    Transactor
	now   func() time.Time
}

var _ store.UserDirectory = (*UserDirectory)(nil)

func NewUserDirectory(db *mongo.Database, tx Transactor) *UserDirectory {
	return &UserDirectory{
		users: db.Collection(UsersCollection),
		tx:    tx,
		now:   time.Now,
	}
}

func (d *UserDirectory) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := d.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", id.Hex(), err)
	}
	return &user, nil
}

func (d *UserDirectory) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := d.users.FindOne(ctx, bson.M{"email": models.NormalizeEmail(email)}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

func (d *UserDirectory) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = d.now().UTC()
	}
	if user.Following == nil {
		user.Following = []primitive.ObjectID{}
	}
	if user.Followers == nil {
		user.Followers = []primitive.ObjectID{}
	}
	user.Email = models.NormalizeEmail(user.Email)

	_, err := d.users.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (d *UserDirectory) Follow(ctx context.Context, followerID, targetID primitive.ObjectID) error {
	return d.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := d.requireUser(ctx, targetID); err != nil {
			return err
		}
		if followerID == targetID {
			return store.ErrCannotFollowSelf
		}

		res, err := d.users.UpdateOne(ctx,
			bson.M{"_id": followerID, "following": bson.M{"$ne": targetID}},
			bson.M{"$addToSet": bson.M{"following": targetID}},
		)
		if err != nil {
			return fmt.Errorf("update following: %w", err)
		}
		if res.MatchedCount == 0 {
			if err := d.requireUser(ctx, followerID); err != nil {
				return err
			}
			// A retry after a partial write lands here; finish the pair.
			if err := d.addFollower(ctx, targetID, followerID); err != nil {
				return err
			}
			return store.ErrAlreadyFollowing
		}
		return d.addFollower(ctx, targetID, followerID)
	})
}

func (d *UserDirectory) Unfollow(ctx context.Context, followerID, targetID primitive.ObjectID) error {
	return d.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := d.requireUser(ctx, targetID); err != nil {
			return err
		}

		res, err := d.users.UpdateOne(ctx,
			bson.M{"_id": followerID, "following": targetID},
			bson.M{"$pull": bson.M{"following": targetID}},
		)
		if err != nil {
			return fmt.Errorf("update following: %w", err)
		}
		if res.MatchedCount == 0 {
			if err := d.requireUser(ctx, followerID); err != nil {
				return err
			}
			if err := d.removeFollower(ctx, targetID, followerID); err != nil {
				return err
			}
			return store.ErrNotFollowing
		}
		return d.removeFollower(ctx, targetID, followerID)
	})
}

func (d *UserDirectory) Profile(ctx context.Context, id primitive.ObjectID) (*models.Profile, error) {
	user, err := d.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	profile := user.Profile()
	return &profile, nil
}

func (d *UserDirectory) requireUser(ctx context.Context, id primitive.ObjectID) error {
	opts := options.FindOne().SetProjection(bson.M{"_id": 1})
	err := d.users.FindOne(ctx, bson.M{"_id": id}, opts).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("find user %s: %w", id.Hex(), err)
	}
	return nil
}

func (d *UserDirectory) addFollower(ctx context.Context, targetID, followerID primitive.ObjectID) error {
	_, err := d.users.UpdateOne(ctx,
		bson.M{"_id": targetID},
		bson.M{"$addToSet": bson.M{"followers": followerID}},
	)
	if err != nil {
		return fmt.Errorf("update followers: %w", err)
	}
	return nil
}

func (d *UserDirectory) removeFollower(ctx context.Context, targetID, followerID primitive.ObjectID) error {
	_, err := d.users.UpdateOne(ctx,
		bson.M{"_id": targetID},
		bson.M{"$pull": bson.M{"followers": followerID}},
	)
	if err != nil {
		return fmt.Errorf("update followers: %w", err)
	}
	return nil
}
