package database

import (
	"context"
	"fmt"

	"socialapi/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Report counts the repairs made by one reconciliation pass.
type Report struct {
	FollowersAdded      int `json:"followersAdded"`
	FollowersRemoved    int `json:"followersRemoved"`
	DanglingFollowRefs  int `json:"danglingFollowRefs"`
	CommentsAttached    int `json:"commentsAttached"`
	CommentsDeleted     int `json:"commentsDeleted"`
	DanglingCommentRefs int `json:"danglingCommentRefs"`
}

// Reconciler repairs the partial writes that can be left behind when
// transactions are disabled and a two-step update is interrupted.
type Reconciler struct {
	users    *mongo.Collection
	posts    *mongo.Collection
	comments *mongo.Collection
	log      logrus.FieldLogger
}

func NewReconciler(db *mongo.Database, log logrus.FieldLogger) *Reconciler {
	return &Reconciler{
		users:    db.Collection(UsersCollection),
		posts:    db.Collection(PostsCollection),
		comments: db.Collection(CommentsCollection),
		log:      log,
	}
}

func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	var report Report
	if err := r.follows(ctx, &report); err != nil {
		return report, err
	}
	if err := r.orphanedComments(ctx, &report); err != nil {
		return report, err
	}
	if err := r.danglingCommentRefs(ctx, &report); err != nil {
		return report, err
	}
	return report, nil
}

type followEdges struct {
	ID        primitive.ObjectID   `bson:"_id"`
	Following []primitive.ObjectID `bson:"following"`
	Followers []primitive.ObjectID `bson:"followers"`
}

// follows treats every user's "following" list as the truth and rewrites
// the "followers" lists to mirror it.
func (r *Reconciler) follows(ctx context.Context, report *Report) error {
	opts := options.Find().SetProjection(bson.M{"following": 1, "followers": 1})
	cursor, err := r.users.Find(ctx, bson.M{}, opts)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	var users []followEdges
	if err := cursor.All(ctx, &users); err != nil {
		return fmt.Errorf("decode users: %w", err)
	}

	byID := make(map[primitive.ObjectID]followEdges, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	for _, u := range users {
		for _, targetID := range u.Following {
			target, ok := byID[targetID]
			if !ok {
				if err := r.pull(ctx, u.ID, "following", targetID); err != nil {
					return err
				}
				report.DanglingFollowRefs++
				continue
			}
			if !containsObjectID(target.Followers, u.ID) {
				if _, err := r.users.UpdateOne(ctx, bson.M{"_id": targetID}, bson.M{"$addToSet": bson.M{"followers": u.ID}}); err != nil {
					return fmt.Errorf("add follower: %w", err)
				}
				r.log.WithFields(logrus.Fields{"user": targetID.Hex(), "follower": u.ID.Hex()}).Info("restored missing follower")
				report.FollowersAdded++
			}
		}

		for _, followerID := range u.Followers {
			follower, ok := byID[followerID]
			if !ok {
				if err := r.pull(ctx, u.ID, "followers", followerID); err != nil {
					return err
				}
				report.DanglingFollowRefs++
				continue
			}
			if !containsObjectID(follower.Following, u.ID) {
				if err := r.pull(ctx, u.ID, "followers", followerID); err != nil {
					return err
				}
				r.log.WithFields(logrus.Fields{"user": u.ID.Hex(), "follower": followerID.Hex()}).Info("removed stale follower")
				report.FollowersRemoved++
			}
		}
	}
	return nil
}

func (r *Reconciler) pull(ctx context.Context, userID primitive.ObjectID, field string, id primitive.ObjectID) error {
	if _, err := r.users.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$pull": bson.M{field: id}}); err != nil {
		return fmt.Errorf("pull %s: %w", field, err)
	}
	return nil
}

// orphanedComments attaches comments their post does not reference and
// deletes comments whose post no longer exists.
func (r *Reconciler) orphanedComments(ctx context.Context, report *Report) error {
	cursor, err := r.comments.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"post": 1}))
	if err != nil {
		return fmt.Errorf("list comments: %w", err)
	}
	defer cursor.Close(ctx)

	posts := make(map[primitive.ObjectID]*models.Post)
	for cursor.Next(ctx) {
		var comment models.Comment
		if err := cursor.Decode(&comment); err != nil {
			return fmt.Errorf("decode comment: %w", err)
		}

		post, err := r.loadPost(ctx, posts, comment.Post)
		if err != nil {
			return err
		}
		if post == nil {
			if _, err := r.comments.DeleteOne(ctx, bson.M{"_id": comment.ID}); err != nil {
				return fmt.Errorf("delete orphaned comment: %w", err)
			}
			report.CommentsDeleted++
			continue
		}
		if post.HasComment(comment.ID) {
			continue
		}
		if _, err := r.posts.UpdateOne(ctx, bson.M{"_id": post.ID}, bson.M{"$addToSet": bson.M{"comments": comment.ID}}); err != nil {
			return fmt.Errorf("attach comment: %w", err)
		}
		post.Comments = append(post.Comments, comment.ID)
		r.log.WithFields(logrus.Fields{"post": post.ID.Hex(), "comment": comment.ID.Hex()}).Info("attached orphaned comment")
		report.CommentsAttached++
	}
	if err := cursor.Err(); err != nil {
		return fmt.Errorf("iterate comments: %w", err)
	}
	return nil
}

func (r *Reconciler) loadPost(ctx context.Context, cache map[primitive.ObjectID]*models.Post, id primitive.ObjectID) (*models.Post, error) {
	if post, ok := cache[id]; ok {
		return post, nil
	}
	var post models.Post
	err := r.posts.FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(bson.M{"comments": 1})).Decode(&post)
	if err == mongo.ErrNoDocuments {
		cache[id] = nil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find post: %w", err)
	}
	cache[id] = &post
	return &post, nil
}

// danglingCommentRefs drops post references to comments that do not exist.
func (r *Reconciler) danglingCommentRefs(ctx context.Context, report *Report) error {
	filter := bson.M{"comments.0": bson.M{"$exists": true}}
	cursor, err := r.posts.Find(ctx, filter, options.Find().SetProjection(bson.M{"comments": 1}))
	if err != nil {
		return fmt.Errorf("list posts: %w", err)
	}
	var posts []models.Post
	if err := cursor.All(ctx, &posts); err != nil {
		return fmt.Errorf("decode posts: %w", err)
	}

	for _, post := range posts {
		existing, err := r.comments.Distinct(ctx, "_id", bson.M{"_id": bson.M{"$in": post.Comments}})
		if err != nil {
			return fmt.Errorf("resolve comments: %w", err)
		}
		found := make(map[primitive.ObjectID]bool, len(existing))
		for _, v := range existing {
			if id, ok := v.(primitive.ObjectID); ok {
				found[id] = true
			}
		}

		var missing []primitive.ObjectID
		for _, id := range post.Comments {
			if !found[id] {
				missing = append(missing, id)
			}
		}
		if len(missing) == 0 {
			continue
		}
		if _, err := r.posts.UpdateOne(ctx, bson.M{"_id": post.ID}, bson.M{"$pull": bson.M{"comments": bson.M{"$in": missing}}}); err != nil {
			return fmt.Errorf("pull dangling comments: %w", err)
		}
		report.DanglingCommentRefs += len(missing)
	}
	return nil
}

func containsObjectID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
