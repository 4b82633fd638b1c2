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

// CommentStore writes a comment and then appends its id to the post.
// Outside a transaction the pair is made retry-safe: a repeated request
// reuses the comment left behind by an earlier attempt, and the append is
// an $addToSet.
type CommentStore struct {
	posts    *mongo.Collection
	comments *mongo.Collection
	tx       Transactor
	now      func() time.Time
}

var _ store.CommentStore = (*CommentStore)(nil)

func NewCommentStore(db *mongo.Database, tx Transactor) *CommentStore {
	return &CommentStore{
		posts:    db.Collection(PostsCollection),
		comments: db.Collection(CommentsCollection),
		tx:       tx,
		now:      time.Now,
	}
}

func (s *CommentStore) AddComment(ctx context.Context, authorID, postID primitive.ObjectID, text, requestKey string) (*models.Comment, error) {
	var created *models.Comment
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var post models.Post
		opts := options.FindOne().SetProjection(bson.M{"comments": 1})
		err := s.posts.FindOne(ctx, bson.M{"_id": postID}, opts).Decode(&post)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return store.ErrPostNotFound
		}
		if err != nil {
			return fmt.Errorf("find post: %w", err)
		}

		comment, err := s.previousAttempt(ctx, authorID, &post, text, requestKey)
		if err != nil {
			return err
		}
		if comment == nil {
			comment, err = s.insert(ctx, authorID, postID, text, requestKey)
			if err != nil {
				return err
			}
		}

		res, err := s.posts.UpdateOne(ctx,
			bson.M{"_id": postID},
			bson.M{"$addToSet": bson.M{"comments": comment.ID}},
		)
		if err != nil {
			return fmt.Errorf("append comment to post: %w", err)
		}
		if res.MatchedCount == 0 {
			// The post was deleted between the two steps.
			if _, err := s.comments.DeleteOne(ctx, bson.M{"_id": comment.ID}); err != nil {
				return fmt.Errorf("remove orphaned comment: %w", err)
			}
			return store.ErrPostNotFound
		}

		created = comment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// previousAttempt finds a comment written by an earlier try of the same
// request: by request key when the client sent one, otherwise an identical
// comment that the post does not reference yet.
func (s *CommentStore) previousAttempt(ctx context.Context, authorID primitive.ObjectID, post *models.Post, text, requestKey string) (*models.Comment, error) {
	filter := bson.M{
		"user": authorID,
		"post": post.ID,
		"text": text,
		"_id":  bson.M{"$nin": post.Comments},
	}
	if requestKey != "" {
		filter = bson.M{"user": authorID, "requestKey": requestKey}
	}
	if post.Comments == nil {
		delete(filter, "_id")
	}

	var comment models.Comment
	err := s.comments.FindOne(ctx, filter).Decode(&comment)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find previous comment: %w", err)
	}
	if comment.Post != post.ID {
		return nil, store.ErrRequestKeyReused
	}
	return &comment, nil
}

func (s *CommentStore) insert(ctx context.Context, authorID, postID primitive.ObjectID, text, requestKey string) (*models.Comment, error) {
	comment := &models.Comment{
		ID:         primitive.NewObjectID(),
		User:       authorID,
		Post:       postID,
		Text:       text,
		CreatedAt:  s.now().UTC().Truncate(time.Millisecond),
		RequestKey: requestKey,
	}

	_, err := s.comments.InsertOne(ctx, comment)
	if mongo.IsDuplicateKeyError(err) && requestKey != "" {
		// A concurrent request with the same key won the insert.
		return s.byRequestKey(ctx, authorID, postID, requestKey)
	}
	if err != nil {
		return nil, fmt.Errorf("insert comment: %w", err)
	}
	return comment, nil
}

func (s *CommentStore) byRequestKey(ctx context.Context, authorID, postID primitive.ObjectID, requestKey string) (*models.Comment, error) {
	var comment models.Comment
	err := s.comments.FindOne(ctx, bson.M{"user": authorID, "requestKey": requestKey}).Decode(&comment)
	if err != nil {
		return nil, fmt.Errorf("find comment by request key: %w", err)
	}
	if comment.Post != postID {
		return nil, store.ErrRequestKeyReused
	}
	return &comment, nil
}
