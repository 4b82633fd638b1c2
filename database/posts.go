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

type PostStore struct {
	posts    *mongo.Collection
	comments *mongo.Collection
	tx       Transactor
	now      func() time.Time
}

var _ store.PostStore = (*PostStore)(nil)

func NewPostStore(db *mongo.Database, tx Transactor) *PostStore {
	return &PostStore{
		posts:    db.Collection(PostsCollection),
		comments: db.Collection(CommentsCollection),
		tx:       tx,
		now:      time.Now,
	}
}

func (s *PostStore) CreatePost(ctx context.Context, ownerID primitive.ObjectID, title, desc string) (*models.Post, error) {
	post := &models.Post{
		ID:        primitive.NewObjectID(),
		Title:     title,
		Desc:      desc,
		CreatedBy: ownerID,
		// BSON dates carry millisecond precision.
		CreatedAt: s.now().UTC().Truncate(time.Millisecond),
		Likes:     []models.Like{},
		Comments:  []primitive.ObjectID{},
	}

	if _, err := s.posts.InsertOne(ctx, post); err != nil {
		return nil, fmt.Errorf("insert post: %w", err)
	}
	return post, nil
}

func (s *PostStore) DeletePost(ctx context.Context, ownerID, postID primitive.ObjectID) error {
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		err := s.posts.FindOneAndDelete(ctx, bson.M{"_id": postID, "createdBy": ownerID}).Err()
		if errors.Is(err, mongo.ErrNoDocuments) {
			return store.ErrPostNotFound
		}
		if err != nil {
			return fmt.Errorf("delete post: %w", err)
		}

		if _, err := s.comments.DeleteMany(ctx, bson.M{"post": postID}); err != nil {
			return fmt.Errorf("delete comments of post: %w", err)
		}
		return nil
	})
}

// Like prepends the like only if the user is not already among the likes;
// the filter makes concurrent likes on one post a compare-and-swap.
func (s *PostStore) Like(ctx context.Context, userID, postID primitive.ObjectID) ([]models.Like, error) {
	likes, err := s.updateLikes(ctx,
		bson.M{"_id": postID, "likes.user": bson.M{"$ne": userID}},
		bson.M{"$push": bson.M{"likes": bson.M{
			"$each":     bson.A{models.Like{User: userID}},
			"$position": 0,
		}}},
	)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, s.missOrConflict(ctx, postID, store.ErrAlreadyLiked)
	}
	return likes, err
}

func (s *PostStore) Unlike(ctx context.Context, userID, postID primitive.ObjectID) ([]models.Like, error) {
	likes, err := s.updateLikes(ctx,
		bson.M{"_id": postID, "likes.user": userID},
		bson.M{"$pull": bson.M{"likes": bson.M{"user": userID}}},
	)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, s.missOrConflict(ctx, postID, store.ErrNotLiked)
	}
	return likes, err
}

func (s *PostStore) updateLikes(ctx context.Context, filter, update bson.M) ([]models.Like, error) {
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"likes": 1})

	var post models.Post
	err := s.posts.FindOneAndUpdate(ctx, filter, update, opts).Decode(&post)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("update likes: %w", err)
	}
	if post.Likes == nil {
		post.Likes = []models.Like{}
	}
	return post.Likes, nil
}

// missOrConflict explains why a conditional update matched nothing.
func (s *PostStore) missOrConflict(ctx context.Context, postID primitive.ObjectID, conflict error) error {
	n, err := s.posts.CountDocuments(ctx, bson.M{"_id": postID})
	if err != nil {
		return fmt.Errorf("count posts: %w", err)
	}
	if n == 0 {
		return store.ErrPostNotFound
	}
	return conflict
}

func (s *PostStore) GetPost(ctx context.Context, postID primitive.ObjectID) (*models.PostView, error) {
	views, err := s.aggregate(ctx, populatePipeline(bson.D{{Key: "_id", Value: postID}}, false))
	if err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, store.ErrPostNotFound
	}
	return &views[0], nil
}

func (s *PostStore) ListPostsByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.PostView, error) {
	return s.aggregate(ctx, populatePipeline(bson.D{{Key: "createdBy", Value: ownerID}}, true))
}

type populatedPost struct {
	models.Post    `bson:",inline"`
	Owner          *models.UserRef  `bson:"owner"`
	CommentDocs    []models.Comment `bson:"commentDocs"`
	CommentAuthors []models.UserRef `bson:"commentAuthors"`
}

func (s *PostStore) aggregate(ctx context.Context, pipeline mongo.Pipeline) ([]models.PostView, error) {
	cursor, err := s.posts.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate posts: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []populatedPost
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}

	views := make([]models.PostView, 0, len(docs))
	for _, doc := range docs {
		views = append(views, doc.view())
	}
	return views, nil
}

func populatePipeline(match bson.D, newestFirst bool) mongo.Pipeline {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
	}
	if newestFirst {
		pipeline = append(pipeline, bson.D{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}})
	}
	return append(pipeline,
		bson.D{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: UsersCollection},
			{Key: "localField", Value: "createdBy"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "owner"},
		}}},
		bson.D{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$owner"},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},
		bson.D{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: CommentsCollection},
			{Key: "localField", Value: "comments"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "commentDocs"},
		}}},
		bson.D{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: UsersCollection},
			{Key: "localField", Value: "commentDocs.user"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "commentAuthors"},
		}}},
	)
}

// view orders comments by the post's reference list; $lookup does not.
func (p populatedPost) view() models.PostView {
	view := models.PostView{
		ID:        p.ID,
		Title:     p.Title,
		Desc:      p.Desc,
		CreatedBy: models.UserRef{ID: p.CreatedBy},
		CreatedAt: p.CreatedAt,
		Likes:     p.Likes,
		Comments:  make([]models.CommentView, 0, len(p.Comments)),
	}
	if view.Likes == nil {
		view.Likes = []models.Like{}
	}
	if p.Owner != nil {
		view.CreatedBy.Name = p.Owner.Name
	}

	authors := make(map[primitive.ObjectID]string, len(p.CommentAuthors))
	for _, author := range p.CommentAuthors {
		authors[author.ID] = author.Name
	}
	byID := make(map[primitive.ObjectID]models.Comment, len(p.CommentDocs))
	for _, comment := range p.CommentDocs {
		byID[comment.ID] = comment
	}

	for _, id := range p.Comments {
		comment, ok := byID[id]
		if !ok {
			continue
		}
		view.Comments = append(view.Comments, models.CommentView{
			ID:        comment.ID,
			User:      models.UserRef{ID: comment.User, Name: authors[comment.User]},
			Post:      comment.Post,
			Text:      comment.Text,
			CreatedAt: comment.CreatedAt,
		})
	}
	return view
}
