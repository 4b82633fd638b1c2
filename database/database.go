package database

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	UsersCollection    = "users"
	PostsCollection    = "posts"
	CommentsCollection = "comments"
)

type Options struct {
	URI          string
	Name         string
	Transactions bool
}

// Database owns the MongoDB client and hands out the collection-backed stores.
type Database struct {
	Client *mongo.Client
	DB     *mongo.Database
	Tx     Transactor
}

func Connect(ctx context.Context, opts Options) (*Database, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return New(client, client.Database(opts.Name), opts.Transactions), nil
}

// New wraps an already connected client.
func New(client *mongo.Client, db *mongo.Database, transactions bool) *Database {
	return &Database{
		Client: client,
		DB:     db,
		Tx:     NewTransactor(client, transactions),
	}
}

func (d *Database) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := d.DB.Collection(UsersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("users index: %w", err)
	}

	_, err = d.DB.Collection(PostsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "createdBy", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("posts index: %w", err)
	}

	_, err = d.DB.Collection(CommentsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "post", Value: 1}}},
		{
			Keys: bson.D{{Key: "user", Value: 1}, {Key: "requestKey", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"requestKey": bson.M{"$exists": true}}),
		},
	})
	if err != nil {
		return fmt.Errorf("comments index: %w", err)
	}
	return nil
}

func (d *Database) Users() *UserDirectory {
	return NewUserDirectory(d.DB, d.Tx)
}

func (d *Database) Posts() *PostStore {
	return NewPostStore(d.DB, d.Tx)
}

func (d *Database) Comments() *CommentStore {
	return NewCommentStore(d.DB, d.Tx)
}

func (d *Database) Disconnect(ctx context.Context) error {
	if d.Client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := d.Client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongo: %w", err)
	}
	return nil
}

func (d *Database) Reconciler(log logrus.FieldLogger) *Reconciler {
	return NewReconciler(d.DB, log)
}
