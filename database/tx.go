package database

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
)

// Transactor runs fn so that its writes commit together. fn may be invoked
// more than once when the server asks for a retry, so it must be idempotent.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// NewTransactor returns a session-backed transactor, or a pass-through one
// when transactions are disabled (standalone servers do not support them).
func NewTransactor(client *mongo.Client, enabled bool) Transactor {
	if !enabled || client == nil {
		return directTransactor{}
	}
	return sessionTransactor{client: client}
}

type sessionTransactor struct {
	client *mongo.Client
}

func (t sessionTransactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return t.client.UseSession(ctx, func(sc mongo.SessionContext) error {
		_, err := sc.WithTransaction(sc, func(txCtx mongo.SessionContext) (interface{}, error) {
			return nil, fn(txCtx)
		})
		return err
	})
}

type directTransactor struct{}

func (directTransactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
