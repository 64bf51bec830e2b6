package storage

import (
	"context"
	"errors"
	"fmt"

	"corkboard/schemas"
)

var (
	StorageError = errors.New("storage")
	ErrNotFound  = fmt.Errorf("%w.not_found", StorageError)
)

// SnapshotFunc receives the full current collection. It is called once right
// after subscribing and again after every change.
type SnapshotFunc func(docs []schemas.PostDocument)

type ErrorFunc func(err error)

// UnsubscribeFunc tears down a live subscription. Safe to call more than once.
type UnsubscribeFunc func()

// DocumentStore is the external persistence collaborator. Implementations
// assign the id and the createdAt stamp on create. UpdatePost applies
// PostPatch.LikesDelta atomically.
type DocumentStore interface {
	CreatePost(ctx context.Context, fields schemas.PostFields) (string, error)
	UpdatePost(ctx context.Context, postId string, patch schemas.PostPatch) error
	DeletePost(ctx context.Context, postId string) error
	Subscribe(ctx context.Context, onSnapshot SnapshotFunc, onError ErrorFunc) (UnsubscribeFunc, error)
}
