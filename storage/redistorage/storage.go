package redistorage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"corkboard/schemas"
	"corkboard/storage"
)

// Redis rendition of the DocumentStore collaborator. Each post is a hash
// under <ns>:posts:<id>, the id index lives in the set <ns>:posts, and every
// write publishes on <ns>:changed so subscribers re-read the collection.
type Storage struct {
	client *redis.Client
	ns     string
}

func NewStorage(redisURL, namespace string) *Storage {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		panic(fmt.Sprintf("parse redis url failed: %s", err))
	}
	return &Storage{
		client: redis.NewClient(opts),
		ns:     namespace,
	}
}

func (s *Storage) keyForPost(postId string) string {
	return fmt.Sprintf("%s:posts:%s", s.ns, postId)
}

func (s *Storage) keyForIndex() string {
	return fmt.Sprintf("%s:posts", s.ns)
}

func (s *Storage) changeChannel() string {
	return fmt.Sprintf("%s:changed", s.ns)
}

func (s *Storage) CreatePost(ctx context.Context, fields schemas.PostFields) (string, error) {
	id := uuid.NewString()
	createdAt := time.Now().UTC().Truncate(time.Millisecond)

	hash := map[string]interface{}{
		"title":      fields.Title,
		"content":    fields.Content,
		"authorName": fields.AuthorName,
		"authorId":   string(fields.AuthorID),
		"createdAt":  createdAt.Format(time.RFC3339Nano),
		"likes":      fields.Likes,
	}
	if err := s.client.HSet(ctx, s.keyForPost(id), hash).Err(); err != nil {
		return "", fmt.Errorf("%w: redis error: %s", storage.StorageError, err.Error())
	}
	if err := s.client.SAdd(ctx, s.keyForIndex(), id).Err(); err != nil {
		return "", fmt.Errorf("%w: redis error: %s", storage.StorageError, err.Error())
	}
	s.announce(ctx)
	return id, nil
}

func (s *Storage) UpdatePost(ctx context.Context, postId string, patch schemas.PostPatch) error {
	isMember, err := s.client.SIsMember(ctx, s.keyForIndex(), postId).Result()
	if err != nil {
		return fmt.Errorf("%w: redis error: %s", storage.StorageError, err.Error())
	}
	if !isMember {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, postId)
	}

	// HIncrBy is the atomic increment the contract requires
	if patch.LikesDelta != 0 {
		if err := s.client.HIncrBy(ctx, s.keyForPost(postId), "likes", patch.LikesDelta).Err(); err != nil {
			return fmt.Errorf("%w: redis error: %s", storage.StorageError, err.Error())
		}
	}
	s.announce(ctx)
	return nil
}

func (s *Storage) DeletePost(ctx context.Context, postId string) error {
	removed, err := s.client.SRem(ctx, s.keyForIndex(), postId).Result()
	if err != nil {
		return fmt.Errorf("%w: redis error: %s", storage.StorageError, err.Error())
	}
	if removed == 0 {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, postId)
	}
	if err := s.client.Del(ctx, s.keyForPost(postId)).Err(); err != nil {
		return fmt.Errorf("%w: redis failed delete: %s", storage.StorageError, err.Error())
	}
	s.announce(ctx)
	return nil
}

func (s *Storage) announce(ctx context.Context) {
	// best effort: a missed announcement means a delayed snapshot, not data loss
	_ = s.client.Publish(ctx, s.changeChannel(), "changed").Err()
}

func (s *Storage) Subscribe(ctx context.Context, onSnapshot storage.SnapshotFunc, onError storage.ErrorFunc) (storage.UnsubscribeFunc, error) {
	pubsub := s.client.Subscribe(ctx, s.changeChannel())
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("%w: redis subscribe failed: %s", storage.StorageError, err.Error())
	}

	subCtx, cancel := context.WithCancel(ctx)
	go func() {
		if docs, err := s.fetchAll(subCtx); err != nil {
			if subCtx.Err() == nil {
				onError(err)
			}
		} else {
			onSnapshot(docs)
		}

		for {
			select {
			case <-subCtx.Done():
				return
			case _, ok := <-pubsub.Channel():
				if !ok {
					return
				}
				docs, err := s.fetchAll(subCtx)
				if err != nil {
					if subCtx.Err() == nil {
						onError(err)
					}
					continue
				}
				onSnapshot(docs)
			}
		}
	}()

	return func() {
		cancel()
		_ = pubsub.Close()
	}, nil
}

func (s *Storage) fetchAll(ctx context.Context) ([]schemas.PostDocument, error) {
	ids, err := s.client.SMembers(ctx, s.keyForIndex()).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: redis error: %s", storage.StorageError, err.Error())
	}

	docs := make([]schemas.PostDocument, 0, len(ids))
	for _, id := range ids {
		hash, err := s.client.HGetAll(ctx, s.keyForPost(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: redis error: %s", storage.StorageError, err.Error())
		}
		if len(hash) == 0 {
			// deleted between SMembers and HGetAll
			continue
		}
		docs = append(docs, docFromHash(id, hash))
	}
	return docs, nil
}

func docFromHash(id string, hash map[string]string) schemas.PostDocument {
	doc := schemas.PostDocument{
		ID:         id,
		Title:      hash["title"],
		Content:    hash["content"],
		AuthorName: hash["authorName"],
		AuthorID:   schemas.UserId(hash["authorId"]),
	}
	if raw := hash["createdAt"]; raw != "" {
		if createdAt, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			doc.CreatedAt = &createdAt
		}
	}
	if raw := hash["likes"]; raw != "" {
		if likes, err := strconv.ParseInt(raw, 10, 64); err == nil {
			doc.Likes = likes
		}
	}
	return doc
}
