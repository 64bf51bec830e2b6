package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"corkboard/schemas"
	"corkboard/storage"
)

type subscriber struct {
	onSnapshot storage.SnapshotFunc
	onError    storage.ErrorFunc
}

// MemoryStorage is the zero-config local mode and the test double. Snapshots
// fan out synchronously after every write.
type MemoryStorage struct {
	mu          sync.Mutex
	docById     map[string]*schemas.PostDocument
	order       []string
	subscribers map[int]subscriber
	nextSubId   int

	holdTimestamps bool
}

func NewInMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		docById:     map[string]*schemas.PostDocument{},
		subscribers: map[int]subscriber{},
	}
}

// HoldServerTimestamps makes subsequent creates omit createdAt, modelling a
// just-written document whose server stamp has not committed yet.
func (s *MemoryStorage) HoldServerTimestamps(hold bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holdTimestamps = hold
}

// CommitTimestamps fills every held-back createdAt and announces the change.
func (s *MemoryStorage) CommitTimestamps() {
	s.mu.Lock()
	now := time.Now().UTC()
	for _, doc := range s.docById {
		if doc.CreatedAt == nil {
			stamp := now
			doc.CreatedAt = &stamp
		}
	}
	s.mu.Unlock()
	s.broadcast()
}

func (s *MemoryStorage) CreatePost(_ context.Context, fields schemas.PostFields) (string, error) {
	s.mu.Lock()
	doc := &schemas.PostDocument{
		ID:         uuid.NewString(),
		Title:      fields.Title,
		Content:    fields.Content,
		AuthorName: fields.AuthorName,
		AuthorID:   fields.AuthorID,
		Likes:      fields.Likes,
	}
	if !s.holdTimestamps {
		now := time.Now().UTC()
		doc.CreatedAt = &now
	}
	s.docById[doc.ID] = doc
	s.order = append(s.order, doc.ID)
	s.mu.Unlock()

	s.broadcast()
	return doc.ID, nil
}

func (s *MemoryStorage) UpdatePost(_ context.Context, postId string, patch schemas.PostPatch) error {
	s.mu.Lock()
	doc, ok := s.docById[postId]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", storage.ErrNotFound, postId)
	}
	doc.Likes += patch.LikesDelta
	s.mu.Unlock()

	s.broadcast()
	return nil
}

func (s *MemoryStorage) DeletePost(_ context.Context, postId string) error {
	s.mu.Lock()
	if _, ok := s.docById[postId]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", storage.ErrNotFound, postId)
	}
	delete(s.docById, postId)
	for i, id := range s.order {
		if id == postId {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.broadcast()
	return nil
}

func (s *MemoryStorage) Subscribe(_ context.Context, onSnapshot storage.SnapshotFunc, onError storage.ErrorFunc) (storage.UnsubscribeFunc, error) {
	s.mu.Lock()
	id := s.nextSubId
	s.nextSubId++
	s.subscribers[id] = subscriber{onSnapshot: onSnapshot, onError: onError}
	docs := s.snapshotLocked()
	s.mu.Unlock()

	onSnapshot(docs)

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}, nil
}

func (s *MemoryStorage) broadcast() {
	s.mu.Lock()
	docs := s.snapshotLocked()
	subs := make([]subscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.onSnapshot(docs)
	}
}

func (s *MemoryStorage) snapshotLocked() []schemas.PostDocument {
	docs := make([]schemas.PostDocument, 0, len(s.order))
	for _, id := range s.order {
		docs = append(docs, *s.docById[id])
	}
	return docs
}
