package feed

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"corkboard/notify"
	"corkboard/schemas"
	"corkboard/storage"
)

// CollectionSync keeps the canonical post list in lockstep with the remote
// collection. At most one live subscription exists at a time; every snapshot
// replaces the list wholesale so readers never see a partial update. A
// generation counter guards against snapshots from a torn-down subscription
// landing late.
type CollectionSync struct {
	store    storage.DocumentStore
	notifier notify.Sink
	logger   *zap.Logger

	mu          sync.Mutex
	generation  int
	unsubscribe storage.UnsubscribeFunc
	identity    *schemas.Identity
	posts       []schemas.Post
	loading     bool
	started     bool
	onChange    func()
}

func NewCollectionSync(store storage.DocumentStore, notifier notify.Sink, logger *zap.Logger) *CollectionSync {
	return &CollectionSync{
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

// Start opens the subscription for the given identity. Calling it again with
// the same identity is a no-op; a new identity tears the old subscription
// down first.
func (s *CollectionSync) Start(ctx context.Context, identity *schemas.Identity) {
	s.mu.Lock()
	if s.started && s.identity != nil && identity != nil && s.identity.UID == identity.UID {
		s.mu.Unlock()
		return
	}
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.generation++
	generation := s.generation
	s.identity = identity
	s.started = true
	s.loading = true
	s.mu.Unlock()

	unsubscribe, err := s.store.Subscribe(ctx,
		func(docs []schemas.PostDocument) { s.applySnapshot(generation, docs) },
		func(err error) { s.applyError(generation, err) },
	)
	if err != nil {
		s.applyError(generation, err)
		return
	}

	s.mu.Lock()
	if generation != s.generation {
		// Stop or a newer Start won the race
		s.mu.Unlock()
		unsubscribe()
		return
	}
	s.unsubscribe = unsubscribe
	s.mu.Unlock()
}

// Stop releases the subscription. Snapshots that arrive afterwards do not
// touch the canonical list.
func (s *CollectionSync) Stop() {
	s.mu.Lock()
	s.generation++
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.identity = nil
	s.started = false
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Snapshot returns a copy of the canonical list, sorted newest first.
func (s *CollectionSync) Snapshot() []schemas.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	posts := make([]schemas.Post, len(s.posts))
	copy(posts, s.posts)
	return posts
}

// Loading reports true between Start and the first snapshot or error.
func (s *CollectionSync) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// OnChange registers the render hook. One hook; the presentation layer owns it.
func (s *CollectionSync) OnChange(cb func()) {
	s.mu.Lock()
	s.onChange = cb
	s.mu.Unlock()
}

func (s *CollectionSync) applySnapshot(generation int, docs []schemas.PostDocument) {
	now := time.Now()
	posts := make([]schemas.Post, 0, len(docs))
	for _, doc := range docs {
		posts = append(posts, doc.ToPost(now))
	}
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})

	s.mu.Lock()
	if generation != s.generation {
		s.mu.Unlock()
		return
	}
	s.posts = posts
	s.loading = false
	cb := s.onChange
	s.mu.Unlock()

	if cb != nil {
		cb()
	}
}

func (s *CollectionSync) applyError(generation int, err error) {
	s.mu.Lock()
	if generation != s.generation {
		s.mu.Unlock()
		return
	}
	// keep the last good list: stale-but-available over empty-but-fresh
	s.loading = false
	cb := s.onChange
	s.mu.Unlock()

	s.logger.Error("live read failed", zap.Error(err))
	s.notifier.Notify("failed to load data", schemas.SeverityError)

	if cb != nil {
		cb()
	}
}
