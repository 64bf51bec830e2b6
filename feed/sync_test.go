package feed

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"corkboard/schemas"
	"corkboard/storage"
)

type recorderSink struct {
	mu    sync.Mutex
	notes []schemas.Notification
}

func (r *recorderSink) Notify(message string, severity schemas.Severity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, schemas.Notification{Message: message, Severity: severity})
}

func (r *recorderSink) all() []schemas.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]schemas.Notification{}, r.notes...)
}

// scriptedStore hands the registered callbacks back to the test so it can
// play snapshots and errors at will.
type scriptedStore struct {
	mu               sync.Mutex
	onSnapshot       storage.SnapshotFunc
	onError          storage.ErrorFunc
	subscribeCalls   int
	unsubscribeCalls int
}

func (s *scriptedStore) CreatePost(context.Context, schemas.PostFields) (string, error) {
	return "", nil
}
func (s *scriptedStore) UpdatePost(context.Context, string, schemas.PostPatch) error { return nil }
func (s *scriptedStore) DeletePost(context.Context, string) error                    { return nil }

func (s *scriptedStore) Subscribe(_ context.Context, onSnapshot storage.SnapshotFunc, onError storage.ErrorFunc) (storage.UnsubscribeFunc, error) {
	s.mu.Lock()
	s.onSnapshot = onSnapshot
	s.onError = onError
	s.subscribeCalls++
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.unsubscribeCalls++
		s.mu.Unlock()
	}, nil
}

func (s *scriptedStore) emit(docs []schemas.PostDocument) {
	s.mu.Lock()
	onSnapshot := s.onSnapshot
	s.mu.Unlock()
	onSnapshot(docs)
}

func (s *scriptedStore) fail(err error) {
	s.mu.Lock()
	onError := s.onError
	s.mu.Unlock()
	onError(err)
}

func docAt(id string, createdAt time.Time) schemas.PostDocument {
	return schemas.PostDocument{
		ID:        id,
		Title:     "title " + id,
		Content:   "content " + id,
		AuthorID:  "author",
		CreatedAt: &createdAt,
	}
}

func newTestSync(store storage.DocumentStore) (*CollectionSync, *recorderSink) {
	sink := &recorderSink{}
	return NewCollectionSync(store, sink, zap.NewNop()), sink
}

func TestLoadingUntilFirstSnapshot(t *testing.T) {
	store := &scriptedStore{}
	s, _ := newTestSync(store)

	assert.False(t, s.Loading())
	s.Start(context.Background(), &schemas.Identity{UID: "u1"})
	assert.True(t, s.Loading())

	store.emit(nil)
	assert.False(t, s.Loading())
}

func TestSnapshotSortedDescendingForAnyInputOrder(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	permutations := [][]int{{0, 1, 2}, {2, 1, 0}, {1, 0, 2}, {2, 0, 1}}

	for _, perm := range permutations {
		store := &scriptedStore{}
		s, _ := newTestSync(store)
		s.Start(context.Background(), &schemas.Identity{UID: "u1"})

		docs := make([]schemas.PostDocument, 0, 3)
		for _, i := range perm {
			docs = append(docs, docAt(fmt.Sprintf("p%d", i), base.Add(time.Duration(i)*time.Minute)))
		}
		store.emit(docs)

		posts := s.Snapshot()
		require.Len(t, posts, 3)
		assert.Equal(t, "p2", posts[0].ID)
		assert.Equal(t, "p1", posts[1].ID)
		assert.Equal(t, "p0", posts[2].ID)
	}
}

func TestMissingCreatedAtFallsBackToNow(t *testing.T) {
	store := &scriptedStore{}
	s, _ := newTestSync(store)
	s.Start(context.Background(), &schemas.Identity{UID: "u1"})

	store.emit([]schemas.PostDocument{{ID: "fresh", Title: "t", Content: "c", AuthorID: "u1"}})

	posts := s.Snapshot()
	require.Len(t, posts, 1)
	assert.WithinDuration(t, time.Now(), posts[0].CreatedAt, time.Second)
}

func TestSnapshotIsReplacedWholesale(t *testing.T) {
	store := &scriptedStore{}
	s, _ := newTestSync(store)
	s.Start(context.Background(), &schemas.Identity{UID: "u1"})

	now := time.Now().UTC()
	store.emit([]schemas.PostDocument{docAt("a", now), docAt("b", now.Add(time.Second))})
	store.emit([]schemas.PostDocument{docAt("c", now)})

	posts := s.Snapshot()
	require.Len(t, posts, 1)
	assert.Equal(t, "c", posts[0].ID)
}

func TestStaleSnapshotAfterStopIsIgnored(t *testing.T) {
	store := &scriptedStore{}
	s, _ := newTestSync(store)
	s.Start(context.Background(), &schemas.Identity{UID: "u1"})

	now := time.Now().UTC()
	store.emit([]schemas.PostDocument{docAt("kept", now)})
	s.Stop()

	store.emit([]schemas.PostDocument{docAt("late", now.Add(time.Minute))})

	posts := s.Snapshot()
	require.Len(t, posts, 1)
	assert.Equal(t, "kept", posts[0].ID)
	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, 1, store.unsubscribeCalls)
}

func TestStartWithNewIdentityTearsDownPrevious(t *testing.T) {
	store := &scriptedStore{}
	s, _ := newTestSync(store)

	s.Start(context.Background(), &schemas.Identity{UID: "u1"})
	s.Start(context.Background(), &schemas.Identity{UID: "u2"})

	store.mu.Lock()
	assert.Equal(t, 2, store.subscribeCalls)
	assert.Equal(t, 1, store.unsubscribeCalls)
	store.mu.Unlock()
}

func TestStartWithSameIdentityIsIdempotent(t *testing.T) {
	store := &scriptedStore{}
	s, _ := newTestSync(store)

	identity := &schemas.Identity{UID: "u1"}
	s.Start(context.Background(), identity)
	s.Start(context.Background(), identity)

	store.mu.Lock()
	assert.Equal(t, 1, store.subscribeCalls)
	assert.Equal(t, 0, store.unsubscribeCalls)
	store.mu.Unlock()
}

func TestErrorBeforeFirstSnapshot(t *testing.T) {
	// subscription fails before any data arrives: loading clears, the list
	// stays empty, the user sees one generic error
	store := &scriptedStore{}
	s, sink := newTestSync(store)
	s.Start(context.Background(), &schemas.Identity{UID: "u1"})

	store.fail(fmt.Errorf("stream broke"))

	assert.False(t, s.Loading())
	assert.Empty(t, s.Snapshot())
	notes := sink.all()
	require.Len(t, notes, 1)
	assert.Equal(t, "failed to load data", notes[0].Message)
	assert.Equal(t, schemas.SeverityError, notes[0].Severity)
}

func TestErrorKeepsLastGoodData(t *testing.T) {
	store := &scriptedStore{}
	s, _ := newTestSync(store)
	s.Start(context.Background(), &schemas.Identity{UID: "u1"})

	store.emit([]schemas.PostDocument{docAt("survivor", time.Now().UTC())})
	store.fail(fmt.Errorf("stream broke"))

	posts := s.Snapshot()
	require.Len(t, posts, 1)
	assert.Equal(t, "survivor", posts[0].ID)
}

func TestErrorAfterStopIsIgnored(t *testing.T) {
	store := &scriptedStore{}
	s, sink := newTestSync(store)
	s.Start(context.Background(), &schemas.Identity{UID: "u1"})
	s.Stop()

	store.fail(fmt.Errorf("stream broke"))

	assert.Empty(t, sink.all())
}

func TestOnChangeFiresPerSnapshot(t *testing.T) {
	store := &scriptedStore{}
	s, _ := newTestSync(store)

	var mu sync.Mutex
	changes := 0
	s.OnChange(func() {
		mu.Lock()
		changes++
		mu.Unlock()
	})

	s.Start(context.Background(), &schemas.Identity{UID: "u1"})
	store.emit(nil)
	store.emit(nil)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, changes)
}
