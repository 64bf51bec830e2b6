package posts

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"corkboard/schemas"
	"corkboard/storage"
	"corkboard/storage/inmemory"
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

// countingStore wraps the in-memory store and counts write calls.
type countingStore struct {
	storage.DocumentStore
	mu      sync.Mutex
	creates int
	updates int
	deletes int
}

func (s *countingStore) CreatePost(ctx context.Context, fields schemas.PostFields) (string, error) {
	s.mu.Lock()
	s.creates++
	s.mu.Unlock()
	return s.DocumentStore.CreatePost(ctx, fields)
}

func (s *countingStore) UpdatePost(ctx context.Context, postId string, patch schemas.PostPatch) error {
	s.mu.Lock()
	s.updates++
	s.mu.Unlock()
	return s.DocumentStore.UpdatePost(ctx, postId, patch)
}

func (s *countingStore) DeletePost(ctx context.Context, postId string) error {
	s.mu.Lock()
	s.deletes++
	s.mu.Unlock()
	return s.DocumentStore.DeletePost(ctx, postId)
}

// failingStore rejects every write with a fixed error.
type failingStore struct {
	storage.DocumentStore
	err error
}

func (s *failingStore) CreatePost(context.Context, schemas.PostFields) (string, error) {
	return "", s.err
}
func (s *failingStore) UpdatePost(context.Context, string, schemas.PostPatch) error { return s.err }
func (s *failingStore) DeletePost(context.Context, string) error                    { return s.err }

func latestDocs(t *testing.T, store *inmemory.MemoryStorage) []schemas.PostDocument {
	t.Helper()
	var docs []schemas.PostDocument
	unsubscribe, err := store.Subscribe(context.Background(),
		func(snapshot []schemas.PostDocument) { docs = snapshot },
		func(error) {},
	)
	require.NoError(t, err)
	unsubscribe()
	return docs
}

func TestCreateEmptyFieldsIsSilentNoOp(t *testing.T) {
	memory := inmemory.NewInMemoryStorage()
	store := &countingStore{DocumentStore: memory}
	sink := &recorderSink{}
	m := NewMutator(store, sink, zap.NewNop())
	identity := &schemas.Identity{UID: "u1"}

	for _, draft := range []schemas.PostDraft{
		{Title: "", Content: "body"},
		{Title: "   ", Content: "body"},
		{Title: "head", Content: ""},
		{Title: "head", Content: " \n\t "},
	} {
		assert.False(t, m.Create(context.Background(), draft, identity))
	}

	store.mu.Lock()
	assert.Equal(t, 0, store.creates)
	store.mu.Unlock()
	assert.Empty(t, sink.all())
	assert.Empty(t, latestDocs(t, memory))
}

func TestCreateSuccess(t *testing.T) {
	memory := inmemory.NewInMemoryStorage()
	sink := &recorderSink{}
	m := NewMutator(memory, sink, zap.NewNop())

	created := m.Create(context.Background(), schemas.PostDraft{
		Title:      "Hello",
		Content:    "World",
		AuthorName: "alice",
	}, &schemas.Identity{UID: "u1"})

	require.True(t, created)
	notes := sink.all()
	require.Len(t, notes, 1)
	assert.Equal(t, "posted", notes[0].Message)
	assert.Equal(t, schemas.SeveritySuccess, notes[0].Severity)

	docs := latestDocs(t, memory)
	require.Len(t, docs, 1)
	assert.Equal(t, "Hello", docs[0].Title)
	assert.Equal(t, "World", docs[0].Content)
	assert.Equal(t, "alice", docs[0].AuthorName)
	assert.Equal(t, schemas.UserId("u1"), docs[0].AuthorID)
	assert.Equal(t, int64(0), docs[0].Likes)
}

func TestCreateDefaultsAuthorName(t *testing.T) {
	memory := inmemory.NewInMemoryStorage()
	m := NewMutator(memory, &recorderSink{}, zap.NewNop())

	m.Create(context.Background(), schemas.PostDraft{
		Title:      "Hello",
		Content:    "World",
		AuthorName: "  ",
	}, &schemas.Identity{UID: "u1"})

	docs := latestDocs(t, memory)
	require.Len(t, docs, 1)
	assert.Equal(t, schemas.AnonymousAuthorName, docs[0].AuthorName)
}

func TestCreateFailureKeepsDraftSemantics(t *testing.T) {
	// false return tells the caller to keep the composer contents
	store := &failingStore{err: fmt.Errorf("write lost")}
	sink := &recorderSink{}
	m := NewMutator(store, sink, zap.NewNop())

	created := m.Create(context.Background(), schemas.PostDraft{Title: "Hello", Content: "World"},
		&schemas.Identity{UID: "u1"})

	assert.False(t, created)
	notes := sink.all()
	require.Len(t, notes, 1)
	assert.Equal(t, "post failed", notes[0].Message)
	assert.Equal(t, schemas.SeverityError, notes[0].Severity)
	assert.False(t, m.Submitting())
}

func TestLikeIssuesOneIncrementPerCall(t *testing.T) {
	memory := inmemory.NewInMemoryStorage()
	store := &countingStore{DocumentStore: memory}
	m := NewMutator(store, &recorderSink{}, zap.NewNop())

	id, err := memory.CreatePost(context.Background(), schemas.PostFields{
		Title: "t", Content: "c", AuthorName: "n", AuthorID: "u1",
	})
	require.NoError(t, err)
	post := schemas.Post{ID: id, AuthorID: "u1"}

	m.Like(context.Background(), post)
	m.Like(context.Background(), post)

	store.mu.Lock()
	assert.Equal(t, 2, store.updates)
	store.mu.Unlock()

	docs := latestDocs(t, memory)
	require.Len(t, docs, 1)
	assert.Equal(t, int64(2), docs[0].Likes)
}

func TestLikeOnLikedPost(t *testing.T) {
	// a post sitting at likes=2 moves to 3 after one like
	memory := inmemory.NewInMemoryStorage()
	m := NewMutator(memory, &recorderSink{}, zap.NewNop())

	id, err := memory.CreatePost(context.Background(), schemas.PostFields{
		Title: "t", Content: "c", AuthorName: "n", AuthorID: "u1",
	})
	require.NoError(t, err)
	require.NoError(t, memory.UpdatePost(context.Background(), id, schemas.PostPatch{LikesDelta: 2}))

	m.Like(context.Background(), schemas.Post{ID: id})

	docs := latestDocs(t, memory)
	require.Len(t, docs, 1)
	assert.Equal(t, int64(3), docs[0].Likes)
}

func TestLikeFailureStaysSilent(t *testing.T) {
	sink := &recorderSink{}
	m := NewMutator(&failingStore{err: fmt.Errorf("gone")}, sink, zap.NewNop())

	m.Like(context.Background(), schemas.Post{ID: "p1"})

	assert.Empty(t, sink.all())
}

func TestDeleteRequiresMatchingAuthor(t *testing.T) {
	memory := inmemory.NewInMemoryStorage()
	store := &countingStore{DocumentStore: memory}
	sink := &recorderSink{}
	m := NewMutator(store, sink, zap.NewNop())

	post := schemas.Post{ID: "p1", AuthorID: "u1"}
	err := m.Delete(context.Background(), post, &schemas.Identity{UID: "u2"}, true)

	assert.ErrorIs(t, err, ErrForbidden)
	store.mu.Lock()
	assert.Equal(t, 0, store.deletes)
	store.mu.Unlock()
	assert.Empty(t, sink.all())
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	memory := inmemory.NewInMemoryStorage()
	store := &countingStore{DocumentStore: memory}
	m := NewMutator(store, &recorderSink{}, zap.NewNop())

	post := schemas.Post{ID: "p1", AuthorID: "u1"}
	err := m.Delete(context.Background(), post, &schemas.Identity{UID: "u1"}, false)

	assert.ErrorIs(t, err, ErrNotConfirmed)
	store.mu.Lock()
	assert.Equal(t, 0, store.deletes)
	store.mu.Unlock()
}

func TestDeleteSuccess(t *testing.T) {
	memory := inmemory.NewInMemoryStorage()
	sink := &recorderSink{}
	m := NewMutator(memory, sink, zap.NewNop())

	id, err := memory.CreatePost(context.Background(), schemas.PostFields{
		Title: "t", Content: "c", AuthorName: "n", AuthorID: "u1",
	})
	require.NoError(t, err)

	err = m.Delete(context.Background(), schemas.Post{ID: id, AuthorID: "u1"},
		&schemas.Identity{UID: "u1"}, true)

	require.NoError(t, err)
	notes := sink.all()
	require.Len(t, notes, 1)
	assert.Equal(t, "deleted", notes[0].Message)
	assert.Equal(t, schemas.SeverityInfo, notes[0].Severity)
	assert.Empty(t, latestDocs(t, memory))
}

func TestDeleteFailure(t *testing.T) {
	sink := &recorderSink{}
	m := NewMutator(&failingStore{err: fmt.Errorf("gone")}, sink, zap.NewNop())

	err := m.Delete(context.Background(), schemas.Post{ID: "p1", AuthorID: "u1"},
		&schemas.Identity{UID: "u1"}, true)

	require.Error(t, err)
	notes := sink.all()
	require.Len(t, notes, 1)
	assert.Equal(t, "delete failed", notes[0].Message)
	assert.Equal(t, schemas.SeverityError, notes[0].Severity)
}
