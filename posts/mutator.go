package posts

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"corkboard/notify"
	"corkboard/schemas"
	"corkboard/storage"
)

var (
	// ErrForbidden: the requesting identity is not the author.
	ErrForbidden = errors.New("posts.forbidden")
	// ErrNotConfirmed: delete was attempted without the explicit confirmation step.
	ErrNotConfirmed = errors.New("posts.not_confirmed")
)

// Mutator turns user intents into DocumentStore writes. It never touches the
// canonical list itself; the live subscription reflects every outcome.
type Mutator struct {
	store    storage.DocumentStore
	notifier notify.Sink
	logger   *zap.Logger

	mu         sync.Mutex
	submitting bool
}

func NewMutator(store storage.DocumentStore, notifier notify.Sink, logger *zap.Logger) *Mutator {
	return &Mutator{
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

// Create validates the draft and writes a new post. A title or content that
// is empty after trimming blocks submission silently, with no store call and
// no notification. Returns true when the write succeeded, telling the caller
// to clear its composer.
func (m *Mutator) Create(ctx context.Context, draft schemas.PostDraft, identity *schemas.Identity) bool {
	if identity == nil {
		return false
	}
	if strings.TrimSpace(draft.Title) == "" || strings.TrimSpace(draft.Content) == "" {
		return false
	}

	m.setSubmitting(true)
	defer m.setSubmitting(false)

	authorName := strings.TrimSpace(draft.AuthorName)
	if authorName == "" {
		authorName = schemas.AnonymousAuthorName
	}

	_, err := m.store.CreatePost(ctx, schemas.PostFields{
		Title:      draft.Title,
		Content:    draft.Content,
		AuthorName: authorName,
		AuthorID:   identity.UID,
		Likes:      0,
	})
	if err != nil {
		m.logger.Error("create post failed", zap.Error(err))
		m.notifier.Notify("post failed", schemas.SeverityError)
		return false
	}

	m.notifier.Notify("posted", schemas.SeveritySuccess)
	return true
}

// Delete removes a post the requesting identity authored, after an explicit
// confirmation. Callers must not offer the control to non-authors; the check
// here backs that up but is client-side only.
func (m *Mutator) Delete(ctx context.Context, post schemas.Post, identity *schemas.Identity, confirmed bool) error {
	if identity == nil || identity.UID != post.AuthorID {
		return ErrForbidden
	}
	if !confirmed {
		return ErrNotConfirmed
	}

	if err := m.store.DeletePost(ctx, post.ID); err != nil {
		m.logger.Error("delete post failed", zap.String("postId", post.ID), zap.Error(err))
		m.notifier.Notify("delete failed", schemas.SeverityError)
		return err
	}

	m.notifier.Notify("deleted", schemas.SeverityInfo)
	return nil
}

// Like issues one atomic +1. No coalescing of rapid clicks, no authorization,
// and failures stay in the log; likes are best effort.
func (m *Mutator) Like(ctx context.Context, post schemas.Post) {
	if err := m.store.UpdatePost(ctx, post.ID, schemas.PostPatch{LikesDelta: 1}); err != nil {
		m.logger.Warn("like failed", zap.String("postId", post.ID), zap.Error(err))
	}
}

// Submitting reports whether a create is in flight.
func (m *Mutator) Submitting() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submitting
}

func (m *Mutator) setSubmitting(submitting bool) {
	m.mu.Lock()
	m.submitting = submitting
	m.mu.Unlock()
}
