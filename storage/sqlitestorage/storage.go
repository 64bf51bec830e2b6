package sqlitestorage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"corkboard/schemas"
	"corkboard/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS posts (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	content     TEXT NOT NULL,
	author_name TEXT NOT NULL,
	author_id   TEXT NOT NULL,
	created_at  TIMESTAMP,
	likes       INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS posts_created_at ON posts (created_at DESC);`

type subscriber struct {
	onSnapshot storage.SnapshotFunc
	onError    storage.ErrorFunc
}

// SQLite rendition of the DocumentStore collaborator. Change announcements
// are in-process only, which fits the single-process deployments this mode
// exists for.
type Storage struct {
	db *sql.DB

	mu          sync.Mutex
	subscribers map[int]subscriber
	nextSubId   int
}

func NewStorage(path string) (*Storage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %s", storage.StorageError, err.Error())
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping database: %s", storage.StorageError, err.Error())
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: bootstrap schema: %s", storage.StorageError, err.Error())
	}
	return &Storage{
		db:          db,
		subscribers: map[int]subscriber{},
	}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) CreatePost(ctx context.Context, fields schemas.PostFields) (string, error) {
	id := uuid.NewString()
	createdAt := time.Now().UTC().Truncate(time.Millisecond)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (id, title, content, author_name, author_id, created_at, likes)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, fields.Title, fields.Content, fields.AuthorName, string(fields.AuthorID), createdAt, fields.Likes,
	)
	if err != nil {
		return "", fmt.Errorf("%w: insert post: %s", storage.StorageError, err.Error())
	}

	s.broadcast(ctx)
	return id, nil
}

func (s *Storage) UpdatePost(ctx context.Context, postId string, patch schemas.PostPatch) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE posts SET likes = likes + ? WHERE id = ?`,
		patch.LikesDelta, postId,
	)
	if err != nil {
		return fmt.Errorf("%w: update post: %s", storage.StorageError, err.Error())
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: update post: %s", storage.StorageError, err.Error())
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, postId)
	}

	s.broadcast(ctx)
	return nil
}

func (s *Storage) DeletePost(ctx context.Context, postId string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, postId)
	if err != nil {
		return fmt.Errorf("%w: delete post: %s", storage.StorageError, err.Error())
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: delete post: %s", storage.StorageError, err.Error())
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, postId)
	}

	s.broadcast(ctx)
	return nil
}

func (s *Storage) Subscribe(ctx context.Context, onSnapshot storage.SnapshotFunc, onError storage.ErrorFunc) (storage.UnsubscribeFunc, error) {
	s.mu.Lock()
	id := s.nextSubId
	s.nextSubId++
	s.subscribers[id] = subscriber{onSnapshot: onSnapshot, onError: onError}
	s.mu.Unlock()

	if docs, err := s.fetchAll(ctx); err != nil {
		onError(err)
	} else {
		onSnapshot(docs)
	}

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}, nil
}

func (s *Storage) broadcast(ctx context.Context) {
	s.mu.Lock()
	subs := make([]subscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	if len(subs) == 0 {
		return
	}

	docs, err := s.fetchAll(ctx)
	for _, sub := range subs {
		if err != nil {
			sub.onError(err)
			continue
		}
		sub.onSnapshot(docs)
	}
}

func (s *Storage) fetchAll(ctx context.Context) ([]schemas.PostDocument, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, content, author_name, author_id, created_at, likes
		FROM posts`)
	if err != nil {
		return nil, fmt.Errorf("%w: query posts: %s", storage.StorageError, err.Error())
	}
	defer rows.Close()

	var docs []schemas.PostDocument
	for rows.Next() {
		var doc schemas.PostDocument
		var authorId string
		var createdAt sql.NullTime
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Content, &doc.AuthorName, &authorId, &createdAt, &doc.Likes); err != nil {
			return nil, fmt.Errorf("%w: scan post: %s", storage.StorageError, err.Error())
		}
		doc.AuthorID = schemas.UserId(authorId)
		if createdAt.Valid {
			stamp := createdAt.Time
			doc.CreatedAt = &stamp
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate posts: %s", storage.StorageError, err.Error())
	}
	return docs, nil
}
