package schemas

import (
	"time"
)

type UserId string

// AnonymousAuthorName is substituted when the composer leaves the nickname blank.
const AnonymousAuthorName = "anonymous user"

// Post is the board's view of a document after sync normalization:
// CreatedAt is always set (local now is substituted for display when the
// server stamp has not committed yet).
type Post struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	AuthorName string    `json:"authorName"`
	AuthorID   UserId    `json:"authorId"`
	CreatedAt  time.Time `json:"createdAt"`
	Likes      int64     `json:"likes"`
}

// PostDocument is the raw shape a DocumentStore subscription delivers.
// CreatedAt is nil while the server timestamp of a just-written document
// has not committed.
type PostDocument struct {
	ID         string     `bson:"_id" json:"id"`
	Title      string     `bson:"title" json:"title"`
	Content    string     `bson:"content" json:"content"`
	AuthorName string     `bson:"authorName" json:"authorName"`
	AuthorID   UserId     `bson:"authorId" json:"authorId"`
	CreatedAt  *time.Time `bson:"createdAt" json:"createdAt"`
	Likes      int64      `bson:"likes" json:"likes"`
}

func (d PostDocument) ToPost(now time.Time) Post {
	createdAt := now
	if d.CreatedAt != nil {
		createdAt = *d.CreatedAt
	}
	return Post{
		ID:         d.ID,
		Title:      d.Title,
		Content:    d.Content,
		AuthorName: d.AuthorName,
		AuthorID:   d.AuthorID,
		CreatedAt:  createdAt,
		Likes:      d.Likes,
	}
}

// PostDraft is the composer buffer. AuthorName is optional.
type PostDraft struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	AuthorName string `json:"authorName"`
}

// PostFields is what a create writes; the store assigns id and createdAt.
type PostFields struct {
	Title      string
	Content    string
	AuthorName string
	AuthorID   UserId
	Likes      int64
}

// PostPatch is a partial update. LikesDelta applies as an atomic increment
// on the store side, never as read-modify-write.
type PostPatch struct {
	LikesDelta int64
}
