package mongostorage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"corkboard/schemas"
	"corkboard/storage"
)

// Storage is the MongoDB rendition of the DocumentStore collaborator. One
// collection per board namespace; Subscribe rides a change stream and
// re-reads the whole collection on every event, so consumers always get a
// full snapshot.
type Storage struct {
	postsCollection *mongo.Collection
}

func NewStorage(ctx context.Context, mongoURL, dbName, namespace string) *Storage {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURL))
	if err != nil {
		panic(fmt.Sprintf("connect to mongo failed: %s", err))
	}

	postsCollection := client.Database(dbName).Collection(fmt.Sprintf("%s_posts", namespace))
	ensureIndexes(ctx, postsCollection)

	return &Storage{postsCollection: postsCollection}
}

func ensureIndexes(ctx context.Context, collection *mongo.Collection) {
	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "createdAt", Value: -1}},
	}
	_, err := collection.Indexes().CreateOne(ctx, indexModel)
	if err != nil {
		panic(fmt.Errorf("failed to ensure indexes %w", err))
	}
}

func (s *Storage) CreatePost(ctx context.Context, fields schemas.PostFields) (string, error) {
	id := primitive.NewObjectID().Hex()
	createdAt := s.Now()
	doc := schemas.PostDocument{
		ID:         id,
		Title:      fields.Title,
		Content:    fields.Content,
		AuthorName: fields.AuthorName,
		AuthorID:   fields.AuthorID,
		CreatedAt:  &createdAt,
		Likes:      fields.Likes,
	}

	_, err := s.postsCollection.InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("%w: insertion failed: %s", storage.StorageError, err.Error())
	}
	return id, nil
}

func (s *Storage) UpdatePost(ctx context.Context, postId string, patch schemas.PostPatch) error {
	mongoSelector := bson.M{"_id": postId}
	mongoCommand := bson.M{
		"$inc": bson.M{"likes": patch.LikesDelta},
	}
	result, err := s.postsCollection.UpdateOne(ctx, mongoSelector, mongoCommand)
	if err != nil {
		return fmt.Errorf("%w: update failed: %s", storage.StorageError, err.Error())
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, postId)
	}
	return nil
}

func (s *Storage) DeletePost(ctx context.Context, postId string) error {
	result, err := s.postsCollection.DeleteOne(ctx, bson.M{"_id": postId})
	if err != nil {
		return fmt.Errorf("%w: delete failed: %s", storage.StorageError, err.Error())
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, postId)
	}
	return nil
}

// Subscribe opens a change stream on the posts collection. The snapshot
// callback gets the full collection immediately and after every stream event.
// The returned func cancels the stream; no callback fires after that.
func (s *Storage) Subscribe(ctx context.Context, onSnapshot storage.SnapshotFunc, onError storage.ErrorFunc) (storage.UnsubscribeFunc, error) {
	stream, err := s.postsCollection.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, fmt.Errorf("%w: watch failed: %s", storage.StorageError, err.Error())
	}

	subCtx, cancel := context.WithCancel(ctx)
	go func() {
		defer stream.Close(context.Background())

		if docs, err := s.fetchAll(subCtx); err != nil {
			if subCtx.Err() == nil {
				onError(err)
			}
		} else {
			onSnapshot(docs)
		}

		for stream.Next(subCtx) {
			docs, err := s.fetchAll(subCtx)
			if err != nil {
				if subCtx.Err() == nil {
					onError(err)
				}
				continue
			}
			onSnapshot(docs)
		}
		if err := stream.Err(); err != nil && subCtx.Err() == nil {
			onError(fmt.Errorf("%w: change stream: %s", storage.StorageError, err.Error()))
		}
	}()

	return func() { cancel() }, nil
}

func (s *Storage) fetchAll(ctx context.Context) ([]schemas.PostDocument, error) {
	cursor, err := s.postsCollection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("%w: search failed: %s", storage.StorageError, err.Error())
	}
	var docs []schemas.PostDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: posts mapping failed: %s", storage.StorageError, err.Error())
	}
	return docs, nil
}

func (s *Storage) Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
