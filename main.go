package main

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"corkboard/auth"
	"corkboard/config"
	"corkboard/feed"
	"corkboard/handlers"
	"corkboard/notify"
	"corkboard/posts"
	"corkboard/schemas"
	"corkboard/session"
	"corkboard/storage"
	"corkboard/storage/inmemory"
	"corkboard/storage/mongostorage"
	"corkboard/storage/redistorage"
	"corkboard/storage/sqlitestorage"
)

func Start() error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	var store storage.DocumentStore
	switch cfg.StorageMode {
	case config.StorageMongo:
		store = mongostorage.NewStorage(ctx, cfg.MongoURL, cfg.MongoDBName, cfg.Namespace)
	case config.StorageRedis:
		store = redistorage.NewStorage(cfg.RedisURL, cfg.Namespace)
	case config.StorageSQLite:
		sqliteStore, err := sqlitestorage.NewStorage(cfg.SQLitePath)
		if err != nil {
			panic(err)
		}
		store = sqliteStore
	default:
		store = inmemory.NewInMemoryStorage()
	}

	center := notify.NewCenter(notify.DisplayWindow)
	provider := auth.NewLocalProvider(cfg.AuthSecret)
	sessionCtl := session.NewController(provider, center, logger, cfg.AuthToken)
	collectionSync := feed.NewCollectionSync(store, center, logger)
	mutator := posts.NewMutator(store, center, logger)

	handler := handlers.NewHTTPHandler(sessionCtl, collectionSync, mutator, center)
	live := handlers.NewLiveBoard(handler, logger)

	sessionCtl.OnIdentityChange(func(identity *schemas.Identity) {
		if identity == nil {
			collectionSync.Stop()
			return
		}
		collectionSync.Start(ctx, identity)
	})
	sessionCtl.Bootstrap(ctx)

	server := &http.Server{
		Handler:      handlers.NewRouter(handler, live),
		Addr:         cfg.Addr,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}
	logger.Info("start serving", zap.String("addr", server.Addr))
	return server.ListenAndServe()
}

func main() {
	if err := Start(); err != nil {
		panic(err)
	}
}
