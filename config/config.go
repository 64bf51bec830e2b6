package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type StorageMode string

const (
	StorageMemory StorageMode = "memory"
	StorageMongo  StorageMode = "mongo"
	StorageRedis  StorageMode = "redis"
	StorageSQLite StorageMode = "sqlite"
)

type Config struct {
	Addr        string
	Namespace   string
	StorageMode StorageMode
	MongoURL    string
	MongoDBName string
	RedisURL    string
	SQLitePath  string

	// AuthToken is the pre-provisioned credential; empty means anonymous.
	AuthToken  string
	AuthSecret string
}

// Load reads BOARD_* environment variables with defaults. The zero-config
// result runs an in-memory board on :8080.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("board")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("addr", "0.0.0.0:8080")
	v.SetDefault("namespace", "corkboard")
	v.SetDefault("storage.mode", string(StorageMemory))
	v.SetDefault("mongo.dbname", "corkboard")
	v.SetDefault("sqlite.path", "corkboard.db")

	cfg := &Config{
		Addr:        v.GetString("addr"),
		Namespace:   v.GetString("namespace"),
		StorageMode: StorageMode(v.GetString("storage.mode")),
		MongoURL:    v.GetString("mongo.url"),
		MongoDBName: v.GetString("mongo.dbname"),
		RedisURL:    v.GetString("redis.url"),
		SQLitePath:  v.GetString("sqlite.path"),
		AuthToken:   v.GetString("auth.token"),
		AuthSecret:  v.GetString("auth.secret"),
	}

	switch cfg.StorageMode {
	case StorageMemory, StorageSQLite:
	case StorageMongo:
		if cfg.MongoURL == "" {
			return nil, fmt.Errorf("empty mongo url")
		}
		if cfg.MongoDBName == "" {
			return nil, fmt.Errorf("empty mongo dbname")
		}
	case StorageRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("empty redis url")
		}
	default:
		return nil, fmt.Errorf("unexpected storage mode: %s", cfg.StorageMode)
	}

	if cfg.AuthToken != "" && cfg.AuthSecret == "" {
		return nil, fmt.Errorf("auth token set but no auth secret to verify it")
	}

	return cfg, nil
}
