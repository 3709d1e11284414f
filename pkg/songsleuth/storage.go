package songsleuth

import (
	"context"
	"fmt"
	"time"

	"github.com/himanishpuri/SongSleuth/pkg/songsleuth/storage"
)

const connectTimeout = 10 * time.Second

// openStorage builds the backend named by cfg.Backend.
func openStorage(cfg *Config) (Storage, error) {
	switch cfg.Backend {
	case "", BackendSQLite:
		return storage.NewSQLiteStorage(cfg.DBPath)
	case BackendBadger:
		return storage.NewBadgerStorage(cfg.DBPath)
	case BackendMemory:
		return storage.NewMemoryStorage(), nil
	case BackendMongo:
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("mongo backend requires a connection URI")
		}
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		return storage.NewMongoStorage(ctx, cfg.MongoURI, cfg.MongoDatabase)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
