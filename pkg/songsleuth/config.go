package songsleuth

import (
	"github.com/himanishpuri/SongSleuth/pkg/songsleuth/fingerprint"
	"github.com/himanishpuri/SongSleuth/pkg/songsleuth/storage"
	"github.com/himanishpuri/SongSleuth/pkg/songsleuth/stream"
)

// Storage backends accepted by WithBackend.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendMemory = "memory"
	BackendMongo  = "mongo"
)

type Config struct {
	DBPath        string // sqlite file or badger directory
	TempDir       string
	SampleRate    int
	Backend       string
	MongoURI      string
	MongoDatabase string
	Fingerprint   fingerprint.Config
	Stream        stream.Config
	Logger        Logger
	Storage       Storage
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

func WithTempDir(dir string) Option {
	return func(c *Config) {
		c.TempDir = dir
	}
}

// WithSampleRate sets the analysis rate. It overrides the rate carried by
// WithFingerprintConfig and WithStreamConfig.
func WithSampleRate(rate int) Option {
	return func(c *Config) {
		c.SampleRate = rate
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

// WithStorage injects a ready backend; Backend and DBPath are then ignored.
func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

func WithBackend(backend string) Option {
	return func(c *Config) {
		c.Backend = backend
	}
}

func WithMongoURI(uri string) Option {
	return func(c *Config) {
		c.MongoURI = uri
	}
}

func WithFingerprintConfig(cfg fingerprint.Config) Option {
	return func(c *Config) {
		c.Fingerprint = cfg
		if cfg.SampleRate > 0 {
			c.SampleRate = cfg.SampleRate
		}
	}
}

func WithStreamConfig(cfg stream.Config) Option {
	return func(c *Config) {
		c.Stream = cfg
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:        storage.DefaultDBFile,
		TempDir:       "/tmp",
		SampleRate:    fingerprint.DefaultSampleRate,
		Backend:       BackendSQLite,
		MongoDatabase: storage.DefaultMongoDatabase,
		Fingerprint:   fingerprint.DefaultConfig(),
		Stream:        stream.DefaultConfig(),
		Logger:        nil,
	}
}
