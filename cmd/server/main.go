//go:build !js && !wasm

package main

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/himanishpuri/SongSleuth/pkg/logger"
	"github.com/himanishpuri/SongSleuth/pkg/songsleuth"
	"github.com/himanishpuri/SongSleuth/pkg/songsleuth/fingerprint"
	"github.com/himanishpuri/SongSleuth/pkg/songsleuth/storage"
)

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	_ = godotenv.Load()

	var (
		port           = flag.Int("port", 8080, "HTTP server port")
		backend        = flag.String("backend", getEnvOrDefault("SONGSLEUTH_BACKEND", songsleuth.BackendSQLite), "Index backend: sqlite, badger, memory or mongo")
		dbPath         = flag.String("db", getEnvOrDefault("SONGSLEUTH_DB_PATH", storage.DefaultDBFile), "SQLite file or badger directory")
		mongoURI       = flag.String("mongo", os.Getenv("SONGSLEUTH_MONGO_URI"), "MongoDB connection URI")
		tempDir        = flag.String("temp", getEnvOrDefault("SONGSLEUTH_TEMP_DIR", os.TempDir()), "Temporary directory")
		sampleRate     = flag.Int("rate", fingerprint.DefaultSampleRate, "Analysis sample rate")
		allowedOrigins = flag.String("origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
		listenTimeout  = flag.Duration("listen-timeout", 30*time.Second, "Upper bound on a /api/listen request")
	)
	flag.Parse()

	log := logger.GetLogger()

	origins := []string{"*"}
	if *allowedOrigins != "*" {
		origins = strings.Split(*allowedOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
	}

	service, err := songsleuth.NewService(
		songsleuth.WithBackend(*backend),
		songsleuth.WithDBPath(*dbPath),
		songsleuth.WithMongoURI(*mongoURI),
		songsleuth.WithTempDir(*tempDir),
		songsleuth.WithSampleRate(*sampleRate),
	)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	server := NewServer(service, &ServerConfig{
		Port:           *port,
		Backend:        *backend,
		DBPath:         *dbPath,
		TempDir:        *tempDir,
		SampleRate:     *sampleRate,
		AllowedOrigins: origins,
		ListenTimeout:  *listenTimeout,
	})
	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
