package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mdobak/go-xerrors"

	"github.com/himanishpuri/SongSleuth/pkg/logger"
	"github.com/himanishpuri/SongSleuth/pkg/songsleuth"
	"github.com/himanishpuri/SongSleuth/pkg/songsleuth/audio"
	"github.com/himanishpuri/SongSleuth/pkg/songsleuth/stream"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service songsleuth.Service
	config  *ServerConfig
	log     songsleuth.Logger
}

type ServerConfig struct {
	Port           int
	Backend        string
	DBPath         string
	TempDir        string
	SampleRate     int
	AllowedOrigins []string
	ListenTimeout  time.Duration
}

func NewServer(service songsleuth.Service, config *ServerConfig) *Server {
	if config.ListenTimeout <= 0 {
		config.ListenTimeout = 30 * time.Second
	}
	if config.TempDir == "" {
		config.TempDir = os.TempDir()
	}
	return &Server{
		service: service,
		config:  config,
		log:     logger.GetLogger().With("[http]"),
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, songsleuth.ErrSongNotFound):
		return http.StatusNotFound
	case errors.Is(err, songsleuth.ErrInsufficientSamples):
		return http.StatusUnprocessableEntity
	case errors.Is(err, audio.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, songsleuth.ErrIndexUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// fail logs err with its stack and writes the mapped error response.
func (s *Server) fail(w http.ResponseWriter, what string, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.log.Errorf("%s: %s", what, xerrors.Sprint(xerrors.New(err)))
	} else {
		s.log.Warnf("%s: %v", what, err)
	}
	s.respondError(w, code, fmt.Sprintf("%s: %v", what, err))
}

// saveUpload copies the multipart file field into TempDir. The caller must
// run cleanup.
func (s *Server) saveUpload(r *http.Request, field, prefix string) (path, name string, cleanup func(), err error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", "", nil, fmt.Errorf("%s file is required", field)
	}
	defer file.Close()

	path = filepath.Join(s.config.TempDir, fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixNano(), filepath.Base(header.Filename)))
	out, err := os.Create(path)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	cleanup = func() { os.Remove(path) }

	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		cleanup()
		return "", "", nil, fmt.Errorf("failed to save uploaded file: %w", err)
	}
	if err := out.Close(); err != nil {
		cleanup()
		return "", "", nil, err
	}
	return path, header.Filename, cleanup, nil
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "SongSleuth API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":            "GET /health",
			"metrics":           "GET /api/health/metrics",
			"songs":             "GET /api/songs",
			"addSong":           "POST /api/songs",
			"getSong":           "GET /api/songs/{id}",
			"deleteSong":        "DELETE /api/songs/{id}",
			"matchFile":         "POST /api/match",
			"matchFingerprints": "POST /api/match/fingerprints",
			"listen":            "POST /api/listen?rate={hz}",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleMetrics handles GET /api/health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	songs, err := s.service.ListSongs(r.Context())
	if err != nil {
		s.fail(w, "Failed to retrieve metrics", err)
		return
	}

	var total int64
	for _, song := range songs {
		total += int64(song.FingerprintCount)
	}
	s.respondJSON(w, http.StatusOK, MetricsResponse{
		Status:           "healthy",
		Backend:          s.config.Backend,
		DatabasePath:     s.config.DBPath,
		SongCount:        len(songs),
		FingerprintCount: total,
		SampleRate:       s.service.SampleRate(),
	})
}

// handleListSongs handles GET /api/songs
func (s *Server) handleListSongs(w http.ResponseWriter, r *http.Request) {
	songs, err := s.service.ListSongs(r.Context())
	if err != nil {
		s.fail(w, "Failed to retrieve songs", err)
		return
	}

	dtos := make([]SongDTO, len(songs))
	for i, song := range songs {
		dtos[i] = toSongDTO(song)
	}
	s.respondJSON(w, http.StatusOK, ListSongsResponse{Songs: dtos, Count: len(dtos)})
}

// handleGetSong handles GET /api/songs/{id}
func (s *Server) handleGetSong(w http.ResponseWriter, r *http.Request, songID string) {
	song, err := s.service.GetSong(r.Context(), songID)
	if err != nil {
		s.fail(w, fmt.Sprintf("Song %s", songID), err)
		return
	}
	s.respondJSON(w, http.StatusOK, toSongDTO(*song))
}

// handleDeleteSong handles DELETE /api/songs/{id}
func (s *Server) handleDeleteSong(w http.ResponseWriter, r *http.Request, songID string) {
	if err := s.service.DeleteSong(r.Context(), songID); err != nil {
		s.fail(w, fmt.Sprintf("Failed to delete song %s", songID), err)
		return
	}
	s.respondJSON(w, http.StatusOK, DeleteSongResponse{
		Message: "Song deleted successfully",
		ID:      songID,
	})
}

// handleAddSong handles POST /api/songs (multipart: audio, title, artist)
func (s *Server) handleAddSong(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	if err := r.ParseMultipartForm(100 << 20); err != nil {
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	path, name, cleanup, err := s.saveUpload(r, "audio", "upload")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer cleanup()

	title, artist := r.FormValue("title"), r.FormValue("artist")
	if title == "" {
		title, artist = audio.SongInfo(name, title, artist)
	}

	res, err := s.service.IndexFile(ctx, path, title, artist)
	if err != nil {
		s.fail(w, "Failed to add song", err)
		return
	}

	status, msg := http.StatusCreated, "Song added successfully"
	if res.Skipped {
		status, msg = http.StatusOK, "Song already indexed"
	}
	s.respondJSON(w, status, AddSongResponse{
		Message:      msg,
		ID:           res.Song.ID,
		Title:        res.Song.Title,
		Artist:       res.Song.Artist,
		Fingerprints: res.Fingerprints,
		Skipped:      res.Skipped,
	})
}

// handleMatchFile handles POST /api/match (multipart: audio, optional limit)
func (s *Server) handleMatchFile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	if err := r.ParseMultipartForm(50 << 20); err != nil {
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	limit := DefaultMatchLimit
	if v := r.FormValue("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	path, name, cleanup, err := s.saveUpload(r, "audio", "query")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer cleanup()

	s.log.Infof("Matching uploaded file: %s", name)
	matches, err := s.service.IdentifyFile(ctx, path, limit)
	if err != nil {
		s.fail(w, "Failed to match song", err)
		return
	}

	s.respondJSON(w, http.StatusOK, MatchResponse{Matches: toMatchDTOs(matches), Count: len(matches)})
}

// handleMatchFingerprints handles POST /api/match/fingerprints
func (s *Server) handleMatchFingerprints(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var req MatchFingerprintsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Fingerprints) > MaxFingerprintsSoftLimit {
		s.log.Warnf("Large fingerprint batch received: %d", len(req.Fingerprints))
	}
	limit := req.Limit
	if limit == 0 {
		limit = DefaultMatchLimit
	}

	matches, err := s.service.MatchFingerprints(ctx, req.ToModels(), limit)
	if err != nil {
		s.fail(w, "Failed to match fingerprints", err)
		return
	}
	s.respondJSON(w, http.StatusOK, MatchResponse{Matches: toMatchDTOs(matches), Count: len(matches)})
}

// handleListen handles POST /api/listen. The body is streamed mono s16le PCM
// at ?rate= Hz (default: the service rate).
func (s *Server) handleListen(w http.ResponseWriter, r *http.Request) {
	rate := s.service.SampleRate()
	if v := r.URL.Query().Get("rate"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1000 || n > 192000 {
			s.respondError(w, http.StatusBadRequest, "Invalid rate")
			return
		}
		rate = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.ListenTimeout)
	defer cancel()

	src := stream.Resampled(stream.NewPCMSource(r.Body), rate, s.service.SampleRate())
	out, err := s.service.Listen(ctx, src)
	if err != nil {
		s.fail(w, "Listening failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, toListenResponse(out))
}

// handleSongs routes requests to /api/songs
func (s *Server) handleSongs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListSongs(w, r)
	case http.MethodPost:
		s.handleAddSong(w, r)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleSong routes requests to /api/songs/{id}
func (s *Server) handleSong(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Path[len("/api/songs/"):]
	if id == "" {
		s.respondError(w, http.StatusBadRequest, "Song ID required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetSong(w, r, id)
	case http.MethodDelete:
		s.handleDeleteSong(w, r, id)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// postOnly rejects every method but POST.
func (s *Server) postOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h(w, r)
	}
}
