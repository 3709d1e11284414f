package main

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/himanishpuri/SongSleuth/internal/testaudio"
	"github.com/himanishpuri/SongSleuth/pkg/logger"
	"github.com/himanishpuri/SongSleuth/pkg/models"
	"github.com/himanishpuri/SongSleuth/pkg/songsleuth"
	"github.com/himanishpuri/SongSleuth/pkg/songsleuth/audio"
	"github.com/himanishpuri/SongSleuth/pkg/songsleuth/fingerprint"
	"github.com/himanishpuri/SongSleuth/pkg/songsleuth/storage"
	"github.com/himanishpuri/SongSleuth/pkg/songsleuth/stream"
)

const rate = fingerprint.DefaultSampleRate

func setupTestServer(t *testing.T) (*httptest.Server, songsleuth.Service) {
	t.Helper()
	quiet := logger.New(logger.Config{Level: logger.FATAL, Output: io.Discard})
	svc, err := songsleuth.NewService(
		songsleuth.WithStorage(storage.NewMemoryStorage()),
		songsleuth.WithLogger(quiet),
		songsleuth.WithTempDir(t.TempDir()),
	)
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	t.Cleanup(func() { svc.Close() })

	srv := NewServer(svc, &ServerConfig{Backend: songsleuth.BackendMemory, TempDir: t.TempDir()})
	srv.log = quiet
	ts := httptest.NewServer(srv.setupRoutes())
	t.Cleanup(ts.Close)
	return ts, svc
}

func writeTestWAV(t *testing.T, samples []float64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := audio.WriteWAV(path, samples, rate); err != nil {
		t.Fatalf("Failed to write wav: %v", err)
	}
	return path
}

func postAudio(t *testing.T, url, path string, fields map[string]string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	part, err := mw.CreateFormFile("audio", filepath.Base(path))
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	part.Write(data)
	mw.Close()

	resp, err := http.Post(url, mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return v
}

func TestHealth(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
	if got := decode[map[string]string](t, resp)["status"]; got != "healthy" {
		t.Errorf("Expected healthy, got %q", got)
	}
}

func TestAddMatchAndDeleteSong(t *testing.T) {
	ts, _ := setupTestServer(t)
	samples := testaudio.Song(1, 10, rate)
	path := writeTestWAV(t, samples)

	resp := postAudio(t, ts.URL+"/api/songs", path, map[string]string{"title": "Upload", "artist": "Band"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	added := decode[AddSongResponse](t, resp)
	if added.ID == "" || added.Fingerprints == 0 {
		t.Fatalf("Unexpected add response: %+v", added)
	}

	again := postAudio(t, ts.URL+"/api/songs", path, map[string]string{"title": "Upload", "artist": "Band"})
	if again.StatusCode != http.StatusOK || !decode[AddSongResponse](t, again).Skipped {
		t.Errorf("Expected re-upload to be skipped")
	}

	matched := decode[MatchResponse](t, postAudio(t, ts.URL+"/api/match", path, nil))
	if matched.Count == 0 || matched.Matches[0].SongID != added.ID {
		t.Fatalf("Expected %s as top match, got %+v", added.ID, matched)
	}

	metrics := decode[MetricsResponse](t, mustGet(t, ts.URL+"/api/health/metrics"))
	if metrics.SongCount != 1 || metrics.FingerprintCount != int64(added.Fingerprints) {
		t.Errorf("Unexpected metrics: %+v", metrics)
	}

	song := decode[SongDTO](t, mustGet(t, ts.URL+"/api/songs/"+added.ID))
	if song.Title != "Upload" || song.Artist != "Band" {
		t.Errorf("Unexpected song: %+v", song)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/songs/"+added.ID, nil)
	del, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE failed: %v", err)
	}
	if del.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 on delete, got %d", del.StatusCode)
	}
	del.Body.Close()

	if gone := mustGet(t, ts.URL+"/api/songs/"+added.ID); gone.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", gone.StatusCode)
	}
}

func mustGet(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	return resp
}

func TestMatchFingerprintsEndpoint(t *testing.T) {
	ts, svc := setupTestServer(t)
	samples := testaudio.Song(2, 10, rate)
	res, err := svc.IndexSong(t.Context(), "Client", "Band", samples, rate)
	if err != nil {
		t.Fatalf("IndexSong failed: %v", err)
	}

	fps, _, err := fingerprint.Generate(samples[2*rate:7*rate], fingerprint.DefaultConfig())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	req := MatchFingerprintsRequest{Limit: 1}
	for _, fp := range fps {
		req.Fingerprints = append(req.Fingerprints, FingerprintDTO{Hash: fp.Hash, Offset: fp.AnchorFrame})
	}
	body, _ := json.Marshal(req)

	resp, err := http.Post(ts.URL+"/api/match/fingerprints", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	out := decode[MatchResponse](t, resp)
	if out.Count != 1 || out.Matches[0].SongID != res.Song.ID {
		t.Fatalf("Expected %s, got %+v", res.Song.ID, out)
	}

	empty, _ := http.Post(ts.URL+"/api/match/fingerprints", "application/json", bytes.NewReader([]byte(`{"fingerprints":[]}`)))
	if empty.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty batch, got %d", empty.StatusCode)
	}
	empty.Body.Close()
}

func pcm(samples []float64) []byte {
	var buf bytes.Buffer
	for _, s := range samples {
		v := int16(math.Max(-1, math.Min(1, s)) * 32767)
		binary.Write(&buf, binary.LittleEndian, v)
	}
	return buf.Bytes()
}

func TestListenEndpoint(t *testing.T) {
	ts, svc := setupTestServer(t)
	hi := 22050
	samples := testaudio.Song(3, 15, hi)
	res, err := svc.IndexSong(t.Context(), "Live", "Band", samples, hi)
	if err != nil {
		t.Fatalf("IndexSong failed: %v", err)
	}

	resp, err := http.Post(ts.URL+"/api/listen?rate=22050", "application/octet-stream", bytes.NewReader(pcm(samples[2*hi:])))
	if err != nil {
		t.Fatalf("POST /api/listen failed: %v", err)
	}
	out := decode[ListenResponse](t, resp)
	if !out.Detected || out.Match == nil || out.Match.SongID != res.Song.ID {
		t.Fatalf("Expected detection of %s, got %+v", res.Song.ID, out)
	}

	silent, err := http.Post(ts.URL+"/api/listen", "application/octet-stream", bytes.NewReader(pcm(make([]float64, 3*rate))))
	if err != nil {
		t.Fatalf("POST /api/listen failed: %v", err)
	}
	if got := decode[ListenResponse](t, silent); got.Detected || got.State != "source_closed" {
		t.Errorf("Expected silent stream to close undetected, got %+v", got)
	}

	bad, _ := http.Post(ts.URL+"/api/listen?rate=abc", "application/octet-stream", nil)
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad rate, got %d", bad.StatusCode)
	}
	bad.Body.Close()
}

func TestMethodNotAllowed(t *testing.T) {
	ts, _ := setupTestServer(t)
	for _, path := range []string{"/api/match", "/api/match/fingerprints", "/api/listen"} {
		resp := mustGet(t, ts.URL+path)
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("GET %s: expected 405, got %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := corsMiddleware([]string{"https://app.example"})(http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/songs", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Errorf("Unexpected allow-origin %q", got)
	}
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	if got := getClientIP(req); got != "10.0.0.1" {
		t.Errorf("Expected 10.0.0.1, got %s", got)
	}
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")
	if got := getClientIP(req); got != "1.2.3.4" {
		t.Errorf("Expected 1.2.3.4, got %s", got)
	}
}

func TestListenResponseOmitsUndetectedMatch(t *testing.T) {
	weak := models.MatchResult{SongID: "song-1", Score: 3, QueryCount: 40}
	for _, state := range []stream.State{stream.TimedOut, stream.SourceClosed} {
		resp := toListenResponse(stream.Outcome{State: state, Result: weak})
		if resp.Detected || resp.Match != nil {
			t.Errorf("%s: expected no match in response, got %+v", state, resp)
		}
	}

	resp := toListenResponse(stream.Outcome{State: stream.Detected, Result: weak})
	if !resp.Detected || resp.Match == nil || resp.Match.SongID != "song-1" {
		t.Errorf("Expected detected match in response, got %+v", resp)
	}
}
