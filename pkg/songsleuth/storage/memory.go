package storage

import (
	"context"
	"sync"
	"time"

	"github.com/himanishpuri/SongSleuth/pkg/models"
)

// MemoryStorage is a process-local index, mainly for tests and one-off runs.
type MemoryStorage struct {
	mu     sync.RWMutex
	songs  map[string]models.Song
	names  map[string]string
	order  []string
	rows   map[uint32][]models.Couple
	hashes map[string][]uint32 // song -> hashes it touched
	closed bool
	locks  KeyLocks
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		songs:  make(map[string]models.Song),
		names:  make(map[string]string),
		rows:   make(map[uint32][]models.Couple),
		hashes: make(map[string][]uint32),
	}
}

func (m *MemoryStorage) RegisterSong(_ context.Context, song models.Song) (models.Song, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return models.Song{}, false, ErrClosed
	}

	if id, ok := m.names[SongKey(song.Title, song.Artist)]; ok {
		return m.songs[id], false, nil
	}

	song.ID = newSongID()
	song.FingerprintCount = 0
	song.CreatedAt = time.Now()
	m.songs[song.ID] = song
	m.names[SongKey(song.Title, song.Artist)] = song.ID
	m.order = append(m.order, song.ID)
	return song, true, nil
}

func (m *MemoryStorage) StoreFingerprints(_ context.Context, songID string, fps []models.Fingerprint) error {
	unlock := m.locks.Lock(songID)
	defer unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	song, ok := m.songs[songID]
	if !ok {
		return ErrSongNotFound
	}

	for _, fp := range fps {
		m.rows[fp.Hash] = append(m.rows[fp.Hash], models.Couple{SongID: songID, AnchorFrame: fp.AnchorFrame})
		m.hashes[songID] = append(m.hashes[songID], fp.Hash)
	}
	song.FingerprintCount += len(fps)
	m.songs[songID] = song
	return nil
}

func (m *MemoryStorage) Lookup(_ context.Context, hashes []uint32) (map[uint32][]models.Couple, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	out := make(map[uint32][]models.Couple, len(hashes))
	for _, h := range hashes {
		if rows := m.rows[h]; len(rows) > 0 {
			cp := make([]models.Couple, len(rows))
			copy(cp, rows)
			out[h] = cp
		}
	}
	return out, nil
}

func (m *MemoryStorage) DeleteFingerprints(_ context.Context, songID string) error {
	unlock := m.locks.Lock(songID)
	defer unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.dropRows(songID)
	return nil
}

// dropRows removes every row of songID. Callers hold m.mu.
func (m *MemoryStorage) dropRows(songID string) {
	for _, h := range m.hashes[songID] {
		rows := m.rows[h]
		kept := rows[:0]
		for _, c := range rows {
			if c.SongID != songID {
				kept = append(kept, c)
			}
		}
		if len(kept) == 0 {
			delete(m.rows, h)
		} else {
			m.rows[h] = kept
		}
	}
	delete(m.hashes, songID)
	if song, ok := m.songs[songID]; ok {
		song.FingerprintCount = 0
		m.songs[songID] = song
	}
}

func (m *MemoryStorage) DeleteSong(_ context.Context, songID string) error {
	unlock := m.locks.Lock(songID)
	defer unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	song, ok := m.songs[songID]
	if !ok {
		return ErrSongNotFound
	}

	m.dropRows(songID)
	delete(m.songs, songID)
	delete(m.names, SongKey(song.Title, song.Artist))
	for i, id := range m.order {
		if id == songID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MemoryStorage) GetSong(_ context.Context, songID string) (*models.Song, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	song, ok := m.songs[songID]
	if !ok {
		return nil, ErrSongNotFound
	}
	return &song, nil
}

func (m *MemoryStorage) ListSongs(_ context.Context) ([]models.Song, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	out := make([]models.Song, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.songs[id])
	}
	return out, nil
}

func (m *MemoryStorage) CountFingerprints(_ context.Context, songID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrClosed
	}
	return len(m.hashes[songID]), nil
}

func (m *MemoryStorage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
