// Package storage holds the fingerprint index backends. Every backend keeps a
// song catalog next to the hash -> (song, anchor frame) multimap.
package storage

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrSongNotFound = errors.New("song not found")
	ErrClosed       = errors.New("storage closed")
)

func newSongID() string {
	return uuid.NewString()
}

// KeyLocks serializes writers per key (a song ID, or a SongKey) while leaving
// other keys unaffected. The zero value is ready to use.
type KeyLocks struct {
	mu    sync.Mutex
	locks map[string]*songLock
}

type songLock struct {
	sync.Mutex
	refs int
}

func (l *KeyLocks) Lock(key string) (unlock func()) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*songLock)
	}
	sl, ok := l.locks[key]
	if !ok {
		sl = &songLock{}
		l.locks[key] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.Lock()
	return func() {
		sl.Unlock()
		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

// SongKey identifies a catalog entry by title and artist.
func SongKey(title, artist string) string {
	return title + "\x00" + artist
}
