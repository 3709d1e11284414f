package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/himanishpuri/SongSleuth/pkg/models"
)

// Key layout:
//
//	s/<songID>                      -> song JSON
//	n/<title>\x00<artist>           -> songID
//	p/<hash:4><seq:8>               -> <frame:4><songID>
//	r/<songID>/<hash:4><seq:8>      -> empty
//
// seq comes from a persistent badger sequence, so a hash's postings iterate in
// insertion order.
var (
	prefixSong  = []byte("s/")
	prefixName  = []byte("n/")
	prefixPrint = []byte("p/")
	prefixRev   = []byte("r/")
	seqKey      = []byte("m/seq")
)

const (
	registerRetries = 3
	seqBandwidth    = 4096
)

// BadgerStorage keeps the index in an embedded badger key-value store.
// StoreFingerprints is best-effort: a failed flush can leave part of a song's
// rows behind, so callers delete the song on error.
type BadgerStorage struct {
	db    *badger.DB
	seq   *badger.Sequence
	locks KeyLocks
}

func NewBadgerStorage(dir string) (*BadgerStorage, error) {
	return openBadger(badger.DefaultOptions(dir).WithLogger(nil))
}

// NewBadgerStorageInMemory opens a badger store that is never written to disk.
func NewBadgerStorageInMemory() (*BadgerStorage, error) {
	return openBadger(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
}

func openBadger(opts badger.Options) (*BadgerStorage, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger: %w", err)
	}
	seq, err := db.GetSequence(seqKey, seqBandwidth)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("opening posting sequence: %w", err)
	}
	return &BadgerStorage{db: db, seq: seq}, nil
}

type badgerSong struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Artist     string    `json:"artist"`
	DurationMs int       `json:"duration_ms"`
	Checksum   string    `json:"checksum"`
	CreatedAt  time.Time `json:"created_at"`
}

func (b badgerSong) toModel() models.Song {
	return models.Song{
		ID:         b.ID,
		Title:      b.Title,
		Artist:     b.Artist,
		DurationMs: b.DurationMs,
		Checksum:   b.Checksum,
		CreatedAt:  b.CreatedAt,
	}
}

func songRecordKey(id string) []byte {
	return append(append([]byte{}, prefixSong...), id...)
}

func nameKey(title, artist string) []byte {
	return append(append([]byte{}, prefixName...), SongKey(title, artist)...)
}

func hashPrefix(hash uint32) []byte {
	k := make([]byte, len(prefixPrint)+4)
	copy(k, prefixPrint)
	binary.BigEndian.PutUint32(k[len(prefixPrint):], hash)
	return k
}

func printKey(hash uint32, seq uint64) []byte {
	return binary.BigEndian.AppendUint64(hashPrefix(hash), seq)
}

func printValue(songID string, frame uint32) []byte {
	v := binary.BigEndian.AppendUint32(make([]byte, 0, 4+len(songID)), frame)
	return append(v, songID...)
}

func revPrefix(songID string) []byte {
	k := append(append([]byte{}, prefixRev...), songID...)
	return append(k, '/')
}

func revKey(songID string, hash uint32, seq uint64) []byte {
	k := binary.BigEndian.AppendUint32(revPrefix(songID), hash)
	return binary.BigEndian.AppendUint64(k, seq)
}

func getSong(txn *badger.Txn, id string) (badgerSong, error) {
	var s badgerSong
	item, err := txn.Get(songRecordKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return s, ErrSongNotFound
	}
	if err != nil {
		return s, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &s)
	})
	return s, err
}

func (b *BadgerStorage) RegisterSong(ctx context.Context, in models.Song) (models.Song, bool, error) {
	var (
		out     models.Song
		created bool
		err     error
	)
	for attempt := 0; attempt < registerRetries; attempt++ {
		if ctx.Err() != nil {
			return models.Song{}, false, ctx.Err()
		}
		err = b.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(nameKey(in.Title, in.Artist))
			if err == nil {
				id, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				s, err := getSong(txn, string(id))
				if err != nil {
					return err
				}
				out, created = s.toModel(), false
				return nil
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}

			s := badgerSong{
				ID:         newSongID(),
				Title:      in.Title,
				Artist:     in.Artist,
				DurationMs: in.DurationMs,
				Checksum:   in.Checksum,
				CreatedAt:  time.Now(),
			}
			raw, err := json.Marshal(s)
			if err != nil {
				return err
			}
			if err := txn.Set(songRecordKey(s.ID), raw); err != nil {
				return err
			}
			if err := txn.Set(nameKey(s.Title, s.Artist), []byte(s.ID)); err != nil {
				return err
			}
			out, created = s.toModel(), true
			return nil
		})
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	if err != nil {
		return models.Song{}, false, fmt.Errorf("registering song: %w", err)
	}
	if !created {
		n, err := b.CountFingerprints(ctx, out.ID)
		if err != nil {
			return models.Song{}, false, fmt.Errorf("counting fingerprints: %w", err)
		}
		out.FingerprintCount = n
	}
	return out, created, nil
}

func (b *BadgerStorage) StoreFingerprints(ctx context.Context, songID string, fps []models.Fingerprint) error {
	unlock := b.locks.Lock(songID)
	defer unlock()

	if err := b.db.View(func(txn *badger.Txn) error {
		_, err := getSong(txn, songID)
		return err
	}); err != nil {
		return err
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for i, fp := range fps {
		if i%4096 == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		seq, err := b.seq.Next()
		if err != nil {
			return fmt.Errorf("next posting sequence: %w", err)
		}
		if err := wb.Set(printKey(fp.Hash, seq), printValue(songID, fp.AnchorFrame)); err != nil {
			return fmt.Errorf("batch set fingerprint: %w", err)
		}
		if err := wb.Set(revKey(songID, fp.Hash, seq), []byte{}); err != nil {
			return fmt.Errorf("batch set reverse key: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flushing fingerprints: %w", err)
	}
	return nil
}

// Lookup scans the prefix of every hash inside a single read transaction.
// Rows come back in insertion order.
func (b *BadgerStorage) Lookup(_ context.Context, hashes []uint32) (map[uint32][]models.Couple, error) {
	out := make(map[uint32][]models.Couple)
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for _, h := range hashes {
			prefix := hashPrefix(h)
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				err := it.Item().Value(func(v []byte) error {
					if len(v) < 5 {
						return nil
					}
					out[h] = append(out[h], models.Couple{
						SongID:      string(v[4:]),
						AnchorFrame: binary.BigEndian.Uint32(v[:4]),
					})
					return nil
				})
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger lookup: %w", err)
	}
	return out, nil
}

// revKeys lists the reverse index of songID.
func (b *BadgerStorage) revKeys(songID string) ([][]byte, error) {
	var keys [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := revPrefix(songID)
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	return keys, err
}

func (b *BadgerStorage) dropRows(songID string) error {
	keys, err := b.revKeys(songID)
	if err != nil {
		return err
	}
	prefixLen := len(revPrefix(songID))

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		tail := k[prefixLen:]
		hash := binary.BigEndian.Uint32(tail[:4])
		seq := binary.BigEndian.Uint64(tail[4:12])
		if err := wb.Delete(printKey(hash, seq)); err != nil {
			return err
		}
		if err := wb.Delete(k); err != nil {
			return err
		}
	}
	return wb.Flush()
}

func (b *BadgerStorage) DeleteFingerprints(_ context.Context, songID string) error {
	unlock := b.locks.Lock(songID)
	defer unlock()
	return b.dropRows(songID)
}

func (b *BadgerStorage) DeleteSong(_ context.Context, songID string) error {
	unlock := b.locks.Lock(songID)
	defer unlock()

	if err := b.dropRows(songID); err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		s, err := getSong(txn, songID)
		if err != nil {
			return err
		}
		if err := txn.Delete(songRecordKey(songID)); err != nil {
			return err
		}
		return txn.Delete(nameKey(s.Title, s.Artist))
	})
}

func (b *BadgerStorage) GetSong(ctx context.Context, songID string) (*models.Song, error) {
	var s badgerSong
	if err := b.db.View(func(txn *badger.Txn) error {
		var err error
		s, err = getSong(txn, songID)
		return err
	}); err != nil {
		return nil, err
	}
	m := s.toModel()
	n, err := b.CountFingerprints(ctx, songID)
	if err != nil {
		return nil, err
	}
	m.FingerprintCount = n
	return &m, nil
}

func (b *BadgerStorage) ListSongs(ctx context.Context) ([]models.Song, error) {
	var songs []models.Song
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefixSong
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefixSong); it.ValidForPrefix(prefixSong); it.Next() {
			var s badgerSong
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &s)
			}); err != nil {
				return err
			}
			songs = append(songs, s.toModel())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range songs {
		n, err := b.CountFingerprints(ctx, songs[i].ID)
		if err != nil {
			return nil, err
		}
		songs[i].FingerprintCount = n
	}
	sort.SliceStable(songs, func(i, j int) bool { return songs[i].CreatedAt.Before(songs[j].CreatedAt) })
	return songs, nil
}

func (b *BadgerStorage) CountFingerprints(_ context.Context, songID string) (int, error) {
	keys, err := b.revKeys(songID)
	return len(keys), err
}

func (b *BadgerStorage) Close() error {
	if err := b.seq.Release(); err != nil {
		b.db.Close()
		return fmt.Errorf("releasing posting sequence: %w", err)
	}
	return b.db.Close()
}
