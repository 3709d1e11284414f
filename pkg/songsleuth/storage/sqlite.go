package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/himanishpuri/SongSleuth/pkg/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const DefaultDBFile = "songsleuth.sqlite3"

// lookupChunk keeps IN lists under SQLite's bound-parameter limit.
const lookupChunk = 20000

const errDBClientNil = "db client is nil"

type SQLiteStorage struct {
	DB    *gorm.DB
	db    *sql.DB
	locks KeyLocks
}

type Song struct {
	ID               string `gorm:"primaryKey;type:varchar(36)"`
	Title            string `gorm:"uniqueIndex:idx_song_unique,priority:1"`
	Artist           string `gorm:"uniqueIndex:idx_song_unique,priority:2"`
	DurationMs       int
	Checksum         string
	FingerprintCount int
	CreatedAt        time.Time
}

type Fingerprint struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	Hash        uint32 `gorm:"index:idx_hash"`
	SongID      string `gorm:"type:varchar(36);index:idx_song"`
	AnchorFrame uint32 `gorm:"column:time_offset"`
}

func (s Song) toModel() models.Song {
	return models.Song{
		ID:               s.ID,
		Title:            s.Title,
		Artist:           s.Artist,
		DurationMs:       s.DurationMs,
		Checksum:         s.Checksum,
		FingerprintCount: s.FingerprintCount,
		CreatedAt:        s.CreatedAt,
	}
}

// NewSQLiteStorage opens (and migrates) the database at dbPath, creating its
// directory when needed.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Song{}, &Fingerprint{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &SQLiteStorage{DB: db, db: sqlDB}, nil
}

func (c *SQLiteStorage) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// RegisterSong returns the catalog entry for title+artist, creating it when
// absent. The bool reports whether a new entry was created.
func (c *SQLiteStorage) RegisterSong(ctx context.Context, in models.Song) (models.Song, bool, error) {
	if c == nil || c.DB == nil {
		return models.Song{}, false, errors.New(errDBClientNil)
	}
	db := c.DB.WithContext(ctx)

	var song Song
	err := db.Where("title = ? AND artist = ?", in.Title, in.Artist).First(&song).Error
	if err == nil {
		return song.toModel(), false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Song{}, false, fmt.Errorf("querying existing song: %w", err)
	}

	song = Song{
		ID:         newSongID(),
		Title:      in.Title,
		Artist:     in.Artist,
		DurationMs: in.DurationMs,
		Checksum:   in.Checksum,
	}
	if err := db.Create(&song).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed") {
			if fetchErr := db.Where("title = ? AND artist = ?", in.Title, in.Artist).First(&song).Error; fetchErr != nil {
				return models.Song{}, false, fmt.Errorf("fetching song after constraint violation: %w", fetchErr)
			}
			return song.toModel(), false, nil
		}
		return models.Song{}, false, fmt.Errorf("creating song: %w", err)
	}
	return song.toModel(), true, nil
}

// StoreFingerprints inserts all rows for songID in one transaction.
func (c *SQLiteStorage) StoreFingerprints(ctx context.Context, songID string, fps []models.Fingerprint) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	unlock := c.locks.Lock(songID)
	defer unlock()

	entries := make([]Fingerprint, len(fps))
	for i, fp := range fps {
		entries[i] = Fingerprint{Hash: fp.Hash, SongID: songID, AnchorFrame: fp.AnchorFrame}
	}

	return c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Song{}).Where("id = ?", songID).
			Update("fingerprint_count", gorm.Expr("fingerprint_count + ?", len(entries)))
		if res.Error != nil {
			return fmt.Errorf("updating fingerprint count: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrSongNotFound
		}
		if len(entries) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(entries, 500).Error; err != nil {
			return fmt.Errorf("batch insert fingerprints: %w", err)
		}
		return nil
	})
}

// Lookup fetches every row whose hash is in hashes, ordered by insertion.
func (c *SQLiteStorage) Lookup(ctx context.Context, hashes []uint32) (map[uint32][]models.Couple, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	result := make(map[uint32][]models.Couple)
	if len(hashes) == 0 {
		return result, nil
	}

	for start := 0; start < len(hashes); start += lookupChunk {
		end := start + lookupChunk
		if end > len(hashes) {
			end = len(hashes)
		}
		var rows []Fingerprint
		if err := c.DB.WithContext(ctx).Where("hash IN ?", hashes[start:end]).Order("id").Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("batch querying fingerprints: %w", err)
		}
		for _, r := range rows {
			result[r.Hash] = append(result[r.Hash], models.Couple{SongID: r.SongID, AnchorFrame: r.AnchorFrame})
		}
	}
	return result, nil
}

func (c *SQLiteStorage) DeleteFingerprints(ctx context.Context, songID string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	unlock := c.locks.Lock(songID)
	defer unlock()

	return c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("song_id = ?", songID).Delete(&Fingerprint{}).Error; err != nil {
			return err
		}
		return tx.Model(&Song{}).Where("id = ?", songID).Update("fingerprint_count", 0).Error
	})
}

func (c *SQLiteStorage) DeleteSong(ctx context.Context, songID string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	unlock := c.locks.Lock(songID)
	defer unlock()

	return c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("song_id = ?", songID).Delete(&Fingerprint{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", songID).Delete(&Song{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrSongNotFound
		}
		return nil
	})
}

func (c *SQLiteStorage) GetSong(ctx context.Context, songID string) (*models.Song, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var song Song
	if err := c.DB.WithContext(ctx).Where("id = ?", songID).First(&song).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSongNotFound
		}
		return nil, err
	}
	m := song.toModel()
	return &m, nil
}

func (c *SQLiteStorage) ListSongs(ctx context.Context) ([]models.Song, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var rows []Song
	if err := c.DB.WithContext(ctx).Order("created_at, title").Find(&rows).Error; err != nil {
		return nil, err
	}
	songs := make([]models.Song, len(rows))
	for i, r := range rows {
		songs[i] = r.toModel()
	}
	return songs, nil
}

func (c *SQLiteStorage) CountFingerprints(ctx context.Context, songID string) (int, error) {
	if c == nil || c.DB == nil {
		return 0, errors.New(errDBClientNil)
	}
	var count int64
	if err := c.DB.WithContext(ctx).Model(&Fingerprint{}).Where("song_id = ?", songID).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}
