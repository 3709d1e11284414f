package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/himanishpuri/SongSleuth/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const DefaultMongoDatabase = "songsleuth"

// MongoStorage keeps songs and fingerprints in two collections. Inserts use
// unordered InsertMany and are best-effort: on error callers delete the song.
type MongoStorage struct {
	client *mongo.Client
	songs  *mongo.Collection
	prints *mongo.Collection
	locks  KeyLocks
}

type mongoSong struct {
	ID               string    `bson:"_id"`
	Title            string    `bson:"title"`
	Artist           string    `bson:"artist"`
	DurationMs       int       `bson:"duration_ms"`
	Checksum         string    `bson:"checksum"`
	FingerprintCount int       `bson:"fingerprint_count"`
	CreatedAt        time.Time `bson:"created_at"`
}

type mongoPrint struct {
	Hash       int64  `bson:"hash"`
	SongID     string `bson:"song_id"`
	TimeOffset int64  `bson:"time_offset"`
}

func (s mongoSong) toModel() models.Song {
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

// NewMongoStorage connects to uri and ensures the collection indexes exist.
func NewMongoStorage(ctx context.Context, uri, database string) (*MongoStorage, error) {
	if database == "" {
		database = DefaultMongoDatabase
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	db := client.Database(database)
	m := &MongoStorage{
		client: client,
		songs:  db.Collection("songs"),
		prints: db.Collection("fingerprints"),
	}

	if _, err := m.songs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "title", Value: 1}, {Key: "artist", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("creating song index: %w", err)
	}
	if _, err := m.prints.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "hash", Value: 1}}},
		{Keys: bson.D{{Key: "song_id", Value: 1}}},
	}); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("creating fingerprint indexes: %w", err)
	}
	return m, nil
}

func (m *MongoStorage) findByName(ctx context.Context, title, artist string) (mongoSong, error) {
	var s mongoSong
	err := m.songs.FindOne(ctx, bson.M{"title": title, "artist": artist}).Decode(&s)
	return s, err
}

func (m *MongoStorage) RegisterSong(ctx context.Context, in models.Song) (models.Song, bool, error) {
	s, err := m.findByName(ctx, in.Title, in.Artist)
	if err == nil {
		return s.toModel(), false, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.Song{}, false, fmt.Errorf("querying existing song: %w", err)
	}

	s = mongoSong{
		ID:         newSongID(),
		Title:      in.Title,
		Artist:     in.Artist,
		DurationMs: in.DurationMs,
		Checksum:   in.Checksum,
		CreatedAt:  time.Now().UTC(),
	}
	if _, err := m.songs.InsertOne(ctx, s); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			existing, fetchErr := m.findByName(ctx, in.Title, in.Artist)
			if fetchErr != nil {
				return models.Song{}, false, fmt.Errorf("fetching song after duplicate key: %w", fetchErr)
			}
			return existing.toModel(), false, nil
		}
		return models.Song{}, false, fmt.Errorf("creating song: %w", err)
	}
	return s.toModel(), true, nil
}

func (m *MongoStorage) StoreFingerprints(ctx context.Context, songID string, fps []models.Fingerprint) error {
	unlock := m.locks.Lock(songID)
	defer unlock()

	res, err := m.songs.UpdateOne(ctx, bson.M{"_id": songID}, bson.M{"$inc": bson.M{"fingerprint_count": len(fps)}})
	if err != nil {
		return fmt.Errorf("updating fingerprint count: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrSongNotFound
	}
	if len(fps) == 0 {
		return nil
	}

	docs := make([]interface{}, len(fps))
	for i, fp := range fps {
		docs[i] = mongoPrint{Hash: int64(fp.Hash), SongID: songID, TimeOffset: int64(fp.AnchorFrame)}
	}
	if _, err := m.prints.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false)); err != nil {
		return fmt.Errorf("inserting fingerprints: %w", err)
	}
	return nil
}

// Lookup issues one $in query for all hashes.
func (m *MongoStorage) Lookup(ctx context.Context, hashes []uint32) (map[uint32][]models.Couple, error) {
	out := make(map[uint32][]models.Couple)
	if len(hashes) == 0 {
		return out, nil
	}
	in := make([]int64, len(hashes))
	for i, h := range hashes {
		in[i] = int64(h)
	}

	cur, err := m.prints.Find(ctx, bson.M{"hash": bson.M{"$in": in}}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("batch querying fingerprints: %w", err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var p mongoPrint
		if err := cur.Decode(&p); err != nil {
			return nil, err
		}
		h := uint32(p.Hash)
		out[h] = append(out[h], models.Couple{SongID: p.SongID, AnchorFrame: uint32(p.TimeOffset)})
	}
	return out, cur.Err()
}

func (m *MongoStorage) DeleteFingerprints(ctx context.Context, songID string) error {
	unlock := m.locks.Lock(songID)
	defer unlock()

	if _, err := m.prints.DeleteMany(ctx, bson.M{"song_id": songID}); err != nil {
		return err
	}
	_, err := m.songs.UpdateOne(ctx, bson.M{"_id": songID}, bson.M{"$set": bson.M{"fingerprint_count": 0}})
	return err
}

func (m *MongoStorage) DeleteSong(ctx context.Context, songID string) error {
	unlock := m.locks.Lock(songID)
	defer unlock()

	if _, err := m.prints.DeleteMany(ctx, bson.M{"song_id": songID}); err != nil {
		return err
	}
	res, err := m.songs.DeleteOne(ctx, bson.M{"_id": songID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrSongNotFound
	}
	return nil
}

func (m *MongoStorage) GetSong(ctx context.Context, songID string) (*models.Song, error) {
	var s mongoSong
	if err := m.songs.FindOne(ctx, bson.M{"_id": songID}).Decode(&s); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSongNotFound
		}
		return nil, err
	}
	out := s.toModel()
	return &out, nil
}

func (m *MongoStorage) ListSongs(ctx context.Context) ([]models.Song, error) {
	cur, err := m.songs.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []mongoSong
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	songs := make([]models.Song, len(docs))
	for i, d := range docs {
		songs[i] = d.toModel()
	}
	return songs, nil
}

func (m *MongoStorage) CountFingerprints(ctx context.Context, songID string) (int, error) {
	n, err := m.prints.CountDocuments(ctx, bson.M{"song_id": songID})
	return int(n), err
}

func (m *MongoStorage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
