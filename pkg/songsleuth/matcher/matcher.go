// Package matcher aligns query fingerprints against an index by histogram
// voting over (song, time delta) pairs.
package matcher

import (
	"context"
	"sort"

	"github.com/himanishpuri/SongSleuth/pkg/models"
	"github.com/himanishpuri/SongSleuth/pkg/songsleuth/fingerprint"
)

// Lookuper returns every indexed couple whose hash is in hashes, in one batched
// call. Couples for a hash must come back in a stable order.
type Lookuper interface {
	Lookup(ctx context.Context, hashes []uint32) (map[uint32][]models.Couple, error)
}

// Result is the outcome of histogram voting. A zero Result means no match.
type Result struct {
	SongID      string
	Strength    int
	DeltaFrames int32
	QueryCount  int
}

// Found reports whether any (song, delta) bucket received a vote.
func (r Result) Found() bool {
	return r.SongID != ""
}

// Confidence is Strength normalized by the number of query fingerprints.
func (r Result) Confidence() float64 {
	if r.QueryCount == 0 {
		return 0
	}
	return float64(r.Strength) / float64(r.QueryCount)
}

type bucketKey struct {
	songID string
	delta  int32
}

// histogram counts votes and remembers the order in which buckets appeared.
type histogram struct {
	counts map[bucketKey]int
	order  []bucketKey
}

func vote(query []models.Fingerprint, rows map[uint32][]models.Couple) *histogram {
	h := &histogram{counts: make(map[bucketKey]int)}
	for _, fp := range query {
		for _, c := range rows[fp.Hash] {
			k := bucketKey{songID: c.SongID, delta: int32(c.AnchorFrame) - int32(fp.AnchorFrame)}
			if _, ok := h.counts[k]; !ok {
				h.order = append(h.order, k)
			}
			h.counts[k]++
		}
	}
	return h
}

func lookup(ctx context.Context, idx Lookuper, query []models.Fingerprint) (*histogram, error) {
	if len(query) == 0 {
		return &histogram{}, nil
	}
	rows, err := idx.Lookup(ctx, fingerprint.DistinctHashes(query))
	if err != nil {
		return nil, err
	}
	return vote(query, rows), nil
}

// Match returns the (song, delta) bucket with the most votes. Among buckets
// with equal counts the one first reached while walking the query in order
// wins. Empty queries and queries without any shared hash yield a zero Result.
func Match(ctx context.Context, idx Lookuper, query []models.Fingerprint) (Result, error) {
	h, err := lookup(ctx, idx, query)
	if err != nil {
		return Result{}, err
	}

	var best Result
	for _, k := range h.order {
		if c := h.counts[k]; c > best.Strength {
			best = Result{SongID: k.songID, Strength: c, DeltaFrames: k.delta}
		}
	}
	if best.Found() {
		best.QueryCount = len(query)
	}
	return best, nil
}

// Rank returns the best bucket of every song that received a vote, strongest
// first. limit <= 0 returns all of them.
func Rank(ctx context.Context, idx Lookuper, query []models.Fingerprint, limit int) ([]Result, error) {
	h, err := lookup(ctx, idx, query)
	if err != nil {
		return nil, err
	}

	bySong := make(map[string]int)
	var results []Result
	for _, k := range h.order {
		c := h.counts[k]
		i, ok := bySong[k.songID]
		if !ok {
			bySong[k.songID] = len(results)
			results = append(results, Result{SongID: k.songID, Strength: c, DeltaFrames: k.delta, QueryCount: len(query)})
			continue
		}
		if c > results[i].Strength {
			results[i].Strength = c
			results[i].DeltaFrames = k.delta
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Strength > results[j].Strength })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
