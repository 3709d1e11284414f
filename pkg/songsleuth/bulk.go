package songsleuth

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// IndexJob names one file to index. Empty Title or Artist fall back to tags.
type IndexJob struct {
	Path   string
	Title  string
	Artist string
}

type BatchResult struct {
	Job    IndexJob
	Result IndexResult
	Err    error
}

// IndexBatch indexes jobs on up to workers goroutines. A failing job is
// reported in its BatchResult and does not stop the others; only context
// cancellation aborts the batch. progress, if set, is called once per job
// from a single goroutine at a time.
func (s *songService) IndexBatch(ctx context.Context, jobs []IndexJob, workers int, progress func(BatchResult)) ([]BatchResult, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	s.log.Infof("Indexing %d files with %d workers", len(jobs), workers)

	results := make([]BatchResult, len(jobs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := s.IndexFile(gctx, job.Path, job.Title, job.Artist)
			if err != nil {
				s.log.Warnf("Failed to index %s: %v", job.Path, err)
			}
			results[i] = BatchResult{Job: job, Result: res, Err: err}
			if progress != nil {
				mu.Lock()
				progress(results[i])
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	s.log.Infof("Indexed %d/%d files", len(jobs)-failed, len(jobs))
	return results, ctx.Err()
}
