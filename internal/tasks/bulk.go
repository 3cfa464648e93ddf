package tasks

import (
	"context"
	"errors"
	"sync"

	"github.com/isaac-jh/ym-library/internal/models"
	"golang.org/x/time/rate"
)

// BulkSubmitOpts configures [Board.SubmitAll].
type BulkSubmitOpts struct {
	NumWorkers int     // Concurrent requests (default: 4, max: 8)
	RateLimit  float64 // Requests per second (default: 5)
}

// BulkSubmitResult summarizes a [Board.SubmitAll] run.
type BulkSubmitResult struct {
	Total     int
	Submitted int
	Failed    int
	Skipped   int // records that could not be prepared, e.g. already in flight
	Results   []SubmitResult
}

// Err joins the [*SubmitError] of every failed submission.
func (r *BulkSubmitResult) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return errors.Join(errs...)
}

// SubmitAll submits the pending changes of every record.
//
// Submissions are prepared and finished on the calling goroutine; only the network calls fan out to a worker
// pool paced by a rate limiter. Each record succeeds or fails on its own: a failed record keeps its pending changes.
func (b *Board) SubmitAll(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	session *models.Session,
	opts BulkSubmitOpts,
) (*BulkSubmitResult, error) {
	if _, err := session.Actor(); err != nil {
		return nil, err
	}

	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 4
	}
	if opts.NumWorkers > 8 {
		opts.NumWorkers = 8
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	ids := b.PendingRecords()
	result := &BulkSubmitResult{Total: len(ids), Results: make([]SubmitResult, 0, len(ids))}

	subs := make([]Submission, 0, len(ids))
	for _, id := range ids {
		sub, err := b.PrepareSubmit(session, id)
		if err != nil {
			b.logger.Warn("skipping record", "record", id, "error", err)
			result.Skipped++
			continue
		}
		subs = append(subs, sub)
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan Submission, len(subs))
	results := make(chan SubmitResult, len(subs))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go b.submitWorker(ctx, &wg, limiter, jobs, results)
	}

	for i, sub := range subs {
		sendProgress(prog, submittingUpdate(i+1, len(subs), sub.ID))
		jobs <- sub
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		if rec, err := b.FinishSubmit(res); err != nil {
			res.Err = err
			result.Failed++
		} else {
			res.Record = rec
			result.Submitted++
		}
		result.Results = append(result.Results, res)
		sendProgress(prog, submittedUpdate(completed, len(subs), res))
	}

	b.logger.Info("bulk submit finished", "submitted", result.Submitted, "failed", result.Failed, "skipped", result.Skipped)
	return result, ctx.Err()
}

// submitWorker sends prepared submissions from jobs. Every job yields exactly one result so that each
// prepared submission is finished, even after ctx is done.
func (b *Board) submitWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	limiter *rate.Limiter,
	jobs <-chan Submission,
	results chan<- SubmitResult,
) {
	defer wg.Done()

	for sub := range jobs {
		if err := limiter.Wait(ctx); err != nil {
			results <- SubmitResult{Submission: sub, Err: err}
			continue
		}
		results <- sub.Send(ctx, b.backups)
	}
}
