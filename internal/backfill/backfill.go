// Package backfill finishes the analysis of content records whose
// post-analysis update was not stored. A job is analysed at most once;
// only the storage write is retried, on every tick, up to a fixed number
// of attempts.
package backfill

import (
	"context"
	"errors"
	"time"

	"github.com/patric-chuzhbe/contentapi/internal/logger"
	"github.com/patric-chuzhbe/contentapi/internal/models"
)

// DefaultMaxAttempts bounds the storage writes made for one job.
const DefaultMaxAttempts = 5

// Job identifies a record waiting for its analysis. Summary and Sentiment
// hold an analysis that is already known; a job with an empty Sentiment is
// analysed on its first pass.
type Job struct {
	ContentID string
	Text      string
	Summary   string
	Sentiment models.Sentiment

	attempts int
}

func (j *Job) isAnalyzed() bool {
	return j.Sentiment != ""
}

type analyzer interface {
	Analyze(ctx context.Context, text string) (string, models.Sentiment)
}

type contentStore interface {
	UpdateContentAnalysis(
		ctx context.Context,
		id string,
		summary string,
		sentiment models.Sentiment,
	) (*models.Content, error)

	ListUnanalyzedContents(ctx context.Context, after models.ContentCursor, limit int) ([]*models.Content, error)
}

type Backfill struct {
	queue                    chan *Job
	db                       contentStore
	engine                   analyzer
	delayBetweenQueueFetches time.Duration
	maxAttempts              int
	errorChannel             chan error
	done                     chan struct{}
}

// Option configures a Backfill.
type Option func(*Backfill)

// WithMaxAttempts sets how many storage writes a job gets before it is
// dropped. Values below one are ignored.
func WithMaxAttempts(maxAttempts int) Option {
	return func(b *Backfill) {
		if maxAttempts > 0 {
			b.maxAttempts = maxAttempts
		}
	}
}

func New(
	db contentStore,
	engine analyzer,
	channelCapacity int,
	delayBetweenQueueFetches time.Duration,
	opts ...Option,
) *Backfill {
	b := &Backfill{
		db:                       db,
		engine:                   engine,
		queue:                    make(chan *Job, channelCapacity),
		delayBetweenQueueFetches: delayBetweenQueueFetches,
		maxAttempts:              DefaultMaxAttempts,
		errorChannel:             make(chan error, channelCapacity),
		done:                     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	return b
}

// ListenErrors passes every processing error to callback.
func (b *Backfill) ListenErrors(callback func(error)) {
	go func() {
		for err := range b.errorChannel {
			callback(err)
		}
	}()
}

// EnqueueJob adds a job without blocking. It reports false when the queue
// is full.
func (b *Backfill) EnqueueJob(job *Job) bool {
	select {
	case b.queue <- job:
		return true
	default:
		logger.Log.Warnw("backfill queue is full, dropping job", "content_id", job.ContentID)
		return false
	}
}

// EnqueueUnanalyzed queues every record left without analysis, for example
// by a crash between insert and update, that was created no later than
// before. It pages through the storage and waits for queue space, so it
// returns once the sweep is over or ctx is done.
func (b *Backfill) EnqueueUnanalyzed(ctx context.Context, before time.Time) (int, error) {
	pageSize := max(cap(b.queue), 1)
	after := models.ContentCursor{}
	enqueued := 0

	for {
		contents, err := b.db.ListUnanalyzedContents(ctx, after, pageSize)
		if err != nil {
			return enqueued, err
		}

		for _, c := range contents {
			if c.CreatedAt.After(before) {
				return enqueued, nil
			}

			select {
			case b.queue <- &Job{ContentID: c.ID, Text: c.Text}:
				enqueued++
			case <-ctx.Done():
				return enqueued, ctx.Err()
			}
		}

		if len(contents) < pageSize {
			return enqueued, nil
		}
		after = models.CursorOf(contents[len(contents)-1])
	}
}

// Run starts the worker. It stops when ctx is done; Done is closed then.
// No more than cap(queue) jobs are held at once, the rest wait in the queue.
func (b *Backfill) Run(ctx context.Context) {
	go func() {
		defer close(b.done)

		ticker := time.NewTicker(b.delayBetweenQueueFetches)
		defer ticker.Stop()

		var jobs []*Job

		for {
			queue := b.queue
			if len(jobs) >= max(cap(b.queue), 1) {
				queue = nil
			}

			select {
			case <-ctx.Done():
				if pending := len(jobs) + len(b.queue); pending > 0 {
					logger.Log.Warnf("backfill stopped with %d pending jobs", pending)
				}
				return
			case job := <-queue:
				jobs = append(jobs, job)
			case <-ticker.C:
				if len(jobs) == 0 {
					continue
				}
				jobs = b.process(ctx, jobs)
			}
		}
	}()
}

// Done is closed after Run's goroutine returns.
func (b *Backfill) Done() <-chan struct{} {
	return b.done
}

// process writes the analysis of every job and returns the ones to retry.
func (b *Backfill) process(ctx context.Context, jobs []*Job) []*Job {
	var retry []*Job
	processed := 0

	for _, job := range jobs {
		if !job.isAnalyzed() {
			job.Summary, job.Sentiment = b.engine.Analyze(ctx, job.Text)
		}

		job.attempts++
		_, err := b.db.UpdateContentAnalysis(ctx, job.ContentID, job.Summary, job.Sentiment)
		switch {
		case err == nil:
			processed++
		case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrAlreadyAnalyzed):
		case job.attempts >= b.maxAttempts:
			logger.Log.Errorw(
				"backfill gave up on content",
				"content_id", job.ContentID,
				"attempts", job.attempts,
				"error", err,
			)
			b.publishError(err)
		default:
			retry = append(retry, job)
			b.publishError(err)
		}
	}

	if processed > 0 {
		logger.Log.Infof("backfilled analysis of %d contents", processed)
	}

	return retry
}

func (b *Backfill) publishError(err error) {
	select {
	case b.errorChannel <- err:
	default:
	}
}
