package backfill

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/contentapi/internal/analysis"
	"github.com/patric-chuzhbe/contentapi/internal/mockstorage"
	"github.com/patric-chuzhbe/contentapi/internal/models"
)

type countingAnalyzer struct {
	calls atomic.Int32
}

func (a *countingAnalyzer) Analyze(ctx context.Context, text string) (string, models.Sentiment) {
	a.calls.Add(1)
	return "summary of " + text, models.SentimentNeutral
}

func TestBackfillRetriesUntilStored(t *testing.T) {
	var calls atomic.Int32
	count := func(mock.Arguments) { calls.Add(1) }

	db := new(mockstorage.StorageMock)
	db.On("UpdateContentAnalysis", mock.Anything, "c-1", "I hate this", models.SentimentNegative).
		Run(count).
		Return(nil, errors.New("db down")).
		Once()
	db.On("UpdateContentAnalysis", mock.Anything, "c-1", "I hate this", models.SentimentNegative).
		Run(count).
		Return(&models.Content{ID: "c-1"}, nil).
		Once()

	worker := New(db, analysis.NewEngine(), 10, 10*time.Millisecond)

	var (
		mu   sync.Mutex
		errs []error
	)
	worker.ListenErrors(func(err error) {
		mu.Lock()
		defer mu.Unlock()
		errs = append(errs, err)
	})

	ctx, cancel := context.WithCancel(context.Background())
	worker.Run(ctx)

	require.True(t, worker.EnqueueJob(&Job{ContentID: "c-1", Text: "I hate this"}))

	require.Eventually(t, func() bool {
		return calls.Load() == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-worker.Done()

	db.AssertExpectations(t)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(errs) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestBackfillAnalysesOnceAndStopsAfterMaxAttempts(t *testing.T) {
	var writes atomic.Int32
	engine := &countingAnalyzer{}

	db := new(mockstorage.StorageMock)
	db.On("UpdateContentAnalysis", mock.Anything, "c-1", "summary of pending", models.SentimentNeutral).
		Run(func(mock.Arguments) { writes.Add(1) }).
		Return(nil, errors.New("db down"))

	worker := New(db, engine, 10, 10*time.Millisecond, WithMaxAttempts(3))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker.Run(ctx)

	require.True(t, worker.EnqueueJob(&Job{ContentID: "c-1", Text: "pending"}))

	require.Eventually(t, func() bool {
		return writes.Load() == 3
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	cancel()
	<-worker.Done()

	assert.Equal(t, int32(3), writes.Load())
	assert.Equal(t, int32(1), engine.calls.Load())
}

func TestBackfillStoresKnownAnalysisWithoutAnalyzing(t *testing.T) {
	var writes atomic.Int32
	engine := &countingAnalyzer{}

	db := new(mockstorage.StorageMock)
	db.On("UpdateContentAnalysis", mock.Anything, "c-1", "from the request", models.SentimentPositive).
		Run(func(mock.Arguments) { writes.Add(1) }).
		Return(&models.Content{ID: "c-1"}, nil).
		Once()

	worker := New(db, engine, 10, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	worker.Run(ctx)

	require.True(t, worker.EnqueueJob(&Job{
		ContentID: "c-1",
		Text:      "great",
		Summary:   "from the request",
		Sentiment: models.SentimentPositive,
	}))

	require.Eventually(t, func() bool {
		return writes.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-worker.Done()

	db.AssertExpectations(t)
	assert.Zero(t, engine.calls.Load())
}

func TestBackfillDropsFinishedContent(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "deleted", err: models.ErrNotFound},
		{name: "already analysed", err: models.ErrAlreadyAnalyzed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := new(mockstorage.StorageMock)
			db.On("UpdateContentAnalysis", mock.Anything, "c-2", "gone", models.SentimentNeutral).
				Return(nil, tt.err).
				Once()

			worker := New(db, analysis.NewEngine(), 10, 10*time.Millisecond)
			ctx, cancel := context.WithCancel(context.Background())
			worker.Run(ctx)

			worker.EnqueueJob(&Job{ContentID: "c-2", Text: "gone"})

			time.Sleep(100 * time.Millisecond)
			cancel()
			<-worker.Done()

			db.AssertExpectations(t)
			db.AssertNumberOfCalls(t, "UpdateContentAnalysis", 1)
		})
	}
}

func TestEnqueueJobWhenQueueIsFull(t *testing.T) {
	worker := New(new(mockstorage.StorageMock), analysis.NewEngine(), 1, time.Hour)

	assert.True(t, worker.EnqueueJob(&Job{ContentID: "a"}))
	assert.False(t, worker.EnqueueJob(&Job{ContentID: "b"}))
}

func TestEnqueueUnanalyzed(t *testing.T) {
	db := new(mockstorage.StorageMock)
	db.On("ListUnanalyzedContents", mock.Anything, models.ContentCursor{}, 5).
		Return([]*models.Content{{ID: "c-1", Text: "good"}, {ID: "c-2", Text: "bad"}}, nil).
		Once()

	worker := New(db, analysis.NewEngine(), 5, time.Hour)

	n, err := worker.EnqueueUnanalyzed(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, worker.queue, 2)
	db.AssertExpectations(t)
}

func TestEnqueueUnanalyzedPagesThroughBacklog(t *testing.T) {
	start := time.Now().Add(-time.Hour)
	page1 := []*models.Content{
		{ID: "c-1", Text: "one", CreatedAt: start},
		{ID: "c-2", Text: "two", CreatedAt: start.Add(time.Second)},
	}
	page2 := []*models.Content{
		{ID: "c-3", Text: "three", CreatedAt: start.Add(2 * time.Second)},
	}

	db := new(mockstorage.StorageMock)
	db.On("ListUnanalyzedContents", mock.Anything, models.ContentCursor{}, 2).Return(page1, nil).Once()
	db.On("ListUnanalyzedContents", mock.Anything, models.CursorOf(page1[1]), 2).Return(page2, nil).Once()

	worker := New(db, analysis.NewEngine(), 2, time.Hour)

	type result struct {
		n   int
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		n, err := worker.EnqueueUnanalyzed(context.Background(), time.Now())
		resultCh <- result{n: n, err: err}
	}()

	var ids []string
	for i := 0; i < 3; i++ {
		select {
		case job := <-worker.queue:
			ids = append(ids, job.ContentID)
		case <-time.After(2 * time.Second):
			t.Fatal("sweep did not enqueue the whole backlog")
		}
	}

	res := <-resultCh
	require.NoError(t, res.err)
	assert.Equal(t, 3, res.n)
	assert.Equal(t, []string{"c-1", "c-2", "c-3"}, ids)
	db.AssertExpectations(t)
}

func TestEnqueueUnanalyzedStopsAtCutoff(t *testing.T) {
	cutoff := time.Now()

	db := new(mockstorage.StorageMock)
	db.On("ListUnanalyzedContents", mock.Anything, models.ContentCursor{}, 5).
		Return([]*models.Content{
			{ID: "old", CreatedAt: cutoff.Add(-time.Minute)},
			{ID: "in-flight", CreatedAt: cutoff.Add(time.Second)},
		}, nil).
		Once()

	worker := New(db, analysis.NewEngine(), 5, time.Hour)

	n, err := worker.EnqueueUnanalyzed(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, worker.queue, 1)
	assert.Equal(t, "old", (<-worker.queue).ContentID)
}

func TestEnqueueUnanalyzedStopsWithContext(t *testing.T) {
	db := new(mockstorage.StorageMock)
	db.On("ListUnanalyzedContents", mock.Anything, models.ContentCursor{}, 1).
		Return([]*models.Content{{ID: "c-1"}}, nil).
		Once()
	db.On("ListUnanalyzedContents", mock.Anything, models.ContentCursor{ID: "c-1"}, 1).
		Return([]*models.Content{{ID: "c-2"}}, nil).
		Once()

	worker := New(db, analysis.NewEngine(), 1, time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	n, err := worker.EnqueueUnanalyzed(ctx, time.Now())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, n)
}

func TestEnqueueUnanalyzedError(t *testing.T) {
	db := new(mockstorage.StorageMock)
	db.On("ListUnanalyzedContents", mock.Anything, models.ContentCursor{}, 5).Return(nil, errors.New("db down")).Once()

	_, err := New(db, analysis.NewEngine(), 5, time.Hour).EnqueueUnanalyzed(context.Background(), time.Now())
	assert.Error(t, err)
}
