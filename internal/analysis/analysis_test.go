package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/patric-chuzhbe/contentapi/internal/models"
)

type providerMock struct {
	mock.Mock
}

func (m *providerMock) Analyze(ctx context.Context, text string) (Result, error) {
	args := m.Called(ctx, text)
	return args.Get(0).(Result), args.Error(1)
}

func TestEngineWithoutProvider(t *testing.T) {
	engine := NewEngine()

	summary, sentiment := engine.Analyze(context.Background(), "great day")
	assert.Equal(t, "great day", summary)
	assert.Equal(t, models.SentimentPositive, sentiment)
	assert.False(t, engine.HasProvider())

	summary, sentiment = engine.Analyze(context.Background(), strings.Repeat("x", 250))
	assert.Len(t, summary, 203)
	assert.Equal(t, models.SentimentNeutral, sentiment)
}

func TestEngineUsesProviderResult(t *testing.T) {
	provider := new(providerMock)
	provider.On("Analyze", mock.Anything, "I hate this").
		Return(Result{Summary: "Dislike.", Sentiment: models.SentimentNeutral}, nil).
		Once()

	engine := NewEngine(WithProvider(provider))
	summary, sentiment := engine.Analyze(context.Background(), "I hate this")

	assert.Equal(t, "Dislike.", summary)
	assert.Equal(t, models.SentimentNeutral, sentiment)
	provider.AssertExpectations(t)
}

func TestEngineFallsBack(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		err    error
	}{
		{name: "provider error", err: errors.New("401 unauthorized")},
		{name: "sentiment outside enum", result: Result{Summary: "s", Sentiment: "Mixed"}},
		{name: "lowercase sentiment", result: Result{Summary: "s", Sentiment: "negative"}},
		{name: "empty summary", result: Result{Summary: "  ", Sentiment: models.SentimentPositive}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := new(providerMock)
			provider.On("Analyze", mock.Anything, "I hate this").Return(tt.result, tt.err).Once()

			summary, sentiment := NewEngine(WithProvider(provider)).Analyze(context.Background(), "I hate this")

			assert.Equal(t, "I hate this", summary)
			assert.Equal(t, models.SentimentNegative, sentiment)
			provider.AssertExpectations(t)
		})
	}
}

func TestEngineBoundsProviderCall(t *testing.T) {
	provider := new(providerMock)
	provider.On("Analyze", mock.Anything, "good news").
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			<-ctx.Done()
		}).
		Return(Result{}, context.DeadlineExceeded).
		Once()

	engine := NewEngine(WithProvider(provider), WithTimeout(20*time.Millisecond))

	started := time.Now()
	summary, sentiment := engine.Analyze(context.Background(), "good news")

	assert.Less(t, time.Since(started), 2*time.Second)
	assert.Equal(t, "good news", summary)
	assert.Equal(t, models.SentimentPositive, sentiment)
	provider.AssertExpectations(t)
}

func TestWithTimeoutIgnoresNonPositive(t *testing.T) {
	engine := NewEngine(WithTimeout(0), WithTimeout(-time.Second))
	assert.Equal(t, DefaultTimeout, engine.timeout)
}
