// Package analysis derives a short summary and a sentiment label from a
// piece of text. An external provider is asked first; whenever it is
// missing, slow, failing or answers with something unusable, a local
// heuristic produces the result instead, so Analyze never fails.
package analysis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/patric-chuzhbe/contentapi/internal/logger"
	"github.com/patric-chuzhbe/contentapi/internal/models"
)

const DefaultTimeout = 5 * time.Second

var ErrInvalidResult = errors.New("provider returned an unusable analysis result")

// Result is one (summary, sentiment) pair.
type Result struct {
	Summary   string           `json:"summary"`
	Sentiment models.Sentiment `json:"sentiment"`
}

// Provider is an external analysis capability.
type Provider interface {
	Analyze(ctx context.Context, text string) (Result, error)
}

type Engine struct {
	provider Provider
	timeout  time.Duration
}

type Option func(*Engine)

// WithProvider sets the external provider. A nil provider leaves the engine
// on the heuristic only.
func WithProvider(provider Provider) Option {
	return func(e *Engine) {
		e.provider = provider
	}
}

// WithTimeout bounds every provider call.
func WithTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		if timeout > 0 {
			e.timeout = timeout
		}
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// HasProvider reports whether an external provider is configured.
func (e *Engine) HasProvider() bool {
	return e.provider != nil
}

// Analyze returns a summary and a sentiment for text.
func (e *Engine) Analyze(ctx context.Context, text string) (string, models.Sentiment) {
	if e.provider == nil {
		logger.Log.Debugw("no analysis provider configured, using heuristic")
		res := Heuristic(text)
		return res.Summary, res.Sentiment
	}

	res, err := e.callProvider(ctx, text)
	if err != nil {
		logger.Log.Errorw("analysis provider failed, falling back to heuristic", "error", err)
		res = Heuristic(text)
	}

	return res.Summary, res.Sentiment
}

func (e *Engine) callProvider(ctx context.Context, text string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	res, err := e.provider.Analyze(ctx, text)
	if err != nil {
		return Result{}, err
	}

	if !res.Sentiment.Valid() || strings.TrimSpace(res.Summary) == "" {
		return Result{}, ErrInvalidResult
	}

	return res, nil
}
