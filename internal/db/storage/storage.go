// Package storage declares the persistence contract shared by the
// PostgreSQL, JSON-file and in-memory backends.
package storage

import (
	"context"

	"github.com/patric-chuzhbe/contentapi/internal/models"
)

type Storage interface {
	UserDirectory
	ContentStore

	Ping(ctx context.Context) error

	Close() error
}

// UserDirectory holds accounts keyed by a unique email.
type UserDirectory interface {
	// CreateUser returns models.ErrDuplicateEmail when the email is taken.
	CreateUser(ctx context.Context, usr *models.User) error

	FindUserByEmail(ctx context.Context, email string) (*models.User, bool, error)

	CountUsers(ctx context.Context) (int64, error)
}

// ContentStore holds content records. Every read and delete is scoped to an
// owner: a record owned by somebody else looks exactly like a missing one.
type ContentStore interface {
	CreateContent(ctx context.Context, content *models.Content) error

	// UpdateContentAnalysis sets summary and sentiment together on a record
	// that has none yet and returns the updated record. It fails with
	// models.ErrNotFound for a missing record and models.ErrAlreadyAnalyzed
	// when the analysis is already stored.
	UpdateContentAnalysis(
		ctx context.Context,
		id string,
		summary string,
		sentiment models.Sentiment,
	) (*models.Content, error)

	// ListContentsByOwner returns the owner's records, newest first. Records
	// created at the same instant are listed latest insert first.
	ListContentsByOwner(ctx context.Context, ownerID string) ([]*models.Content, error)

	GetContentForOwner(ctx context.Context, id, ownerID string) (*models.Content, bool, error)

	DeleteContentForOwner(ctx context.Context, id, ownerID string) (bool, error)

	// ListUnanalyzedContents returns up to limit records still missing
	// their analysis that come strictly after the cursor in (created_at, id)
	// order, oldest first.
	ListUnanalyzedContents(ctx context.Context, after models.ContentCursor, limit int) ([]*models.Content, error)

	CountContents(ctx context.Context) (int64, error)
}
