// Package models holds the domain records and the request/response payloads
// shared by the storage, service and router layers.
package models

import (
	"errors"
	"time"
)

// Sentiment is the tone label attached to an analysed content record.
type Sentiment string

const (
	SentimentPositive Sentiment = "Positive"
	SentimentNegative Sentiment = "Negative"
	SentimentNeutral  Sentiment = "Neutral"
)

// Valid reports whether s is one of the three known labels.
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}

	return false
}

// User is an account record. HashedPassword is never serialized.
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// Content is a piece of user text together with its analysis.
// Summary and Sentiment stay nil until the record has been analysed.
type Content struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	Summary   *string    `json:"summary"`
	Sentiment *Sentiment `json:"sentiment"`
	OwnerID   string     `json:"owner_id"`
	CreatedAt time.Time  `json:"created_at"`
}

// ContentCursor is a position in the (created_at, id) order of content
// records. The zero value points before the first record.
type ContentCursor struct {
	CreatedAt time.Time
	ID        string
}

// CursorOf returns the position of c.
func CursorOf(c *Content) ContentCursor {
	return ContentCursor{CreatedAt: c.CreatedAt, ID: c.ID}
}

// IsAnalyzed reports whether both analysis fields are populated.
func (c *Content) IsAnalyzed() bool {
	return c.Summary != nil && c.Sentiment != nil
}

type SignupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginRequest struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

type ContentCreateRequest struct {
	Text string `json:"text" validate:"required"`
}

type UserView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type ContentView struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	Summary   *string    `json:"summary"`
	Sentiment *Sentiment `json:"sentiment"`
	CreatedAt time.Time  `json:"created_at"`
}

type ContentViews []ContentView

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}

type InternalStatsResponse struct {
	Users    int64 `json:"users"`
	Contents int64 `json:"contents"`
}

// NewUserView strips the password hash from u.
func NewUserView(u *User) UserView {
	return UserView{
		ID:    u.ID,
		Email: u.Email,
	}
}

func NewContentView(c *Content) ContentView {
	return ContentView{
		ID:        c.ID,
		Text:      c.Text,
		Summary:   c.Summary,
		Sentiment: c.Sentiment,
		CreatedAt: c.CreatedAt,
	}
}

func NewContentViews(contents []*Content) ContentViews {
	result := make(ContentViews, 0, len(contents))
	for _, c := range contents {
		result = append(result, NewContentView(c))
	}

	return result
}

const (
	StorageTypeUnknown = iota
	StorageTypePostgresql
	StorageTypeFile
	StorageTypeMemory
)

// TokenTypeBearer is the token_type reported by the login endpoint.
const TokenTypeBearer = "bearer"

var ErrDuplicateEmail = errors.New("email already registered")

// ErrNotFound covers both a missing record and a record owned by someone else.
var ErrNotFound = errors.New("content not found")

// ErrAlreadyAnalyzed is returned when the analysis of a record has already
// been stored. A record is analysed once.
var ErrAlreadyAnalyzed = errors.New("content already analysed")
