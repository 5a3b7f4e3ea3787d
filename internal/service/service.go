// Package service implements the account and content operations on top of
// the storage, credential, token and analysis components.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/patric-chuzhbe/contentapi/internal/backfill"
	"github.com/patric-chuzhbe/contentapi/internal/logger"
	"github.com/patric-chuzhbe/contentapi/internal/models"
)

type userDirectory interface {
	CreateUser(ctx context.Context, usr *models.User) error

	FindUserByEmail(ctx context.Context, email string) (*models.User, bool, error)

	CountUsers(ctx context.Context) (int64, error)
}

type contentStore interface {
	CreateContent(ctx context.Context, content *models.Content) error

	UpdateContentAnalysis(
		ctx context.Context,
		id string,
		summary string,
		sentiment models.Sentiment,
	) (*models.Content, error)

	ListContentsByOwner(ctx context.Context, ownerID string) ([]*models.Content, error)

	GetContentForOwner(ctx context.Context, id, ownerID string) (*models.Content, bool, error)

	DeleteContentForOwner(ctx context.Context, id, ownerID string) (bool, error)

	CountContents(ctx context.Context) (int64, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type storage interface {
	userDirectory
	contentStore
	pinger
}

type passwordHasher interface {
	Hash(password string) (string, error)

	Verify(password, hash string) bool
}

type tokenIssuer interface {
	Issue(subject string, ttl time.Duration) (string, error)
}

type analyzer interface {
	Analyze(ctx context.Context, text string) (string, models.Sentiment)
}

type backfiller interface {
	EnqueueJob(job *backfill.Job) bool
}

// ErrInvalidCredentials covers both an unknown email and a wrong password.
var ErrInvalidCredentials = errors.New("incorrect email or password")

// ErrValidation wraps request field errors.
var ErrValidation = errors.New("validation failed")

type Service struct {
	db        storage
	passwords passwordHasher
	tokens    tokenIssuer
	engine    analyzer
	backfill  backfiller
	tokenTTL  time.Duration
	validate  *validator.Validate
	now       func() time.Time
}

type Option func(*Service)

// WithBackfill hands records whose analysis could not be stored to b.
func WithBackfill(b backfiller) Option {
	return func(s *Service) {
		s.backfill = b
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(
	db storage,
	passwords passwordHasher,
	tokens tokenIssuer,
	engine analyzer,
	tokenTTL time.Duration,
	opts ...Option,
) *Service {
	s := &Service{
		db:        db,
		passwords: passwords,
		tokens:    tokens,
		engine:    engine,
		tokenTTL:  tokenTTL,
		validate:  validator.New(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Signup registers a new account.
func (s *Service) Signup(ctx context.Context, req models.SignupRequest) (*models.User, error) {
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}

	_, found, err := s.db.FindUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if found {
		return nil, models.ErrDuplicateEmail
	}

	hash, err := s.passwords.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("in internal/service/service.go/Signup(): error while `s.passwords.Hash()` calling: %w", err)
	}

	usr := &models.User{
		ID:             uuid.NewString(),
		Email:          req.Email,
		HashedPassword: hash,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.db.CreateUser(ctx, usr); err != nil {
		return nil, err
	}

	return usr, nil
}

// Login checks the credentials and issues an access token.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (models.TokenResponse, error) {
	if err := s.validateStruct(req); err != nil {
		return models.TokenResponse{}, err
	}

	usr, found, err := s.db.FindUserByEmail(ctx, req.Username)
	if err != nil {
		return models.TokenResponse{}, err
	}
	if !found || !s.passwords.Verify(req.Password, usr.HashedPassword) {
		return models.TokenResponse{}, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(usr.Email, s.tokenTTL)
	if err != nil {
		return models.TokenResponse{}, fmt.Errorf("in internal/service/service.go/Login(): error while `s.tokens.Issue()` calling: %w", err)
	}

	return models.TokenResponse{
		AccessToken: token,
		TokenType:   models.TokenTypeBearer,
	}, nil
}

// CreateContent stores the text first, then analyses it and stores the
// analysis on the same record. The second phase is detached from the
// caller's cancellation. When the analysis cannot be stored the record is
// handed to the backfill worker together with the computed analysis and an
// error is returned; the text itself is already persisted.
func (s *Service) CreateContent(
	ctx context.Context,
	owner *models.User,
	req models.ContentCreateRequest,
) (*models.Content, error) {
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}

	content := &models.Content{
		ID:        uuid.NewString(),
		Text:      req.Text,
		OwnerID:   owner.ID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.db.CreateContent(ctx, content); err != nil {
		return nil, err
	}

	detached := context.WithoutCancel(ctx)
	summary, sentiment := s.engine.Analyze(detached, content.Text)

	updated, err := s.db.UpdateContentAnalysis(detached, content.ID, summary, sentiment)
	if err != nil {
		if s.backfill != nil {
			s.backfill.EnqueueJob(&backfill.Job{
				ContentID: content.ID,
				Text:      content.Text,
				Summary:   summary,
				Sentiment: sentiment,
			})
		}
		logger.Log.Errorw("storing the analysis failed", "content_id", content.ID, "error", err)
		return nil, fmt.Errorf("in internal/service/service.go/CreateContent(): error while `s.db.UpdateContentAnalysis()` calling: %w", err)
	}

	return updated, nil
}

// ListContents returns the owner's records, newest first.
func (s *Service) ListContents(ctx context.Context, owner *models.User) ([]*models.Content, error) {
	return s.db.ListContentsByOwner(ctx, owner.ID)
}

// GetContent returns models.ErrNotFound for a malformed id, a missing
// record and a record owned by somebody else alike.
func (s *Service) GetContent(ctx context.Context, owner *models.User, id string) (*models.Content, error) {
	if !isValidID(id) {
		return nil, models.ErrNotFound
	}

	content, found, err := s.db.GetContentForOwner(ctx, id, owner.ID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, models.ErrNotFound
	}

	return content, nil
}

// DeleteContent follows the same not-found rules as GetContent.
func (s *Service) DeleteContent(ctx context.Context, owner *models.User, id string) error {
	if !isValidID(id) {
		return models.ErrNotFound
	}

	deleted, err := s.db.DeleteContentForOwner(ctx, id, owner.ID)
	if err != nil {
		return err
	}
	if !deleted {
		return models.ErrNotFound
	}

	return nil
}

// Ping checks the health of the storage layer.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// GetInternalStats returns the number of users and contents.
func (s *Service) GetInternalStats(ctx context.Context) (models.InternalStatsResponse, error) {
	users, err := s.db.CountUsers(ctx)
	if err != nil {
		return models.InternalStatsResponse{}, err
	}

	contents, err := s.db.CountContents(ctx)
	if err != nil {
		return models.InternalStatsResponse{}, err
	}

	return models.InternalStatsResponse{
		Users:    users,
		Contents: contents,
	}, nil
}

func (s *Service) validateStruct(v interface{}) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, describe(fe))
	}

	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(messages, "; "))
}

func describe(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " is not a valid email address"
	}

	return field + " is invalid"
}

func isValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
