// Package auth provides bearer-token authentication: a token service that
// issues and validates signed access tokens, and an HTTP middleware that
// resolves the token subject to a stored user.
package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/patric-chuzhbe/contentapi/internal/logger"
	"github.com/patric-chuzhbe/contentapi/internal/models"
)

type userFinder interface {
	FindUserByEmail(ctx context.Context, email string) (*models.User, bool, error)
}

// Auth authenticates HTTP requests carrying "Authorization: Bearer <token>".
type Auth struct {
	tokens *TokenService
	db     userFinder
}

// ContextKey is a custom type for storing values in context to avoid collisions.
type ContextKey string

// UserKey is the context key of the authenticated *models.User.
const UserKey ContextKey = "user"

// CredentialsErrorDetail is the only message an unauthenticated caller sees.
const CredentialsErrorDetail = "Could not validate credentials."

// InternalErrorDetail is returned when the user lookup itself fails.
const InternalErrorDetail = "Internal server error."

func New(tokens *TokenService, db userFinder) *Auth {
	return &Auth{
		tokens: tokens,
		db:     db,
	}
}

// UserFromContext returns the user stored by AuthenticateUser.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	usr, ok := ctx.Value(UserKey).(*models.User)
	return usr, ok && usr != nil
}

// WithUser returns a copy of ctx carrying usr.
func WithUser(ctx context.Context, usr *models.User) context.Context {
	return context.WithValue(ctx, UserKey, usr)
}

// AuthenticateUser is an HTTP middleware that rejects requests without a
// valid bearer token, or whose token subject is not a known user, with 401.
// The reason is logged but never returned to the client.
func (a *Auth) AuthenticateUser(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		tokenString, err := BearerToken(request)
		if err != nil {
			logger.Log.Debugln("Error calling the `BearerToken()`: ", zap.Error(err))
			writeUnauthorized(response)
			return
		}

		email, err := a.tokens.Validate(tokenString)
		if err != nil {
			logger.Log.Debugln("Error calling the `a.tokens.Validate()`: ", zap.Error(err))
			writeUnauthorized(response)
			return
		}

		usr, found, err := a.db.FindUserByEmail(request.Context(), email)
		if err != nil {
			logger.Log.Errorln("Error calling the `a.db.FindUserByEmail()`: ", zap.Error(err))
			writeDetail(response, http.StatusInternalServerError, InternalErrorDetail)
			return
		}
		if !found {
			logger.Log.Debugln("token subject is not a registered user", zap.String("subject", email))
			writeUnauthorized(response)
			return
		}

		h.ServeHTTP(response, request.WithContext(WithUser(request.Context(), usr)))
	}

	return http.HandlerFunc(middleware)
}

// BearerToken extracts the token from the Authorization header. The scheme
// is matched case-insensitively.
func BearerToken(request *http.Request) (string, error) {
	header := request.Header.Get("Authorization")
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrMissingToken
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}

	return token, nil
}

func writeUnauthorized(response http.ResponseWriter) {
	response.Header().Set("WWW-Authenticate", "Bearer")
	writeDetail(response, http.StatusUnauthorized, CredentialsErrorDetail)
}

func writeDetail(response http.ResponseWriter, status int, detail string) {
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(status)
	_ = json.NewEncoder(response).Encode(models.ErrorResponse{Detail: detail})
}
