// Package router exposes the service over HTTP with chi.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/patric-chuzhbe/contentapi/internal/auth"
	"github.com/patric-chuzhbe/contentapi/internal/gzippedhttp"
	"github.com/patric-chuzhbe/contentapi/internal/logger"
	"github.com/patric-chuzhbe/contentapi/internal/models"
	"github.com/patric-chuzhbe/contentapi/internal/service"
)

const maxRequestBodyBytes = 1 << 20

const (
	detailDuplicateEmail     = "Email already registered."
	detailInvalidCredentials = "Incorrect email or password."
	detailContentNotFound    = "Content not found."
	detailMalformedBody      = "Malformed JSON body."
	detailInternal           = auth.InternalErrorDetail
	detailNotFound           = "Not Found"
	detailMethodNotAllowed   = "Method Not Allowed"
)

type contentService interface {
	Signup(ctx context.Context, req models.SignupRequest) (*models.User, error)

	Login(ctx context.Context, req models.LoginRequest) (models.TokenResponse, error)

	CreateContent(ctx context.Context, owner *models.User, req models.ContentCreateRequest) (*models.Content, error)

	ListContents(ctx context.Context, owner *models.User) ([]*models.Content, error)

	GetContent(ctx context.Context, owner *models.User, id string) (*models.Content, error)

	DeleteContent(ctx context.Context, owner *models.User, id string) error

	Ping(ctx context.Context) error

	GetInternalStats(ctx context.Context) (models.InternalStatsResponse, error)
}

type authenticator interface {
	AuthenticateUser(h http.Handler) http.Handler
}

type trustChecker interface {
	TrustedOnly(h http.Handler) http.Handler
}

type Router struct {
	service contentService
}

func New(
	svc contentService,
	authMiddleware authenticator,
	ipChecker trustChecker,
) *chi.Mux {
	myRouter := Router{
		service: svc,
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		logger.WithLoggingHTTPMiddleware,
		middleware.Recoverer,
		gzippedhttp.DecompressRequest,
		cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
		}),
		middleware.Compress(5, "application/json"),
	)

	router.NotFound(func(response http.ResponseWriter, request *http.Request) {
		writeError(response, http.StatusNotFound, detailNotFound)
	})
	router.MethodNotAllowed(func(response http.ResponseWriter, request *http.Request) {
		writeError(response, http.StatusMethodNotAllowed, detailMethodNotAllowed)
	})

	router.Get(`/`, myRouter.GetRoot)
	router.Get(`/ping`, myRouter.GetPing)
	router.Post(`/signup`, myRouter.PostSignup)
	router.Post(`/login`, myRouter.PostLogin)

	router.Route(`/contents`, func(r chi.Router) {
		r.Use(authMiddleware.AuthenticateUser)
		r.Post(`/`, myRouter.PostContents)
		r.Get(`/`, myRouter.GetContents)
		r.Get(`/{contentID}`, myRouter.GetContentsID)
		r.Delete(`/{contentID}`, myRouter.DeleteContentsID)
	})

	router.With(ipChecker.TrustedOnly).Get(`/api/internal/stats`, myRouter.GetApiinternalstats)

	return router
}

// GetRoot is the health check.
func (router *Router) GetRoot(response http.ResponseWriter, request *http.Request) {
	writeJSON(response, http.StatusOK, models.HealthResponse{Status: "OK"})
}

// GetPing reports whether the storage is reachable.
func (router *Router) GetPing(response http.ResponseWriter, request *http.Request) {
	if err := router.service.Ping(request.Context()); err != nil {
		logger.Log.Errorln("Error calling the `router.service.Ping()`: ", err)
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	response.WriteHeader(http.StatusOK)
}

func (router *Router) PostSignup(response http.ResponseWriter, request *http.Request) {
	var req models.SignupRequest
	if !decodeJSONBody(response, request, &req) {
		return
	}

	usr, err := router.service.Signup(request.Context(), req)
	if err != nil {
		router.writeServiceError(response, err)
		return
	}

	writeJSON(response, http.StatusCreated, models.NewUserView(usr))
}

// PostLogin takes an OAuth2 password form where username carries the email.
func (router *Router) PostLogin(response http.ResponseWriter, request *http.Request) {
	request.Body = http.MaxBytesReader(response, request.Body, maxRequestBodyBytes)
	if err := request.ParseForm(); err != nil {
		writeError(response, http.StatusBadRequest, "Malformed form body.")
		return
	}

	token, err := router.service.Login(request.Context(), models.LoginRequest{
		Username: request.PostForm.Get("username"),
		Password: request.PostForm.Get("password"),
	})
	if err != nil {
		router.writeServiceError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, token)
}

func (router *Router) PostContents(response http.ResponseWriter, request *http.Request) {
	owner, ok := auth.UserFromContext(request.Context())
	if !ok {
		writeError(response, http.StatusUnauthorized, auth.CredentialsErrorDetail)
		return
	}

	var req models.ContentCreateRequest
	if !decodeJSONBody(response, request, &req) {
		return
	}

	content, err := router.service.CreateContent(request.Context(), owner, req)
	if err != nil {
		router.writeServiceError(response, err)
		return
	}

	writeJSON(response, http.StatusCreated, models.NewContentView(content))
}

func (router *Router) GetContents(response http.ResponseWriter, request *http.Request) {
	owner, ok := auth.UserFromContext(request.Context())
	if !ok {
		writeError(response, http.StatusUnauthorized, auth.CredentialsErrorDetail)
		return
	}

	contents, err := router.service.ListContents(request.Context(), owner)
	if err != nil {
		router.writeServiceError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, models.NewContentViews(contents))
}

func (router *Router) GetContentsID(response http.ResponseWriter, request *http.Request) {
	owner, ok := auth.UserFromContext(request.Context())
	if !ok {
		writeError(response, http.StatusUnauthorized, auth.CredentialsErrorDetail)
		return
	}

	content, err := router.service.GetContent(request.Context(), owner, chi.URLParam(request, "contentID"))
	if err != nil {
		router.writeServiceError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, models.NewContentView(content))
}

func (router *Router) DeleteContentsID(response http.ResponseWriter, request *http.Request) {
	owner, ok := auth.UserFromContext(request.Context())
	if !ok {
		writeError(response, http.StatusUnauthorized, auth.CredentialsErrorDetail)
		return
	}

	if err := router.service.DeleteContent(request.Context(), owner, chi.URLParam(request, "contentID")); err != nil {
		router.writeServiceError(response, err)
		return
	}

	response.WriteHeader(http.StatusNoContent)
}

// GetApiinternalstats returns user and content counts to trusted clients.
func (router *Router) GetApiinternalstats(response http.ResponseWriter, request *http.Request) {
	stats, err := router.service.GetInternalStats(request.Context())
	if err != nil {
		router.writeServiceError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, stats)
}

func (router *Router) writeServiceError(response http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		writeError(response, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, models.ErrDuplicateEmail):
		writeError(response, http.StatusBadRequest, detailDuplicateEmail)
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(response, http.StatusUnauthorized, detailInvalidCredentials)
	case errors.Is(err, models.ErrNotFound):
		writeError(response, http.StatusNotFound, detailContentNotFound)
	default:
		logger.Log.Errorw("request failed", "error", err)
		writeError(response, http.StatusInternalServerError, detailInternal)
	}
}

func decodeJSONBody(response http.ResponseWriter, request *http.Request, dst interface{}) bool {
	request.Body = http.MaxBytesReader(response, request.Body, maxRequestBodyBytes)

	if err := json.NewDecoder(request.Body).Decode(dst); err != nil {
		logger.Log.Debugln("Error calling the `json.NewDecoder().Decode()`: ", err)
		writeError(response, http.StatusBadRequest, detailMalformedBody)
		return false
	}

	return true
}

func writeJSON(response http.ResponseWriter, status int, body interface{}) {
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(status)

	if err := json.NewEncoder(response).Encode(body); err != nil {
		logger.Log.Debugln("Error calling the `json.NewEncoder().Encode()`: ", err)
	}
}

func writeError(response http.ResponseWriter, status int, detail string) {
	writeJSON(response, status, models.ErrorResponse{Detail: detail})
}
