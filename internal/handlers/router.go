// Package handlers exposes the candidate intake operations over HTTP.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/maneesh/talentdrop/internal/apperr"
	"github.com/maneesh/talentdrop/internal/response"
	"github.com/maneesh/talentdrop/internal/upload"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// RouterConfig holds what the router needs to serve the intake API.
type RouterConfig struct {
	Service      CandidateService
	Gate         *upload.Gate
	ResumePolicy upload.Policy
	VideoPolicy  upload.Policy
	// BasePath prefixes the candidate routes, e.g. "/api". Empty mounts them at the root.
	BasePath   string
	CORSOrigin string
	Logger     *slog.Logger
}

// NewRouter builds the HTTP handler with all routes and middleware.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = "*"
	}

	router := mux.NewRouter()

	// Health check endpoints (no tracing needed)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)
	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Server is running!"))
	}).Methods(http.MethodGet)

	api := router
	if cfg.BasePath != "" {
		api = router.PathPrefix(cfg.BasePath).Subrouter()
	}
	c := api.PathPrefix("/candidate").Subrouter()

	withCandidate := requireCandidate(cfg.Service, logger)

	// Candidate operations with tracing
	c.Handle("/submit-info",
		otelhttp.NewHandler(NewSubmitHandler(cfg.Service, logger), "POST /candidate/submit-info"),
	).Methods(http.MethodPost, http.MethodOptions)

	c.Handle("/upload-resume/{candidateId}",
		otelhttp.NewHandler(
			withCandidate(cfg.Gate.Middleware(cfg.ResumePolicy)(NewResumeHandler(cfg.Service, logger))),
			"POST /candidate/upload-resume/{candidateId}",
		),
	).Methods(http.MethodPost, http.MethodOptions)

	c.Handle("/upload-video/{candidateId}",
		otelhttp.NewHandler(
			withCandidate(cfg.Gate.Middleware(cfg.VideoPolicy)(NewVideoHandler(cfg.Service, logger))),
			"POST /candidate/upload-video/{candidateId}",
		),
	).Methods(http.MethodPost, http.MethodOptions)

	c.Handle("/download-resume/{fileId}",
		otelhttp.NewHandler(NewResumeDownloadHandler(cfg.Service, logger), "GET /candidate/download-resume/{fileId}"),
	).Methods(http.MethodGet, http.MethodOptions)

	c.Handle("/stream-video/{fileId}",
		otelhttp.NewHandler(NewVideoStreamHandler(cfg.Service, logger), "GET /candidate/stream-video/{fileId}"),
	).Methods(http.MethodGet, http.MethodOptions)

	c.Handle("/{id}",
		otelhttp.NewHandler(NewFetchHandler(cfg.Service, logger), "GET /candidate/{id}"),
	).Methods(http.MethodGet, http.MethodOptions)

	// Allowed methods must be computed before preflights are answered.
	c.Use(mux.CORSMethodMiddleware(c))
	c.Use(corsMiddleware(cfg.CORSOrigin))

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, logger, apperr.NotFound("Route not found"))
	})

	// Outermost first: request id -> access log -> panic recovery -> router
	var h http.Handler = router
	h = recoveryMiddleware(logger)(h)
	h = loggingMiddleware(logger)(h)
	h = requestIDMiddleware(h)
	return h
}
