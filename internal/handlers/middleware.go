package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	ghandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/maneesh/talentdrop/internal/apperr"
	"github.com/maneesh/talentdrop/internal/response"
)

type contextKey string

const contextKeyRequestID contextKey = "request_id"

// RequestID returns the request id assigned by the router, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return id
}

// requestIDMiddleware reuses an incoming X-Request-ID or generates one.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" || len(reqID) > 128 {
			reqID = uuid.New().String()
		}
		ctx := context.WithValue(r.Context(), contextKeyRequestID, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// accessLog formats gorilla access log entries as structured log records.
func accessLog(logger *slog.Logger) ghandlers.LogFormatter {
	return func(_ io.Writer, p ghandlers.LogFormatterParams) {
		logger.InfoContext(p.Request.Context(), "request",
			"method", p.Request.Method,
			"path", p.URL.Path,
			"status", p.StatusCode,
			"bytes", p.Size,
			"latency_ms", time.Since(p.TimeStamp).Milliseconds(),
			"request_id", RequestID(p.Request.Context()),
		)
	}
}

// loggingMiddleware logs request method, path, status, and latency.
func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return ghandlers.CustomLoggingHandler(io.Discard, next, accessLog(logger))
	}
}

// recoveryLogger adapts slog to the gorilla recovery logger.
type recoveryLogger struct {
	logger *slog.Logger
}

func (l recoveryLogger) Println(args ...any) {
	l.logger.Error("panic recovered", "error", fmt.Sprint(args...))
}

// recoveryMiddleware catches panics and answers with a 500 envelope when no
// header was sent yet. http.ErrAbortHandler is passed through so the server
// drops the connection.
func recoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	recovery := ghandlers.RecoveryHandler(
		ghandlers.RecoveryLogger(recoveryLogger{logger: logger}),
		ghandlers.PrintRecoveryStack(false),
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := &recoveryWriter{ResponseWriter: w}
			aborted := false

			recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				defer func() {
					rec := recover()
					if rec == nil {
						return
					}
					if rec == http.ErrAbortHandler {
						aborted = true
						return
					}
					rw.panicked = true
					panic(rec)
				}()
				next.ServeHTTP(w, r)
			})).ServeHTTP(rw, r)

			if aborted {
				panic(http.ErrAbortHandler)
			}
			if rw.panicked && !rw.wroteHeader {
				response.Error(w, r, nil, apperr.Internal("Internal Server Error", nil))
			}
		})
	}
}

// corsMiddleware allows the configured origin and answers preflights.
// Allowed methods of a route come from mux.CORSMethodMiddleware.
func corsMiddleware(origin string) mux.MiddlewareFunc {
	return ghandlers.CORS(
		ghandlers.AllowedOrigins([]string{origin}),
		ghandlers.AllowedMethods([]string{http.MethodGet, http.MethodPost}),
		ghandlers.AllowedHeaders([]string{"Content-Type", "X-Request-ID"}),
		ghandlers.ExposedHeaders([]string{"X-Request-ID", "Content-Disposition"}),
		ghandlers.OptionStatusCode(http.StatusNoContent),
	)
}

// requireCandidate rejects upload requests for malformed or unknown
// candidate ids before the upload gate stores anything.
func requireCandidate(service CandidateService, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := service.GetCandidateByID(r.Context(), mux.Vars(r)["candidateId"]); err != nil {
				response.Error(w, r, logger, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// recoveryWriter records whether a header went out, so a recovered panic
// only writes an envelope into an untouched response.
type recoveryWriter struct {
	http.ResponseWriter
	wroteHeader bool
	panicked    bool
}

func (rw *recoveryWriter) WriteHeader(code int) {
	if rw.panicked {
		// The recovery handler's bare 500 is replaced by an envelope.
		return
	}
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *recoveryWriter) Write(p []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(p)
}

func (rw *recoveryWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *recoveryWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
