package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/cors"

	"github.com/example/room-scheduler/internal/application"
	"github.com/example/room-scheduler/internal/logging"
)

// Identity headers set by the trusted gateway in front of the API.
const (
	HeaderActorID    = "X-Actor-Id"
	HeaderActorName  = "X-Actor-Name"
	HeaderActorAdmin = "X-Actor-Admin"
)

// Identity copies the gateway supplied actor headers into the request context.
// Requests without an actor ID proceed with an empty principal; write operations
// reject them in the service layer. X-Actor-Name may be percent-encoded.
func Identity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := application.Principal{
				UserID:      strings.TrimSpace(r.Header.Get(HeaderActorID)),
				DisplayName: decodeHeader(r.Header.Get(HeaderActorName)),
			}
			if admin, err := strconv.ParseBool(strings.TrimSpace(r.Header.Get(HeaderActorAdmin))); err == nil {
				principal.IsAdmin = admin && principal.UserID != ""
			}
			ctx := ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func decodeHeader(value string) string {
	value = strings.TrimSpace(value)
	if decoded, err := url.PathUnescape(value); err == nil {
		return decoded
	}
	return value
}

// RequestLogger attaches a request scoped logger and logs start and completion.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	var counter atomic.Uint64

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := counter.Add(1)
			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := logging.ContextWithLogger(r.Context(), logger)
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			logger.DebugContext(ctx, "request started")
			next.ServeHTTP(rec, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed", "status", rec.status, "duration", time.Since(start))
		})
	}
}

// RequestObserver records per request latency.
type RequestObserver interface {
	ObserveRequest(method, route string, status int, elapsed time.Duration)
}

// ObserveRequests reports every request to observer labelled by its route template.
func ObserveRequests(observer RequestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if observer == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r)
			observer.ObserveRequest(r.Method, routeLabel(r.URL.Path), rec.status, time.Since(start))
		})
	}
}

// CORS allows browser clients from origins to call the API. No origins disables it.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return nil
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", HeaderActorID, HeaderActorName, HeaderActorAdmin},
		ExposedHeaders: []string{"Content-Disposition"},
	})
	return c.Handler
}

// routeLabel collapses identifiers so metric label cardinality stays bounded.
func routeLabel(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	switch segments[0] {
	case "reservations":
		if len(segments) > 1 && segments[1] != "export" {
			segments[1] = "{id}"
		}
	case "rooms":
		if len(segments) > 1 {
			segments[1] = "{id}"
		}
	case "conflicts", "meeting-types", "metrics", "healthz":
	default:
		return "other"
	}
	if len(segments) > 3 {
		return "other"
	}
	return "/" + strings.Join(segments, "/")
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(status int) {
	if !s.wroteHeader {
		s.status = status
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wroteHeader = true
	return s.ResponseWriter.Write(b)
}
