package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/otherjamesbrown/mfa-auth-service/internal/httpapi"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Options configure the HTTP server instance.
type Options struct {
	Port           int
	Logger         *zap.Logger
	ServiceName    string
	AllowedOrigins []string
	// Debug exposes /debug/routes.
	Debug          bool
	Readiness      func(context.Context) error
	RegisterRoutes func(chi.Router)
}

// New constructs an http.Server pre-configured with health, readiness and metrics routes.
func New(opts Options) *http.Server {
	if opts.Readiness == nil {
		opts.Readiness = func(context.Context) error { return nil }
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	router := chi.NewRouter()
	cors := newCORSPolicy(opts.AllowedOrigins)

	// CORS must run first so preflight requests never reach route matching.
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if r.Method == http.MethodOptions {
				if cors.allowed(origin) {
					cors.writePreflight(w, origin)
					opts.Logger.Debug("CORS preflight request handled",
						zap.String("path", r.URL.Path),
						zap.String("origin", origin))
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if cors.allowed(origin) {
				cors.writeSimple(w, origin)
			}
			next.ServeHTTP(w, r)
		})
	})

	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		opts.Logger.Warn("method not allowed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())))
		httpapi.WriteJSON(w, http.StatusMethodNotAllowed, httpapi.ErrorResponse{
			Message: "method not allowed",
			Code:    "METHOD_NOT_ALLOWED",
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		opts.Logger.Warn("route not found",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())))
		httpapi.WriteJSON(w, http.StatusNotFound, httpapi.ErrorResponse{
			Message: "route not found",
			Code:    "ROUTE_NOT_FOUND",
		})
	})

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := middleware.GetReqID(r.Context())

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.String("request_id", requestID),
			}
			if ua := r.Header.Get("User-Agent"); ua != "" {
				fields = append(fields, zap.String("user_agent", ua))
			}
			if r.Header.Get("Authorization") != "" {
				fields = append(fields, zap.Bool("has_auth", true))
			}
			opts.Logger.Debug("incoming request", fields...)

			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(ww, r)

			completed := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.statusCode),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", requestID),
			}
			switch {
			case ww.statusCode >= http.StatusInternalServerError:
				opts.Logger.Error("request completed", completed...)
			case ww.statusCode >= http.StatusBadRequest:
				opts.Logger.Warn("request completed", completed...)
			default:
				opts.Logger.Info("request completed", completed...)
			}
		})
	})

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpapi.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": opts.ServiceName})
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := opts.Readiness(ctx); err != nil {
			opts.Logger.Warn("readiness check failed", zap.Error(err))
			httpapi.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httpapi.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	router.Get("/metrics", promhttp.Handler().ServeHTTP)

	if opts.Debug {
		router.Get("/debug/routes", func(w http.ResponseWriter, r *http.Request) {
			routes := []map[string]string{}
			walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
				routes = append(routes, map[string]string{"method": method, "route": route})
				return nil
			}
			if err := chi.Walk(router, walkFunc); err != nil {
				opts.Logger.Error("failed to walk routes", zap.Error(err))
				http.Error(w, "failed to list routes", http.StatusInternalServerError)
				return
			}
			httpapi.WriteJSON(w, http.StatusOK, map[string]any{"routes": routes, "count": len(routes)})
		})
	}

	if opts.RegisterRoutes != nil {
		opts.RegisterRoutes(router)
	}

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// corsPolicy answers cross-origin requests for a configured origin list. A
// single "*" entry allows any origin.
type corsPolicy struct {
	any     bool
	origins map[string]struct{}
}

func newCORSPolicy(origins []string) corsPolicy {
	p := corsPolicy{origins: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if o == "*" {
			p.any = true
			continue
		}
		p.origins[strings.TrimRight(o, "/")] = struct{}{}
	}
	return p
}

func (p corsPolicy) allowed(origin string) bool {
	if origin == "" {
		return false
	}
	if p.any {
		return true
	}
	_, ok := p.origins[origin]
	return ok
}

func (p corsPolicy) writeSimple(w http.ResponseWriter, origin string) {
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Add("Vary", "Origin")
}

func (p corsPolicy) writePreflight(w http.ResponseWriter, origin string) {
	p.writeSimple(w, origin)
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	w.Header().Set("Access-Control-Max-Age", "3600")
}
