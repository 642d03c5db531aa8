// internal/httpapi/middleware.go
package httpapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"

	"grant-backend/internal/common/config"
	apperrors "grant-backend/internal/common/errors"
	"grant-backend/internal/common/logger"
	"grant-backend/internal/common/metrics"
	"grant-backend/internal/common/observability"
	"grant-backend/internal/common/ratelimit"
)

type contextKey string

const actorKey contextKey = "actor"

// Claims is the JWT payload the API accepts.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Actor identifies the authenticated caller.
type Actor struct {
	ID   string
	Role string
}

// ActorFromContext returns the authenticated actor, if any.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey).(Actor)
	return actor, ok
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// requestMetrics counts requests per route, method and status, and feeds
// the OTel pipeline when one is attached.
func requestMetrics(obs *observability.Observability) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)

			route := r.URL.Path
			if current := mux.CurrentRoute(r); current != nil {
				if template, err := current.GetPathTemplate(); err == nil {
					route = template
				}
			}
			status := strconv.Itoa(recorder.status)
			metrics.HTTPRequestsTotal.WithLabelValues(route, r.Method, status).Inc()
			if obs != nil {
				obs.RecordRequest(r.Context(), route, status)
				obs.RecordRequestDuration(r.Context(), time.Since(started), route)
			}
		})
	}
}

// requireAdmin validates the bearer token and demands the ADMIN role.
func requireAdmin(cfg config.AuthConfig, log logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeError(w, apperrors.NewUnauthorizedError("missing bearer token"))
				return
			}
			tokenString := strings.TrimPrefix(header, "Bearer ")

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(cfg.JWTSecret), nil
			}, jwt.WithIssuer(cfg.Issuer))
			if err != nil || !token.Valid {
				log.Warn("token rejected", map[string]interface{}{"error": fmt.Sprint(err)})
				writeError(w, apperrors.NewUnauthorizedError("invalid token"))
				return
			}

			if claims.Role != "ADMIN" {
				writeError(w, apperrors.NewForbiddenError("admin role required"))
				return
			}

			actor := Actor{ID: claims.Subject, Role: claims.Role}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey, actor)))
		})
	}
}

// rateLimit throttles per client IP with a fixed window. Limiter
// failures fail open so a Redis outage never takes the API down.
func rateLimit(limiter ratelimit.Limiter, cfg config.RateLimitConfig, log logger.Logger) mux.MiddlewareFunc {
	window := time.Duration(cfg.WindowMs) * time.Millisecond
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			key := clientIP(r)
			allowed, err := limiter.Allow(r.Context(), key, window, cfg.MaxRequests)
			if err != nil {
				log.WithError(err).Warn("rate limiter unavailable", nil)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				writeError(w, apperrors.NewRateLimitedError("request rate exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
