package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/ulule/limiter/v3"

	"github.com/warp/payroll-engine/generic"
)

type ctxKey int

const actorKey ctxKey = iota

// Claims is the bearer token payload. Subject is the acting user.
type Claims struct {
	Organization string `json:"org"`
	Role         string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for a user of an organization.
func IssueToken(secret string, org generic.OrganizationID, userID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Organization: string(org),
		Role:         role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Authenticate resolves the acting user for every request.
//
// With a secret, a valid bearer token is required and its claims become
// the actor. Without one (local development and demos) the actor is read
// from the X-Actor-ID, X-Actor-Type and X-Organization-ID headers.
func Authenticate(secret string, defaultOrg generic.OrganizationID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var actor generic.Actor
			if secret == "" {
				actor = headerActor(r, defaultOrg)
			} else {
				var err error
				if actor, err = tokenActor(r, secret); err != nil {
					loggerFrom(r.Context()).Warn("rejected token", "error", err)
					writeError(w, http.StatusUnauthorized, err.Error(), nil)
					return
				}
			}
			ctx := context.WithValue(r.Context(), actorKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func headerActor(r *http.Request, defaultOrg generic.OrganizationID) generic.Actor {
	actor := generic.Actor{
		OrganizationID: generic.OrganizationID(r.Header.Get("X-Organization-ID")),
		UserID:         r.Header.Get("X-Actor-ID"),
		Type:           r.Header.Get("X-Actor-Type"),
	}
	if actor.OrganizationID == "" {
		actor.OrganizationID = defaultOrg
	}
	if actor.UserID == "" {
		actor.UserID = "anonymous"
	}
	if actor.Type == "" {
		actor.Type = "user"
	}
	return actor
}

func tokenActor(r *http.Request, secret string) (generic.Actor, error) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
		return generic.Actor{}, errors.New("authorization header must be Bearer {token}")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return generic.Actor{}, errors.New("token has expired")
	case err != nil:
		return generic.Actor{}, errors.New("invalid token")
	}
	if claims.Subject == "" || claims.Organization == "" {
		return generic.Actor{}, errors.New("token is missing subject or organization")
	}

	actorType := claims.Role
	if actorType == "" {
		actorType = "user"
	}
	return generic.Actor{
		OrganizationID: generic.OrganizationID(claims.Organization),
		UserID:         claims.Subject,
		Type:           actorType,
	}, nil
}

// actorFrom returns the actor set by Authenticate.
func actorFrom(ctx context.Context) generic.Actor {
	actor, _ := ctx.Value(actorKey).(generic.Actor)
	return actor
}

// =============================================================================
// RATE LIMITING
// =============================================================================

// RateLimit rejects clients that exceed the limiter's rate, keyed by IP.
func RateLimit(l *limiter.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}
			lctx, err := l.Get(r.Context(), ip)
			if err != nil {
				loggerFrom(r.Context()).Error("rate limit check failed", "ip", ip, "error", err)
				writeError(w, http.StatusInternalServerError, "rate limit check failed", nil)
				return
			}
			if lctx.Reached {
				loggerFrom(r.Context()).Warn("rate limit exceeded", "ip", ip, "limit", lctx.Limit)
				writeError(w, http.StatusTooManyRequests, "too many requests, try again later", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// =============================================================================
// LOGGING
// =============================================================================

type loggerKeyT struct{}

// RequestLogger logs one line per request and puts a request-scoped
// logger in the context.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLogger := logger.With("request_id", middleware.GetReqID(r.Context()))
			ctx := context.WithValue(r.Context(), loggerKeyT{}, reqLogger)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}

func loggerFrom(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKeyT{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
