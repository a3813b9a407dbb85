package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/skillmatch/internal/common"
	"github.com/ternarybob/skillmatch/internal/interfaces"
)

type ctxKey string

const (
	ctxUserID  ctxKey = "uid"
	ctxSubject ctxKey = "sub"
)

// Middleware verifies the bearer token, resolves the external subject to an
// internal user (creating it on first sight) and injects both into the
// request context. With auth disabled every request runs as the configured
// dev subject; no token is inspected.
func Middleware(cfg common.AuthConfig, users interfaces.UserStorage, logger arbor.ILogger) func(http.Handler) http.Handler {
	if cfg.Disabled {
		logger.Warn().Str("subject", cfg.DevSubject).Msg("Authentication disabled, all requests run as the dev subject")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var subject, email string

			if cfg.Disabled {
				subject = cfg.DevSubject
			} else {
				token := bearerToken(r)
				if token == "" {
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					return
				}

				claims := jwt.MapClaims{}
				parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
					if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
						return nil, jwt.ErrSignatureInvalid
					}
					return []byte(cfg.HS256Secret), nil
				}, parseOptions(cfg)...)
				if err != nil || !parsed.Valid {
					logger.Warn().Err(err).Msg("Token validation failed")
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					return
				}

				subject, _ = claims["sub"].(string)
				email, _ = claims["email"].(string)
			}

			if subject == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			user, err := users.EnsureUser(r.Context(), subject, email)
			if err != nil {
				logger.Error().Err(err).Str("subject", subject).Msg("Failed to resolve user")
				http.Error(w, "server error", http.StatusInternalServerError)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), user.ID, subject)))
		})
	}
}

func parseOptions(cfg common.AuthConfig) []jwt.ParserOption {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	if cfg.IssuerBaseURL != "" {
		opts = append(opts, jwt.WithIssuer(cfg.IssuerBaseURL))
	}
	return opts
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return h[7:]
	}
	return ""
}

// WithIdentity returns a context carrying the resolved identity
func WithIdentity(ctx context.Context, userID, subject string) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, userID)
	return context.WithValue(ctx, ctxSubject, subject)
}

// UserID extracts the authenticated internal user id from request context
func UserID(ctx context.Context) string {
	if s, ok := ctx.Value(ctxUserID).(string); ok {
		return s
	}
	return ""
}

// Subject extracts the external subject from request context
func Subject(ctx context.Context) string {
	if s, ok := ctx.Value(ctxSubject).(string); ok {
		return s
	}
	return ""
}
