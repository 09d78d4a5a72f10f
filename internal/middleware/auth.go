package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/platerelay/platerelay/internal/auth"
	"github.com/platerelay/platerelay/internal/cache"
	"github.com/platerelay/platerelay/internal/model"
	"github.com/platerelay/platerelay/internal/repository"
)

// minAuthDuration pads every auth outcome to the same floor so response
// timing does not reveal whether a key prefix exists.
const minAuthDuration = 200 * time.Millisecond

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger     *slog.Logger
	Repository *repository.Repository
	Cache      *cache.Cache
}

// Auth authenticates API requests. The presented access key is checked
// against the Redis auth cache first, then verified against the hashed
// candidates sharing its prefix. On success the auth context rides the
// request context for the scope middleware.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()

			defer func() {
				if elapsed := time.Since(startTime); elapsed < minAuthDuration {
					time.Sleep(minAuthDuration - elapsed)
				}
			}()

			reject := func(reason string) {
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", reason),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w)
			}

			key := extractAccessKey(r)
			if key == "" {
				reject("missing_key")
				return
			}

			parsed, err := auth.ParseAccessKey(key)
			if err != nil {
				reject("invalid_format")
				return
			}

			cacheKey := auth.QuickHash(key)
			if authCtx, _ := cfg.Cache.GetAuthContext(r.Context(), cacheKey); authCtx != nil {
				logAuthSuccess(cfg.Logger, r, authCtx, true)
				next.ServeHTTP(w, r.WithContext(auth.ContextWithAuth(r.Context(), authCtx)))
				return
			}

			keys, err := cfg.Repository.GetAccessKeysByPrefix(r.Context(), parsed.Prefix)
			if err != nil {
				cfg.Logger.Error("database error during auth",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w)
				return
			}

			// Prefixes are only 6 hex chars, so collisions are possible
			// and every candidate must be checked.
			var matchedKey *model.AccessKey
			for _, k := range keys {
				if match, err := auth.VerifySecret(key, k.KeyHash); err == nil && match {
					matchedKey = k
					break
				}
			}
			if matchedKey == nil {
				reject("invalid_key")
				return
			}

			authCtx := &model.AuthContext{
				KeyID:     matchedKey.ID,
				KeyPrefix: matchedKey.KeyPrefix,
				Scopes:    matchedKey.Scopes,
			}

			_ = cfg.Cache.SetAuthContext(r.Context(), cacheKey, authCtx)

			// Detached from the request context so the write survives
			// the response being sent.
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = cfg.Repository.UpdateAccessKeyLastUsed(ctx, matchedKey.ID)
			}()

			logAuthSuccess(cfg.Logger, r, authCtx, false)
			next.ServeHTTP(w, r.WithContext(auth.ContextWithAuth(r.Context(), authCtx)))
		})
	}
}

func logAuthSuccess(logger *slog.Logger, r *http.Request, authCtx *model.AuthContext, cacheHit bool) {
	logger.Info("authentication successful",
		slog.String("key_id", authCtx.KeyID),
		slog.String("key_prefix", authCtx.KeyPrefix),
		slog.String("ip", r.RemoteAddr),
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.Bool("cache_hit", cacheHit),
		slog.String("request_id", GetRequestID(r.Context())),
	)
}

// extractAccessKey reads the key from "Authorization: Bearer <key>",
// falling back to the X-Access-Key header.
func extractAccessKey(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return r.Header.Get("X-Access-Key")
}

// writeAuthError responds 401 with a single message for every auth
// failure mode so callers cannot enumerate keys.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"Invalid or missing access key"}}`))
}
