package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type contextKey string

const (
	ProjectKey contextKey = "project"
	APIKeyKey  contextKey = "api_key"
)

// isPublic paths skip auth and rate limiting
func isPublic(path string) bool {
	return path == "/metrics" || path == "/health" || strings.HasPrefix(path, "/health/")
}

// APIKeyAuth validates API key from Authorization header. validKeys maps
// project -> key; an empty map disables auth.
func APIKeyAuth(validKeys map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(validKeys) == 0 || isPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				http.Error(w, "missing Authorization header", http.StatusUnauthorized)
				return
			}

			// Support both "Bearer <key>" and "<key>" formats
			apiKey := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if apiKey == "" {
				http.Error(w, "invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			// constant-time comparison
			var project string
			for p, key := range validKeys {
				if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
					project = p
					break
				}
			}
			if project == "" {
				http.Error(w, "invalid API key", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ProjectKey, project)
			ctx = context.WithValue(ctx, APIKeyKey, apiKey)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetProjectFromContext extracts the authenticated project from context
func GetProjectFromContext(ctx context.Context) string {
	if project, ok := ctx.Value(ProjectKey).(string); ok {
		return project
	}
	return ""
}

// RequireProject validates the {project} URL parameter and, when the request
// is authenticated, makes sure it matches the key's project.
// Must be mounted inside the route that declares {project}.
func RequireProject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		urlProject := chi.URLParam(r, "project")
		if err := ValidateProjectID(urlProject); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if authProject := GetProjectFromContext(r.Context()); authProject != "" && authProject != urlProject {
			http.Error(w, "api key not valid for this project", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
