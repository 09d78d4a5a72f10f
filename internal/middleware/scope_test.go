package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/platerelay/platerelay/internal/auth"
	"github.com/platerelay/platerelay/internal/model"
)

func scopedRequest(t *testing.T, scopes []string) *http.Request {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plates", nil)
	if scopes == nil {
		return req
	}
	authCtx := &model.AuthContext{
		KeyID:     "key123",
		KeyPrefix: "abc123",
		Scopes:    scopes,
	}
	return req.WithContext(auth.ContextWithAuth(req.Context(), authCtx))
}

func TestRequireScope(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	testCases := []struct {
		name          string
		scopes        []string
		requiredScope string
		wantStatus    int
	}{
		{"read scope allows read", []string{model.ScopeRead}, model.ScopeRead, http.StatusOK},
		{"write scope allows write", []string{model.ScopeWrite}, model.ScopeWrite, http.StatusOK},
		{"send scope allows send", []string{model.ScopeSend}, model.ScopeSend, http.StatusOK},
		{"admin allows read", []string{model.ScopeAdmin}, model.ScopeRead, http.StatusOK},
		{"admin allows send", []string{model.ScopeAdmin}, model.ScopeSend, http.StatusOK},
		{"admin allows admin", []string{model.ScopeAdmin}, model.ScopeAdmin, http.StatusOK},
		{"multiple scopes work", []string{model.ScopeRead, model.ScopeWrite}, model.ScopeWrite, http.StatusOK},
		{"read cannot write", []string{model.ScopeRead}, model.ScopeWrite, http.StatusForbidden},
		{"read cannot admin", []string{model.ScopeRead}, model.ScopeAdmin, http.StatusForbidden},
		{"send cannot write", []string{model.ScopeSend}, model.ScopeWrite, http.StatusForbidden},
		{"write cannot admin", []string{model.ScopeWrite}, model.ScopeAdmin, http.StatusForbidden},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler := RequireScope(tc.requiredScope)(okHandler)

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, scopedRequest(t, tc.scopes))

			if rec.Code != tc.wantStatus {
				t.Errorf("expected status %d, got %d", tc.wantStatus, rec.Code)
			}
		})
	}
}

func TestRequireScope_NoAuthContext(t *testing.T) {
	handler := RequireScope(model.ScopeRead)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, scopedRequest(t, nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestConvenienceMiddleware_AdminPassesAll(t *testing.T) {
	testCases := []struct {
		name       string
		middleware func() func(http.Handler) http.Handler
	}{
		{"RequireRead", RequireRead},
		{"RequireWrite", RequireWrite},
		{"RequireSend", RequireSend},
		{"RequireAdmin", RequireAdmin},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler := tc.middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, scopedRequest(t, []string{model.ScopeAdmin}))

			if rec.Code != http.StatusOK {
				t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
			}
		})
	}
}
