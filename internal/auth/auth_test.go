package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := Middleware(Config{Enabled: true, Token: "s3cret"})(ok)

	tests := []struct {
		name   string
		target string
		header string
		want   int
	}{
		{"exempt health", "/healthz", "", http.StatusNoContent},
		{"exempt page", "/", "", http.StatusNoContent},
		{"missing token", "/api/v1/iss/latest", "", http.StatusUnauthorized},
		{"wrong token", "/api/v1/iss/latest", "Bearer nope", http.StatusUnauthorized},
		{"wrong scheme", "/api/v1/iss/latest", "Basic s3cret", http.StatusUnauthorized},
		{"bare token", "/api/v1/iss/latest", "s3cret", http.StatusUnauthorized},
		{"valid header", "/api/v1/iss/latest", "Bearer s3cret", http.StatusNoContent},
		{"valid query", "/api/v1/stream?access_token=s3cret", "", http.StatusNoContent},
		{"header wins over query", "/api/v1/stream?access_token=s3cret", "Bearer nope", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestMiddlewareDisabled(t *testing.T) {
	h := Middleware(Config{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/iss/latest", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
}
