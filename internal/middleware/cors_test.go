package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStack_CORSOriginFromEnv(t *testing.T) {
	h, _, _ := newStack(t, map[string]string{"CORS_ORIGIN": "https://books.example.eu"})

	rr := upload(h, "192.0.2.10:5100", "")

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://books.example.eu" {
		t.Errorf("expected configured origin, got %q", got)
	}
	if got := rr.Header().Get("Vary"); got != "Origin" {
		t.Errorf("expected Vary: Origin for a fixed origin, got %q", got)
	}
}

func TestStack_CORSDefaultsToWildcard(t *testing.T) {
	h, _, _ := newStack(t, map[string]string{"CORS_ORIGIN": ""})

	rr := upload(h, "192.0.2.10:5100", "")

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected wildcard origin when CORS_ORIGIN is unset, got %q", got)
	}
	if got := rr.Header().Values("Vary"); len(got) != 0 {
		t.Errorf("expected no Vary header for wildcard origin, got %v", got)
	}
}

func TestStack_UploadPreflight(t *testing.T) {
	h, api, _ := newStack(t, map[string]string{"CORS_ORIGIN": "https://books.example.eu"})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/analyses", nil)
	req.Header.Set("Origin", "https://books.example.eu")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rr.Code)
	}
	if n := api.uploads.Load(); n != 0 {
		t.Errorf("expected preflight to stop before the upload handler, got %d calls", n)
	}
	methods := rr.Header().Get("Access-Control-Allow-Methods")
	for _, m := range []string{http.MethodPost, http.MethodGet, http.MethodDelete} {
		if !strings.Contains(methods, m) {
			t.Errorf("expected %s in allowed methods %q", m, methods)
		}
	}
	if got := rr.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, "Content-Type") {
		t.Errorf("expected Content-Type in allowed headers, got %q", got)
	}
	if got := rr.Header().Get("Access-Control-Max-Age"); got != "86400" {
		t.Errorf("expected max age 86400, got %q", got)
	}
}
