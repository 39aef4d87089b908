package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// newTestS3 creates an S3 store backed by a mock HTTP server.
func newTestS3(t *testing.T, handler http.Handler) *S3 {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := s3.New(s3.Options{
		BaseEndpoint: aws.String(server.URL),
		Region:       "us-east-1",
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider("test-key", "test-secret", ""),
	})

	return &S3{
		client: client,
		bucket: "test-bucket",
		prefix: "vatdesk/",
	}
}

func TestS3_Put_Success(t *testing.T) {
	var capturedPath, capturedContentType, capturedBody string

	store := newTestS3(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			capturedPath = r.URL.Path
			capturedContentType = r.Header.Get("Content-Type")
			body, _ := io.ReadAll(r.Body)
			capturedBody = string(body)
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))

	loc, err := store.Put(context.Background(), "analyses/run.json", strings.NewReader(`{"runId":"x"}`), "application/json")
	if err != nil {
		t.Fatalf("Put: unexpected error: %v", err)
	}

	if loc != "s3://test-bucket/vatdesk/analyses/run.json" {
		t.Errorf("Put location: got %q", loc)
	}
	if capturedPath != "/test-bucket/vatdesk/analyses/run.json" {
		t.Errorf("request path: got %q", capturedPath)
	}
	if capturedContentType != "application/json" {
		t.Errorf("Content-Type: got %q, want %q", capturedContentType, "application/json")
	}
	if !strings.Contains(capturedBody, `{"runId":"x"}`) {
		t.Errorf("body: got %q", capturedBody)
	}
}

func TestS3_Put_Error(t *testing.T) {
	store := newTestS3(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`<?xml version="1.0"?><Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`))
	}))

	_, err := store.Put(context.Background(), "forbidden.json", strings.NewReader("data"), "application/json")
	if err == nil {
		t.Fatal("expected error for S3 403, got nil")
	}
	if !strings.Contains(err.Error(), "putting object") {
		t.Errorf("error should wrap with context, got: %v", err)
	}
}

func TestS3_Get_Success(t *testing.T) {
	store := newTestS3(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/test-bucket/vatdesk/analyses/run.json" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))

	rc, err := store.Get(context.Background(), "analyses/run.json")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer rc.Close()

	data, _ := io.ReadAll(rc)
	if string(data) != `{"ok":true}` {
		t.Errorf("Get body: got %q", string(data))
	}
}

func TestS3_Get_NoSuchKey(t *testing.T) {
	store := newTestS3(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`<?xml version="1.0"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`))
	}))

	_, err := store.Get(context.Background(), "missing.json")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get missing: got %v, want ErrNotFound", err)
	}
}

func TestS3_Get_Error(t *testing.T) {
	store := newTestS3(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`<?xml version="1.0"?><Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`))
	}))

	_, err := store.Get(context.Background(), "secret.json")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected a non-NotFound error, got %v", err)
	}
	if !strings.Contains(err.Error(), "getting object") {
		t.Errorf("error should wrap with context, got: %v", err)
	}
}

func TestS3_Delete_Success(t *testing.T) {
	var capturedMethod, capturedPath string

	store := newTestS3(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedMethod = r.Method
		capturedPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := store.Delete(context.Background(), "analyses/old.json"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if capturedMethod != http.MethodDelete {
		t.Errorf("method: got %q, want DELETE", capturedMethod)
	}
	if capturedPath != "/test-bucket/vatdesk/analyses/old.json" {
		t.Errorf("path: got %q", capturedPath)
	}
}

func TestS3_Delete_Error(t *testing.T) {
	store := newTestS3(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`<?xml version="1.0"?><Error><Code>InternalError</Code><Message>Server Error</Message></Error>`))
	}))

	err := store.Delete(context.Background(), "error-key.json")
	if err == nil {
		t.Fatal("expected error for S3 500, got nil")
	}
	if !strings.Contains(err.Error(), "deleting object") {
		t.Errorf("error should wrap with context, got: %v", err)
	}
}

func TestNewS3_Success(t *testing.T) {
	cfg := S3Config{
		Endpoint:       "https://s3.example.com",
		Region:         "eu-west-1",
		AccessKey:      "AKIA...",
		SecretKey:      "secret",
		ForcePathStyle: true,
		Bucket:         "my-bucket",
		Prefix:         "/reports/",
	}

	s, err := NewS3(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewS3: %v", err)
	}

	if s.bucket != "my-bucket" {
		t.Errorf("bucket: got %q, want %q", s.bucket, "my-bucket")
	}
	if s.prefix != "reports/" {
		t.Errorf("prefix: got %q, want %q", s.prefix, "reports/")
	}
	if s.client == nil {
		t.Error("client should not be nil")
	}
}

func TestS3_Key(t *testing.T) {
	tests := []struct {
		prefix, key, want string
	}{
		{"", "run.json", "run.json"},
		{"vatdesk/", "run.json", "vatdesk/run.json"},
		{"vatdesk/", "/analyses/run.json", "vatdesk/analyses/run.json"},
	}
	for _, tt := range tests {
		s := &S3{prefix: tt.prefix}
		if got := s.key(tt.key); got != tt.want {
			t.Errorf("key(%q) with prefix %q = %q, want %q", tt.key, tt.prefix, got, tt.want)
		}
	}
}
