package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(url string) *Client {
	return New(Config{
		URL:         url,
		Token:       "secret",
		MaxRetries:  2,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  2 * time.Millisecond,
	})
}

func TestPostJSON_DecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer token")
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		var in map[string]string
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["msg"]})
	}))
	defer srv.Close()

	var out map[string]string
	if err := newTestClient(srv.URL).PostJSON(context.Background(), map[string]string{"msg": "hi"}, &out); err != nil {
		t.Fatalf("post: %v", err)
	}
	if out["echo"] != "hi" {
		t.Errorf("unexpected response %v", out)
	}
}

func TestPostJSON_RetriesGatewayErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := newTestClient(srv.URL).PostJSON(context.Background(), struct{}{}, nil); err != nil {
		t.Fatalf("post: %v", err)
	}
	if hits.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", hits.Load())
	}
}

func TestPostJSON_DoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "bad payload", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).PostJSON(context.Background(), struct{}{}, nil)
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 status error, got %v", err)
	}
	if se.Body != "bad payload" {
		t.Errorf("unexpected body %q", se.Body)
	}
	if hits.Load() != 1 {
		t.Errorf("expected single attempt, got %d", hits.Load())
	}
}

func TestPostJSON_GivesUpAfterMaxRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).PostJSON(context.Background(), struct{}{}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if hits.Load() != 3 {
		t.Errorf("expected 1 attempt + 2 retries, got %d", hits.Load())
	}
}

func TestStatusError_Retryable(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusGatewayTimeout, true},
		{http.StatusInternalServerError, false},
		{http.StatusTooManyRequests, false},
		{http.StatusUnauthorized, false},
	}
	for _, tt := range tests {
		if got := (&StatusError{StatusCode: tt.code}).Retryable(); got != tt.want {
			t.Errorf("status %d: got %v, want %v", tt.code, got, tt.want)
		}
	}
}
