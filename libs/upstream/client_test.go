package upstream

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

func TestExecute_FallsBackOn5xx(t *testing.T) {
	var primaryCalls, fallbackCalls int32

	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&primaryCalls, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer primary.Close()

	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&fallbackCalls, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"id":"bk-1"}}`))
	}))
	defer fallback.Close()

	client := NewClient(Config{Primary: primary.URL, Fallback: fallback.URL})
	res, err := client.Execute(context.Background(), "/api/v1/bookings", Options{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := atomic.LoadInt32(&fallbackCalls); got != 1 {
		t.Fatalf("expected exactly 1 fallback call, got %d", got)
	}
	if got := atomic.LoadInt32(&primaryCalls); got != 1 {
		t.Fatalf("expected exactly 1 primary call, got %d", got)
	}
	if !res.Success || res.Target != fallback.URL {
		t.Fatalf("expected success from fallback, got %+v", res)
	}

	var payload struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(res.Data, &payload); err != nil || payload.ID != "bk-1" {
		t.Fatalf("unexpected data %s (err %v)", res.Data, err)
	}
}

func TestExecute_NoFallbackOn4xx(t *testing.T) {
	var fallbackCalls int32

	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"error":"NOT_FOUND","message":"no such booking"}`))
	}))
	defer primary.Close()

	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&fallbackCalls, 1)
	}))
	defer fallback.Close()

	client := NewClient(Config{Primary: primary.URL, Fallback: fallback.URL})
	res, err := client.Execute(context.Background(), "/api/v1/bookings/get", Options{})
	if !errors.Is(err, ErrApplication) {
		t.Fatalf("expected ErrApplication, got %v", err)
	}
	if atomic.LoadInt32(&fallbackCalls) != 0 {
		t.Fatal("fallback must not be called on a 4xx response")
	}
	if res == nil || res.StatusCode != http.StatusNotFound || res.ErrorCode != "NOT_FOUND" {
		t.Fatalf("expected normalized 404 result, got %+v", res)
	}
}

func TestExecute_FallsBackOnUnparsableBody(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>maintenance page</html>"))
	}))
	defer primary.Close()

	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"vendors":[]}`))
	}))
	defer fallback.Close()

	client := NewClient(Config{Primary: primary.URL, Fallback: fallback.URL})
	res, err := client.Execute(context.Background(), "/api/v1/public/vendors", Options{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if string(res.Data) != `{"vendors":[]}` {
		t.Fatalf("expected fallback data, got %s", res.Data)
	}
}

func TestExecute_SuccessFalseTriggersFallback(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"message":"replica catching up"}`))
	}))
	defer primary.Close()

	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"ok":true}}`))
	}))
	defer fallback.Close()

	client := NewClient(Config{Primary: primary.URL, Fallback: fallback.URL})
	res, err := client.Execute(context.Background(), "/api/v1/bookings", Options{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !res.Success || res.Target != fallback.URL {
		t.Fatalf("expected fallback success, got %+v", res)
	}
}

func TestExecute_NetworkErrorBothTargets(t *testing.T) {
	// Closed servers so both dials fail.
	primary := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	primaryURL := primary.URL
	primary.Close()
	fallback := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	fallbackURL := fallback.URL
	fallback.Close()

	client := NewClient(Config{Primary: primaryURL, Fallback: fallbackURL})
	_, err := client.Execute(context.Background(), "/api/v1/bookings", Options{})
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
}

func TestExecute_CallerCancellationPropagates(t *testing.T) {
	var fallbackCalls int32

	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer primary.Close()

	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&fallbackCalls, 1)
	}))
	defer fallback.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	client := NewClient(Config{Primary: primary.URL, Fallback: fallback.URL})
	_, err := client.Execute(ctx, "/api/v1/bookings", Options{})
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if atomic.LoadInt32(&fallbackCalls) != 0 {
		t.Fatal("caller cancellation must not trigger the fallback")
	}
}

func TestExecute_AuthAttachment(t *testing.T) {
	var gotAuth, gotAPIKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAPIKey = r.Header.Get("X-Api-Key")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	tokens := FirstOf(
		TokenFunc(func() string { return "" }),
		TokenFunc(func() string { return "tok-2" }),
	)
	client := NewClient(Config{Primary: srv.URL, Tokens: tokens, APIKey: "anon-key"})
	if _, err := client.Execute(context.Background(), "/", Options{}); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if gotAuth != "Bearer tok-2" {
		t.Fatalf("expected probed bearer token, got %q", gotAuth)
	}
	if gotAPIKey != "" {
		t.Fatal("api key must not be attached when a bearer token resolves")
	}

	anon := NewClient(Config{Primary: srv.URL, APIKey: "anon-key"})
	if _, err := anon.Execute(context.Background(), "/", Options{}); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if gotAuth != "" || gotAPIKey != "anon-key" {
		t.Fatalf("expected api key fallback, got auth=%q key=%q", gotAuth, gotAPIKey)
	}
}

func TestNormalize_EnvelopeAndRawShapes(t *testing.T) {
	res, err := normalize(http.StatusOK, []byte(`{"data":{"total":15000},"message":"ok"}`))
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if string(res.Data) != `{"total":15000}` || res.Message != "ok" {
		t.Fatalf("unexpected envelope result %+v", res)
	}

	res, err = normalize(http.StatusOK, []byte(`{"id":"bk-1","status":"PENDING"}`))
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if string(res.Data) != `{"id":"bk-1","status":"PENDING"}` {
		t.Fatalf("raw payload should pass through, got %s", res.Data)
	}

	if _, err := normalize(http.StatusOK, []byte("not json")); !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}
