package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wesleyorama2/crpt/internal/gate"
)

func TestClient_Do(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("Expected method POST, got %s", r.Method)
		}
		if r.URL.Path != "/api/v3/lk/documents/create" {
			t.Errorf("Expected document path, got %s", r.URL.Path)
		}
		if r.Header.Get("User-Agent") != "crpt-test" {
			t.Errorf("Expected client header, got %s", r.Header.Get("User-Agent"))
		}
		if r.Header.Get("Signature") != "sig" {
			t.Errorf("Expected request header Signature: sig, got %s", r.Header.Get("Signature"))
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"doc_type":"LP_INTRODUCE_GOODS"}` {
			t.Errorf("Unexpected body %s", body)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"value":"42"}`))
	}))
	defer server.Close()

	client := NewClient(
		WithTimeout(5*time.Second),
		WithHeader("User-Agent", "crpt-test"),
		WithBaseURL(server.URL),
	)

	req := NewRequest("POST", "/api/v3/lk/documents/create").
		WithHeader("Signature", "sig").
		WithBody(map[string]string{"doc_type": "LP_INTRODUCE_GOODS"})

	resp, err := client.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("Error executing request: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if resp.BodyString() != `{"value":"42"}` {
		t.Errorf("Unexpected body %s", resp.BodyString())
	}
	if resp.GateWait != 0 {
		t.Errorf("Expected no gate wait without a gate, got %v", resp.GateWait)
	}
	if resp.Timing.TotalTime <= 0 {
		t.Errorf("Expected total time to be recorded")
	}
}

func TestClient_WithOptions(t *testing.T) {
	hc := &http.Client{}
	g, err := gate.New(1, time.Second)
	if err != nil {
		t.Fatalf("gate.New: %v", err)
	}

	client := NewClient(
		WithHTTPClient(hc),
		WithTimeout(10*time.Second),
		WithBaseURL("https://ismp.crpt.ru"),
		WithHeader("X-Test", "test-value"),
		WithGate(g),
		WithLogger(nil),
	)

	if client.httpClient != hc {
		t.Errorf("Expected custom http client")
	}
	if client.httpClient.Timeout != 10*time.Second {
		t.Errorf("Expected timeout 10s, got %v", client.httpClient.Timeout)
	}
	if client.baseURL != "https://ismp.crpt.ru" {
		t.Errorf("Unexpected base URL %s", client.baseURL)
	}
	if client.headers["X-Test"] != "test-value" {
		t.Errorf("Expected header X-Test: test-value, got %s", client.headers["X-Test"])
	}
	if client.gate == nil {
		t.Errorf("Expected gate to be set")
	}
	if client.logger == nil {
		t.Errorf("Nil logger option should keep the default")
	}
}

func TestClient_DoWaitsForGate(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	window := 150 * time.Millisecond
	g, err := gate.New(1, window)
	if err != nil {
		t.Fatalf("gate.New: %v", err)
	}
	client := NewClient(WithBaseURL(server.URL), WithGate(g))

	first, err := client.Do(context.Background(), NewRequest("GET", "/"))
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	second, err := client.Do(context.Background(), NewRequest("GET", "/"))
	if err != nil {
		t.Fatalf("second request: %v", err)
	}

	if hits.Load() != 2 {
		t.Errorf("Expected 2 requests, got %d", hits.Load())
	}
	if first.GateWait > window/2 {
		t.Errorf("First request should be admitted immediately, waited %v", first.GateWait)
	}
	if second.GateWait < window-first.Timing.TotalTime-10*time.Millisecond {
		t.Errorf("Second request should wait for the window, waited %v", second.GateWait)
	}
}

func TestClient_DoNotAdmitted(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	g, err := gate.New(1, time.Hour)
	if err != nil {
		t.Fatalf("gate.New: %v", err)
	}
	client := NewClient(WithBaseURL(server.URL), WithGate(g))

	if _, err := client.Do(context.Background(), NewRequest("GET", "/")); err != nil {
		t.Fatalf("first request: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err = client.Do(ctx, NewRequest("GET", "/"))
	if !errors.Is(err, gate.ErrCanceled) {
		t.Fatalf("Expected gate.ErrCanceled, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline cause, got %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("Rejected request must not be sent, server saw %d", hits.Load())
	}
}

func TestClient_DoTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(WithBaseURL(url), WithTimeout(time.Second))
	if _, err := client.Do(context.Background(), NewRequest("GET", "/")); err == nil {
		t.Errorf("Expected error from closed server")
	}
}
