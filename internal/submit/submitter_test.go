package submit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/crpt/internal/config"
	"github.com/wesleyorama2/crpt/internal/gate"
	crpthttp "github.com/wesleyorama2/crpt/internal/http"
	"github.com/wesleyorama2/crpt/internal/registry"
)

func testDocument(inn string) *registry.Document {
	return &registry.Document{
		DocType:        registry.DocTypeIntroduceGoods,
		ParticipantINN: inn,
		Products: []registry.Product{
			{UITCode: "010460123456789021"},
		},
	}
}

type capturedRequest struct {
	method  string
	path    string
	headers http.Header
	body    map[string]interface{}
}

// registryServer answers with status and body, recording every request.
func registryServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32, chan capturedRequest) {
	t.Helper()
	var hits atomic.Int32
	seen := make(chan capturedRequest, 64)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		raw, _ := io.ReadAll(r.Body)
		var decoded map[string]interface{}
		_ = json.Unmarshal(raw, &decoded)
		seen <- capturedRequest{method: r.Method, path: r.URL.Path, headers: r.Header.Clone(), body: decoded}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)

	return server, &hits, seen
}

func newTestSubmitter(t *testing.T, baseURL string, g *gate.Gate, opts ...Option) *Submitter {
	t.Helper()
	if g == nil {
		var err error
		g, err = gate.New(100, time.Second)
		require.NoError(t, err)
	}
	client := crpthttp.NewClient(crpthttp.WithBaseURL(baseURL), crpthttp.WithGate(g))
	return New(client, opts...)
}

func TestSubmit_SendsDocument(t *testing.T) {
	server, hits, seen := registryServer(t, http.StatusOK, `{"value":"0c3f9a"}`)

	s := newTestSubmitter(t, server.URL, nil,
		WithToken("tok"),
		WithExtract(map[string]string{"docId": "$.value"}))

	result, err := s.Submit(context.Background(), testDocument("7701234567"), "c2lnbmF0dXJl")
	require.NoError(t, err)
	assert.EqualValues(t, 1, hits.Load())

	req := <-seen
	assert.Equal(t, "POST", req.method)
	assert.Equal(t, DefaultDocumentPath, req.path)
	assert.Equal(t, "Bearer tok", req.headers.Get("Authorization"))
	assert.Equal(t, "application/json", req.headers.Get("Content-Type"))
	assert.Equal(t, "c2lnbmF0dXJl", req.headers.Get(HeaderSignature))
	assert.Equal(t, result.RequestID, req.headers.Get(HeaderRequestID))
	_, err = uuid.Parse(result.RequestID)
	assert.NoError(t, err)

	assert.Equal(t, "LP_INTRODUCE_GOODS", req.body["doc_type"])
	assert.Equal(t, "7701234567", req.body["participant_inn"])
	assert.Contains(t, req.body, "importRequest")

	assert.True(t, result.OK())
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, map[string]string{"docId": "0c3f9a"}, result.Extracted)

	snap := s.Recorder().Snapshot()
	assert.EqualValues(t, 1, snap.Succeeded)
	assert.EqualValues(t, 1, snap.Latency.Count)
}

func TestSubmit_OptionalHeaders(t *testing.T) {
	server, _, seen := registryServer(t, http.StatusCreated, `{}`)
	s := newTestSubmitter(t, server.URL, nil, WithDocumentPath("/custom"))

	_, err := s.Submit(context.Background(), testDocument("7701234567"), "")
	require.NoError(t, err)

	req := <-seen
	assert.Equal(t, "/custom", req.path)
	assert.Empty(t, req.headers.Get("Authorization"))
	assert.Empty(t, req.headers.Get(HeaderSignature))
}

func TestSubmit_RequestHook(t *testing.T) {
	server, hits, _ := registryServer(t, http.StatusOK, `{}`)

	var seen []*crpthttp.Request
	s := newTestSubmitter(t, server.URL, nil,
		WithToken("tok"),
		WithRequestHook(func(req *crpthttp.Request) {
			assert.EqualValues(t, 0, hits.Load(), "hook runs before the request is sent")
			seen = append(seen, req)
		}))

	result, err := s.Submit(context.Background(), testDocument("7701234567"), "")
	require.NoError(t, err)

	require.Len(t, seen, 1)
	assert.Equal(t, "POST", seen[0].Method)
	assert.Equal(t, DefaultDocumentPath, seen[0].Path)
	assert.Equal(t, "Bearer tok", seen[0].Headers["Authorization"])
	assert.Equal(t, result.RequestID, seen[0].Headers[HeaderRequestID])

	// Documents that are never sent do not reach the hook.
	_, err = s.Submit(context.Background(), testDocument("x"), "")
	require.ErrorIs(t, err, ErrInvalidDocument)
	assert.Len(t, seen, 1)
}

func TestSubmit_InvalidDocument(t *testing.T) {
	server, hits, _ := registryServer(t, http.StatusOK, `{}`)
	s := newTestSubmitter(t, server.URL, nil)

	result, err := s.Submit(context.Background(), testDocument("12"), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidDocument)
	assert.Contains(t, result.Error, "participant_inn")
	assert.EqualValues(t, 0, hits.Load())

	_, err = s.Submit(context.Background(), nil, "")
	assert.ErrorIs(t, err, ErrInvalidDocument)

	assert.EqualValues(t, 2, s.Recorder().Snapshot().Rejected)
}

func TestSubmit_ValidationDisabled(t *testing.T) {
	server, hits, _ := registryServer(t, http.StatusOK, `{}`)
	s := newTestSubmitter(t, server.URL, nil, WithValidation(false))

	_, err := s.Submit(context.Background(), testDocument("12"), "")
	require.NoError(t, err)
	assert.EqualValues(t, 1, hits.Load())
}

func TestSubmit_StatusError(t *testing.T) {
	server, _, _ := registryServer(t, http.StatusBadRequest, `{"error_message":"bad inn"}`)
	s := newTestSubmitter(t, server.URL, nil)

	result, err := s.Submit(context.Background(), testDocument("7701234567"), "")
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.False(t, se.Temporary())
	assert.Contains(t, se.Error(), "bad inn")

	assert.False(t, result.OK())
	assert.Equal(t, http.StatusBadRequest, result.StatusCode)
	assert.Contains(t, result.Body, "bad inn")

	snap := s.Recorder().Snapshot()
	assert.EqualValues(t, 1, snap.Failed)
	assert.EqualValues(t, 1, snap.Latency.Count)
}

func TestSubmit_BreakerOpensOnServerErrors(t *testing.T) {
	server, hits, _ := registryServer(t, http.StatusServiceUnavailable, `down`)

	g, err := gate.New(100, time.Second)
	require.NoError(t, err)
	s := newTestSubmitter(t, server.URL, g,
		WithBreaker(BreakerSettings{MaxFailures: 2, OpenTimeout: time.Hour}))

	for i := 0; i < 2; i++ {
		_, err := s.Submit(context.Background(), testDocument("7701234567"), "")
		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.True(t, se.Temporary())
	}
	assert.Equal(t, "open", s.BreakerState())

	_, err = s.Submit(context.Background(), testDocument("7701234567"), "")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.EqualValues(t, 2, hits.Load())
	assert.EqualValues(t, 2, g.Stats().Admitted, "open circuit must not consume admissions")
	assert.EqualValues(t, 1, s.Recorder().Snapshot().Rejected)
}

func TestSubmit_BreakerIgnoresClientErrors(t *testing.T) {
	server, hits, _ := registryServer(t, http.StatusUnprocessableEntity, `{}`)
	s := newTestSubmitter(t, server.URL, nil,
		WithBreaker(BreakerSettings{MaxFailures: 2, OpenTimeout: time.Hour}))

	for i := 0; i < 4; i++ {
		_, err := s.Submit(context.Background(), testDocument("7701234567"), "")
		require.Error(t, err)
	}
	assert.EqualValues(t, 4, hits.Load())
	assert.Equal(t, "closed", s.BreakerState())
}

func TestSubmit_GateCanceled(t *testing.T) {
	server, hits, _ := registryServer(t, http.StatusOK, `{}`)

	g, err := gate.New(1, time.Hour)
	require.NoError(t, err)
	s := newTestSubmitter(t, server.URL, g,
		WithBreaker(BreakerSettings{MaxFailures: 1, OpenTimeout: time.Hour}))

	_, err = s.Submit(context.Background(), testDocument("7701234567"), "")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = s.Submit(ctx, testDocument("7701234567"), "")
	assert.ErrorIs(t, err, gate.ErrCanceled)
	assert.EqualValues(t, 1, hits.Load())
	assert.Equal(t, "closed", s.BreakerState(), "a caller giving up is not a registry failure")

	snap := s.Recorder().Snapshot()
	assert.EqualValues(t, 1, snap.Succeeded)
	assert.EqualValues(t, 1, snap.Rejected)
}

func TestSubmit_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	s := newTestSubmitter(t, url, nil)
	result, err := s.Submit(context.Background(), testDocument("7701234567"), "")
	require.Error(t, err)
	assert.Zero(t, result.StatusCode)
	assert.EqualValues(t, 1, s.Recorder().Snapshot().Failed)
}

func TestSubmitBatch_OrderAndIsolation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var doc map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&doc)
		inn, _ := doc["participant_inn"].(string)
		if inn == "7700000003" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fmt.Fprintf(w, `{"value":%q}`, inn)
	}))
	defer server.Close()

	s := newTestSubmitter(t, server.URL, nil, WithExtract(map[string]string{"docId": "$.value"}))

	var items []Item
	for i := 1; i <= 6; i++ {
		inn := fmt.Sprintf("770000000%d", i)
		items = append(items, Item{Name: inn, Document: testDocument(inn)})
	}

	results := s.SubmitBatch(context.Background(), items, 3)
	require.Len(t, results, len(items))

	for i, res := range results {
		assert.Equal(t, items[i].Name, res.Name)
		if res.Name == "7700000003" {
			assert.False(t, res.OK())
			assert.Equal(t, http.StatusBadRequest, res.StatusCode)
			continue
		}
		assert.True(t, res.OK(), res.Error)
		assert.Equal(t, res.Name, res.Extracted["docId"])
	}
}

func TestSubmitBatch_SharesGate(t *testing.T) {
	server, hits, _ := registryServer(t, http.StatusOK, `{}`)

	window := 100 * time.Millisecond
	g, err := gate.New(2, window)
	require.NoError(t, err)
	s := newTestSubmitter(t, server.URL, g)

	items := make([]Item, 6)
	for i := range items {
		items[i] = Item{Name: fmt.Sprint(i), Document: testDocument("7701234567")}
	}

	start := time.Now()
	results := s.SubmitBatch(context.Background(), items, 0)
	elapsed := time.Since(start)

	for _, res := range results {
		assert.True(t, res.OK(), res.Error)
	}
	assert.EqualValues(t, 6, hits.Load())
	assert.EqualValues(t, 6, g.Stats().Admitted)
	assert.GreaterOrEqual(t, elapsed, 2*window, "six admissions at two per window need two extra windows")
}

func TestFromConfig(t *testing.T) {
	server, _, seen := registryServer(t, http.StatusOK, `{"value":"x1"}`)

	cfg := config.Default()
	cfg.Registry.BaseURL = server.URL
	cfg.Registry.Token = "cfg-token"
	cfg.Registry.Headers = map[string]string{"X-Tenant": "acme"}
	cfg.RateLimit.Capacity = 3

	s, g, err := FromConfig(cfg, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, g.Capacity())
	assert.Equal(t, "closed", s.BreakerState())

	result, err := s.Submit(context.Background(), testDocument("7701234567"), "")
	require.NoError(t, err)
	assert.Equal(t, "x1", result.Extracted["docId"])

	req := <-seen
	assert.Equal(t, "Bearer cfg-token", req.headers.Get("Authorization"))
	assert.Equal(t, "acme", req.headers.Get("X-Tenant"))
	assert.Equal(t, "crpt", req.headers.Get("User-Agent"))

	cfg.RateLimit.Capacity = 0
	_, _, err = FromConfig(cfg, nil, nil)
	assert.ErrorIs(t, err, gate.ErrInvalidConfig)

	cfg.RateLimit.Capacity = 1
	cfg.Breaker.Enabled = false
	s, _, err = FromConfig(cfg, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "disabled", s.BreakerState())
}
