// Package submit sends registry documents through the admission gate.
//
// A Submitter owns one HTTP client whose sends are admitted by a shared
// gate, so every document submitted through it, from any goroutine, counts
// against the same rate limit. An optional circuit breaker stops sending
// after repeated registry failures.
package submit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wesleyorama2/crpt/internal/gate"
	crpthttp "github.com/wesleyorama2/crpt/internal/http"
	"github.com/wesleyorama2/crpt/internal/metrics"
	"github.com/wesleyorama2/crpt/internal/registry"
)

// DefaultDocumentPath is the registry endpoint that creates documents.
const DefaultDocumentPath = "/api/v3/lk/documents/create"

// Header names sent with every submission.
const (
	HeaderRequestID = "X-Request-ID"
	HeaderSignature = "Signature"
)

// Item is one document in a batch.
type Item struct {
	// Name identifies the item in results, usually the source file
	Name      string
	Document  *registry.Document
	Signature string
}

// Result describes the outcome of one submission.
type Result struct {
	Name       string            `json:"name,omitempty" yaml:"name,omitempty"`
	RequestID  string            `json:"requestId,omitempty" yaml:"requestId,omitempty"`
	StatusCode int               `json:"statusCode,omitempty" yaml:"statusCode,omitempty"`
	Body       string            `json:"body,omitempty" yaml:"body,omitempty"`
	Extracted  map[string]string `json:"extracted,omitempty" yaml:"extracted,omitempty"`
	GateWait   time.Duration     `json:"gateWait" yaml:"gateWait"`
	Latency    time.Duration     `json:"latency" yaml:"latency"`
	Error      string            `json:"error,omitempty" yaml:"error,omitempty"`

	// Err is the failure, if any. Error holds its message for encoding.
	Err error `json:"-" yaml:"-"`
}

// OK reports whether the document was accepted.
func (r *Result) OK() bool {
	return r.Err == nil
}

// BreakerSettings configures the circuit breaker.
type BreakerSettings struct {
	// MaxFailures is the number of consecutive failures that opens the circuit
	MaxFailures int

	// OpenTimeout is how long the circuit stays open before a trial call
	OpenTimeout time.Duration
}

// Submitter sends documents to the registry.
type Submitter struct {
	client   *crpthttp.Client
	path     string
	token    string
	validate bool
	extract  map[string]string
	breaker  *gobreaker.CircuitBreaker
	recorder *metrics.Recorder
	logger   *zap.Logger
	newID    func() string
	onSend   func(*crpthttp.Request)
}

// Option configures a Submitter.
type Option func(*Submitter)

// WithDocumentPath overrides DefaultDocumentPath.
func WithDocumentPath(path string) Option {
	return func(s *Submitter) {
		if path != "" {
			s.path = path
		}
	}
}

// WithToken sets the bearer token.
func WithToken(token string) Option {
	return func(s *Submitter) {
		s.token = token
	}
}

// WithValidation turns schema validation before sending on or off.
func WithValidation(enabled bool) Option {
	return func(s *Submitter) {
		s.validate = enabled
	}
}

// WithExtract sets the JSONPath expressions evaluated on accepted responses.
func WithExtract(paths map[string]string) Option {
	return func(s *Submitter) {
		s.extract = paths
	}
}

// WithBreaker wraps sends in a circuit breaker.
func WithBreaker(settings BreakerSettings) Option {
	return func(s *Submitter) {
		s.breaker = newBreaker(settings, s)
	}
}

// WithRecorder records wait and latency for every submission.
func WithRecorder(r *metrics.Recorder) Option {
	return func(s *Submitter) {
		s.recorder = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Submitter) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRequestHook calls fn with each request just before it is handed to
// the client, including requests that will then wait on the gate. It is not
// called when validation fails or the circuit is open. Batches call fn from
// several goroutines.
func WithRequestHook(fn func(*crpthttp.Request)) Option {
	return func(s *Submitter) {
		s.onSend = fn
	}
}

// New creates a submitter that sends through client. The client should be
// configured with the registry base URL and a gate.
func New(client *crpthttp.Client, opts ...Option) *Submitter {
	s := &Submitter{
		client:   client,
		path:     DefaultDocumentPath,
		validate: true,
		recorder: metrics.NewRecorder(),
		logger:   zap.NewNop(),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Recorder returns the metrics recorder.
func (s *Submitter) Recorder() *metrics.Recorder {
	return s.recorder
}

// BreakerState returns the breaker state, or "disabled".
func (s *Submitter) BreakerState() string {
	if s.breaker == nil {
		return "disabled"
	}
	return s.breaker.State().String()
}

// Submit sends one document. The signature, when given, travels in the
// Signature header.
//
// The returned Result is never nil; on failure it carries whatever is known
// (request ID, status, body) and the same error that Submit returns.
// Errors match ErrInvalidDocument, ErrCircuitOpen, gate.ErrCanceled, or are
// a *StatusError or a transport error.
func (s *Submitter) Submit(ctx context.Context, doc *registry.Document, signature string) (*Result, error) {
	result := &Result{RequestID: s.newID()}
	fail := func(err error) (*Result, error) {
		result.Err = err
		result.Error = err.Error()
		return result, err
	}

	if doc == nil {
		s.recorder.RecordRejected()
		return fail(ErrInvalidDocument)
	}

	if s.validate {
		if err := registry.Validate(doc); err != nil {
			s.recorder.RecordRejected()
			return fail(fmt.Errorf("%w: %w", ErrInvalidDocument, err))
		}
	}

	body, err := doc.Encode()
	if err != nil {
		s.recorder.RecordRejected()
		return fail(fmt.Errorf("%w: %w", ErrInvalidDocument, err))
	}

	req := crpthttp.NewRequest("POST", s.path).
		WithHeader("Content-Type", "application/json").
		WithHeader("Accept", "application/json").
		WithHeader(HeaderRequestID, result.RequestID).
		WithBody(body)
	if s.token != "" {
		req.WithHeader("Authorization", "Bearer "+s.token)
	}
	if signature != "" {
		req.WithHeader(HeaderSignature, signature)
	}

	resp, err := s.send(ctx, req)
	if resp != nil {
		result.StatusCode = resp.StatusCode
		result.Body = resp.BodyString()
		result.GateWait = resp.GateWait
		result.Latency = resp.Timing.TotalTime
		s.recorder.RecordSent(resp.GateWait, resp.Timing.TotalTime, err == nil)
	}

	if err != nil {
		switch {
		case resp != nil:
		case errors.Is(err, ErrCircuitOpen), errors.Is(err, gate.ErrCanceled):
			s.recorder.RecordRejected()
		default:
			s.recorder.RecordError()
		}
		s.logger.Warn("document not accepted",
			zap.String("request_id", result.RequestID),
			zap.Int("status", result.StatusCode),
			zap.Error(err))
		return fail(err)
	}

	if len(s.extract) > 0 {
		values, missing := ExtractAll(resp.Body, s.extract)
		result.Extracted = values
		if len(missing) > 0 {
			s.logger.Warn("response fields not found",
				zap.String("request_id", result.RequestID),
				zap.Strings("fields", missing))
		}
	}

	s.logger.Info("document accepted",
		zap.String("request_id", result.RequestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("gate_wait", resp.GateWait),
		zap.Duration("latency", resp.Timing.TotalTime))

	return result, nil
}

// send performs the request, through the breaker when one is configured.
// Non-2xx responses are returned together with a *StatusError.
func (s *Submitter) send(ctx context.Context, req *crpthttp.Request) (*crpthttp.Response, error) {
	do := func() (*crpthttp.Response, error) {
		if s.onSend != nil {
			s.onSend(req)
		}
		resp, err := s.client.Do(ctx, req)
		if err != nil {
			return nil, err
		}
		if !resp.IsSuccess() {
			return resp, &StatusError{
				StatusCode: resp.StatusCode,
				Status:     resp.Status,
				Body:       resp.BodyString(),
			}
		}
		return resp, nil
	}

	if s.breaker == nil {
		return do()
	}

	out, err := s.breaker.Execute(func() (interface{}, error) {
		return do()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrCircuitOpen
	}
	resp, _ := out.(*crpthttp.Response)
	return resp, err
}

// SubmitBatch submits items with at most concurrency in flight. Every item
// passes through the same gate. A failed item does not stop the others.
// Results are returned in input order.
func (s *Submitter) SubmitBatch(ctx context.Context, items []Item, concurrency int) []Result {
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]Result, len(items))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, item := range items {
		g.Go(func() error {
			res, _ := s.Submit(ctx, item.Document, item.Signature)
			res.Name = item.Name
			results[i] = *res
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func newBreaker(settings BreakerSettings, s *Submitter) *gobreaker.CircuitBreaker {
	maxFailures := settings.MaxFailures
	if maxFailures <= 0 {
		maxFailures = 5
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "registry",
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(maxFailures)
		},
		IsSuccessful: isRegistryHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

// isRegistryHealthy decides whether an outcome counts against the breaker.
// Client errors and callers giving up are not registry failures.
func isRegistryHealthy(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, gate.ErrCanceled) || errors.Is(err, context.Canceled) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return !se.Temporary()
	}
	return false
}
