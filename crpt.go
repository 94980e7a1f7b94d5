package crpt

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/wesleyorama2/crpt/internal/gate"
	crpthttp "github.com/wesleyorama2/crpt/internal/http"
	"github.com/wesleyorama2/crpt/internal/metrics"
	"github.com/wesleyorama2/crpt/internal/registry"
	"github.com/wesleyorama2/crpt/internal/submit"
)

// DefaultBaseURL is the production registry.
const DefaultBaseURL = "https://ismp.crpt.ru"

const defaultTimeout = 30 * time.Second

// Document model.
type (
	Document    = registry.Document
	Description = registry.Description
	Product     = registry.Product
	Date        = registry.Date
	DocType     = registry.DocType
)

// DocTypeIntroduceGoods introduces domestically produced goods into circulation.
const DocTypeIntroduceGoods = registry.DocTypeIntroduceGoods

// NewDate returns a calendar date for document fields.
func NewDate(year int, month time.Month, day int) *Date {
	return registry.NewDate(year, month, day)
}

// Results and errors.
type (
	Result      = submit.Result
	StatusError = submit.StatusError
	GateStats   = gate.Stats
	Metrics     = metrics.Snapshot
)

var (
	ErrInvalidDocument = submit.ErrInvalidDocument
	ErrCircuitOpen     = submit.ErrCircuitOpen
	ErrCanceled        = gate.ErrCanceled
	ErrInvalidConfig   = gate.ErrInvalidConfig
)

// Client submits documents under a sliding-window rate limit.
type Client struct {
	gate      *gate.Gate
	submitter *submit.Submitter
	recorder  *metrics.Recorder
}

type options struct {
	baseURL    string
	token      string
	timeout    time.Duration
	timeoutSet bool
	logger     *zap.Logger
	httpClient *http.Client
	breaker    *submit.BreakerSettings
	validate   bool
	extract    map[string]string
}

// Option configures a Client.
type Option func(*options)

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(url string) Option {
	return func(o *options) {
		o.baseURL = url
	}
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(o *options) {
		o.token = token
	}
}

// WithTimeout bounds each HTTP exchange. Time spent waiting for a slot is
// bounded by the context instead.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.timeout = timeout
		o.timeoutSet = true
	}
}

// WithLogger sets a zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithHTTPClient sends through a copy of hc. Its Timeout is kept unless
// WithTimeout is also given.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// WithBreaker stops sending for openTimeout after maxFailures consecutive
// server errors.
func WithBreaker(maxFailures int, openTimeout time.Duration) Option {
	return func(o *options) {
		o.breaker = &submit.BreakerSettings{MaxFailures: maxFailures, OpenTimeout: openTimeout}
	}
}

// WithoutValidation sends documents without checking them against the schema.
func WithoutValidation() Option {
	return func(o *options) {
		o.validate = false
	}
}

// WithExtract sets JSONPath expressions read from accepted responses into
// Result.Extracted. The default reads $.value as "docId".
func WithExtract(paths map[string]string) Option {
	return func(o *options) {
		o.extract = paths
	}
}

// New creates a client allowing requestLimit calls per window.
// Both must be positive; otherwise the error matches ErrInvalidConfig.
func New(window time.Duration, requestLimit int, opts ...Option) (*Client, error) {
	o := options{
		baseURL:  DefaultBaseURL,
		logger:   zap.NewNop(),
		validate: true,
		extract:  map[string]string{"docId": "$.value"},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if !o.timeoutSet && o.httpClient == nil {
		o.timeout = defaultTimeout
	}

	g, err := gate.New(requestLimit, window, gate.WithLogger(o.logger.Named("gate")))
	if err != nil {
		return nil, err
	}

	clientOpts := []crpthttp.ClientOption{
		crpthttp.WithBaseURL(o.baseURL),
		crpthttp.WithGate(g),
		crpthttp.WithLogger(o.logger.Named("http")),
	}
	if o.httpClient != nil {
		hc := *o.httpClient
		clientOpts = append(clientOpts, crpthttp.WithHTTPClient(&hc))
	}
	if o.timeout > 0 {
		clientOpts = append(clientOpts, crpthttp.WithTimeout(o.timeout))
	}

	recorder := metrics.NewRecorder()
	submitOpts := []submit.Option{
		submit.WithToken(o.token),
		submit.WithValidation(o.validate),
		submit.WithExtract(o.extract),
		submit.WithRecorder(recorder),
		submit.WithLogger(o.logger.Named("submit")),
	}
	if o.breaker != nil {
		submitOpts = append(submitOpts, submit.WithBreaker(*o.breaker))
	}

	return &Client{
		gate:      g,
		submitter: submit.New(crpthttp.NewClient(clientOpts...), submitOpts...),
		recorder:  recorder,
	}, nil
}

// CreateDocument submits doc for introduction into circulation. The
// signature, when non-empty, is sent in the Signature header.
//
// It blocks while the rate limit is exhausted. The returned Result is never
// nil and carries the failure details when err is non-nil.
func (c *Client) CreateDocument(ctx context.Context, doc *Document, signature string) (*Result, error) {
	return c.submitter.Submit(ctx, doc, signature)
}

// Stats reports the rate limiter's state.
func (c *Client) Stats() GateStats {
	return c.gate.Stats()
}

// Metrics reports wait and latency distributions of past calls.
func (c *Client) Metrics() Metrics {
	return c.recorder.Snapshot()
}
