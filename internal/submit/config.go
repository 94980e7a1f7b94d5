package submit

import (
	"go.uber.org/zap"

	"github.com/wesleyorama2/crpt/internal/config"
	"github.com/wesleyorama2/crpt/internal/gate"
	crpthttp "github.com/wesleyorama2/crpt/internal/http"
	"github.com/wesleyorama2/crpt/internal/metrics"
)

// FromConfig assembles the gate, HTTP client and submitter described by cfg.
// The gate is returned so callers can report its stats. Options in extra
// are applied after those derived from cfg.
func FromConfig(cfg *config.Config, logger *zap.Logger, recorder *metrics.Recorder, extra ...Option) (*Submitter, *gate.Gate, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	g, err := gate.New(cfg.RateLimit.Capacity, cfg.RateLimit.Window.Std(),
		gate.WithLogger(logger.Named("gate")))
	if err != nil {
		return nil, nil, err
	}

	clientOpts := []crpthttp.ClientOption{
		crpthttp.WithBaseURL(cfg.Registry.BaseURL),
		crpthttp.WithGate(g),
		crpthttp.WithLogger(logger.Named("http")),
	}
	if cfg.Registry.Timeout > 0 {
		clientOpts = append(clientOpts, crpthttp.WithTimeout(cfg.Registry.Timeout.Std()))
	}
	if cfg.Registry.UserAgent != "" {
		clientOpts = append(clientOpts, crpthttp.WithHeader("User-Agent", cfg.Registry.UserAgent))
	}
	for key, value := range cfg.Registry.Headers {
		clientOpts = append(clientOpts, crpthttp.WithHeader(key, value))
	}

	opts := []Option{
		WithDocumentPath(cfg.Registry.DocumentPath),
		WithToken(cfg.Registry.Token),
		WithValidation(cfg.Submit.Validate),
		WithExtract(cfg.Submit.Extract),
		WithLogger(logger.Named("submit")),
	}
	if recorder != nil {
		opts = append(opts, WithRecorder(recorder))
	}
	if cfg.Breaker.Enabled {
		opts = append(opts, WithBreaker(BreakerSettings{
			MaxFailures: cfg.Breaker.MaxFailures,
			OpenTimeout: cfg.Breaker.OpenTimeout.Std(),
		}))
	}

	opts = append(opts, extra...)

	return New(crpthttp.NewClient(clientOpts...), opts...), g, nil
}
