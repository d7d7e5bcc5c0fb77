// Package geocode resolves free-text addresses to coordinates via OpenCage (default) or Google.
package geocode

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Provider names accepted in Config.Provider.
const (
	ProviderOpenCage = "opencage"
	ProviderGoogle   = "google"
)

// Lookup outcomes reported to an Observer.
const (
	OutcomeMatched = "matched"
	OutcomeNoMatch = "no_match"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// Client forward-geocodes free-text queries.
type Client interface {
	// Forward returns up to limit matches for query, best first. It never
	// fails: transport errors, bad responses and zero matches are logged and
	// yield an empty result.
	Forward(ctx context.Context, query string, limit int) []Result
}

// Result is a single geocoding match.
type Result struct {
	Formatted  string
	Latitude   float64
	Longitude  float64
	Confidence int
	Source     string
}

// Config selects and configures the upstream geocoding service.
type Config struct {
	Provider  string
	APIKey    string
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64

	// BreakerThreshold consecutive upstream errors stop lookups for
	// BreakerCooldown. Defaults: 5 and 30s.
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// Observer receives the outcome of every Forward call.
type Observer func(outcome string)

// Option configures the geocoder.
type Option func(*geocoder)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithObserver registers a callback for lookup outcomes.
func WithObserver(fn Observer) Option {
	return func(g *geocoder) {
		g.observe = fn
	}
}

type lookupFunc func(ctx context.Context, query string, limit int) ([]Result, error)

type geocoder struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *breaker
	lookup     lookupFunc
	observe    Observer
}

// NewClient creates a Client for the configured provider.
func NewClient(cfg Config, opts ...Option) (Client, error) {
	if cfg.Provider == "" {
		cfg.Provider = ProviderOpenCage
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 1
	}

	g := &geocoder{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), max(1, int(cfg.RateLimit))),
		breaker:    newBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown),
		observe:    func(string) {},
	}

	switch cfg.Provider {
	case ProviderOpenCage:
		if g.cfg.BaseURL == "" {
			g.cfg.BaseURL = opencageBaseURL
		}
		g.lookup = g.geocodeOpenCage
	case ProviderGoogle:
		if g.cfg.BaseURL == "" {
			g.cfg.BaseURL = googleBaseURL
		}
		g.lookup = g.geocodeGoogle
	default:
		return nil, eris.Errorf("geocode: unknown provider %q", cfg.Provider)
	}
	g.cfg.BaseURL = strings.TrimRight(g.cfg.BaseURL, "/")

	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Forward implements Client.
func (g *geocoder) Forward(ctx context.Context, query string, limit int) []Result {
	query = strings.TrimSpace(query)
	if query == "" {
		zap.L().Debug("geocode: empty query")
		g.observe(OutcomeSkipped)
		return nil
	}
	if g.cfg.APIKey == "" {
		zap.L().Warn("geocode: api key not configured", zap.String("provider", g.cfg.Provider))
		g.observe(OutcomeSkipped)
		return nil
	}
	if limit <= 0 {
		limit = 1
	}

	caller := ctx
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	if err := g.limiter.Wait(ctx); err != nil {
		zap.L().Error("geocode: rate limit wait", zap.String("query", query), zap.Error(err))
		g.observe(OutcomeError)
		return nil
	}

	if !g.breaker.allow() {
		zap.L().Warn("geocode: upstream unavailable, lookup skipped",
			zap.String("provider", g.cfg.Provider),
			zap.String("query", query),
		)
		g.observe(OutcomeError)
		return nil
	}

	results, err := g.lookup(ctx, query, limit)
	if err != nil && caller.Err() != nil {
		// The caller gave up; says nothing about the upstream.
		g.breaker.release()
	} else {
		g.breaker.record(err)
	}
	if err != nil {
		zap.L().Error("geocode: lookup failed",
			zap.String("provider", g.cfg.Provider),
			zap.String("query", query),
			zap.Error(err),
		)
		g.observe(OutcomeError)
		return nil
	}
	if len(results) == 0 {
		zap.L().Info("geocode: no match",
			zap.String("provider", g.cfg.Provider),
			zap.String("query", query),
		)
		g.observe(OutcomeNoMatch)
		return nil
	}
	if len(results) > limit {
		results = results[:limit]
	}

	g.observe(OutcomeMatched)
	return results
}
