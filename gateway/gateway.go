// Package gateway routes chat requests to model providers with fallback models, retries,
// per-attempt timeouts, optional rate limiting, request logging and cost attachment.
//
// A Gateway implements gentflow.Chatter, so the tool loop, runner and orchestrator use it
// without knowing which vendor answers.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/rickchristie/gentflow"
	"github.com/rickchristie/gentflow/contextstore"
	"github.com/rickchristie/gentflow/cost"
	"github.com/rickchristie/gentflow/retry"
)

// Provider names known to the default model map.
const (
	ProviderGoogle   = "google"
	ProviderGLM      = "glm"
	ProviderDeepSeek = "deepseek"
)

// Provider issues chat calls to one vendor. The request's Model is always set.
type Provider interface {
	Name() string
	Chat(ctx context.Context, req gentflow.ChatRequest) (*gentflow.ChatResult, error)
}

// DefaultModelProviders returns the built-in model to provider map.
func DefaultModelProviders() map[string]string {
	return map[string]string{
		"gemini-2.5-flash":  ProviderGoogle,
		"gemini-2.0-flash":  ProviderGoogle,
		"gemini-1.5-flash":  ProviderGoogle,
		"glm-4.7":           ProviderGLM,
		"glm-4-flash":       ProviderGLM,
		"glm-4":             ProviderGLM,
		"glm-4-plus":        ProviderGLM,
		"glm-4-air":         ProviderGLM,
		"glm-4-long":        ProviderGLM,
		"deepseek-chat":     ProviderDeepSeek,
		"deepseek-reasoner": ProviderDeepSeek,
	}
}

// RateLimit throttles calls leaving the gateway. Zero values disable each limit.
type RateLimit struct {
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `json:"burst" yaml:"burst"`

	// TokensPerMinute budgets estimated prompt tokens.
	TokensPerMinute float64 `json:"tokens_per_minute" yaml:"tokens_per_minute"`
}

// Config configures a Gateway.
type Config struct {
	DefaultModel   string   `json:"default_model" yaml:"default_model"`
	FallbackModels []string `json:"fallback_models" yaml:"fallback_models"`

	// ModelProviders is merged over DefaultModelProviders.
	ModelProviders map[string]string `json:"model_providers" yaml:"model_providers"`

	// Timeout bounds every attempt. A request timeout lower than this wins.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	Retry     retry.Policy `json:"retry" yaml:"retry"`
	RateLimit RateLimit    `json:"rate_limit" yaml:"rate_limit"`

	// CostTable is merged over cost.DefaultTable.
	CostTable cost.Table `json:"cost_table" yaml:"cost_table"`

	LogLevel LogLevel `json:"log_level" yaml:"log_level"`
}

// DefaultConfig returns the default retry policy at info logging, with no timeout and no
// rate limit.
func DefaultConfig() Config {
	return Config{
		Retry:    retry.DefaultPolicy(),
		LogLevel: LevelInfo,
	}
}

// WithDefaultModel sets the model used when a request names none.
func (c Config) WithDefaultModel(model string) Config {
	c.DefaultModel = model
	return c
}

// WithFallbackModels sets the models tried, in order, after the primary one fails.
func (c Config) WithFallbackModels(models ...string) Config {
	c.FallbackModels = models
	return c
}

// WithTimeout sets the per-attempt timeout.
func (c Config) WithTimeout(d time.Duration) Config {
	c.Timeout = d
	return c
}

// WithRetry sets the retry policy.
func (c Config) WithRetry(p retry.Policy) Config {
	c.Retry = p
	return c
}

// WithRateLimit sets the rate limit.
func (c Config) WithRateLimit(rl RateLimit) Config {
	c.RateLimit = rl
	return c
}

// Gateway is a multi-provider gentflow.Chatter. Register providers with WithProvider before
// the first call; Chat is safe for concurrent use afterwards.
type Gateway struct {
	config       Config
	providers    map[string]Provider
	models       map[string]string
	costs        cost.Table
	logger       RequestLogger
	requests     *rate.Limiter
	tokens       *rate.Limiter
	timeProvider gentflow.TimeProvider
}

// New creates a Gateway with no providers.
func New(config Config) *Gateway {
	models := DefaultModelProviders()
	maps.Copy(models, config.ModelProviders)

	g := &Gateway{
		config:       config,
		providers:    make(map[string]Provider),
		models:       models,
		costs:        cost.DefaultTable().Merge(config.CostTable),
		logger:       NewClueLogger(config.LogLevel),
		timeProvider: gentflow.NewDefaultTimeProvider(),
	}
	if rl := config.RateLimit; rl.RequestsPerSecond > 0 {
		burst := rl.Burst
		if burst < 1 {
			burst = 1
		}
		g.requests = rate.NewLimiter(rate.Limit(rl.RequestsPerSecond), burst)
	}
	if rl := config.RateLimit; rl.TokensPerMinute > 0 {
		g.tokens = rate.NewLimiter(rate.Limit(rl.TokensPerMinute/60.0), max(1, int(rl.TokensPerMinute)))
	}
	return g
}

// WithProvider registers p under p.Name(), replacing any provider with that name.
func (g *Gateway) WithProvider(p Provider) *Gateway {
	g.providers[p.Name()] = p
	return g
}

// WithLogger replaces the request logger.
func (g *Gateway) WithLogger(l RequestLogger) *Gateway {
	g.logger = l
	return g
}

// WithTimeProvider sets the clock used for log timestamps and durations.
func (g *Gateway) WithTimeProvider(tp gentflow.TimeProvider) *Gateway {
	g.timeProvider = tp
	return g
}

// Chat implements gentflow.Chatter.
//
// The request's model, or the default model, is tried first and each fallback model after
// it. Every candidate runs under the retry policy. A candidate whose provider cannot be
// resolved aborts the call at once; any other failure moves on to the next candidate, and
// the last failure is returned when all of them fail.
func (g *Gateway) Chat(ctx context.Context, req gentflow.ChatRequest) (*gentflow.ChatResult, error) {
	model := req.Model
	if model == "" {
		model = g.config.DefaultModel
	}
	if model == "" {
		return nil, gentflow.ErrModelRequired
	}

	candidates := append([]string{model}, g.config.FallbackModels...)
	timeout := resolveTimeout(req.Timeout, g.config.Timeout)
	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	var lastErr error
	for _, candidate := range candidates {
		providerName, provider, err := g.resolve(candidate, req.Provider)
		if err != nil {
			return nil, err
		}

		started := g.timeProvider.Now()
		g.logger.LogRequest(ctx, RequestLog{
			Timestamp:    started,
			RequestID:    requestID,
			Model:        candidate,
			Provider:     providerName,
			MessageCount: len(req.Messages),
			Timeout:      timeout,
		})

		attemptReq := req
		attemptReq.Model = candidate
		attemptReq.Provider = providerName
		attemptReq.RequestID = requestID
		attemptReq.Timeout = timeout

		result, err := retry.Do(ctx, g.config.Retry, func(ctx context.Context) (*gentflow.ChatResult, error) {
			return g.attempt(ctx, provider, attemptReq)
		})
		finished := g.timeProvider.Now()

		if err != nil {
			lastErr = err
			g.logger.LogError(ctx, ErrorLog{
				Timestamp: finished,
				RequestID: requestID,
				Model:     candidate,
				Provider:  providerName,
				Duration:  finished.Sub(started),
				Error:     describeError(err),
				Err:       err,
			})
			continue
		}

		out := *result
		out.Cost = cost.Estimate(result.Usage, candidate, g.costs)
		out.Model = candidate
		out.Provider = providerName
		out.RequestID = requestID

		g.logger.LogResponse(ctx, ResponseLog{
			Timestamp:    finished,
			RequestID:    requestID,
			Model:        candidate,
			Provider:     providerName,
			Duration:     finished.Sub(started),
			Usage:        out.Usage,
			FinishReason: out.FinishReason,
			Cost:         out.Cost,
		})
		return &out, nil
	}
	return nil, lastErr
}

func (g *Gateway) resolve(model, explicit string) (string, Provider, error) {
	name := explicit
	if name == "" {
		mapped, ok := g.models[model]
		if !ok {
			return "", nil, fmt.Errorf("%w: %s", gentflow.ErrNoProvider, model)
		}
		name = mapped
	}
	p, ok := g.providers[name]
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", gentflow.ErrProviderNotConfigured, name)
	}
	return name, p, nil
}

func (g *Gateway) attempt(ctx context.Context, p Provider, req gentflow.ChatRequest) (*gentflow.ChatResult, error) {
	if err := g.wait(ctx, req.Messages); err != nil {
		return nil, err
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	res, err := p.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, &gentflow.ProviderError{Provider: p.Name(), Message: "empty response"}
	}
	return res, nil
}

func (g *Gateway) wait(ctx context.Context, messages []gentflow.Message) error {
	if g.requests != nil {
		if err := g.requests.Wait(ctx); err != nil {
			return err
		}
	}
	if g.tokens != nil {
		n := min(contextstore.TotalTokens(messages), g.tokens.Burst())
		if err := g.tokens.WaitN(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

// resolveTimeout returns the smaller of the two positive timeouts, or zero when neither is
// set.
func resolveTimeout(request, config time.Duration) time.Duration {
	switch {
	case request <= 0:
		return max(config, 0)
	case config <= 0:
		return request
	default:
		return min(request, config)
	}
}

func asProviderError(err error) (*gentflow.ProviderError, bool) {
	var perr *gentflow.ProviderError
	ok := errors.As(err, &perr)
	return perr, ok
}

// Compile-time check that Gateway implements gentflow.Chatter.
var _ gentflow.Chatter = (*Gateway)(nil)
