// Package config loads gentflow settings from an optional YAML file and the environment.
//
// Loading happens in four steps: ${VAR} placeholders in the file are expanded, the YAML is
// decoded over Default(), environment overrides are applied, and the default and fallback
// models are resolved from the providers that have an API key.
//
//	cfg, err := config.Load("gentflow.yaml")
//	if err != nil {
//	    return err
//	}
//	gw := gateway.New(cfg.GatewayConfig())
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rickchristie/gentflow"
	"github.com/rickchristie/gentflow/agent"
	"github.com/rickchristie/gentflow/contextstore"
	"github.com/rickchristie/gentflow/cost"
	"github.com/rickchristie/gentflow/gateway"
	"github.com/rickchristie/gentflow/permission"
	"github.com/rickchristie/gentflow/retry"
)

// Environment variables read by Load.
const (
	EnvGoogleAPIKey   = "GOOGLE_API_KEY"
	EnvGLMAPIKey      = "GLM_API_KEY"
	EnvDeepSeekAPIKey = "DEEPSEEK_API_KEY"
	EnvDefaultModel   = "DEFAULT_MODEL"
	EnvLogLevel       = "LOG_LEVEL"
)

// ErrNoProviderKeys is returned when no provider has an API key.
var ErrNoProviderKeys = errors.New(
	"config: no provider API key set (GOOGLE_API_KEY, GLM_API_KEY or DEEPSEEK_API_KEY)")

// presetOrder decides which keyed provider supplies the default model.
var presetOrder = []string{gateway.ProviderGoogle, gateway.ProviderGLM, gateway.ProviderDeepSeek}

var presetEnv = map[string]string{
	gateway.ProviderGoogle:   EnvGoogleAPIKey,
	gateway.ProviderGLM:      EnvGLMAPIKey,
	gateway.ProviderDeepSeek: EnvDeepSeekAPIKey,
}

// Provider describes one OpenAI-compatible endpoint.
type Provider struct {
	Name    string `yaml:"-"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// Gateway holds gateway.Config settings.
type Gateway struct {
	Timeout        time.Duration     `yaml:"timeout"`
	Retry          retry.Policy      `yaml:"retry"`
	RateLimit      gateway.RateLimit `yaml:"rate_limit"`
	CostTable      cost.Table        `yaml:"cost_table"`
	ModelProviders map[string]string `yaml:"model_providers"`
}

// Context holds context store limits.
type Context struct {
	MaxTokens        int    `yaml:"max_tokens"`
	MaxMessages      int    `yaml:"max_messages"`
	TrimStrategy     string `yaml:"trim_strategy"`
	SummaryThreshold int    `yaml:"summary_threshold"`
}

// Agent holds default run options.
type Agent struct {
	MaxToolRounds int      `yaml:"max_tool_rounds"`
	Temperature   *float64 `yaml:"temperature"`
	MaxTokens     int      `yaml:"max_tokens"`
}

// Permissions maps actors to roles and roles to actions.
type Permissions struct {
	Actors permission.ActorRoles  `yaml:"actors"`
	Roles  permission.RoleActions `yaml:"roles"`
}

// Config is the full gentflow configuration.
type Config struct {
	Providers      map[string]Provider `yaml:"providers"`
	DefaultModel   string              `yaml:"default_model"`
	FallbackModels []string            `yaml:"fallback_models"`
	Gateway        Gateway             `yaml:"gateway"`
	Context        Context             `yaml:"context"`
	Agent          Agent               `yaml:"agent"`
	Permissions    Permissions         `yaml:"permissions"`
	LogLevel       string              `yaml:"log_level"`
}

// Default returns the provider presets and library defaults, without API keys.
func Default() Config {
	ctx := contextstore.DefaultConfig()
	opts := agent.DefaultOptions()
	return Config{
		Providers: map[string]Provider{
			gateway.ProviderGoogle: {
				Model:   "gemini-2.5-flash",
				BaseURL: "https://generativelanguage.googleapis.com/v1beta",
			},
			gateway.ProviderGLM: {
				Model:   "glm-4.7",
				BaseURL: "https://open.bigmodel.cn/api/paas/v4",
			},
			gateway.ProviderDeepSeek: {
				Model:   "deepseek-chat",
				BaseURL: "https://api.deepseek.com/v1",
			},
		},
		Gateway: Gateway{
			Retry: retry.DefaultPolicy(),
		},
		Context: Context{
			MaxTokens:    ctx.MaxTokens,
			MaxMessages:  ctx.MaxMessages,
			TrimStrategy: contextstore.StrategyKeepSystemAndRecent,
		},
		Agent: Agent{
			MaxToolRounds: opts.MaxToolRounds,
			Temperature:   opts.Temperature,
			MaxTokens:     opts.MaxTokens,
		},
		LogLevel: string(gateway.LevelInfo),
	}
}

// Load reads path (skipped when empty) and applies the process environment.
func Load(path string) (Config, error) {
	return LoadWithLookup(path, os.LookupEnv)
}

// LoadWithLookup is Load with a custom environment lookup.
func LoadWithLookup(path string, lookup func(string) (string, bool)) (Config, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	return Parse(data, lookup)
}

var placeholder = regexp.MustCompile(`\$\{([^}]+)\}`)

// Parse decodes YAML over Default(), then applies the environment, resolves models and
// validates the result.
func Parse(data []byte, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	expanded := placeholder.ReplaceAllStringFunc(string(data), func(match string) string {
		if v, ok := lookup(match[2 : len(match)-1]); ok {
			return v
		}
		return match
	})
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse yaml: %w", err)
	}

	cfg.applyPresets()
	cfg.applyEnv(lookup)
	if err := cfg.resolveModels(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyPresets restores preset models and base URLs for provider entries the file only
// partially specified.
func (c *Config) applyPresets() {
	presets := Default().Providers
	if c.Providers == nil {
		c.Providers = presets
		return
	}
	for name, preset := range presets {
		p := c.Providers[name]
		if p.Model == "" {
			p.Model = preset.Model
		}
		if p.BaseURL == "" {
			p.BaseURL = preset.BaseURL
		}
		c.Providers[name] = p
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	for name, env := range presetEnv {
		if key, ok := lookup(env); ok && key != "" {
			p := c.Providers[name]
			p.APIKey = key
			c.Providers[name] = p
		}
	}
	if v, ok := lookup(EnvDefaultModel); ok && v != "" {
		c.DefaultModel = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
}

// KeyedProviders returns the providers that have an API key: presets first in the order
// google, glm, deepseek, then custom providers by name.
func (c *Config) KeyedProviders() []Provider {
	var names []string
	for name := range c.Providers {
		if !slices.Contains(presetOrder, name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	names = append(slices.Clone(presetOrder), names...)

	var out []Provider
	for _, name := range names {
		p, ok := c.Providers[name]
		if !ok || p.APIKey == "" {
			continue
		}
		p.Name = name
		out = append(out, p)
	}
	return out
}

func (c *Config) resolveModels() error {
	keyed := c.KeyedProviders()
	if len(keyed) == 0 {
		return ErrNoProviderKeys
	}
	if c.DefaultModel == "" {
		c.DefaultModel = keyed[0].Model
	}
	if len(c.FallbackModels) == 0 {
		for _, p := range keyed {
			if p.Model != "" && p.Model != c.DefaultModel {
				c.FallbackModels = append(c.FallbackModels, p.Model)
			}
		}
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if _, err := contextstore.StrategyByName(c.Context.TrimStrategy); err != nil {
		errs = append(errs, err)
	}
	if _, err := gateway.ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	for field, v := range map[string]int{
		"context.max_tokens":        c.Context.MaxTokens,
		"context.max_messages":      c.Context.MaxMessages,
		"context.summary_threshold": c.Context.SummaryThreshold,
		"agent.max_tool_rounds":     c.Agent.MaxToolRounds,
		"agent.max_tokens":          c.Agent.MaxTokens,
		"gateway.retry.max_retries": c.Gateway.Retry.MaxRetries,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %d", field, v))
		}
	}
	if c.Gateway.Timeout < 0 {
		errs = append(errs, fmt.Errorf("gateway.timeout must not be negative, got %s", c.Gateway.Timeout))
	}
	if c.Agent.Temperature != nil && *c.Agent.Temperature < 0 {
		errs = append(errs, fmt.Errorf("agent.temperature must not be negative, got %g", *c.Agent.Temperature))
	}
	for _, p := range c.KeyedProviders() {
		if p.BaseURL == "" {
			errs = append(errs, fmt.Errorf("providers.%s.base_url is required", p.Name))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })
	return fmt.Errorf("config: invalid: %w", errors.Join(errs...))
}

// GatewayConfig builds the gateway configuration. Custom providers' models are mapped to
// their provider name.
func (c *Config) GatewayConfig() gateway.Config {
	level, _ := gateway.ParseLogLevel(c.LogLevel)

	providers := make(map[string]string, len(c.Gateway.ModelProviders))
	for _, p := range c.KeyedProviders() {
		if p.Model != "" && !slices.Contains(presetOrder, p.Name) {
			providers[p.Model] = p.Name
		}
	}
	for model, name := range c.Gateway.ModelProviders {
		providers[model] = name
	}

	cfg := gateway.DefaultConfig().
		WithDefaultModel(c.DefaultModel).
		WithFallbackModels(c.FallbackModels...).
		WithTimeout(c.Gateway.Timeout).
		WithRetry(c.Gateway.Retry).
		WithRateLimit(c.Gateway.RateLimit)
	cfg.ModelProviders = providers
	cfg.CostTable = c.Gateway.CostTable
	cfg.LogLevel = level
	return cfg
}

// ContextConfig builds the context store configuration.
func (c *Config) ContextConfig() (contextstore.Config, error) {
	strategy, err := contextstore.StrategyByName(c.Context.TrimStrategy)
	if err != nil {
		return contextstore.Config{}, err
	}
	cfg := contextstore.DefaultConfig().
		WithLimits(c.Context.MaxTokens, c.Context.MaxMessages).
		WithTrimStrategy(strategy)
	cfg.SummaryThreshold = c.Context.SummaryThreshold
	return cfg, nil
}

// AgentOptions builds the default run options.
func (c *Config) AgentOptions() agent.Options {
	opts := agent.DefaultOptions()
	opts.MaxToolRounds = c.Agent.MaxToolRounds
	opts.MaxTokens = c.Agent.MaxTokens
	if c.Agent.Temperature != nil {
		opts.Temperature = gentflow.Float64(*c.Agent.Temperature)
	}
	return opts
}

// PermissionChecker builds a role checker. Missing roles fall back to
// permission.DefaultRoleActions.
func (c *Config) PermissionChecker() *permission.RoleChecker {
	return permission.NewRoleChecker(c.Permissions.Actors, c.Permissions.Roles)
}
