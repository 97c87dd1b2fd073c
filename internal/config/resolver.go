// Package config resolves Vigil configuration from file, environment, and
// CLI flags, tracking where each value came from.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

// ResolvedValue is a config value plus the provenance of where it was set.
type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// ResolveOptions carries CLI-level overrides into resolution.
type ResolveOptions struct {
	ConfigPath string
	CLIModel   string
	CLIDBPath  string
}

// ResolvedConfig is the fully resolved configuration.
type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath        ResolvedValue `json:"db_path"`
	Model         ResolvedValue `json:"model"`          // provider/model for all AI calls
	ExtractModel  ResolvedValue `json:"extract_model"`  // optional override for extraction
	ClassifyModel ResolvedValue `json:"classify_model"` // optional override for classification
	LogMode       ResolvedValue `json:"log_mode"`

	SweepInterval  time.Duration `json:"sweep_interval"`  // pending-case sweep cadence
	StaleThreshold time.Duration `json:"stale_threshold"` // NEW-case age before sweep picks it up
	PatternCron    string        `json:"pattern_cron"`    // daily pattern sweep schedule

	LLMKeys map[string]ResolvedValue `json:"llm_keys,omitempty"`
}

type fileConfig struct {
	DBPath string `yaml:"db_path"`
	Log    string `yaml:"log"`
	LLM    struct {
		Model         string `yaml:"model"`
		APIKey        string `yaml:"api_key"`
		ExtractModel  string `yaml:"extract_model"`
		ClassifyModel string `yaml:"classify_model"`
	} `yaml:"llm"`
	Agent struct {
		SweepInterval  string `yaml:"sweep_interval"`
		StaleThreshold string `yaml:"stale_threshold"`
		PatternCron    string `yaml:"pattern_cron"`
	} `yaml:"agent"`
}

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.vigil/vigil.db"

// DefaultSweepInterval is how often the pending-case sweep runs.
const DefaultSweepInterval = 5 * time.Minute

// DefaultStaleThreshold is how old a NEW case must be before a sweep
// re-triggers processing.
const DefaultStaleThreshold = 5 * time.Minute

// DefaultPatternCron runs the cross-case pattern sweep daily at 02:00.
const DefaultPatternCron = "0 2 * * *"

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".vigil", "config.yaml")
}

// ResolveConfig merges file, env, and CLI values. Precedence: CLI > env >
// file > built-in default.
func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{
		ConfigPath:     path,
		LLMKeys:        map[string]ResolvedValue{},
		SweepInterval:  DefaultSweepInterval,
		StaleThreshold: DefaultStaleThreshold,
		PatternCron:    DefaultPatternCron,
	}

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}

	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.Model, cfg.LLM.Model, SourceConfig, path)
		apply(&out.ExtractModel, cfg.LLM.ExtractModel, SourceConfig, path)
		apply(&out.ClassifyModel, cfg.LLM.ClassifyModel, SourceConfig, path)
		apply(&out.LogMode, cfg.Log, SourceConfig, path)

		if key := strings.TrimSpace(cfg.LLM.APIKey); key != "" {
			p := providerOf(cfg.LLM.Model)
			if p == "" {
				p = "default"
			}
			out.LLMKeys[p] = ResolvedValue{Value: key, Source: SourceConfig, From: path}
		}

		if d, err := parseDuration(cfg.Agent.SweepInterval); err == nil && d > 0 {
			out.SweepInterval = d
		}
		if d, err := parseDuration(cfg.Agent.StaleThreshold); err == nil && d > 0 {
			out.StaleThreshold = d
		}
		if s := strings.TrimSpace(cfg.Agent.PatternCron); s != "" {
			out.PatternCron = s
		}
	}

	applyEnv(&out.DBPath, "VIGIL_DB")
	applyEnv(&out.Model, "VIGIL_MODEL")
	applyEnv(&out.ExtractModel, "VIGIL_MODEL_EXTRACT")
	applyEnv(&out.ClassifyModel, "VIGIL_MODEL_CLASSIFY")
	applyEnv(&out.LogMode, "VIGIL_LOG")

	for env, provider := range map[string]string{
		"OPENROUTER_API_KEY": "openrouter",
		"GEMINI_API_KEY":     "google",
		"GOOGLE_API_KEY":     "google",
	} {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			out.LLMKeys[provider] = ResolvedValue{Value: v, Source: SourceEnv, From: env}
		}
	}

	apply(&out.Model, opts.CLIModel, SourceCLI, "--model")
	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")

	if out.DBPath.Value == "" {
		out.DBPath = ResolvedValue{Value: DefaultDBPath, Source: SourceDefault, From: "built-in default"}
	}
	out.DBPath.Value = expandUserPath(out.DBPath.Value)

	return out, nil
}

// EffectiveModel returns the provider/model to use for a purpose
// ("extract" or "classify"), falling back to the shared model then the
// built-in default.
func (r ResolvedConfig) EffectiveModel(purpose string) ResolvedValue {
	candidates := []ResolvedValue{}
	switch strings.ToLower(strings.TrimSpace(purpose)) {
	case "extract":
		candidates = append(candidates, r.ExtractModel)
	case "classify":
		candidates = append(candidates, r.ClassifyModel)
	}
	candidates = append(candidates, r.Model)

	for _, c := range candidates {
		if strings.TrimSpace(c.Value) != "" {
			return c
		}
	}
	return ResolvedValue{Value: "google/gemini-2.5-flash", Source: SourceDefault, From: "built-in default"}
}

// APIKeyForProvider returns the configured key for a provider or model
// string ("openrouter/..." or "google").
func (r ResolvedConfig) APIKeyForProvider(providerOrModel string) ResolvedValue {
	provider := providerOf(providerOrModel)
	if provider == "" {
		return ResolvedValue{}
	}
	if v, ok := r.LLMKeys[provider]; ok && strings.TrimSpace(v.Value) != "" {
		return v
	}
	if v, ok := r.LLMKeys["default"]; ok && strings.TrimSpace(v.Value) != "" {
		return v
	}
	return ResolvedValue{}
}

func providerOf(providerOrModel string) string {
	v := strings.ToLower(strings.TrimSpace(providerOrModel))
	if v == "" {
		return ""
	}
	if idx := strings.Index(v, "/"); idx > 0 {
		return v[:idx]
	}
	return v
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("empty duration")
	}
	return time.ParseDuration(raw)
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
