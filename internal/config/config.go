package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"planbench/internal/plan"
)

type Config struct {
	Dataset    string    `yaml:"dataset"`
	PlanFormat string    `yaml:"plan_format"`
	Models     Models    `yaml:"models"`
	LLM        LLM       `yaml:"llm"`
	Rounds     Rounds    `yaml:"rounds"`
	Sandbox    Sandbox   `yaml:"sandbox"`
	Results    Results   `yaml:"results"`
	Artifacts  Artifacts `yaml:"artifacts"`
	Secrets    Secrets   `yaml:"secrets"`
	Pricing    string    `yaml:"pricing"`
}

type Models struct {
	Planner string `yaml:"planner"`
	Coder   string `yaml:"coder"`
}

type LLM struct {
	Provider  string `yaml:"provider"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// Rounds bounds the recovery phases. Zero disables a phase.
type Rounds struct {
	Replan int `yaml:"replan"`
	Repair int `yaml:"repair"`
}

type Sandbox struct {
	Runtime        string `yaml:"runtime"`
	Python         string `yaml:"python"`
	Image          string `yaml:"image"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type Results struct {
	Dir string `yaml:"dir"`
}

type Artifacts struct {
	Dir string `yaml:"dir"`
}

type Secrets struct {
	EnvFile string `yaml:"env_file"`
}

// Default returns a config with every default applied, for running without
// a config file.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadOrDefault loads path when it exists and falls back to the defaults
// when it does not, so a bare command line works without a config file.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

func applyDefaults(cfg *Config) {
	if cfg.PlanFormat == "" {
		cfg.PlanFormat = string(plan.FormatNL)
	}
	if cfg.Models.Planner == "" {
		cfg.Models.Planner = "gpt-4o-mini"
	}
	if cfg.Models.Coder == "" {
		cfg.Models.Coder = "gpt-4o-mini"
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Sandbox.Runtime == "" {
		cfg.Sandbox.Runtime = "process"
	}
	if cfg.Sandbox.Python == "" {
		cfg.Sandbox.Python = "python3"
	}
	if cfg.Sandbox.Image == "" {
		cfg.Sandbox.Image = "python:3.12-slim"
	}
	if cfg.Sandbox.TimeoutSeconds == 0 {
		cfg.Sandbox.TimeoutSeconds = 8
	}
	if cfg.Results.Dir == "" {
		cfg.Results.Dir = "runs"
	}
}

func validate(cfg *Config) error {
	if _, err := plan.ParseFormat(cfg.PlanFormat); err != nil {
		return err
	}
	if cfg.Rounds.Replan < 0 {
		return fmt.Errorf("rounds.replan must not be negative")
	}
	if cfg.Rounds.Repair < 0 {
		return fmt.Errorf("rounds.repair must not be negative")
	}
	switch cfg.Sandbox.Runtime {
	case "process", "docker":
	default:
		return fmt.Errorf("sandbox.runtime must be process or docker, got %q", cfg.Sandbox.Runtime)
	}
	if cfg.Sandbox.TimeoutSeconds <= 0 {
		return fmt.Errorf("sandbox.timeout_seconds must be positive")
	}
	return nil
}

// LoadEnvFile parses a secrets file of KEY=VALUE lines. Blank lines,
// comments and an "export " prefix are ignored; single or double quotes
// around a value are stripped.
func LoadEnvFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	vars := map[string]string{}
	for _, line := range strings.Split(string(data), "\n") {
		s := strings.TrimSpace(line)
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		s = strings.TrimPrefix(s, "export ")
		key, val, ok := strings.Cut(s, "=")
		if !ok {
			continue
		}
		vars[key] = stripQuotes(val)
	}
	return vars, nil
}

func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
