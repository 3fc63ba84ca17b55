package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-git/gcfg/v2"
	"github.com/go-playground/validator/v10"

	"github.com/Hoooon22/devzip-sub000/internal/classifier"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultMaxFailures = 5
	defaultCooldown    = 30 * time.Second
)

// UserConfig is the user-level configuration read from
// ~/.config/mindmap/config.
type UserConfig struct {
	Classifier ClassifierConfig
	Gemini     GeminiConfig
	Breaker    BreakerConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
	Tracing    TracingConfig
}

type ClassifierConfig struct {
	Backend string        `validate:"omitempty,oneof=ollama claude gemini"`
	URL     string        `validate:"omitempty,url"`
	Model   string
	Timeout time.Duration `validate:"gte=0"`
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type BreakerConfig struct {
	MaxFailures int           `validate:"gte=0"`
	Cooldown    time.Duration `validate:"gte=0"`
}

type AuditConfig struct {
	Path    string
	Disable bool
}

type MetricsConfig struct {
	Listen string `validate:"omitempty,hostname_port"`
}

// TracingConfig enables OTLP span export of classifier calls.
type TracingConfig struct {
	Endpoint string `validate:"omitempty,hostname_port"`
}

// defaultModels is the model used when [classifier] model is unset, keyed by
// backend. The Gemini entry is empty so NewGemini picks its own default.
var defaultModels = map[string]string{
	"":                       "claude:haiku",
	classifier.BackendClaude: "haiku",
	classifier.BackendOllama: "llama3.2",
	classifier.BackendGemini: "",
}

var validate = validator.New()

// configPath returns the config file to read: the explicit path when set,
// otherwise ~/.config/mindmap/config.
func configPath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	return filepath.Join(home, ".config", "mindmap", "config"), nil
}

// loadUserConfig reads the config file at path and returns it with defaults
// and environment overrides applied. A missing file yields the defaults.
func loadUserConfig(path string) (*UserConfig, error) {
	m, err := parseConfig(path, nil)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	cfg, err := hydrateUserConfig(m)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	applyEnv(cfg, os.Getenv)

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// parseConfig reads a git-config style file into a flat map keyed
// "section.key" (or "section.subsection.key"). Every occurrence of a key is
// kept in file order. An [include] path is read in place, relative to the
// including file; a missing include is skipped.
func parseConfig(path string, visited map[string]bool) (map[string][]string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	if visited == nil {
		visited = map[string]bool{}
	}
	if visited[abs] {
		return nil, nil
	}
	visited[abs] = true

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}

	m := map[string][]string{}
	dir := filepath.Dir(abs)
	err = gcfg.ReadWithCallback(bytes.NewReader(data), func(sect, sub, key, value string, blank bool) error {
		if key == "" {
			return nil
		}
		sect, key = strings.ToLower(sect), strings.ToLower(key)
		if blank {
			value = "true"
		}

		if sect == "include" && key == "path" {
			inc := value
			if !filepath.IsAbs(inc) {
				inc = filepath.Join(dir, inc)
			}
			included, err := parseConfig(inc, visited)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return nil
				}
				return err
			}
			for k, vs := range included {
				m[k] = append(m[k], vs...)
			}
			return nil
		}

		name := sect + "." + key
		if sub != "" {
			name = sect + "." + sub + "." + key
		}
		m[name] = append(m[name], value)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return m, nil
}

// lastValue returns the last value recorded for key, or "".
func lastValue(m map[string][]string, key string) string {
	vs := m[key]
	if len(vs) == 0 {
		return ""
	}
	return vs[len(vs)-1]
}

func hydrateUserConfig(m map[string][]string) (*UserConfig, error) {
	cfg := &UserConfig{
		Classifier: ClassifierConfig{
			URL: defaultOllamaURL,
		},
		Breaker: BreakerConfig{
			MaxFailures: defaultMaxFailures,
			Cooldown:    defaultCooldown,
		},
	}

	var err error
	setString := func(dst *string, key string) {
		if v := lastValue(m, key); v != "" {
			*dst = v
		}
	}
	setDuration := func(dst *time.Duration, key string) {
		if v := lastValue(m, key); v != "" && err == nil {
			d, perr := time.ParseDuration(v)
			if perr != nil {
				err = fmt.Errorf("%s: %w", key, perr)
				return
			}
			*dst = d
		}
	}
	setInt := func(dst *int, key string) {
		if v := lastValue(m, key); v != "" && err == nil {
			n, perr := strconv.Atoi(v)
			if perr != nil {
				err = fmt.Errorf("%s: %w", key, perr)
				return
			}
			*dst = n
		}
	}
	setBool := func(dst *bool, key string) {
		if v := lastValue(m, key); v != "" && err == nil {
			b, perr := strconv.ParseBool(v)
			if perr != nil {
				err = fmt.Errorf("%s: %w", key, perr)
				return
			}
			*dst = b
		}
	}

	setString(&cfg.Classifier.Backend, "classifier.backend")
	setString(&cfg.Classifier.URL, "classifier.url")
	setString(&cfg.Classifier.Model, "classifier.model")
	setDuration(&cfg.Classifier.Timeout, "classifier.timeout")

	setString(&cfg.Gemini.APIKey, "gemini.api-key")
	setString(&cfg.Gemini.Model, "gemini.model")

	setInt(&cfg.Breaker.MaxFailures, "breaker.max-failures")
	setDuration(&cfg.Breaker.Cooldown, "breaker.cooldown")

	setString(&cfg.Audit.Path, "audit.path")
	setBool(&cfg.Audit.Disable, "audit.disable")

	setString(&cfg.Metrics.Listen, "metrics.listen")
	setString(&cfg.Tracing.Endpoint, "tracing.endpoint")

	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables on cfg.
func applyEnv(cfg *UserConfig, getenv func(string) string) {
	if v := getenv("MINDMAP_BACKEND"); v != "" {
		cfg.Classifier.Backend = v
	}
	if v := getenv("MINDMAP_MODEL"); v != "" {
		cfg.Classifier.Model = v
	}
	if v := getenv("GEMINI_API_KEY"); v != "" {
		cfg.Gemini.APIKey = v
	}
}

// classifierConfig translates the user config for classifier.New.
func (c *UserConfig) classifierConfig() classifier.Config {
	model := c.Classifier.Model
	if model == "" && c.Classifier.Backend == classifier.BackendGemini {
		model = c.Gemini.Model
	}
	if model == "" {
		model = defaultModels[c.Classifier.Backend]
	}
	return classifier.Config{
		Backend:      c.Classifier.Backend,
		URL:          c.Classifier.URL,
		Model:        model,
		Timeout:      c.Classifier.Timeout,
		GeminiAPIKey: c.Gemini.APIKey,
		Breaker: classifier.BreakerConfig{
			MaxFailures: uint32(c.Breaker.MaxFailures),
			Cooldown:    c.Breaker.Cooldown,
		},
		Tracing: c.Tracing.Endpoint != "",
	}
}

// auditPath returns the audit database path, defaulting to
// ~/.local/state/mindmap/audit.db.
func (c *UserConfig) auditPath() (string, error) {
	if c.Audit.Path != "" {
		return c.Audit.Path, nil
	}
	dir, err := stateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "audit.db"), nil
}

func stateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	dir := filepath.Join(home, ".local", "state", "mindmap")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("create state dir: %w", err)
	}
	return dir, nil
}
