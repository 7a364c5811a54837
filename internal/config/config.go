// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/FenixFighter/WebWibe/internal/agents"
	"github.com/FenixFighter/WebWibe/internal/evaluator"
	"github.com/FenixFighter/WebWibe/internal/knowledge"
	"github.com/FenixFighter/WebWibe/internal/llm"
	"github.com/FenixFighter/WebWibe/internal/logging"
	"github.com/FenixFighter/WebWibe/internal/router"
	"github.com/FenixFighter/WebWibe/internal/similarity"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "WEBWIBE_"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete webwibe configuration.
type Config struct {
	Server    ServerConfig     `toml:"server" json:"server"`
	Logging   logging.Config   `toml:"logging" json:"logging"`
	Knowledge KnowledgeConfig  `toml:"knowledge" json:"knowledge"`
	Evaluator evaluator.Config `toml:"evaluator" json:"evaluator"`
	Routing   RoutingConfig    `toml:"routing" json:"routing"`
	Generator llm.Config       `toml:"generator" json:"generator"`
	Broker    BrokerConfig     `toml:"broker" json:"broker"`
	Storage   StorageConfig    `toml:"storage" json:"storage"`
	Agents    AgentsConfig     `toml:"agents" json:"agents"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `toml:"host" json:"host"`
	Port            int           `toml:"port" json:"port"`
	CORSOrigins     []string      `toml:"cors_origins" json:"cors_origins"`
	RateLimit       float64       `toml:"rate_limit" json:"rate_limit"`
	RateBurst       int           `toml:"rate_burst" json:"rate_burst"`
	ReadTimeout     time.Duration `toml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `toml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" json:"shutdown_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// KnowledgeConfig locates the corpus and tunes the index.
type KnowledgeConfig struct {
	// CorpusPath is a CSV or YAML file.
	CorpusPath string `toml:"corpus_path" json:"corpus_path"`
	// StorePath, when set, keeps the corpus in SQLite.
	StorePath      string             `toml:"store_path" json:"store_path"`
	Watch          bool               `toml:"watch" json:"watch"`
	Debounce       time.Duration      `toml:"debounce" json:"debounce"`
	RelevanceFloor float64            `toml:"relevance_floor" json:"relevance_floor"`
	DefaultLimit   int                `toml:"default_limit" json:"default_limit"`
	Weights        similarity.Weights `toml:"weights" json:"weights"`
	StopWords      []string           `toml:"stop_words" json:"stop_words"`
}

// IndexConfig converts the section into index tuning.
func (k KnowledgeConfig) IndexConfig() knowledge.Config {
	cfg := knowledge.DefaultConfig()
	cfg.RelevanceFloor = k.RelevanceFloor
	cfg.DefaultLimit = k.DefaultLimit
	cfg.Scorer.Weights = k.Weights
	if len(k.StopWords) > 0 {
		cfg.Scorer.StopWords = append([]string(nil), k.StopWords...)
	}
	return cfg
}

// RoutingConfig tunes the conversation router.
type RoutingConfig struct {
	AutoEscalateOnLowQuality bool          `toml:"auto_escalate_on_low_quality" json:"auto_escalate_on_low_quality"`
	LowQualityThreshold      int           `toml:"low_quality_threshold" json:"low_quality_threshold"`
	NeedsHumanPhrases        []string      `toml:"needs_human_phrases" json:"needs_human_phrases"`
	GeneratorTimeout         time.Duration `toml:"generator_timeout" json:"generator_timeout"`
	FallbackAnswer           string        `toml:"fallback_answer" json:"fallback_answer"`
	SuggestionLimit          int           `toml:"suggestion_limit" json:"suggestion_limit"`
	HistoryMessages          int           `toml:"history_messages" json:"history_messages"`
	ContextEntries           int           `toml:"context_entries" json:"context_entries"`
}

// Policy converts the section into router policy.
func (r RoutingConfig) Policy() router.Policy {
	return router.Policy{
		AutoEscalateOnLowQuality: r.AutoEscalateOnLowQuality,
		LowQualityThreshold:      r.LowQualityThreshold,
		NeedsHumanPhrases:        append([]string(nil), r.NeedsHumanPhrases...),
		GeneratorTimeout:         r.GeneratorTimeout,
		FallbackAnswer:           r.FallbackAnswer,
		SuggestionLimit:          r.SuggestionLimit,
		HistoryMessages:          r.HistoryMessages,
		ContextEntries:           r.ContextEntries,
		AgentRole:                agents.RoleSupport,
	}
}

// BrokerConfig points at the RabbitMQ exchange. An empty URL disables it.
type BrokerConfig struct {
	URL           string `toml:"url" json:"url"`
	Exchange      string `toml:"exchange" json:"exchange"`
	Producer      string `toml:"producer" json:"producer"`
	RetryAttempts int    `toml:"retry_attempts" json:"retry_attempts"`
}

// StorageConfig locates transcripts and the assignment ledger.
type StorageConfig struct {
	TranscriptDir string `toml:"transcript_dir" json:"transcript_dir"`
	// LedgerPath is a SQLite file; empty keeps assignments in memory.
	LedgerPath string `toml:"ledger_path" json:"ledger_path"`
}

// AgentsConfig lists support agent accounts.
type AgentsConfig struct {
	SessionTTL    time.Duration    `toml:"session_ttl" json:"session_ttl"`
	SweepInterval time.Duration    `toml:"sweep_interval" json:"sweep_interval"`
	Accounts      []agents.Account `toml:"accounts" json:"accounts"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a configuration with every field set.
func Default() *Config {
	idx := knowledge.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			CORSOrigins:     []string{"*"},
			RateLimit:       10,
			RateBurst:       20,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: logging.DefaultConfig(),
		Knowledge: KnowledgeConfig{
			CorpusPath:     "",
			Debounce:       500 * time.Millisecond,
			RelevanceFloor: idx.RelevanceFloor,
			DefaultLimit:   idx.DefaultLimit,
			Weights:        idx.Scorer.Weights,
		},
		Evaluator: evaluator.DefaultConfig(),
		Routing: RoutingConfig{
			AutoEscalateOnLowQuality: false,
			LowQualityThreshold:      30,
			NeedsHumanPhrases:        append([]string(nil), router.DefaultNeedsHumanPhrases...),
			GeneratorTimeout:         30 * time.Second,
			FallbackAnswer:           router.DefaultFallbackAnswer,
			SuggestionLimit:          3,
			HistoryMessages:          10,
			ContextEntries:           3,
		},
		Generator: llm.Config{
			Provider:     "openai",
			BaseURL:      "",
			Model:        "gpt-3.5-turbo",
			MaxTokens:    1024,
			Temperature:  0.7,
			SystemPrompt: llm.DefaultSystemPrompt,
		},
		Broker: BrokerConfig{
			Exchange:      "webwibe.chat",
			Producer:      "webwibe",
			RetryAttempts: 5,
		},
		Storage: StorageConfig{},
		Agents: AgentsConfig{
			SessionTTL:    agents.DefaultSessionTTL,
			SweepInterval: time.Minute,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the webwibe configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".webwibe"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ensureSecurePermissions tightens a config file to 0600. It holds API keys
// and password hashes.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads ~/.webwibe/config.toml if it exists and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ConfigPathTOML()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}

	cfg := Default()
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath loads a specific TOML file on top of the defaults.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := LoadTOML(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadTOML decodes path into cfg. Keys absent from the file keep the values
// cfg already holds.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		fmt.Fprintf(os.Stderr, "Warning: unknown config keys in %s: %s\n", path, strings.Join(keys, ", "))
	}
	return nil
}

func (c *Config) finish() error {
	c.ApplyEnvOverrides()
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg to path with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	fmt.Fprintln(file, "# webwibe configuration file")
	fmt.Fprintln(file, "# Durations use Go syntax: \"500ms\", \"30s\", \"8h\".")
	fmt.Fprintln(file, "")

	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks ranges and enumerations. All problems are reported at once.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		add("server.port", "port %d out of range 1-65535", c.Server.Port)
	}
	if c.Server.RateLimit < 0 {
		add("server.rate_limit", "must not be negative")
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		add("server.rate_burst", "must be at least 1 when rate_limit is set")
	}

	// Logging
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		add("logging.level", "%v", err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		add("logging.format", "invalid format '%s', must be one of: text, json", c.Logging.Format)
	}

	// Knowledge
	if c.Knowledge.RelevanceFloor < 0 || c.Knowledge.RelevanceFloor >= 1 {
		add("knowledge.relevance_floor", "must be in [0, 1), got %g", c.Knowledge.RelevanceFloor)
	}
	if c.Knowledge.DefaultLimit < 1 {
		add("knowledge.default_limit", "must be at least 1")
	}
	w := c.Knowledge.Weights
	if w.Token < 0 || w.Bigram < 0 || w.Keyword < 0 {
		add("knowledge.weights", "weights must not be negative")
	} else if sum := w.Token + w.Bigram + w.Keyword; sum < 0.999 || sum > 1.001 {
		add("knowledge.weights", "weights must sum to 1, got %g", sum)
	}
	if c.Knowledge.CorpusPath != "" {
		switch strings.ToLower(filepath.Ext(c.Knowledge.CorpusPath)) {
		case ".csv", ".yaml", ".yml":
		default:
			add("knowledge.corpus_path", "unsupported corpus format %q", filepath.Ext(c.Knowledge.CorpusPath))
		}
	}
	if c.Knowledge.Watch && c.Knowledge.CorpusPath == "" {
		add("knowledge.watch", "requires corpus_path")
	}

	// Evaluator
	if c.Evaluator.Base < 0 || c.Evaluator.Base > 100 {
		add("evaluator.base", "must be in [0, 100], got %d", c.Evaluator.Base)
	}
	if c.Evaluator.MinLength < 0 {
		add("evaluator.min_length", "must not be negative")
	}

	// Routing
	if c.Routing.LowQualityThreshold < 0 || c.Routing.LowQualityThreshold > 100 {
		add("routing.low_quality_threshold", "must be in [0, 100], got %d", c.Routing.LowQualityThreshold)
	}
	if c.Routing.GeneratorTimeout <= 0 {
		add("routing.generator_timeout", "must be positive")
	}
	if c.Routing.SuggestionLimit < 0 {
		add("routing.suggestion_limit", "must not be negative")
	}
	if c.Routing.HistoryMessages < 0 {
		add("routing.history_messages", "must not be negative")
	}

	// Generator
	switch strings.ToLower(c.Generator.Provider) {
	case "openai", "ollama", "static":
	default:
		add("generator.provider", "invalid provider '%s', must be one of: openai, ollama, static", c.Generator.Provider)
	}
	if c.Generator.BaseURL != "" {
		if u, err := url.Parse(c.Generator.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			add("generator.base_url", "invalid URL '%s'", c.Generator.BaseURL)
		}
	}
	if c.Generator.Temperature < 0 || c.Generator.Temperature > 2 {
		add("generator.temperature", "must be in [0, 2], got %g", c.Generator.Temperature)
	}

	// Broker
	if c.Broker.URL != "" {
		if u, err := url.Parse(c.Broker.URL); err != nil || (u.Scheme != "amqp" && u.Scheme != "amqps") {
			add("broker.url", "must be an amqp:// or amqps:// URL")
		}
		if c.Broker.Exchange == "" {
			add("broker.exchange", "required when broker.url is set")
		}
	}

	// Agents
	if c.Agents.SessionTTL <= 0 {
		add("agents.session_ttl", "must be positive")
	}
	seen := make(map[string]bool)
	for i, a := range c.Agents.Accounts {
		field := fmt.Sprintf("agents.accounts[%d]", i)
		if a.ID == "" || a.Username == "" {
			add(field, "id and username are required")
		}
		if a.PasswordHash == "" {
			add(field, "password_hash is required")
		}
		if seen[a.ID] {
			add(field, "duplicate id %q", a.ID)
		}
		seen[a.ID] = true
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero-value fields from Default.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Server.Host == "" {
		c.Server.Host = d.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = d.Server.ReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = d.Server.WriteTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = d.Server.ShutdownTimeout
	}

	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
	if c.Logging.Output == "" {
		c.Logging.Output = d.Logging.Output
	}

	if c.Knowledge.Debounce == 0 {
		c.Knowledge.Debounce = d.Knowledge.Debounce
	}
	if c.Knowledge.DefaultLimit == 0 {
		c.Knowledge.DefaultLimit = d.Knowledge.DefaultLimit
	}
	if c.Knowledge.Weights == (similarity.Weights{}) {
		c.Knowledge.Weights = d.Knowledge.Weights
	}

	if c.Routing.GeneratorTimeout == 0 {
		c.Routing.GeneratorTimeout = d.Routing.GeneratorTimeout
	}
	if c.Routing.FallbackAnswer == "" {
		c.Routing.FallbackAnswer = d.Routing.FallbackAnswer
	}
	if c.Routing.NeedsHumanPhrases == nil {
		c.Routing.NeedsHumanPhrases = d.Routing.NeedsHumanPhrases
	}

	if c.Generator.Provider == "" {
		c.Generator.Provider = d.Generator.Provider
	}
	if c.Generator.SystemPrompt == "" {
		c.Generator.SystemPrompt = d.Generator.SystemPrompt
	}
	if c.Generator.MaxTokens == 0 {
		c.Generator.MaxTokens = d.Generator.MaxTokens
	}
	c.Generator.Timeout = c.Routing.GeneratorTimeout

	if c.Broker.Producer == "" {
		c.Broker.Producer = d.Broker.Producer
	}

	if c.Storage.TranscriptDir == "" {
		if dir, err := ConfigDir(); err == nil {
			c.Storage.TranscriptDir = filepath.Join(dir, "transcripts")
		}
	}

	if c.Agents.SessionTTL == 0 {
		c.Agents.SessionTTL = d.Agents.SessionTTL
	}
	if c.Agents.SweepInterval == 0 {
		c.Agents.SweepInterval = d.Agents.SweepInterval
	}
	for i := range c.Agents.Accounts {
		if c.Agents.Accounts[i].Role == "" {
			c.Agents.Accounts[i].Role = agents.RoleSupport
		}
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - WEBWIBE_HOST, WEBWIBE_PORT: server listener
//   - WEBWIBE_LOG_LEVEL, WEBWIBE_LOG_FORMAT: logging
//   - WEBWIBE_CORPUS: knowledge.corpus_path
//   - WEBWIBE_GENERATOR: generator.provider
//   - WEBWIBE_GENERATOR_URL: generator.base_url
//   - WEBWIBE_MODEL: generator.model
//   - WEBWIBE_API_KEY (or OPENAI_API_KEY): generator.api_key
//   - WEBWIBE_BROKER_URL: broker.url
//   - WEBWIBE_AUTO_ESCALATE: "1" or "true" enables low-quality escalation
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv(EnvPrefix + "HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv(EnvPrefix + "PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv(EnvPrefix + "CORPUS"); v != "" {
		c.Knowledge.CorpusPath = v
	}
	if v := os.Getenv(EnvPrefix + "GENERATOR"); v != "" {
		c.Generator.Provider = v
	}
	if v := os.Getenv(EnvPrefix + "GENERATOR_URL"); v != "" {
		c.Generator.BaseURL = v
	}
	if v := os.Getenv(EnvPrefix + "MODEL"); v != "" {
		c.Generator.Model = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Generator.APIKey = v
	}
	if v := os.Getenv(EnvPrefix + "API_KEY"); v != "" {
		c.Generator.APIKey = v
	}
	if v := os.Getenv(EnvPrefix + "BROKER_URL"); v != "" {
		c.Broker.URL = v
	}
	if v := os.Getenv(EnvPrefix + "AUTO_ESCALATE"); v != "" {
		c.Routing.AutoEscalateOnLowQuality = v == "1" || strings.ToLower(v) == "true"
	}
}

// =============================================================================
// GET HELPER (DOT NOTATION)
// =============================================================================

// Get retrieves a value by its TOML key path, e.g. "routing.low_quality_threshold".
func (c *Config) Get(key string) (any, error) {
	if key == "" {
		return nil, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return nil, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field.Interface(), nil
		}
		if field.Kind() != reflect.Struct {
			return nil, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return nil, fmt.Errorf("invalid key: %s", key)
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("toml"), ",")[0]
		if tag == "-" {
			continue
		}
		if strings.EqualFold(tag, name) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// =============================================================================
// UTILITY
// =============================================================================

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Server.CORSOrigins = append([]string(nil), c.Server.CORSOrigins...)
	clone.Knowledge.StopWords = append([]string(nil), c.Knowledge.StopWords...)
	clone.Routing.NeedsHumanPhrases = append([]string(nil), c.Routing.NeedsHumanPhrases...)
	clone.Agents.Accounts = append([]agents.Account(nil), c.Agents.Accounts...)
	m := c.Evaluator.Markers
	clone.Evaluator.Markers = evaluator.Markers{
		Helpful:        append([]string(nil), m.Helpful...),
		DomainTerms:    append([]string(nil), m.DomainTerms...),
		Unprofessional: append([]string(nil), m.Unprofessional...),
		Negative:       append([]string(nil), m.Negative...),
		Generic:        append([]string(nil), m.Generic...),
	}
	return &clone
}

// String renders the config as JSON with secrets redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Generator.APIKey != "" {
		safe.Generator.APIKey = "[REDACTED]"
	}
	if safe.Broker.URL != "" {
		if u, err := url.Parse(safe.Broker.URL); err == nil && u.User != nil {
			u.User = url.UserPassword(u.User.Username(), "REDACTED")
			safe.Broker.URL = u.String()
		}
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
