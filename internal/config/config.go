package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      App      `mapstructure:"app"`
	AI       AI       `mapstructure:"ai"`
	Analysis Analysis `mapstructure:"analysis"`
	Store    Store    `mapstructure:"store"`
	Logging  Logging  `mapstructure:"logging"`
}

// App holds general application configuration
type App struct {
	DataDir    string `mapstructure:"data_dir"`
	ConfigFile string `mapstructure:"config_file"`
}

// AI holds model configuration
type AI struct {
	Gemini GeminiConfig `mapstructure:"gemini"`
}

// GeminiConfig holds Google Gemini configuration
type GeminiConfig struct {
	APIKey            string   `mapstructure:"api_key"`
	Models            []string `mapstructure:"models"`         // Candidates tried in order
	FallbackModel     string   `mapstructure:"fallback_model"` // Used when every candidate is missing
	Timeout           string   `mapstructure:"timeout"`        // Per-attempt timeout
	MaxTokens         int32    `mapstructure:"max_tokens"`
	Temperature       float32  `mapstructure:"temperature"`
	JSONMode          bool     `mapstructure:"json_mode"`
	RequestsPerMinute int      `mapstructure:"requests_per_minute"` // 0 disables client-side limiting
}

// Analysis holds batch analysis settings
type Analysis struct {
	BatchSize     int    `mapstructure:"batch_size"`
	Mode          string `mapstructure:"mode"`  // resilient or strict
	Scope         string `mapstructure:"scope"` // split or full
	MaxAttempts   int    `mapstructure:"max_attempts"`
	BaseDelay     string `mapstructure:"base_delay"`
	RunTimeout    string `mapstructure:"run_timeout"`
	SummaryBudget int    `mapstructure:"summary_budget"`
	MaxSummaries  int    `mapstructure:"max_summaries"`
	Resummarize   bool   `mapstructure:"resummarize"`
}

// Store holds report persistence configuration
type Store struct {
	Enabled bool   `mapstructure:"enabled"`
	Driver  string `mapstructure:"driver"` // sqlite3 or postgres
	DSN     string `mapstructure:"dsn"`    // Defaults to <data_dir>/reports.db for sqlite3
}

// Logging holds logging configuration
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Global configuration instance
var globalConfig *Config

// Load initializes and loads configuration from multiple sources
// Priority: flags > env vars > config file > defaults
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists (for backward compatibility)
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".swotlens")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.SetEnvPrefix("SWOTLENS")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	config.App.ConfigFile = viper.ConfigFileUsed()

	if err := postProcessConfig(config); err != nil {
		return nil, fmt.Errorf("error post-processing config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration instance
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

func setDefaults() {
	viper.SetDefault("app.data_dir", ".swotlens")

	viper.SetDefault("ai.gemini.models", []string{"gemini-2.5-flash", "gemini-2.0-flash"})
	viper.SetDefault("ai.gemini.fallback_model", "gemini-flash-lite-latest")
	viper.SetDefault("ai.gemini.timeout", "2m")
	viper.SetDefault("ai.gemini.max_tokens", 8192)
	viper.SetDefault("ai.gemini.temperature", 0.4)
	viper.SetDefault("ai.gemini.json_mode", true)
	viper.SetDefault("ai.gemini.requests_per_minute", 0)

	viper.SetDefault("analysis.batch_size", 500)
	viper.SetDefault("analysis.mode", "resilient")
	viper.SetDefault("analysis.scope", "split")
	viper.SetDefault("analysis.max_attempts", 3)
	viper.SetDefault("analysis.base_delay", "1s")
	viper.SetDefault("analysis.run_timeout", "15m")
	viper.SetDefault("analysis.summary_budget", 1200)
	viper.SetDefault("analysis.max_summaries", 5)
	viper.SetDefault("analysis.resummarize", false)

	viper.SetDefault("store.enabled", true)
	viper.SetDefault("store.driver", "sqlite3")
	viper.SetDefault("store.dsn", "")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
}

// bindEnvironmentVariables binds the env var spellings each key accepts
func bindEnvironmentVariables() {
	bindEnvKeys("ai.gemini.api_key", []string{
		"GEMINI_API_KEY",
		"GOOGLE_GEMINI_API_KEY",
		"GOOGLE_AI_API_KEY",
		"GOOGLE_API_KEY",
	})

	bindEnvKeys("store.dsn", []string{
		"SWOTLENS_DATABASE_URL",
		"DATABASE_URL",
	})

	bindEnvKeys("logging.level", []string{
		"SWOTLENS_LOG_LEVEL",
		"LOG_LEVEL",
	})
}

// bindEnvKeys sets the key from the first non-empty env var
func bindEnvKeys(viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(viperKey, value)
			return
		}
	}
}

func postProcessConfig(config *Config) error {
	if config.App.DataDir != "" {
		config.App.DataDir = expandPath(config.App.DataDir)
	}
	if config.Store.Driver == "sqlite3" && config.Store.DSN == "" {
		config.Store.DSN = filepath.Join(config.App.DataDir, "reports.db")
	}
	if strings.HasPrefix(config.Store.DSN, "postgres://") || strings.HasPrefix(config.Store.DSN, "postgresql://") {
		config.Store.Driver = "postgres"
	}

	durations := map[string]string{
		"ai.gemini.timeout":    config.AI.Gemini.Timeout,
		"analysis.base_delay":  config.Analysis.BaseDelay,
		"analysis.run_timeout": config.Analysis.RunTimeout,
	}
	for key, duration := range durations {
		if duration != "" {
			if _, err := time.ParseDuration(duration); err != nil {
				return fmt.Errorf("invalid duration for %s: %s", key, duration)
			}
		}
	}

	return nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

// validateConfig collects every invalid setting into one error
func validateConfig(config *Config) error {
	var errors []string

	if config.Analysis.BatchSize <= 0 {
		errors = append(errors, fmt.Sprintf("analysis.batch_size must be positive, got %d", config.Analysis.BatchSize))
	}
	switch config.Analysis.Mode {
	case "resilient", "strict":
	default:
		errors = append(errors, fmt.Sprintf("Unknown analysis mode: %s. Supported: resilient, strict", config.Analysis.Mode))
	}
	switch config.Analysis.Scope {
	case "split", "full":
	default:
		errors = append(errors, fmt.Sprintf("Unknown analysis scope: %s. Supported: split, full", config.Analysis.Scope))
	}
	if config.Analysis.MaxAttempts <= 0 {
		errors = append(errors, fmt.Sprintf("analysis.max_attempts must be positive, got %d", config.Analysis.MaxAttempts))
	}
	if config.Analysis.SummaryBudget <= 0 || config.Analysis.MaxSummaries <= 0 {
		errors = append(errors, "analysis.summary_budget and analysis.max_summaries must be positive")
	}
	if config.AI.Gemini.RequestsPerMinute < 0 {
		errors = append(errors, "ai.gemini.requests_per_minute cannot be negative")
	}

	switch config.Store.Driver {
	case "sqlite3", "postgres":
	default:
		errors = append(errors, fmt.Sprintf("Unknown store driver: %s. Supported: sqlite3, postgres", config.Store.Driver))
	}

	switch config.Logging.Format {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("Unknown logging format: %s. Supported: text, json", config.Logging.Format))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// RequireGeminiAPIKey returns the API key or an error explaining how to set it.
// Only commands that call the model need a key.
func (c *Config) RequireGeminiAPIKey() (string, error) {
	if !isValidAPIKey(c.AI.Gemini.APIKey) {
		return "", fmt.Errorf("Gemini API key is required. Set GEMINI_API_KEY environment variable or ai.gemini.api_key in config file.\nGet your API key from: https://aistudio.google.com/app/apikey")
	}
	return c.AI.Gemini.APIKey, nil
}

// Duration parses a duration setting already checked by Load.
func Duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

func isValidAPIKey(apiKey string) bool {
	if apiKey == "" {
		return false
	}

	placeholders := []string{
		"your-api-key", "your-gemini-key", "your-google-api-key",
		"YOUR_API_KEY", "PLACEHOLDER", "TODO", "CHANGE_ME",
	}
	for _, placeholder := range placeholders {
		if apiKey == placeholder {
			return false
		}
	}

	return true
}

// Reset clears the global configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viper.Reset()
}
