package common

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	LLM      LLMConfig      `yaml:"llm"`
	Jobs     JobsConfig     `yaml:"jobs"`
	Enrich   EnrichConfig   `yaml:"enrich"`
	Codegen  CodegenConfig  `yaml:"codegen"`
}

// DatabaseConfig holds the job store configuration. DSN selects the driver:
// postgres:// URLs use pgx, anything else is treated as a sqlite path.
type DatabaseConfig struct {
	DSN         string        `yaml:"dsn"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LLMConfig holds LLM provider configuration
type LLMConfig struct {
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// JobsConfig holds pipeline behavior settings
type JobsConfig struct {
	OutputDir     string `yaml:"output_dir"`
	MaxRetries    int    `yaml:"max_retries"`
	SampleRows    int    `yaml:"sample_rows"`
	MaxConcurrent int    `yaml:"max_concurrent"`
}

// EnrichConfig holds enrichment service settings
type EnrichConfig struct {
	PincodeCachePath string        `yaml:"pincode_cache_path"`
	HTTPTimeout      time.Duration `yaml:"http_timeout"`
}

// CodegenConfig holds fallback script generation settings
type CodegenConfig struct {
	PythonBin     string        `yaml:"python_bin"`
	ScriptTimeout time.Duration `yaml:"script_timeout"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:         getEnv("DB_URL", "tablemorph.db"),
			DialTimeout: getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Server: ServerConfig{
			Addr: getEnv("HTTP_ADDR", ":8080"),
		},
		LLM: LLMConfig{
			Model:       getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
			APIKey:      getEnv("ANTHROPIC_API_KEY", ""),
			BaseURL:     getEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
			MaxTokens:   getEnvAsInt("ANTHROPIC_MAX_TOKENS", 4096),
			Temperature: getEnvAsFloat32("ANTHROPIC_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("ANTHROPIC_TIMEOUT", 60*time.Second),
		},
		Jobs: JobsConfig{
			OutputDir:     getEnv("OUTPUT_DIR", "output"),
			MaxRetries:    getEnvAsInt("JOB_MAX_RETRIES", 3),
			SampleRows:    getEnvAsInt("JOB_SAMPLE_ROWS", 50),
			MaxConcurrent: getEnvAsInt("JOB_MAX_CONCURRENT", 4),
		},
		Enrich: EnrichConfig{
			PincodeCachePath: getEnv("PINCODE_CACHE_PATH", "pincode_cache.json"),
			HTTPTimeout:      getEnvAsDuration("ENRICH_HTTP_TIMEOUT", 5*time.Second),
		},
		Codegen: CodegenConfig{
			PythonBin:     getEnv("PYTHON_BIN", "python3"),
			ScriptTimeout: getEnvAsDuration("CODEGEN_SCRIPT_TIMEOUT", 2*time.Minute),
		},
	}
}

// ApplyFile overlays values from a YAML config file onto c. Missing file is
// not an error when optional is true.
func (c *Config) ApplyFile(path string, optional bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil
		}
		return WrapError(err, "read config file")
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return WrapError(err, "parse config file")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.Addr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Jobs.MaxRetries < 0 {
		return NewAppError("CONFIG_ERROR", "JOB_MAX_RETRIES must be >= 0", ErrInvalidInput)
	}
	return nil
}
