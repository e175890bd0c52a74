package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the server configuration. Priority: ENV > YAML (CONFIG_PATH) > defaults.
type Config struct {
	Port        string   `yaml:"port"         env:"PORT"                 env-default:"8080"`
	DatabaseURL string   `yaml:"database_url" env:"DATABASE_URL"         env-required:"true"`
	CORSOrigins []string `yaml:"cors_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"*" env-separator:","`

	Log      LogConfig      `yaml:"log"`
	Auth     AuthConfig     `yaml:"auth"`
	Crypto   CryptoConfig   `yaml:"crypto"`
	Model    ModelConfig    `yaml:"model"`
	Feedback FeedbackConfig `yaml:"feedback"`
	Stats    StatsConfig    `yaml:"stats"`
}

type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"` // json | console
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	TokenTTL  time.Duration `yaml:"token_ttl"  env:"JWT_TTL"    env-default:"24h"`
}

// CryptoConfig holds base64 encoded 32 byte keys. Both empty disables
// encryption at rest.
type CryptoConfig struct {
	EncryptionKey string `yaml:"encryption_key"  env:"ENCRYPTION_KEY"`
	BlindIndexKey string `yaml:"blind_index_key" env:"BLIND_INDEX_KEY"`
}

type ModelConfig struct {
	Provider    string  `yaml:"provider"     env:"MODEL_PROVIDER"     env-default:"bigmodel"` // bigmodel | gemini | none
	APIKey      string  `yaml:"api_key"      env:"BIGMODEL_API_KEY"`
	BaseURL     string  `yaml:"base_url"     env:"BIGMODEL_BASE_URL"  env-default:"https://open.bigmodel.cn/api/paas/v4"`
	Model       string  `yaml:"model"        env:"BIGMODEL_MODEL"     env-default:"glm-4-flash"`
	JSONMode    bool    `yaml:"json_mode"    env:"MODEL_JSON_MODE"    env-default:"false"`
	GeminiKey   string  `yaml:"gemini_key"   env:"GEMINI_API_KEY"`
	GeminiModel string  `yaml:"gemini_model" env:"GEMINI_MODEL"       env-default:"gemini-1.5-flash"`
	Temperature float64 `yaml:"temperature"  env:"MODEL_TEMPERATURE"  env-default:"0.7"`
	MaxTokens   int     `yaml:"max_tokens"   env:"MODEL_MAX_TOKENS"   env-default:"2000"`
	MaxRetries  int     `yaml:"max_retries"  env:"MODEL_MAX_RETRIES"  env-default:"1"`
}

type FeedbackConfig struct {
	Timeout time.Duration `yaml:"timeout" env:"FEEDBACK_TIMEOUT" env-default:"20s"`
}

type StatsConfig struct {
	Timezone string `yaml:"timezone" env:"STATS_TIMEZONE" env-default:"Asia/Shanghai"`
}

// Load reads configuration from CONFIG_PATH (if set) and the environment.
func Load() (*Config, error) {
	var cfg Config
	var err error
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if len(c.Auth.JWTSecret) < 16 {
		return errors.New("JWT_SECRET must be at least 16 characters")
	}
	switch c.Model.Provider {
	case "bigmodel", "gemini", "none":
	default:
		return fmt.Errorf("unknown MODEL_PROVIDER %q", c.Model.Provider)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if (c.Crypto.EncryptionKey == "") != (c.Crypto.BlindIndexKey == "") {
		return errors.New("ENCRYPTION_KEY and BLIND_INDEX_KEY must be set together")
	}
	if c.Crypto.EncryptionKey != "" {
		if _, _, err := c.Crypto.Keys(); err != nil {
			return err
		}
	}
	return nil
}

// Location returns the fixed timezone used for calendar-day boundaries.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Stats.Timezone)
	if err != nil {
		return nil, fmt.Errorf("STATS_TIMEZONE %q: %w", c.Stats.Timezone, err)
	}
	return loc, nil
}

// Keys decodes the encryption and blind index keys.
func (c CryptoConfig) Keys() (enc, idx []byte, err error) {
	enc, err = base64.StdEncoding.DecodeString(c.EncryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("ENCRYPTION_KEY: %w", err)
	}
	idx, err = base64.StdEncoding.DecodeString(c.BlindIndexKey)
	if err != nil {
		return nil, nil, fmt.Errorf("BLIND_INDEX_KEY: %w", err)
	}
	return enc, idx, nil
}

// Enabled reports whether encryption at rest is configured.
func (c CryptoConfig) Enabled() bool { return c.EncryptionKey != "" }

// Configured reports whether a model gateway has credentials.
func (c ModelConfig) Configured() bool {
	switch c.Provider {
	case "bigmodel":
		return c.APIKey != ""
	case "gemini":
		return c.GeminiKey != ""
	}
	return false
}
