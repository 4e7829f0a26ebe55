package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type Config struct {
	Mode     string `mapstructure:"mode"`
	Handlers struct {
		Prometheus struct {
			Port    string `mapstructure:"port"`
			Enabled bool   `mapstructure:"enabled"`
		} `mapstructure:"prometheus"`
	} `mapstructure:"handlers"`
	Server struct {
		HTTPPort       string        `mapstructure:"HTTPPort"`
		Timeout        time.Duration `mapstructure:"HTTPTimeout"`
		AllowedOrigins []string      `mapstructure:"allowedOrigins"`
		RateLimit      struct {
			Requests int           `mapstructure:"requests"`
			Window   time.Duration `mapstructure:"window"`
		} `mapstructure:"rateLimit"`
	} `mapstructure:"server"`
	Log struct {
		File string `mapstructure:"file"`
	} `mapstructure:"log"`
	LLM struct {
		Provider    string        `mapstructure:"provider"`
		Model       string        `mapstructure:"model"`
		BaseURL     string        `mapstructure:"baseURL"`
		Timeout     time.Duration `mapstructure:"timeout"`
		OpenAIKey   string        `mapstructure:"openaiKey"`
		GeminiKey   string        `mapstructure:"geminiKey"`
		Temperature float32       `mapstructure:"temperature"`
	} `mapstructure:"llm"`
	Search struct {
		BaseURL     string        `mapstructure:"baseURL"`
		APIKey      string        `mapstructure:"apiKey"`
		Timeout     time.Duration `mapstructure:"timeout"`
		CacheTTL    time.Duration `mapstructure:"cacheTTL"`
		Concurrency int           `mapstructure:"concurrency"`
	} `mapstructure:"search"`
	Storage struct {
		Driver    string `mapstructure:"driver"`
		Namespace string `mapstructure:"namespace"`
		File      struct {
			Path string `mapstructure:"path"`
		} `mapstructure:"file"`
		Postgres struct {
			Host              string `mapstructure:"host"`
			Password          string `mapstructure:"password"`
			Port              string `mapstructure:"port"`
			Username          string `mapstructure:"username"`
			DB                string `mapstructure:"db"`
			SSLMODE           string `mapstructure:"SSLMODE"`
			MAXCONWAITINGTIME int    `mapstructure:"MAXCONWAITINGTIME"`
		} `mapstructure:"postgres"`
		Mongo struct {
			URI        string `mapstructure:"uri"`
			Database   string `mapstructure:"database"`
			Collection string `mapstructure:"collection"`
		} `mapstructure:"mongo"`
	} `mapstructure:"storage"`
}

// Credentials never live in config.yml; they are bound to these variables.
var secretEnv = map[string]string{
	"llm.openaiKey":             "OPENAI_API_KEY",
	"llm.geminiKey":             "GEMINI_API_KEY",
	"search.apiKey":             "KAKAO_REST_API_KEY",
	"storage.postgres.password": "POSTGRES_PASSWORD",
}

func InitConfig() (Config, error) {
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range secretEnv {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %w", err)
		}
	}

	return decode(v)
}

// Load reads configuration from raw YAML only; tests use it to avoid the
// filesystem and environment.
func Load(raw []byte) (Config, error) {
	v := viper.New()
	v.SetConfigType("yml")
	if err := v.ReadConfig(bytes.NewReader(raw)); err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDefaults(&config)
	return config, nil
}

func applyDefaults(c *Config) {
	if c.Server.HTTPPort == "" {
		c.Server.HTTPPort = "8000"
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = 60 * time.Second
	}
	if c.Server.RateLimit.Window == 0 {
		c.Server.RateLimit.Window = time.Minute
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 45 * time.Second
	}
	if c.Search.BaseURL == "" {
		c.Search.BaseURL = "https://dapi.kakao.com"
	}
	if c.Search.Timeout == 0 {
		c.Search.Timeout = 5 * time.Second
	}
	if c.Search.CacheTTL == 0 {
		c.Search.CacheTTL = 10 * time.Minute
	}
	if c.Search.Concurrency <= 0 {
		c.Search.Concurrency = 8
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.Namespace == "" {
		c.Storage.Namespace = "default"
	}
}
