package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort      string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL   string `env:"DATABASE_URL,required,notEmpty"`
	OperatorToken string `env:"OPERATOR_TOKEN"` // vacio = /cache/flush deshabilitado

	LLMAPIKey            string  `env:"LLM_API_KEY,required,notEmpty"`
	LLMBaseURL           string  `env:"LLM_BASE_URL" envDefault:"https://api.openai.com/v1"`
	LLMModel             string  `env:"LLM_MODEL" envDefault:"gpt-4o"`
	LLMFallbackModel     string  `env:"LLM_FALLBACK_MODEL" envDefault:"gpt-4o-mini"`
	LLMEmbedModel        string  `env:"LLM_EMBED_MODEL" envDefault:"text-embedding-3-small"`
	LLMRequestsPerSecond float64 `env:"LLM_REQUESTS_PER_SECOND" envDefault:"5"`
	AltEmbedBaseURL      string  `env:"ALT_EMBED_BASE_URL"`
	AltEmbedAPIKey       string  `env:"ALT_EMBED_API_KEY"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	CacheTTLSeconds          int     `env:"CACHE_TTL_SECONDS" envDefault:"3600"`
	CacheSweepSeconds        int     `env:"CACHE_SWEEP_SECONDS" envDefault:"60"`
	CacheConfidenceThreshold float64 `env:"CACHE_CONFIDENCE_THRESHOLD" envDefault:"0.8"`

	FeedbackTokenSecret   string `env:"FEEDBACK_TOKEN_SECRET,required,notEmpty"`
	FeedbackTokenTTLHours int    `env:"FEEDBACK_TOKEN_TTL_HOURS" envDefault:"72"`

	EngineTimeoutSeconds int  `env:"ENGINE_TIMEOUT_SECONDS" envDefault:"20"`
	StrictEngineJoin     bool `env:"STRICT_ENGINE_JOIN" envDefault:"false"`

	TaskWorkers     int `env:"TASK_WORKERS" envDefault:"4"`
	TaskQueueSize   int `env:"TASK_QUEUE_SIZE" envDefault:"256"`
	TaskMaxAttempts int `env:"TASK_MAX_ATTEMPTS" envDefault:"2"`

	GuidanceRateLimitPerMinute int `env:"GUIDANCE_RATE_LIMIT_PER_MINUTE" envDefault:"30"` // 0 = sin limite

	OptimizerCron       string `env:"OPTIMIZER_CRON"`
	OptimizerWindowDays int    `env:"OPTIMIZER_WINDOW_DAYS" envDefault:"30"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

func (c *Config) CacheSweepInterval() time.Duration {
	return time.Duration(c.CacheSweepSeconds) * time.Second
}

func (c *Config) FeedbackTokenTTL() time.Duration {
	return time.Duration(c.FeedbackTokenTTLHours) * time.Hour
}

func (c *Config) EngineTimeout() time.Duration {
	return time.Duration(c.EngineTimeoutSeconds) * time.Second
}
