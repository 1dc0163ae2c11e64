package infra

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string        `env:"APP_ENV" envDefault:"development"`
	Port             string        `env:"PORT" envDefault:"8080"`
	DatabaseURL      string        `env:"DATABASE_URL"`
	DBMaxConns       int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	HTTPReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"330s"`
	HTTPIdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	RateLimitPerMin  int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"30"`
	CORSOrigins      []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	DefaultLanguage  string        `env:"DEFAULT_LANGUAGE" envDefault:"pt-BR"`
	GeoIPDBPath      string        `env:"GEOIP_DB_PATH"`
	OTelEndpoint     string        `env:"OTEL_ENDPOINT"`

	N8NBaseURL           string        `env:"N8N_BASE_URL"`
	N8NAPIKey            string        `env:"N8N_API_KEY"`
	N8NKeywordPath       string        `env:"N8N_KEYWORD_PATH" envDefault:"/webhook/keyword-research"`
	N8NKeywordStatusPath string        `env:"N8N_KEYWORD_STATUS_PATH" envDefault:"/webhook/keyword-research/status"`
	N8NArticlePath       string        `env:"N8N_ARTICLE_PATH" envDefault:"/webhook/article-generation"`
	N8NArticleStatusPath string        `env:"N8N_ARTICLE_STATUS_PATH" envDefault:"/webhook/article-generation/status"`
	N8NRequestTimeout    time.Duration `env:"N8N_REQUEST_TIMEOUT" envDefault:"30s"`

	ExaAPIKey  string `env:"EXA_API_KEY"`
	ExaBaseURL string `env:"EXA_BASE_URL" envDefault:"https://api.exa.ai"`

	TextProvider       string        `env:"TEXT_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey       string        `env:"OPENAI_API_KEY"`
	OpenAIModel        string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAIBaseURL      string        `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	OpenAIOrg          string        `env:"OPENAI_ORG"`
	GeminiAPIKey       string        `env:"GEMINI_API_KEY"`
	GeminiModel        string        `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	GeminiBaseURL      string        `env:"GEMINI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta"`
	AnthropicAPIKey    string        `env:"ANTHROPIC_API_KEY"`
	AnthropicModel     string        `env:"ANTHROPIC_MODEL" envDefault:"claude-sonnet-4-5"`
	TextRequestTimeout time.Duration `env:"TEXT_REQUEST_TIMEOUT" envDefault:"90s"`

	BigQueryProjectID       string `env:"BIGQUERY_PROJECT_ID"`
	BigQueryDataset         string `env:"BIGQUERY_DATASET" envDefault:"marketing"`
	BigQueryCredentialsFile string `env:"BIGQUERY_CREDENTIALS_FILE"`

	SocialLanesFile    string        `env:"SOCIAL_LANES_FILE"`
	WorkerPollInterval time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"2s"`
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	cfg.TextProvider = strings.ToLower(strings.TrimSpace(cfg.TextProvider))
	cfg.N8NBaseURL = strings.TrimRight(strings.TrimSpace(cfg.N8NBaseURL), "/")
	origins := cfg.CORSOrigins[:0]
	for _, origin := range cfg.CORSOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	cfg.CORSOrigins = origins
	return cfg, nil
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}
