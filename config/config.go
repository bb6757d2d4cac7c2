package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	DefaultModel          = "gemini-2.5-flash"
	DefaultEmbeddingModel = "text-embedding-004"

	ProviderGoogleAI = "googleai"
	ProviderHash     = "hash"

	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// DefaultFallbackModels only lists 2.x models; older 1.5 ids are retired
// server side and answer 404.
var DefaultFallbackModels = []string{
	"gemini-2.5-flash",
	"gemini-2.5-pro",
	"gemini-2.0-flash",
	"gemini-2.0-pro",
}

type Postgres struct {
	Host     string `validate:"required"`
	Port     int    `validate:"required,gt=0"`
	User     string `validate:"required"`
	Password string
	DBName   string `validate:"required"`
}

func (p Postgres) ConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		p.Host, p.Port, p.User, p.Password, p.DBName)
}

type Config struct {
	APIKey            string
	Model             string   `validate:"required"`
	FallbackModels    []string `validate:"dive,required"`
	EmbeddingProvider string   `validate:"oneof=googleai hash"`
	EmbeddingModel    string   `validate:"required"`
	EmbeddingCache    int      `validate:"gte=0"`

	UploadDir      string `validate:"required"`
	IndexDir       string `validate:"required"`
	IndexBackend   string `validate:"oneof=file postgres"`
	ReopenPerQuery bool
	MinScore       float64 `validate:"gte=-1,lte=1"`
	Postgres       *Postgres

	ServerAddr        string `validate:"required"`
	CORSOrigins       string
	LogLevel          string `validate:"oneof=debug info warn error"`
	CountPromptTokens bool
}

// Load reads an optional .env file and then the process environment.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	apiKey := os.Getenv("GOOGLE_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_GENAI_API_KEY")
	}

	cfg := &Config{
		APIKey:            apiKey,
		Model:             getEnv("GEMINI_MODEL", DefaultModel),
		FallbackModels:    getEnvList("GEMINI_FALLBACK_MODELS", DefaultFallbackModels),
		EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", ProviderGoogleAI),
		EmbeddingModel:    getEnv("EMBEDDING_MODEL", DefaultEmbeddingModel),
		EmbeddingCache:    getEnvInt("EMBEDDING_CACHE_SIZE", 512),
		UploadDir:         getEnv("UPLOAD_DIR", "temp"),
		IndexDir:          getEnv("INDEX_DIR", "index_db"),
		IndexBackend:      getEnv("INDEX_BACKEND", BackendFile),
		ReopenPerQuery:    getEnvBool("INDEX_REOPEN_PER_QUERY", true),
		MinScore:          getEnvFloat("RETRIEVAL_MIN_SCORE", 0),
		ServerAddr:        getEnv("SERVER_ADDR", ":8000"),
		CORSOrigins:       getEnv("CORS_ORIGINS", "*"),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", "info")),
		CountPromptTokens: getEnvBool("PROMPT_TOKEN_COUNT", false),
	}
	if cfg.IndexBackend == BackendPostgres {
		cfg.Postgres = &Postgres{
			Host:     os.Getenv("PG_HOST"),
			Port:     getEnvInt("PG_PORT", 5432),
			User:     os.Getenv("PG_USER"),
			Password: os.Getenv("PG_PASS"),
			DBName:   os.Getenv("PG_DB_NAME"),
		}
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Postgres != nil {
		if err := v.Struct(c.Postgres); err != nil {
			return fmt.Errorf("invalid postgres configuration: %w", err)
		}
	}
	return nil
}

// RequireAPIKey is checked by commands that talk to Google; ingesting with
// the hash embedder works offline.
func (c *Config) RequireAPIKey() error {
	if c.APIKey == "" {
		return errors.New("GOOGLE_API_KEY (or GOOGLE_GENAI_API_KEY) is not set")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return append([]string(nil), defaultVal...)
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
