package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centralizes service configuration, loaded once from the
// environment at process start.
type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Sized against WorkerPoolSize: each background extraction task and
	// each in-flight chat turn can hold a connection for the duration of
	// one query, so the pool needs headroom above the worker count plus
	// whatever concurrent HTTP requests are streaming a turn.
	DBMaxConns        int           `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns        int           `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"30m"`
	DBMaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"5m"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Primary provider answers NORMAL/ROMANCE routes. Secondary answers
	// EXPLICIT/FETISH routes; when it fails on those routes the primary is
	// the fallback target. NORMAL/ROMANCE turns have no fallback.
	PrimaryLLMBaseURL  string `env:"PRIMARY_LLM_BASE_URL" envDefault:"https://api.openai.com/v1"`
	PrimaryLLMAPIKey   string `env:"PRIMARY_LLM_API_KEY"`
	PrimaryLLMModel    string `env:"PRIMARY_LLM_MODEL" envDefault:"gpt-5.1"`
	SecondaryLLMBaseURL string `env:"SECONDARY_LLM_BASE_URL" envDefault:"http://localhost:8000/v1"`
	SecondaryLLMAPIKey  string `env:"SECONDARY_LLM_API_KEY"`
	SecondaryLLMModel   string `env:"SECONDARY_LLM_MODEL" envDefault:"local-uncensored"`

	ModelTotalTimeout   time.Duration `env:"MODEL_TOTAL_TIMEOUT" envDefault:"60s"`
	ModelConnectTimeout time.Duration `env:"MODEL_CONNECT_TIMEOUT" envDefault:"5s"`
	StoreTimeout        time.Duration `env:"STORE_TIMEOUT" envDefault:"10s"`

	WorkerPoolSize       int `env:"WORKER_POOL_SIZE" envDefault:"8"`
	WorkerQueueWatermark int `env:"WORKER_QUEUE_WATERMARK" envDefault:"256"`

	RetrievalSimilarityWeight float64 `env:"RETRIEVAL_SIMILARITY_WEIGHT" envDefault:"0.7"`
	RetrievalImportanceWeight float64 `env:"RETRIEVAL_IMPORTANCE_WEIGHT" envDefault:"0.3"`
	RetrievalSimilarityFloor  float64 `env:"RETRIEVAL_SIMILARITY_FLOOR" envDefault:"0.15"`
	RetrievalTopK             int     `env:"RETRIEVAL_TOP_K" envDefault:"5"`
	MemoryDedupThreshold      float64 `env:"MEMORY_DEDUP_THRESHOLD" envDefault:"0.92"`

	LockInWindowMessages  int `env:"LOCK_IN_WINDOW_MESSAGES" envDefault:"5"`
	AgeVerifyAttemptsCap  int `env:"AGE_VERIFY_ATTEMPTS_CAP" envDefault:"3"`
	ShortTermBufferCap    int `env:"SHORT_TERM_BUFFER_CAP" envDefault:"20"`

	// JWTSecret verifies bearer tokens issued by an external identity
	// provider; this service never signs or mints one itself.
	JWTSecret          string `env:"JWT_SECRET,required"`
	JWTIssuer          string `env:"JWT_ISSUER"`
	AllowXUserIDHeader bool   `env:"ALLOW_X_USER_ID_HEADER" envDefault:"false"`

	RateLimitPerMinute int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`

	DefaultPersonaName string  `env:"DEFAULT_PERSONA_NAME" envDefault:"default"`
	ModelTemperature   float64 `env:"MODEL_TEMPERATURE" envDefault:"0.9"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME" envDefault:"clone-llm alerts"`
	SMTPTo       string `env:"SMTP_TO"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
