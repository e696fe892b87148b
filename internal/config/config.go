package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Ai       AIConfig
	Rag      RagConfig
	Jobs     JobsConfig
	Breaker  BreakerConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

type AIConfig struct {
	OllamaBaseURL      string
	LLMModel           string // e.g. "llama3", "qwen2.5"
	EmbeddingModel     string // e.g. "nomic-embed-text"
	EmbeddingDimension int
	Temperature        float64
	TopP               float64
	RepeatPenalty      float64
	// GenerationTimeout bounds a single LLM call. Large structured
	// documents are slow on local hardware, so the default is generous.
	GenerationTimeout time.Duration
}

type RagConfig struct {
	TopK                int
	SimilarityThreshold float64
	ContextCharBudget   int
	CacheTTL            time.Duration
	StoreTimeout        time.Duration // per-call bound on cache/vector store operations
}

type JobsConfig struct {
	WorkersPerKind  int
	LeaseTimeout    time.Duration
	RequeueInterval time.Duration
	MaxAttempts     int
	EmbedTopicName  string
}

type BreakerConfig struct {
	WindowSize       int
	FailureThreshold float64
	MinSamples       int
	CoolDown         time.Duration
	MaxCoolDown      time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Ai: AIConfig{
			OllamaBaseURL:      getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			LLMModel:           getEnv("LLM_MODEL", "llama3"),
			EmbeddingModel:     getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			EmbeddingDimension: getEnvAsInt("EMBEDDING_DIMENSION", 768),
			Temperature:        getEnvAsFloat("LLM_TEMPERATURE", 0.7),
			TopP:               getEnvAsFloat("LLM_TOP_P", 0.9),
			RepeatPenalty:      getEnvAsFloat("LLM_REPEAT_PENALTY", 1.1),
			GenerationTimeout:  getEnvAsDuration("LLM_GENERATION_TIMEOUT", 5*time.Minute),
		},
		Rag: RagConfig{
			TopK:                getEnvAsInt("RAG_TOP_K", 10),
			SimilarityThreshold: getEnvAsFloat("RAG_SIMILARITY_THRESHOLD", 0.35),
			ContextCharBudget:   getEnvAsInt("RAG_CONTEXT_CHAR_BUDGET", 8000),
			CacheTTL:            getEnvAsDuration("RAG_CACHE_TTL", 6*time.Hour),
			StoreTimeout:        getEnvAsDuration("RAG_STORE_TIMEOUT", 5*time.Second),
		},
		Jobs: JobsConfig{
			WorkersPerKind:  getEnvAsInt("JOB_WORKERS_PER_KIND", 2),
			LeaseTimeout:    getEnvAsDuration("JOB_LEASE_TIMEOUT", 10*time.Minute),
			RequeueInterval: getEnvAsDuration("JOB_REQUEUE_INTERVAL", 1*time.Minute),
			MaxAttempts:     getEnvAsInt("JOB_MAX_ATTEMPTS", 3),
			EmbedTopicName:  getEnv("EMBED_CONTENT_TOPIC_NAME", "EMBED_CONTENT"),
		},
		Breaker: BreakerConfig{
			WindowSize:       getEnvAsInt("BREAKER_WINDOW_SIZE", 10),
			FailureThreshold: getEnvAsFloat("BREAKER_FAILURE_THRESHOLD", 0.5),
			MinSamples:       getEnvAsInt("BREAKER_MIN_SAMPLES", 4),
			CoolDown:         getEnvAsDuration("BREAKER_COOL_DOWN", 30*time.Second),
			MaxCoolDown:      getEnvAsDuration("BREAKER_MAX_COOL_DOWN", 10*time.Minute),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
