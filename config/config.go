package config

import (
	"os"
	"strconv"
	"time"
)

// Config is resolved once at startup and treated as immutable. Per-turn
// mutable state is cloned from it inside the orchestrator, never written
// back.
type Config struct {
	ListenAddr string

	APIKey    string
	APISecret string
	JWTSecret string
	JWTExpiry time.Duration

	ChatModel string

	// Token budgeting
	CompletionTokenLimit     int
	ResponseTokenReservation int
	PlanWeight               float64
	SemanticMemoryWeight     float64
	DocumentMemoryWeight     float64

	BotID   string
	BotName string

	StorageBackend string // "memory" or "sqlite"
	SQLitePath     string
	VectorDataDir  string

	PlannerURL     string
	PlannerTimeout time.Duration

	EmbeddingsBaseURL string
	EmbeddingsAPIKey  string
	EmbeddingsModel   string
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getFloatEnv(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// Load reads all env vars and builds the config.
func Load() *Config {
	return &Config{
		ListenAddr: ":" + getEnv("PALAVER_PORT", "8080"),

		APIKey:    getEnv("PALAVER_API_KEY", ""),
		APISecret: getEnv("PALAVER_API_SECRET", ""),
		JWTSecret: getEnv("PALAVER_JWT_SECRET", ""),
		JWTExpiry: 24 * time.Hour,

		ChatModel: getEnv("PALAVER_CHAT_MODEL", "gemini-2.0-flash-001"),

		CompletionTokenLimit:     getIntEnv("PALAVER_TOKEN_LIMIT", 8192),
		ResponseTokenReservation: getIntEnv("PALAVER_RESPONSE_RESERVATION", 1024),
		PlanWeight:               getFloatEnv("PALAVER_PLAN_WEIGHT", 0.3),
		SemanticMemoryWeight:     getFloatEnv("PALAVER_SEMANTIC_WEIGHT", 0.3),
		DocumentMemoryWeight:     getFloatEnv("PALAVER_DOCUMENT_WEIGHT", 0.3),

		BotID:   getEnv("PALAVER_BOT_ID", "palaver-bot"),
		BotName: getEnv("PALAVER_BOT_NAME", "Palaver"),

		StorageBackend: getEnv("PALAVER_STORAGE_BACKEND", "memory"),
		SQLitePath:     getEnv("PALAVER_SQLITE_PATH", "palaver.db"),
		VectorDataDir:  getEnv("PALAVER_VECTOR_DIR", "data"),

		PlannerURL:     getEnv("PALAVER_PLANNER_URL", ""),
		PlannerTimeout: 60 * time.Second,

		EmbeddingsBaseURL: getEnv("PALAVER_EMBEDDINGS_BASE_URL", ""),
		EmbeddingsAPIKey:  getEnv("PALAVER_EMBEDDINGS_API_KEY", ""),
		EmbeddingsModel:   getEnv("PALAVER_EMBEDDINGS_MODEL", "text-embedding-3-small"),
	}
}
