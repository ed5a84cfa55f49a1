package config

import (
	"log"
	"os"
	"time"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeGCP   Mode = "gcp"
)

type Config struct {
	Mode Mode

	Port string

	GCPProjectID string
	GCPLocation  string
	ModelName    string
	GeminiAPIKey string

	StorageBackend string // "memory" or "firestore"
	StorageBucket  string // GCS bucket for crop photos

	NewsAPIKey  string
	NewsBaseURL string

	UseMockLLM       bool // true = use mock even on GCP
	InferenceTimeout time.Duration
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if v == "1" || v == "true" || v == "TRUE" {
		return true
	}
	return false
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("invalid duration in %s=%q, using default %s", key, v, def)
		return def
	}
	return d
}

// Load reads all env vars and builds the config
func Load() *Config {
	modeStr := getEnv("CROPAI_MODE", "local")
	var mode Mode
	switch modeStr {
	case "gcp":
		mode = ModeGCP
	default:
		mode = ModeLocal
	}

	cfg := &Config{
		Mode: mode,

		Port: getEnv("CROPAI_PORT", "8080"),

		GCPProjectID: getEnv("CROPAI_GCP_PROJECT", ""),
		GCPLocation:  getEnv("CROPAI_GCP_LOCATION", "us-central1"),
		ModelName:    getEnv("CROPAI_MODEL_NAME", "gemini-2.0-flash"),
		GeminiAPIKey: getEnv("CROPAI_GEMINI_API_KEY", ""),

		StorageBackend: getEnv("CROPAI_STORAGE_BACKEND", "memory"),
		StorageBucket:  getEnv("CROPAI_STORAGE_BUCKET", ""),

		NewsAPIKey:  getEnv("CROPAI_NEWS_API_KEY", ""),
		NewsBaseURL: getEnv("CROPAI_NEWS_BASE_URL", "https://newsapi.org/v2/everything"),

		UseMockLLM:       getBoolEnv("CROPAI_USE_MOCK_LLM", mode == ModeLocal),
		InferenceTimeout: getDurationEnv("CROPAI_INFERENCE_TIMEOUT", 60*time.Second),
	}

	// Minimal validation in GCP mode
	if cfg.Mode == ModeGCP && cfg.GCPProjectID == "" {
		log.Fatal("CROPAI_GCP_PROJECT must be set in gcp mode")
	}
	if cfg.StorageBackend == "firestore" && cfg.GCPProjectID == "" {
		log.Fatal("CROPAI_GCP_PROJECT is required for the Firestore storage backend")
	}

	return cfg
}
