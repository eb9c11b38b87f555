package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string

	// CacheBackend is one of redis, badger or memory.
	CacheBackend string
	CacheDir     string
	CacheSize    int
	RedisAddr    string
	RedisDB      int
	RedisPass    string

	GoogleAPIKey    string
	GeocodeBase     string
	GeocodeKey      string
	GeocodeRegion   string
	GeocodeRPS      int
	GeocodeEmptyTTL int // seconds

	OllamaURL     string
	OpenAIKey     string
	OpenAIBaseURL string
	DefaultModel  string

	OpenSearchURLs    []string
	OpenSearchUser    string
	OpenSearchPass    string
	OpenSearchModelID string
	ListingsIndex     string
	AggregateIndex    string

	PipelineTimeout time.Duration
	HTTPTimeout     time.Duration
	SearchLogDSN    string
	WarmWorkers     int
}

// Load reads the environment, after merging an optional .env file from the working directory.
// Variables already set in the environment win over .env.
func Load() Config {
	_ = godotenv.Load()

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("ignoring non-integer setting")
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		LogLevel:    env("LOG_LEVEL", "info"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),

		CacheBackend: strings.ToLower(env("CACHE_BACKEND", "redis")),
		CacheDir:     env("CACHE_DIR", ""),
		CacheSize:    atoi("CACHE_SIZE", 10000),
		RedisAddr:    env("REDIS_ADDR", "localhost:6379"),
		RedisDB:      atoi("REDIS_DB", 0),
		RedisPass:    env("REDIS_PASSWORD", ""),

		GoogleAPIKey:    env("GOOGLE_API_KEY", ""),
		GeocodeBase:     env("GEOCODE_BASE_URL", "https://maps.googleapis.com/maps/api/geocode/json"),
		GeocodeRegion:   env("GEOCODE_REGION", "au"),
		GeocodeRPS:      atoi("GEOCODE_RPS", 10),
		GeocodeEmptyTTL: atoi("GEOCODE_EMPTY_TTL_SECONDS", 86400),

		OllamaURL:     env("OLLAMA_URL", ""),
		OpenAIKey:     env("OPENAI_API_KEY", ""),
		OpenAIBaseURL: env("OPENAI_BASE_URL", ""),
		DefaultModel:  env("DEFAULT_MODEL", "gemini-2.5-flash"),

		OpenSearchURLs:    splitList(env("OPENSEARCH_URL", "http://localhost:9200")),
		OpenSearchUser:    env("OPENSEARCH_USERNAME", ""),
		OpenSearchPass:    env("OPENSEARCH_PASSWORD", ""),
		OpenSearchModelID: env("OPENSEARCH_MODEL_ID", ""),
		ListingsIndex:     env("OPENSEARCH_LISTINGS_INDEX", "listings"),
		AggregateIndex:    env("OPENSEARCH_AGG_INDEX", "listings-agg"),

		PipelineTimeout: time.Duration(atoi("PIPELINE_TIMEOUT_SECONDS", 30)) * time.Second,
		SearchLogDSN:    env("SEARCH_LOG_DSN", ""),
		WarmWorkers:     atoi("WARM_WORKERS", 8),
	}
	// the maps key may be separate from the Gemini key
	c.GeocodeKey = env("GOOGLE_MAPS_API_KEY", c.GoogleAPIKey)
	c.HTTPTimeout = c.PipelineTimeout + 5*time.Second

	if c.GeocodeKey == "" {
		log.Warn().Msg("GOOGLE_MAPS_API_KEY and GOOGLE_API_KEY are empty; places will not resolve")
	}
	if c.OpenSearchModelID == "" {
		log.Warn().Msg("OPENSEARCH_MODEL_ID is empty; neural queries rely on the index default model")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
