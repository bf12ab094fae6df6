package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Common contains the storage and messaging parameters shared by every service.
type Common struct {
	ElasticsearchAddr  string
	ElasticsearchIndex string
	KafkaBrokers       []string
	KafkaTopic         string
}

// Redis configures the shared cache.
type Redis struct {
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	MemoryCapacity int
}

// Providers configures the upstream clients and their retry policy.
type Providers struct {
	GoogleBaseURL    string
	GoogleAPIKey     string
	BookingBaseURL   string
	BookingAPIKey    string
	BookingAPIHost   string
	Currency         string
	ProviderTimeout  time.Duration
	GeocodingRPS     float64
	DiscoveryRPS     float64
	PricingRPS       float64
	RetryBaseDelay   time.Duration
	RetryMaxAttempts int
}

// Matching holds the match score weights and acceptance threshold.
type Matching struct {
	MatchThreshold      float64
	MatchNameWeight     float64
	MatchDistanceWeight float64
	MatchRatingWeight   float64
}

// Pipeline tunes batching and cache lifetimes.
type Pipeline struct {
	BatchSize    int
	BatchDelay   time.Duration
	RadiusMeters int
	ResultTTL    time.Duration
	GeocodeTTL   time.Duration
	ReviewsTTL   time.Duration
	SearchBudget time.Duration
}

// API describes HTTP-layer configuration.
type API struct {
	Common
	Redis
	Providers
	Matching
	Pipeline
	BindAddr    string
	DefaultPage int
	MaxPage     int
}

// Worker holds configuration for the Kafka -> Elasticsearch worker.
type Worker struct {
	Common
	KafkaConsumer    string
	KeywordLimit     int
	KeywordMinLength int
	DedupeCapacity   int
	DedupeTTL        time.Duration
	BatchSize        int
}

// Retention configures the cleanup loop.
type Retention struct {
	Common
	Interval  time.Duration
	MaxAge    time.Duration
	BatchSize int
}

// MockProvider configures the fake upstream server used in local runs.
type MockProvider struct {
	BindAddr    string
	Hotels      int
	Seed        int64
	FailureRate float64
	Latency     time.Duration
}

// LoadAPI builds an API config from the environment and an optional .env file.
func LoadAPI() (*API, error) {
	s := newSource()
	c := &API{
		Common: s.common(),
		Redis: Redis{
			RedisAddr:      s.str("REDIS_ADDR", "redis:6379"),
			RedisPassword:  s.str("REDIS_PASSWORD", ""),
			RedisDB:        s.integer("REDIS_DB", 0),
			MemoryCapacity: s.integer("CACHE_MEMORY_CAPACITY", 10000),
		},
		Providers: Providers{
			GoogleBaseURL:    s.str("GOOGLE_MAPS_BASE_URL", "https://maps.googleapis.com/maps/api"),
			GoogleAPIKey:     s.str("GOOGLE_MAPS_API_KEY", ""),
			BookingBaseURL:   s.str("BOOKING_BASE_URL", "https://booking-com.p.rapidapi.com"),
			BookingAPIKey:    s.str("BOOKING_API_KEY", ""),
			BookingAPIHost:   s.str("BOOKING_API_HOST", "booking-com.p.rapidapi.com"),
			Currency:         s.str("BOOKING_CURRENCY", "USD"),
			ProviderTimeout:  s.duration("PROVIDER_TIMEOUT", "10s"),
			GeocodingRPS:     s.float("GEOCODING_RPS", 10),
			DiscoveryRPS:     s.float("DISCOVERY_RPS", 10),
			PricingRPS:       s.float("PRICING_RPS", 5),
			RetryBaseDelay:   s.duration("RETRY_BASE_DELAY", "1s"),
			RetryMaxAttempts: s.integer("RETRY_MAX_ATTEMPTS", 3),
		},
		Matching: Matching{
			MatchThreshold:      s.float("MATCH_THRESHOLD", 0.7),
			MatchNameWeight:     s.float("MATCH_WEIGHT_NAME", 0.5),
			MatchDistanceWeight: s.float("MATCH_WEIGHT_DISTANCE", 0.3),
			MatchRatingWeight:   s.float("MATCH_WEIGHT_RATING", 0.2),
		},
		Pipeline: Pipeline{
			BatchSize:    s.integer("PRICING_BATCH_SIZE", 10),
			BatchDelay:   s.duration("PRICING_BATCH_DELAY", "1s"),
			RadiusMeters: s.integer("DISCOVERY_RADIUS_METERS", 50000),
			ResultTTL:    s.duration("CACHE_TTL_PRICING", "30m"),
			GeocodeTTL:   s.duration("CACHE_TTL_GEOCODE", "24h"),
			ReviewsTTL:   s.duration("CACHE_TTL_REVIEWS", "12h"),
			SearchBudget: s.duration("PRICING_SEARCH_TIMEOUT", "90s"),
		},
		BindAddr:    s.str("API_BIND_ADDR", "0.0.0.0:8080"),
		DefaultPage: s.integer("API_PAGE_SIZE", 20),
		MaxPage:     s.integer("API_MAX_PAGE_SIZE", 100),
	}

	if c.DefaultPage <= 0 {
		return nil, fmt.Errorf("API_PAGE_SIZE must be positive")
	}
	if c.MaxPage <= 0 {
		return nil, fmt.Errorf("API_MAX_PAGE_SIZE must be positive")
	}
	if c.DefaultPage > c.MaxPage {
		return nil, fmt.Errorf("API_PAGE_SIZE cannot exceed API_MAX_PAGE_SIZE")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("PRICING_BATCH_SIZE must be positive")
	}
	if c.BatchDelay < 0 {
		return nil, fmt.Errorf("PRICING_BATCH_DELAY cannot be negative")
	}
	if c.SearchBudget <= 0 {
		return nil, fmt.Errorf("PRICING_SEARCH_TIMEOUT must be positive")
	}
	if c.RadiusMeters <= 0 {
		return nil, fmt.Errorf("DISCOVERY_RADIUS_METERS must be positive")
	}
	if c.RetryMaxAttempts <= 0 {
		return nil, fmt.Errorf("RETRY_MAX_ATTEMPTS must be positive")
	}
	if c.ProviderTimeout <= 0 {
		return nil, fmt.Errorf("PROVIDER_TIMEOUT must be positive")
	}
	if c.MatchThreshold <= 0 || c.MatchThreshold >= 1 {
		return nil, fmt.Errorf("MATCH_THRESHOLD must be between 0 and 1")
	}
	if c.MatchNameWeight < 0 || c.MatchDistanceWeight < 0 || c.MatchRatingWeight < 0 {
		return nil, fmt.Errorf("MATCH_WEIGHT_* cannot be negative")
	}
	if c.MatchNameWeight+c.MatchDistanceWeight+c.MatchRatingWeight == 0 {
		return nil, fmt.Errorf("MATCH_WEIGHT_* cannot all be zero")
	}

	return c, nil
}

// LoadWorker builds a Worker config from the environment and an optional .env file.
func LoadWorker() (*Worker, error) {
	s := newSource()
	c := &Worker{
		Common:           s.common(),
		KafkaConsumer:    s.str("KAFKA_CONSUMER_GROUP", "hotel-worker"),
		KeywordLimit:     s.integer("WORKER_KEYWORD_LIMIT", 8),
		KeywordMinLength: s.integer("WORKER_KEYWORD_MIN_LEN", 4),
		DedupeCapacity:   s.integer("WORKER_DEDUPE_CAPACITY", 20000),
		DedupeTTL:        s.duration("WORKER_DEDUPE_TTL", "24h"),
		BatchSize:        s.integer("WORKER_BATCH_SIZE", 10),
	}

	if len(c.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}

	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("WORKER_BATCH_SIZE must be positive")
	}
	if c.DedupeCapacity <= 0 {
		return nil, fmt.Errorf("WORKER_DEDUPE_CAPACITY must be positive")
	}
	if c.KeywordLimit <= 0 {
		return nil, fmt.Errorf("WORKER_KEYWORD_LIMIT must be positive")
	}
	if c.KeywordMinLength < 0 {
		return nil, fmt.Errorf("WORKER_KEYWORD_MIN_LEN cannot be negative")
	}

	return c, nil
}

// LoadRetention builds a Retention config from the environment and an optional .env file.
func LoadRetention() (*Retention, error) {
	s := newSource()
	c := &Retention{
		Common:    s.common(),
		Interval:  s.duration("RETENTION_CRON", "24h"),
		MaxAge:    s.duration("RETENTION_MAX_AGE", "720h"),
		BatchSize: s.integer("RETENTION_BATCH_SIZE", 500),
	}

	if c.MaxAge <= 0 {
		return nil, fmt.Errorf("RETENTION_MAX_AGE must be positive")
	}

	if c.Interval <= 0 {
		return nil, fmt.Errorf("RETENTION_CRON must be positive")
	}

	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("RETENTION_BATCH_SIZE must be positive")
	}

	return c, nil
}

// LoadMockProvider builds the fake upstream config.
func LoadMockProvider() (*MockProvider, error) {
	s := newSource()
	c := &MockProvider{
		BindAddr:    s.str("MOCK_BIND_ADDR", "0.0.0.0:8090"),
		Hotels:      s.integer("MOCK_HOTELS", 40),
		Seed:        int64(s.integer("MOCK_SEED", 0)),
		FailureRate: s.float("MOCK_FAILURE_RATE", 0),
		Latency:     s.duration("MOCK_LATENCY", "50ms"),
	}

	if c.Hotels <= 0 {
		return nil, fmt.Errorf("MOCK_HOTELS must be positive")
	}
	if c.FailureRate < 0 || c.FailureRate > 1 {
		return nil, fmt.Errorf("MOCK_FAILURE_RATE must be between 0 and 1")
	}

	return c, nil
}

// source reads keys from the process environment (after .env) with an
// optional hotel-radar.{yaml,toml,json} file underneath.
type source struct {
	v *viper.Viper
}

func newSource() source {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	// Existing variables win over the file.
	_ = godotenv.Load(envFile)

	v := viper.New()
	v.SetConfigName("hotel-radar")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/hotel-radar")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "config: ignoring unreadable config file: %v\n", err)
		}
	}
	v.AutomaticEnv()

	return source{v: v}
}

func (s source) common() Common {
	return Common{
		ElasticsearchAddr:  s.str("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
		ElasticsearchIndex: s.str("ELASTICSEARCH_INDEX", "hotels"),
		KafkaBrokers:       splitAndTrim(s.str("KAFKA_BROKERS", "kafka:9092")),
		KafkaTopic:         s.str("KAFKA_TOPIC", "hotel_searches"),
	}
}

func (s source) str(key, fallback string) string {
	if v := strings.TrimSpace(s.v.GetString(key)); v != "" {
		return v
	}
	return fallback
}

func (s source) integer(key string, fallback int) int {
	if v := s.str(key, ""); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func (s source) float(key string, fallback float64) float64 {
	if v := s.str(key, ""); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func (s source) duration(key, fallback string) time.Duration {
	if d, err := time.ParseDuration(s.str(key, fallback)); err == nil {
		return d
	}
	d, err := time.ParseDuration(fallback)
	if err != nil {
		panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, err))
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
