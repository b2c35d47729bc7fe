package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/domain"
)

// RateLimit is the admission quota for one resource class.
type RateLimit struct {
	MaxRequests int
	Window      time.Duration
}

type AppConfig struct {
	AppName           string
	HTTPPort          string
	PostgresDSN       string
	RedisURL          string
	QueueNames        []string
	WorkerConcurrency int // concurrent jobs per worker process
	BatchConcurrency  int // concurrent items within one execution

	RetryMaxAttempts int
	RetryBaseDelay   time.Duration

	GenAPIURL     string
	GenAPIKey     string
	GenAPITimeout time.Duration

	ArtifactBaseURL string

	RateLimits   map[domain.ResourceClass]RateLimit
	DefaultClass domain.ResourceClass

	SchedulerTick time.Duration
	Timezone      string
	LeaseTTL      time.Duration
}

func setDefaults() {
	viper.SetDefault("APP_NAME", "masstock-engine")
	viper.SetDefault("HTTP_PORT", "8080")
	viper.SetDefault("DATABASE_URL", "host=localhost port=5432 user=masstock dbname=masstock sslmode=disable")
	viper.SetDefault("REDIS_URL", "redis://localhost:6379")
	viper.SetDefault("QUEUE_NAMES", "default")
	viper.SetDefault("WORKER_CONCURRENCY", 4)
	viper.SetDefault("BATCH_CONCURRENCY", 4)
	viper.SetDefault("RETRY_MAX_ATTEMPTS", 3)
	viper.SetDefault("RETRY_BASE_MS", 5000)
	viper.SetDefault("GEN_API_URL", "http://localhost:9000/v1/generate")
	viper.SetDefault("GEN_API_KEY", "")
	viper.SetDefault("GEN_API_TIMEOUT_MS", 60000)
	viper.SetDefault("ARTIFACT_BASE_URL", "http://localhost:9001/artifacts")
	viper.SetDefault("RATE_LIMIT_FAST_MAX", 60)
	viper.SetDefault("RATE_LIMIT_FAST_WINDOW_MS", 60000)
	viper.SetDefault("RATE_LIMIT_HEAVY_MAX", 10)
	viper.SetDefault("RATE_LIMIT_HEAVY_WINDOW_MS", 60000)
	viper.SetDefault("SCHEDULER_TICK_SECONDS", 5)
	viper.SetDefault("SCHEDULER_TZ", "UTC")
	viper.SetDefault("LEASE_TTL_SECONDS", 30)
}

// Load reads configuration from the environment. Resource classes are
// resolved here once; the rest of the system only sees the enum.
func Load() AppConfig {
	setDefaults()
	viper.AutomaticEnv()

	var queues []string
	for _, q := range strings.Split(viper.GetString("QUEUE_NAMES"), ",") {
		if trimmed := strings.TrimSpace(q); trimmed != "" {
			queues = append(queues, trimmed)
		}
	}
	if len(queues) == 0 {
		queues = []string{"default"}
	}

	return AppConfig{
		AppName:           viper.GetString("APP_NAME"),
		HTTPPort:          viper.GetString("HTTP_PORT"),
		PostgresDSN:       viper.GetString("DATABASE_URL"),
		RedisURL:          viper.GetString("REDIS_URL"),
		QueueNames:        queues,
		WorkerConcurrency: atLeast(viper.GetInt("WORKER_CONCURRENCY"), 1),
		BatchConcurrency:  atLeast(viper.GetInt("BATCH_CONCURRENCY"), 1),
		RetryMaxAttempts:  atLeast(viper.GetInt("RETRY_MAX_ATTEMPTS"), 1),
		RetryBaseDelay:    time.Duration(viper.GetInt("RETRY_BASE_MS")) * time.Millisecond,
		GenAPIURL:         viper.GetString("GEN_API_URL"),
		GenAPIKey:         viper.GetString("GEN_API_KEY"),
		GenAPITimeout:     time.Duration(viper.GetInt("GEN_API_TIMEOUT_MS")) * time.Millisecond,
		ArtifactBaseURL:   viper.GetString("ARTIFACT_BASE_URL"),
		RateLimits: map[domain.ResourceClass]RateLimit{
			domain.ClassFast: {
				MaxRequests: atLeast(viper.GetInt("RATE_LIMIT_FAST_MAX"), 1),
				Window:      time.Duration(viper.GetInt("RATE_LIMIT_FAST_WINDOW_MS")) * time.Millisecond,
			},
			domain.ClassHeavy: {
				MaxRequests: atLeast(viper.GetInt("RATE_LIMIT_HEAVY_MAX"), 1),
				Window:      time.Duration(viper.GetInt("RATE_LIMIT_HEAVY_WINDOW_MS")) * time.Millisecond,
			},
		},
		DefaultClass:  domain.DefaultResourceClass,
		SchedulerTick: time.Duration(viper.GetInt("SCHEDULER_TICK_SECONDS")) * time.Second,
		Timezone:      viper.GetString("SCHEDULER_TZ"),
		LeaseTTL:      time.Duration(viper.GetInt("LEASE_TTL_SECONDS")) * time.Second,
	}
}

func atLeast(v, min int) int {
	if v < min {
		return min
	}
	return v
}
