package metric

import (
	"sync"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	AdmissionWait      = "ratelimit_admission_wait"
	ItemAttemptCount   = "item_attempt_count"
	ItemSettleCount    = "item_settle_count"
	ItemRetryCount     = "item_retry_count"
	ExecutionCount     = "execution_count"
	ExecutionLatency   = "execution_latency"
	ExternalAPICount   = "external_api_request_count"
	ExternalAPILatency = "external_api_request_latency"
	SchedulerTickCount = "scheduler_tick_count"
	ScheduleFireCount  = "schedule_fire_count"
	DelayedMovedCount  = "delayed_moved_count"
	ReapedCount        = "stale_execution_reaped_count"
	DLQCount           = "dlq_count"
)

var (
	client statsd.ClientInterface = &statsd.NoOpClient{}
	once   sync.Once
)

// Init wires the statsd client. Without APP_STATSD_ADDRESS the package
// stays on the no-op client, so callers never need to nil-check.
func Init() {
	once.Do(func() {
		addr := viper.GetString("APP_STATSD_ADDRESS")
		if addr == "" {
			log.Warn().Msg("APP_STATSD_ADDRESS not set, metrics disabled")
			return
		}
		c, err := statsd.New(addr, statsd.WithTags([]string{"service:" + viper.GetString("APP_NAME")}))
		if err != nil {
			log.Error().Err(err).Msg("statsd init failed, metrics disabled")
			return
		}
		client = c
	})
}

func Incr(name string, tags ...string) {
	_ = client.Incr(name, tags, 1)
}

func Timing(name string, d time.Duration, tags ...string) {
	_ = client.Timing(name, d, tags, 1)
}

func Gauge(name string, value float64, tags ...string) {
	_ = client.Gauge(name, value, tags, 1)
}
