package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

var singleConfig *Config = nil

type Config struct {
	Service *svcConfig
	Redis   *redisConfig
	Batch   *batchConfig
	Worker  *workerConfig
}

type svcConfig struct {
	Address         string   `envconfig:"CHEMAUDIT_ADDRESS" default:":8000"`
	MetricsAddress  string   `envconfig:"CHEMAUDIT_METRICS_ADDRESS" default:":8080"`
	LogLevel        string   `envconfig:"CHEMAUDIT_LOG_LEVEL" default:"info"`
	LogFormat       string   `envconfig:"CHEMAUDIT_LOG_FORMAT" default:"console"`
	Debug           bool     `envconfig:"CHEMAUDIT_DEBUG" default:"false"`
	AllowedOrigins  []string `envconfig:"CHEMAUDIT_CORS_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
	EmbeddedWorkers int      `envconfig:"CHEMAUDIT_EMBEDDED_WORKERS" default:"0"`
	ServerUrl       string   `envconfig:"CHEMAUDIT_SERVER_URL" default:"http://localhost:8000"`
}

type redisConfig struct {
	Address      string        `envconfig:"REDIS_ADDRESS" default:"localhost:6379"`
	Password     string        `envconfig:"REDIS_PASSWORD" default:""`
	DB           int           `envconfig:"REDIS_DB" default:"0"`
	RateLimitDB  int           `envconfig:"REDIS_RATELIMIT_DB" default:"1"`
	PoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"20"`
	MinIdleConns int           `envconfig:"REDIS_MIN_IDLE_CONNS" default:"5"`
	DialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"3s"`
}

type batchConfig struct {
	MaxStructureLength int  `envconfig:"CHEMAUDIT_MAX_STRUCTURE_LENGTH" default:"10000"`
	MaxBatchSize       int  `envconfig:"CHEMAUDIT_MAX_BATCH_SIZE" default:"10000"`
	MaxFileSizeMB      int  `envconfig:"CHEMAUDIT_MAX_FILE_SIZE_MB" default:"50"`
	ChunkSize          int  `envconfig:"CHEMAUDIT_CHUNK_SIZE" default:"100"`
	SmallJobThreshold  int  `envconfig:"CHEMAUDIT_SMALL_JOB_THRESHOLD" default:"500"`
	RetentionSeconds   int  `envconfig:"CHEMAUDIT_RETENTION_SECONDS" default:"86400"`
	CacheTTLSeconds    int  `envconfig:"CHEMAUDIT_CACHE_TTL_SECONDS" default:"3600"`
	CacheEnabled       bool `envconfig:"CHEMAUDIT_CACHE_ENABLED" default:"true"`
}

type workerConfig struct {
	Concurrency       int           `envconfig:"CHEMAUDIT_WORKER_CONCURRENCY" default:"4"`
	ReservedHigh      int           `envconfig:"CHEMAUDIT_WORKER_RESERVED_HIGH" default:"1"`
	LeaseTTL          time.Duration `envconfig:"CHEMAUDIT_WORKER_LEASE_TTL" default:"30s"`
	HeartbeatPeriod   time.Duration `envconfig:"CHEMAUDIT_WORKER_HEARTBEAT" default:"10s"`
	ReaperInterval    time.Duration `envconfig:"CHEMAUDIT_WORKER_REAPER_INTERVAL" default:"15s"`
	PollInterval      time.Duration `envconfig:"CHEMAUDIT_WORKER_POLL_INTERVAL" default:"100ms"`
	MaxDeliveries     int           `envconfig:"CHEMAUDIT_WORKER_MAX_DELIVERIES" default:"3"`
	WriteRetries      int           `envconfig:"CHEMAUDIT_WORKER_WRITE_RETRIES" default:"3"`
	WriteRetryBackoff time.Duration `envconfig:"CHEMAUDIT_WORKER_WRITE_BACKOFF" default:"100ms"`
}

func New() (*Config, error) {
	if singleConfig == nil {
		singleConfig = new(Config)
		if err := envconfig.Process("", singleConfig); err != nil {
			return nil, err
		}
	}
	return singleConfig, nil
}

// Default returns a configuration holding only the default values, without reading the environment.
func Default() *Config {
	return &Config{
		Service: &svcConfig{Address: ":8000", MetricsAddress: ":8080", LogLevel: "info", LogFormat: "console", ServerUrl: "http://localhost:8000"},
		Redis: &redisConfig{Address: "localhost:6379", RateLimitDB: 1, PoolSize: 20, MinIdleConns: 5,
			DialTimeout: 5 * time.Second, ReadTimeout: 3 * time.Second, WriteTimeout: 3 * time.Second},
		Batch: &batchConfig{MaxStructureLength: 10000, MaxBatchSize: 10000, MaxFileSizeMB: 50, ChunkSize: 100,
			SmallJobThreshold: 500, RetentionSeconds: 86400, CacheTTLSeconds: 3600, CacheEnabled: true},
		Worker: &workerConfig{Concurrency: 4, ReservedHigh: 1, LeaseTTL: 30 * time.Second, HeartbeatPeriod: 10 * time.Second,
			ReaperInterval: 15 * time.Second, PollInterval: 100 * time.Millisecond, MaxDeliveries: 3, WriteRetries: 3,
			WriteRetryBackoff: 100 * time.Millisecond},
	}
}

func (b *batchConfig) Retention() time.Duration {
	return time.Duration(b.RetentionSeconds) * time.Second
}

func (b *batchConfig) CacheTTL() time.Duration {
	return time.Duration(b.CacheTTLSeconds) * time.Second
}

func (b *batchConfig) MaxFileSize() int64 {
	return int64(b.MaxFileSizeMB) << 20
}
