package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

var singleConfig *Config = nil

type Config struct {
	Database *dbConfig
	Service  *svcConfig
	Queue    *queueConfig
	Storage  *storageConfig
	Auth     *authConfig
	Pipeline *pipelineConfig
}

type dbConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"pgsql"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"stemflow"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`
}

type svcConfig struct {
	Address         string   `envconfig:"STEMFLOW_ADDRESS" default:":3000"`
	MetricsAddress  string   `envconfig:"STEMFLOW_METRICS_ADDRESS" default:":8080"`
	LogLevel        string   `envconfig:"STEMFLOW_LOG_LEVEL" default:"info"`
	LogFormat       string   `envconfig:"STEMFLOW_LOG_FORMAT" default:"console"`
	AccessLog       bool     `envconfig:"STEMFLOW_ACCESS_LOG" default:"true"`
	MigrationFolder string   `envconfig:"STEMFLOW_MIGRATIONS_FOLDER" default:""`
	WebhookSecret   string   `envconfig:"STEMFLOW_WEBHOOK_SECRET" default:""`
	AllowedOrigins  []string `envconfig:"STEMFLOW_ALLOWED_ORIGINS" default:"http://localhost:5173"`
}

type queueConfig struct {
	// Publisher selects the transport: "redis" or "stdout".
	Publisher      string        `envconfig:"QUEUE_PUBLISHER" default:"redis"`
	RedisAddress   string        `envconfig:"QUEUE_REDIS_ADDR" default:"localhost:6379"`
	RedisPassword  string        `envconfig:"QUEUE_REDIS_PASSWORD" default:""`
	RedisDB        int           `envconfig:"QUEUE_REDIS_DB" default:"0"`
	QueueKey       string        `envconfig:"QUEUE_KEY" default:"stemflow:tasks"`
	DedupTTL       time.Duration `envconfig:"QUEUE_DEDUP_TTL" default:"24h"`
	EnqueueTimeout time.Duration `envconfig:"QUEUE_ENQUEUE_TIMEOUT" default:"5s"`
}

type storageConfig struct {
	Enabled   bool   `envconfig:"STORAGE_ENABLED" default:"false"`
	Endpoint  string `envconfig:"STORAGE_ENDPOINT" default:"localhost:9000"`
	AccessKey string `envconfig:"STORAGE_ACCESS_KEY" default:""`
	SecretKey string `envconfig:"STORAGE_SECRET_KEY" default:""`
	Bucket    string `envconfig:"STORAGE_BUCKET" default:"stemflow"`
	Region    string `envconfig:"STORAGE_REGION" default:"us-east-1"`
	UseSSL    bool   `envconfig:"STORAGE_USE_SSL" default:"false"`
}

type authConfig struct {
	JWTSecret  string `envconfig:"AUTH_JWT_SECRET" default:"change-me"`
	SocketPath string `envconfig:"AUTH_SOCKET_PATH" default:"/ws"`
}

type pipelineConfig struct {
	// NumPeaks is the waveform down-sampling hint forwarded with analyze-audio.
	NumPeaks        int           `envconfig:"PIPELINE_NUM_PEAKS" default:"4000"`
	FailedRetention time.Duration `envconfig:"PIPELINE_FAILED_RETENTION" default:"168h"`
	ReaperInterval  time.Duration `envconfig:"PIPELINE_REAPER_INTERVAL" default:"1h"`
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

// NewDefault returns a fresh configuration that bypasses the process-wide singleton.
func NewDefault() *Config {
	c := new(Config)
	_ = envconfig.Process("", c)
	return c
}
