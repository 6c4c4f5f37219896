package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"15s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CORSOrigins     []string      `yaml:"cors_origins" default:"[\"*\"]"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"json"`
		Output string `yaml:"output" default:"stdout"`
		// Topic receives aggregated warn/error batches when Kafka is enabled.
		Topic         string        `yaml:"topic" default:"logs"`
		FlushInterval time.Duration `yaml:"flush_interval" default:"30s"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	RateLimit struct {
		Rate  float64 `yaml:"rate" default:"5"`
		Burst int     `yaml:"burst" default:"10"`
	} `yaml:"rate_limit"`
	Aptos struct {
		NodeURL       string        `yaml:"node_url" default:"https://fullnode.testnet.aptoslabs.com"`
		ModuleAddress string        `yaml:"module_address"`
		Timeout       time.Duration `yaml:"timeout" default:"10s"`
		HistoryLimit  int           `yaml:"history_limit" default:"50"`
	} `yaml:"aptos"`
	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Addr     string        `yaml:"addr" default:"localhost:6379"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		TrustTTL time.Duration `yaml:"trust_ttl" default:"5m"`
		Prefix   string        `yaml:"prefix" default:"defiguard"`
		PoolSize int           `yaml:"pool_size" default:"20"`
		MinIdle  int           `yaml:"min_idle" default:"4"`
		// PoolTimeout bounds the wait for a free connection.
		PoolTimeout time.Duration `yaml:"pool_timeout" default:"4s"`
	} `yaml:"redis"`
	LocalCache struct {
		MaxSize int           `yaml:"max_size" default:"10000"`
		TTL     time.Duration `yaml:"ttl" default:"30s"`
		Cleanup time.Duration `yaml:"cleanup" default:"1m"`
	} `yaml:"local_cache"`
	Queue struct {
		Name        string        `yaml:"name" default:"defiguard:audit"`
		Concurrency int           `yaml:"concurrency" default:"4"`
		MaxRetries  int           `yaml:"max_retries" default:"3"`
		RetryDelay  time.Duration `yaml:"retry_delay" default:"2s"`
	} `yaml:"queue"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		// AutoCreateTopics is meant for local clusters only.
		AutoCreateTopics bool `yaml:"auto_create_topics"`
		Topics           struct {
			TransferIntents    string `yaml:"transfer_intents" default:"transfer_intents"`
			LiquidityDecisions string `yaml:"liquidity_decisions" default:"liquidity_decisions"`
			RiskResponses      string `yaml:"risk_responses" default:"risk_responses"`
			PoolMetrics        string `yaml:"pool_metrics" default:"pool_metrics"`
			Audit              string `yaml:"audit" default:"risk_audit"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"defiguard"`
			Workers    int           `yaml:"workers" default:"4"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"pool_metrics_dlq"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"defiguard"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert" default:"true"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Pipeline struct {
		BufferSize       int           `yaml:"buffer_size" default:"1024"`
		ThrottleInterval time.Duration `yaml:"throttle_interval" default:"30s"`
		Workers          int           `yaml:"workers" default:"2"`
		MaxRetries       int           `yaml:"max_retries" default:"5"`
	} `yaml:"pipeline"`
	Monitor struct {
		// IdleTTL drops per-address monitoring state after this long without a pass.
		IdleTTL time.Duration `yaml:"idle_ttl" default:"1h"`
		// RiskResponses submits mitigations and anomaly responses from monitoring passes.
		RiskResponses bool `yaml:"risk_responses" default:"true"`
	} `yaml:"monitor"`
	Engine EngineConfig `yaml:"engine"`
}

// Load reads and parses a YAML configuration file. Missing keys take their default tag.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes raw YAML, applies defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads .env (if present), then the YAML file, then applies environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("APTOS_NODE_URL"); v != "" {
		c.Aptos.NodeURL = v
	}
	if v := os.Getenv("MODULE_ADDRESS"); v != "" {
		c.Aptos.ModuleAddress = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Aptos.NodeURL == "" {
		return fmt.Errorf("aptos.node_url is required")
	}
	if c.Aptos.ModuleAddress == "" {
		return fmt.Errorf("aptos.module_address is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be positive, got %d", c.Server.Port)
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	return nil
}
