package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"FinCast/internal/services/synth"
	applogger "FinCast/pkg/logger"
)

// Targets overrides the conservative/moderate/aggressive fractions of one timeframe.
type Targets struct {
	Conservative float64 `yaml:"conservative" validate:"gt=0"`
	Moderate     float64 `yaml:"moderate" validate:"gtfield=Conservative"`
	Aggressive   float64 `yaml:"aggressive" validate:"gtfield=Moderate"`
}

type Config struct {
	Environment string             `yaml:"environment" default:"development" validate:"required"`
	Log         applogger.Config   `yaml:"log"`
	Server      ServerConfig       `yaml:"server"`
	Metrics     MetricsConfig      `yaml:"metrics"`
	Engine      EngineConfig       `yaml:"engine"`
	Cache       CacheConfig        `yaml:"cache"`
	Policy      synth.Policy       `yaml:"policy"`
	Targets     map[string]Targets `yaml:"targets" validate:"dive,keys,oneof=1M 6M 1Y 5Y,endkeys"`
	MarketData  MarketDataConfig   `yaml:"market_data"`
	ClickHouse  ClickHouseConfig   `yaml:"clickhouse"`
	Kafka       KafkaConfig        `yaml:"kafka"`
	RateLimit   RateLimitConfig    `yaml:"ratelimit"`
	Warmup      WarmupConfig       `yaml:"warmup"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"2m"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	SlowRequest     time.Duration `yaml:"slow_request" default:"2s"`
	CORS            bool          `yaml:"cors" default:"true"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled" default:"true"`
}

type EngineConfig struct {
	Workers      int           `yaml:"workers" default:"4" validate:"gte=1,lte=64"`
	TrainTimeout time.Duration `yaml:"train_timeout" default:"2m" validate:"gt=0"`
	MaxGap       time.Duration `yaml:"max_gap" default:"120h"`
}

type CacheConfig struct {
	TTL      time.Duration `yaml:"ttl" default:"1h" validate:"gt=0"`
	Capacity int           `yaml:"capacity" default:"256" validate:"gte=1"`
	Redis    RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Host      string        `yaml:"host" default:"localhost"`
	Port      int           `yaml:"port" default:"6379"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	PoolSize  int           `yaml:"pool_size" default:"10"`
	Prefix    string        `yaml:"prefix" default:"fincast"`
	OpTimeout time.Duration `yaml:"op_timeout" default:"2s"` // per snapshot read or write
}

type MarketDataConfig struct {
	Source     string      `yaml:"source" default:"static" validate:"oneof=static yahoo clickhouse"`
	StaticPath string      `yaml:"static_path" default:"data/stocks.json" validate:"required_if=Source static"`
	Extension  int         `yaml:"extension" validate:"gte=0"`
	Yahoo      YahooConfig `yaml:"yahoo"`
	Table      string      `yaml:"table" default:"fincast.daily_candles"`
}

type YahooConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Suffix   string        `yaml:"suffix" default:".NS"`
	Timeout  time.Duration `yaml:"timeout" default:"10s"`
	Attempts int           `yaml:"attempts" default:"3"`
	Backoff  time.Duration `yaml:"backoff" default:"500ms"`
}

type ClickHouseConfig struct {
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"fincast"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
	WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	InitSchema       bool          `yaml:"init_schema" default:"true"`
}

type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers" validate:"required_if=Enabled true"`
	Topic        string   `yaml:"topic" default:"fincast.model-events"`
	RequiredAcks int      `yaml:"required_acks" default:"1"`
	Compression  string   `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
	Producer     struct {
		Async        bool          `yaml:"async"`
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		Linger       time.Duration `yaml:"linger" default:"10ms"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
	} `yaml:"producer"`
	Consumer struct {
		GroupID     string        `yaml:"group_id"`
		StartOffset string        `yaml:"auto_offset_reset" default:"latest" validate:"oneof=earliest latest"`
		Workers     int           `yaml:"workers" default:"2"`
		BufferSize  int           `yaml:"buffer_size" default:"64"`
		RetryMax    int           `yaml:"retry_max" default:"3"`
		BackoffMin  time.Duration `yaml:"backoff_min" default:"100ms"`
		BackoffMax  time.Duration `yaml:"backoff_max" default:"5s"`
		DLQTopic    string        `yaml:"dlq_topic"`
		MinBytes    int           `yaml:"min_bytes" default:"1"`
		MaxBytes    int           `yaml:"max_bytes" default:"10485760"`
	} `yaml:"consumer"`
}

type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" default:"true"`
	RPS     float64 `yaml:"rps" default:"5" validate:"gt=0"`
	Burst   int     `yaml:"burst" default:"20" validate:"gte=1"`
}

// WarmupConfig drives background training through the Redis job queue.
type WarmupConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Symbols    []string      `yaml:"symbols"`
	Timeframes []string      `yaml:"timeframes" validate:"dive,oneof=1M 6M 1Y 5Y"`
	Workers    int           `yaml:"workers" default:"2" validate:"gte=1"`
	RetryLimit int           `yaml:"retry_limit" default:"3" validate:"gte=0"`
	RetryDelay time.Duration `yaml:"retry_delay" default:"30s"`
}

var validate = validator.New()

// Load reads a YAML file, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes raw YAML over the defaults, so explicit zero values such as
// `cors: false` survive. An empty document yields the defaults.
func Parse(raw []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides it with environment variables.
// An empty path starts from the defaults.
func LoadWithEnv(path string) (*Config, error) {
	var (
		c   *Config
		err error
	)
	if path == "" {
		c, err = Parse(nil)
	} else {
		c, err = Load(path)
	}
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("env %s: %w", key, err)
		}
		*dst = n
		return nil
	}
	boolean := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("env %s: %w", key, err)
		}
		*dst = b
		return nil
	}

	str("FINCAST_ENV", &c.Environment)
	str("FINCAST_LOG_LEVEL", &c.Log.Level)
	str("FINCAST_DATA_SOURCE", &c.MarketData.Source)
	str("FINCAST_STATIC_PATH", &c.MarketData.StaticPath)
	str("CLICKHOUSE_HOST", &c.ClickHouse.Host)
	str("CLICKHOUSE_PASSWORD", &c.ClickHouse.Password)
	if err := integer("FINCAST_PORT", &c.Server.Port); err != nil {
		return err
	}
	if err := integer("FINCAST_WORKERS", &c.Engine.Workers); err != nil {
		return err
	}
	if v, ok := lookup("REDIS_ADDR"); ok && v != "" {
		host, port, found := strings.Cut(v, ":")
		c.Cache.Redis.Host = host
		if found {
			n, err := strconv.Atoi(port)
			if err != nil {
				return fmt.Errorf("env REDIS_ADDR: %w", err)
			}
			c.Cache.Redis.Port = n
		}
		c.Cache.Redis.Enabled = true
	}
	str("REDIS_PASSWORD", &c.Cache.Redis.Password)
	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		c.Kafka.Brokers = splitList(v)
		c.Kafka.Enabled = true
	}
	str("KAFKA_TOPIC", &c.Kafka.Topic)
	return boolean("FINCAST_KAFKA_ENABLED", &c.Kafka.Enabled)
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Policy.HighR2 < -1 || c.Policy.HighR2 > 1 {
		return fmt.Errorf("policy.high_r2 must be within [-1, 1], got %v", c.Policy.HighR2)
	}
	if c.Warmup.Enabled && !c.Cache.Redis.Enabled {
		return fmt.Errorf("warmup.enabled requires cache.redis.enabled")
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
