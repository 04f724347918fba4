package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"SignalSim/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment"`
	Logger      struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logger"`
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		RunsPerMinute   int           `yaml:"runs_per_minute"`
		RunBurst        int           `yaml:"run_burst"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Engine struct {
		InitialCapital float64 `yaml:"initial_capital"`
		MinTradeCost   float64 `yaml:"min_trade_cost"`
		Horizon        int     `yaml:"horizon"`
		Threshold      float64 `yaml:"threshold"`
		LookbackDays   int     `yaml:"lookback_days"`
		Classifier     struct {
			Estimators   int     `yaml:"estimators"`
			LearningRate float64 `yaml:"learning_rate"`
			MaxDepth     int     `yaml:"max_depth"`
			MinRows      int     `yaml:"min_rows"`
			TestFraction float64 `yaml:"test_fraction"`
		} `yaml:"classifier"`
	} `yaml:"engine"`
	Risk struct {
		PositionSize float64 `yaml:"position_size"`
		StopLoss     float64 `yaml:"stop_loss"`
		TakeProfit   float64 `yaml:"take_profit"`
	} `yaml:"risk"`
	Binance struct {
		RestURL        string        `yaml:"rest_url"`
		WebSocketURL   string        `yaml:"websocket_url"`
		Timeout        time.Duration `yaml:"timeout"`
		Symbols        []string      `yaml:"symbols"`
		Interval       string        `yaml:"interval"`
		Stream         bool          `yaml:"stream"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"binance"`
	Cache struct {
		Type     string        `yaml:"type"` // memory, redis or layered
		TTL      time.Duration `yaml:"ttl"`
		MaxItems int           `yaml:"max_items"`
		Redis    struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Postgres struct {
		Enabled  bool   `yaml:"enabled"`
		DSN      string `yaml:"dsn"`
		MaxConns int32  `yaml:"max_conns"`
		MinConns int32  `yaml:"min_conns"`
	} `yaml:"postgres"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Topics       struct {
			Signals string `yaml:"signals"`
			Trades  string `yaml:"trades"`
			Candles string `yaml:"candles"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
}

// Load reads, defaults and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, fills defaults and validates.
func Parse(b []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides selected fields from getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logger.Level = v
	}
	if v := getenv("HTTP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := getenv("BINANCE_SYMBOLS"); v != "" {
		c.Binance.Symbols = util.SplitList(v)
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
		c.Kafka.Enabled = true
	}
	if v := getenv("POSTGRES_DSN"); v != "" {
		c.Postgres.DSN = v
		c.Postgres.Enabled = true
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Cache.Redis.Host = host
		if ok {
			if p, err := strconv.Atoi(port); err == nil {
				c.Cache.Redis.Port = p
			}
		}
		if c.Cache.Type == "memory" {
			c.Cache.Type = "redis"
		}
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
}

// Default returns the configuration used when a key is absent from YAML.
func Default() *Config {
	c := &Config{Environment: "development"}
	c.Logger.Level = "info"
	c.Logger.Format = "json"
	c.Logger.Output = "stdout"

	c.Server.Port = 8080
	c.Server.ReadTimeout = 15 * time.Second
	c.Server.WriteTimeout = 60 * time.Second
	c.Server.ShutdownTimeout = 10 * time.Second
	c.Server.RunsPerMinute = 30
	c.Server.RunBurst = 5

	c.Metrics.Enabled = true
	c.Metrics.Path = "/metrics"

	c.Engine.InitialCapital = 10000
	c.Engine.MinTradeCost = 10
	c.Engine.Horizon = 1
	c.Engine.Threshold = 0.005
	c.Engine.LookbackDays = 30
	c.Engine.Classifier.Estimators = 100
	c.Engine.Classifier.LearningRate = 0.1
	c.Engine.Classifier.MaxDepth = 3
	c.Engine.Classifier.MinRows = 50
	c.Engine.Classifier.TestFraction = 0.2

	c.Risk.PositionSize = 0.10
	c.Risk.StopLoss = 0.02
	c.Risk.TakeProfit = 0.05

	c.Binance.RestURL = "https://api.binance.com"
	c.Binance.WebSocketURL = "wss://stream.binance.com:9443/stream"
	c.Binance.Timeout = 10 * time.Second
	c.Binance.Symbols = []string{"BTCUSDT", "ETHUSDT"}
	c.Binance.Interval = "1h"
	c.Binance.ReconnectDelay = 5 * time.Second
	c.Binance.PingInterval = 30 * time.Second

	c.Cache.Type = "memory"
	c.Cache.TTL = 24 * time.Hour
	c.Cache.MaxItems = 500
	c.Cache.Redis.Host = "localhost"
	c.Cache.Redis.Port = 6379
	c.Cache.Redis.Prefix = "signalsim"

	c.ClickHouse.Port = 9000
	c.ClickHouse.Database = "signalsim"
	c.ClickHouse.User = "default"
	c.ClickHouse.DialTimeout = 5 * time.Second
	c.ClickHouse.ReadTimeout = 30 * time.Second

	c.Postgres.MaxConns = 10
	c.Postgres.MinConns = 1

	c.Kafka.RequiredAcks = -1
	c.Kafka.Compression = "snappy"
	c.Kafka.Topics.Signals = "signalsim.signals"
	c.Kafka.Topics.Trades = "signalsim.trades"
	c.Kafka.Topics.Candles = "signalsim.candles"
	c.Kafka.Producer.MaxAttempts = 3
	c.Kafka.Producer.Linger = 50 * time.Millisecond
	c.Kafka.Producer.BatchBytes = 1 << 20
	c.Kafka.Producer.BatchSize = 100
	c.Kafka.Producer.WriteTimeout = 10 * time.Second
	c.Kafka.Producer.ReadTimeout = 10 * time.Second
	return c
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Engine.InitialCapital <= 0 {
		return fmt.Errorf("engine.initial_capital must be positive")
	}
	if c.Engine.Horizon < 1 {
		return fmt.Errorf("engine.horizon must be at least 1")
	}
	if c.Engine.Threshold < 0 {
		return fmt.Errorf("engine.threshold must not be negative")
	}
	if f := c.Engine.Classifier.TestFraction; f <= 0 || f >= 1 {
		return fmt.Errorf("engine.classifier.test_fraction must be in (0,1), got %v", f)
	}
	if r := c.Risk.PositionSize; r <= 0 || r > 1 {
		return fmt.Errorf("risk.position_size must be in (0,1], got %v", r)
	}
	if r := c.Risk.StopLoss; r <= 0 || r >= 1 {
		return fmt.Errorf("risk.stop_loss must be in (0,1), got %v", r)
	}
	if c.Risk.TakeProfit <= 0 {
		return fmt.Errorf("risk.take_profit must be positive")
	}
	switch c.Binance.Interval {
	case "15m", "1h", "1d":
	default:
		return fmt.Errorf("binance.interval must be 15m, 1h or 1d, got '%s'", c.Binance.Interval)
	}
	switch c.Cache.Type {
	case "memory", "redis", "layered":
	default:
		return fmt.Errorf("cache.type must be 'memory', 'redis' or 'layered', got '%s'", c.Cache.Type)
	}
	if c.Binance.Stream && len(c.Binance.Symbols) == 0 {
		return fmt.Errorf("binance.symbols cannot be empty when streaming")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required when kafka is enabled")
	}
	if c.Postgres.Enabled && c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn required when postgres is enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host required when clickhouse is enabled")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
