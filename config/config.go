package config

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/erain9/bookd/pkg/matching"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Store backends
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Kafka drivers
const (
	DriverKafkaGo = "kafka-go"
	DriverSarama  = "sarama"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		HTTPAddr       string `yaml:"http_addr"`
		GRPCAddr       string `yaml:"grpc_addr"`
		LogLevel       string `yaml:"log_level"`
		LogFormat      string `yaml:"log_format"`
		StaticDir      string `yaml:"static_dir"`
		MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	} `yaml:"server"`

	Store struct {
		Backend string `yaml:"backend"`
		Path    string `yaml:"path"`
		Redis   struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Key      string `yaml:"key"`
		} `yaml:"redis"`
	} `yaml:"store"`

	Matching struct {
		Algo string `yaml:"algo"`
	} `yaml:"matching"`

	Kafka struct {
		Enabled    bool   `yaml:"enabled"`
		Driver     string `yaml:"driver"`
		BrokerAddr string `yaml:"broker_addr"`
		Topic      string `yaml:"topic"`
		Consume    bool   `yaml:"consume"`
	} `yaml:"kafka"`

	Telemetry struct {
		Enabled        bool   `yaml:"enabled"`
		Endpoint       string `yaml:"endpoint"`
		RuntimeMetrics bool   `yaml:"runtime_metrics"`
	} `yaml:"telemetry"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	cfg := &Config{}
	cfg.Server.HTTPAddr = ":8000"
	cfg.Server.GRPCAddr = ":50051"
	cfg.Server.LogLevel = "info"
	cfg.Server.LogFormat = "pretty"
	cfg.Store.Backend = BackendFile
	cfg.Store.Path = "orderbook.json"
	cfg.Store.Redis.Addr = "localhost:6379"
	cfg.Store.Redis.Key = "bookd:orderbook"
	cfg.Matching.Algo = matching.DefaultStrategy.String()
	cfg.Kafka.Driver = DriverKafkaGo
	cfg.Kafka.BrokerAddr = "localhost:9092"
	cfg.Kafka.Topic = "bookd-fills"
	cfg.Telemetry.Endpoint = "localhost:4317"
	return cfg
}

// envBindings maps config keys to the environment variables that override
// them. ALGO is read for compatibility with older deployments.
var envBindings = map[string][]string{
	"server.http_addr":     {"BOOKD_HTTP_ADDR"},
	"server.grpc_addr":     {"BOOKD_GRPC_ADDR"},
	"server.log_level":     {"BOOKD_LOG_LEVEL"},
	"server.log_format":    {"BOOKD_LOG_FORMAT"},
	"store.backend":        {"BOOKD_STORE_BACKEND"},
	"store.path":           {"BOOKD_STORE_PATH"},
	"store.redis.addr":     {"BOOKD_REDIS_ADDR"},
	"store.redis.password": {"BOOKD_REDIS_PASSWORD"},
	"store.redis.db":       {"BOOKD_REDIS_DB"},
	"store.redis.key":      {"BOOKD_REDIS_KEY"},
	"matching.algo":        {"BOOKD_ALGO", "ALGO"},
	"kafka.enabled":        {"BOOKD_KAFKA_ENABLED"},
	"kafka.driver":         {"BOOKD_KAFKA_DRIVER"},
	"kafka.broker_addr":    {"BOOKD_KAFKA_BROKER_ADDR"},
	"kafka.topic":          {"BOOKD_KAFKA_TOPIC"},
	"kafka.consume":        {"BOOKD_KAFKA_CONSUME"},
	"telemetry.enabled":    {"BOOKD_TELEMETRY_ENABLED"},
	"telemetry.endpoint":   {"BOOKD_TELEMETRY_ENDPOINT"},
	"telemetry.runtime":    {"BOOKD_RUNTIME_METRICS"},
}

// LoadConfig loads the configuration from command line flags, an optional
// YAML file and the environment
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load builds a Config from args. Precedence, lowest first: defaults, the
// YAML file named by -config, environment variables, explicitly set flags.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("bookd", flag.ContinueOnError)
	configFile := fs.String("config", "", "Path to config file (YAML)")
	httpAddr := fs.String("http_addr", "", "The HTTP listen address")
	grpcAddr := fs.String("grpc_addr", "", "The admin gRPC listen address, empty disables it")
	logLevel := fs.String("log_level", "", "Log level: debug, info, warn, error")
	logFormat := fs.String("log_format", "", "Log format: json, pretty")
	backend := fs.String("store", "", "Store backend: file, memory, redis")
	path := fs.String("store_path", "", "Snapshot file for the file backend")
	algo := fs.String("algo", "", "Matching strategy: FIFO, PRORATA")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := Default()

	if *configFile != "" {
		yamlFile, err := os.ReadFile(*configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(yamlFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "http_addr":
			cfg.Server.HTTPAddr = *httpAddr
		case "grpc_addr":
			cfg.Server.GRPCAddr = *grpcAddr
		case "log_level":
			cfg.Server.LogLevel = *logLevel
		case "log_format":
			cfg.Server.LogFormat = *logFormat
		case "store":
			cfg.Store.Backend = *backend
		case "store_path":
			cfg.Store.Path = *path
		case "algo":
			cfg.Matching.Algo = *algo
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	v := viper.New()
	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	setString := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	setBool := func(key string, dst *bool) {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}

	setString("server.http_addr", &cfg.Server.HTTPAddr)
	setString("server.grpc_addr", &cfg.Server.GRPCAddr)
	setString("server.log_level", &cfg.Server.LogLevel)
	setString("server.log_format", &cfg.Server.LogFormat)
	setString("store.backend", &cfg.Store.Backend)
	setString("store.path", &cfg.Store.Path)
	setString("store.redis.addr", &cfg.Store.Redis.Addr)
	setString("store.redis.password", &cfg.Store.Redis.Password)
	setString("store.redis.key", &cfg.Store.Redis.Key)
	if v.IsSet("store.redis.db") {
		cfg.Store.Redis.DB = v.GetInt("store.redis.db")
	}
	setString("matching.algo", &cfg.Matching.Algo)
	setBool("kafka.enabled", &cfg.Kafka.Enabled)
	setString("kafka.driver", &cfg.Kafka.Driver)
	setString("kafka.broker_addr", &cfg.Kafka.BrokerAddr)
	setString("kafka.topic", &cfg.Kafka.Topic)
	setBool("kafka.consume", &cfg.Kafka.Consume)
	setBool("telemetry.enabled", &cfg.Telemetry.Enabled)
	setString("telemetry.endpoint", &cfg.Telemetry.Endpoint)
	setBool("telemetry.runtime", &cfg.Telemetry.RuntimeMetrics)
	return nil
}

// Validate rejects settings the server cannot start with. An unknown
// matching strategy is not an error; see Strategy.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	switch strings.ToLower(c.Server.LogFormat) {
	case "json", "pretty":
	default:
		return fmt.Errorf("unsupported log format %q", c.Server.LogFormat)
	}
	switch c.Store.Backend {
	case BackendFile:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the file backend")
		}
	case BackendMemory:
	case BackendRedis:
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("store.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unsupported store backend %q", c.Store.Backend)
	}
	if c.Kafka.Enabled {
		switch c.Kafka.Driver {
		case DriverKafkaGo, DriverSarama:
		default:
			return fmt.Errorf("unsupported kafka driver %q", c.Kafka.Driver)
		}
		if c.Kafka.BrokerAddr == "" || c.Kafka.Topic == "" {
			return fmt.Errorf("kafka.broker_addr and kafka.topic are required when kafka is enabled")
		}
	}
	return nil
}

// Strategy resolves the configured matching strategy. An unrecognized name
// yields the default strategy together with an error wrapping
// core.ErrUnrecognizedStrategy that callers should log and otherwise ignore.
func (c *Config) Strategy() (matching.Strategy, error) {
	return matching.ParseStrategy(c.Matching.Algo)
}
