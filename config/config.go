package config

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/erain9/limitbook/pkg/db/queue"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		HTTPAddr  string `yaml:"http_addr"`
		LogLevel  string `yaml:"log_level"`
		LogFormat string `yaml:"log_format"`
	} `yaml:"server"`

	Backend struct {
		// Type selects the book storage: "memory" or "redis"
		Type string `yaml:"type"`
	} `yaml:"backend"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Kafka struct {
		// Driver selects the producer stack: "sarama" or "segmentio";
		// empty disables trade publishing.
		Driver     string `yaml:"driver"`
		BrokerAddr string `yaml:"broker_addr"`
		Topic      string `yaml:"topic"`
	} `yaml:"kafka"`
}

// Default configuration values
var (
	configFile = flag.String("config", "", "Path to config file (YAML)")
	httpPort   = flag.Int("http_port", 8080, "The HTTP server port")
	logLevel   = flag.String("log_level", "info", "Log level: debug, info, warn, error")
	logFormat  = flag.String("log_format", "pretty", "Log format: json, pretty")
	backend    = flag.String("backend", "memory", "Book backend: memory, redis")
)

// LoadConfig loads the configuration from command line flags, optionally a
// YAML config file, and LIMITBOOK_* environment variables (highest
// precedence), e.g. LIMITBOOK_KAFKA_BROKER_ADDR.
func LoadConfig() (*Config, error) {
	flag.Parse()

	config := &Config{}
	config.Server.HTTPAddr = fmt.Sprintf(":%d", *httpPort)
	config.Server.LogLevel = *logLevel
	config.Server.LogFormat = *logFormat
	config.Backend.Type = *backend
	config.Redis.Addr = "localhost:6379"
	config.Kafka.Driver = ""
	config.Kafka.BrokerAddr = "localhost:9092"
	config.Kafka.Topic = "trade-feed"

	if *configFile != "" {
		yamlFile, err := os.ReadFile(*configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(yamlFile, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(config)

	// Propagate Kafka settings into the queue package
	queue.SetBrokerList(config.Kafka.BrokerAddr)
	queue.SetTopic(config.Kafka.Topic)

	return config, nil
}

// applyEnv overlays LIMITBOOK_* environment variables onto the config
func applyEnv(config *Config) {
	v := viper.New()
	v.SetEnvPrefix("limitbook")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if addr := v.GetString("http_addr"); addr != "" {
		config.Server.HTTPAddr = addr
	}
	if level := v.GetString("log_level"); level != "" {
		config.Server.LogLevel = level
	}
	if format := v.GetString("log_format"); format != "" {
		config.Server.LogFormat = format
	}
	if backendType := v.GetString("backend_type"); backendType != "" {
		config.Backend.Type = backendType
	}
	if addr := v.GetString("redis_addr"); addr != "" {
		config.Redis.Addr = addr
	}
	if password := v.GetString("redis_password"); password != "" {
		config.Redis.Password = password
	}
	if v.IsSet("redis_db") {
		config.Redis.DB = v.GetInt("redis_db")
	}
	if driver := v.GetString("kafka_driver"); driver != "" {
		config.Kafka.Driver = driver
	}
	if addr := v.GetString("kafka_broker_addr"); addr != "" {
		config.Kafka.BrokerAddr = addr
	}
	if topic := v.GetString("kafka_topic"); topic != "" {
		config.Kafka.Topic = topic
	}
}
