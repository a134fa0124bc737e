package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	defaultPath = "./config/config.yaml"
	envPrefix   = "MEETING"
)

type HTTP struct {
	Addr            string        `yaml:"addr"`
	RequestTimeout  time.Duration `yaml:"requestTimeout" split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" split_words:"true"`
	MaxBodyBytes    int64         `yaml:"maxBodyBytes" split_words:"true"`
	CORSOrigins     []string      `yaml:"corsOrigins" envconfig:"CORS_ORIGINS"`
}

type GRPC struct {
	Addr          string        `yaml:"addr"`
	DeadlineGuard time.Duration `yaml:"deadlineGuard" split_words:"true"`
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|stage|prod
	Service   string `yaml:"service"`   // meeting-service
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	Level     string `yaml:"level"`     // debug|info|warn|error
	AddSource bool   `yaml:"addSource" split_words:"true"`
	Debug     bool   `yaml:"debug"`
}

type RateLimit struct {
	PerSecond float64 `yaml:"perSecond" split_words:"true"` // 0: без лимита
	Burst     int     `yaml:"burst"`
}

type Relay struct {
	SendQueueSize   int           `yaml:"sendQueueSize" split_words:"true"`
	MaxMessageBytes int64         `yaml:"maxMessageBytes" split_words:"true"`
	PingInterval    time.Duration `yaml:"pingInterval" split_words:"true"`
	WriteTimeout    time.Duration `yaml:"writeTimeout" split_words:"true"`
	RateLimit       RateLimit     `yaml:"rateLimit" split_words:"true"`
	AllowedOrigins  []string      `yaml:"allowedOrigins" split_words:"true"`
}

type Security struct {
	BcryptCost int `yaml:"bcryptCost" split_words:"true"`
}

type Meeting struct {
	CodeLength int `yaml:"codeLength" split_words:"true"`
}

type Config struct {
	HTTP     HTTP     `yaml:"http"`
	GRPC     GRPC     `yaml:"grpc"`
	Logging  Logging  `yaml:"logging"`
	Relay    Relay    `yaml:"relay"`
	Security Security `yaml:"security"`
	Meeting  Meeting  `yaml:"meeting"`
}

// LoadConfig читает YAML из CONFIG_PATH (по умолчанию ./config/config.yaml)
// и накладывает поверх переменные окружения MEETING_*.
func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	explicit := path != ""
	if !explicit {
		path = defaultPath
	}

	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		// без файла работаем на окружении и дефолтах
		cfg, err = Load("")
	}
	return cfg, err
}

// Load делает то же, что LoadConfig, но с явным путём. Пустой путь: только окружение.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("env overlay: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	// установка дефолтов, если значения не указаны
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.RequestTimeout <= 0 {
		c.HTTP.RequestTimeout = 30 * time.Second
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = 1 << 20
	}
	if c.GRPC.Addr == "" {
		c.GRPC.Addr = ":9090"
	}
	if c.GRPC.DeadlineGuard <= 0 {
		c.GRPC.DeadlineGuard = 10 * time.Second
	}

	if c.Logging.Service == "" {
		c.Logging.Service = "meeting-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}

	if c.Relay.SendQueueSize <= 0 {
		c.Relay.SendQueueSize = 256
	}
	if c.Relay.MaxMessageBytes <= 0 {
		c.Relay.MaxMessageBytes = 64 << 10
	}
	if c.Relay.PingInterval <= 0 {
		c.Relay.PingInterval = 15 * time.Second
	}
	if c.Relay.WriteTimeout <= 0 {
		c.Relay.WriteTimeout = 5 * time.Second
	}
	if c.Relay.RateLimit.Burst <= 0 {
		c.Relay.RateLimit.Burst = 20
	}

	if c.Meeting.CodeLength == 0 {
		c.Meeting.CodeLength = 6
	}

	switch {
	case c.Logging.Backend != "std" && c.Logging.Backend != "zap":
		return fmt.Errorf("logging.backend must be std or zap, got %q", c.Logging.Backend)
	case c.Relay.RateLimit.PerSecond < 0:
		return errors.New("relay.rateLimit.perSecond must not be negative")
	case c.Relay.WriteTimeout >= c.Relay.PingInterval:
		return errors.New("relay.writeTimeout must be shorter than relay.pingInterval")
	case c.Meeting.CodeLength < 4 || c.Meeting.CodeLength > 32:
		return fmt.Errorf("meeting.codeLength must be within [4, 32], got %d", c.Meeting.CodeLength)
	}
	return nil
}
