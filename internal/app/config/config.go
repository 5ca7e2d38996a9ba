package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type SMTPConfig struct {
	Host         string        `yaml:"host" env:"SMTP_HOST" env-required:"true"`
	Port         int           `yaml:"port" env:"SMTP_PORT" env-required:"true"`
	Username     string        `yaml:"username" env:"SMTP_USERNAME"`
	Password     string        `yaml:"password" env:"SMTP_PASSWORD"`
	SenderEmail  string        `yaml:"sender_email" env:"SMTP_SENDER_EMAIL" env-required:"true"`
	Encryption   string        `yaml:"encryption" env:"SMTP_ENCRYPTION" env-default:"tls"`
	ServerName   string        `yaml:"server_name" env:"SMTP_SERVER_NAME"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SMTP_WRITE_TIMEOUT" env-default:"10s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"SMTP_READ_TIMEOUT" env-default:"10s"`
}

// CheckerConfig drives the reconciliation loop and the scraper it wraps.
type CheckerConfig struct {
	Interval         time.Duration `yaml:"interval" env:"CHECKER_INTERVAL" env-default:"1h"`
	HTTPTimeout      time.Duration `yaml:"http_timeout" env:"CHECKER_HTTP_TIMEOUT" env-default:"15s"`
	MaxAttempts      int           `yaml:"max_attempts" env:"CHECKER_MAX_ATTEMPTS" env-default:"3"`
	RetryBaseDelay   time.Duration `yaml:"retry_base_delay" env:"CHECKER_RETRY_BASE_DELAY" env-default:"1s"`
	GroupConcurrency int           `yaml:"group_concurrency" env:"CHECKER_GROUP_CONCURRENCY" env-default:"8"`
}

type AlertsConfig struct {
	Cooldown       time.Duration `yaml:"cooldown" env:"ALERTS_COOLDOWN" env-default:"6h"`
	BestDealsLimit int           `yaml:"best_deals_limit" env:"ALERTS_BEST_DEALS_LIMIT" env-default:"3"`
}

type Config struct {
	Env     string        `yaml:"env" env:"ENV" env-default:"local"`
	MongoDB MongoDBConfig `yaml:"mongo"`
	Redis   RedisConfig   `yaml:"redis"`
	NATS    NATSConfig    `yaml:"nats"`
	Logger  LoggerConfig  `yaml:"logger"`
	SMTP    SMTPConfig    `yaml:"smtp"`
	Checker CheckerConfig `yaml:"checker"`
	Alerts  AlertsConfig  `yaml:"alerts"`
}

type MongoDBConfig struct {
	URI      string `yaml:"uri" env:"MONGO_URI" env-default:"mongodb://localhost:27017"`
	User     string `yaml:"user" env:"MONGO_USER"`
	Password string `yaml:"password" env:"MONGO_PASSWORD"`
	Database string `yaml:"database" env:"MONGO_DATABASE" env-default:"price_tracker_db"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type NATSConfig struct {
	URL string `yaml:"url" env:"NATS_URL" env-default:"nats://localhost:4222"`
}

type LoggerConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Encoding   string `yaml:"encoding" env:"LOG_ENCODING" env-default:"json"`
	TimeFormat string `yaml:"time_format" env:"LOG_TIME_FORMAT" env-default:"2006-01-02T15:04:05.000Z07:00"`
}

func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path == "" {
		err := cleanenv.ReadEnv(&cfg)
		if err != nil {
			return nil, err
		}
		return &cfg, nil
	}

	err := cleanenv.ReadConfig(path, &cfg)
	if err != nil {
		if _, ok := err.(*os.PathError); ok && path != "" {
			log.Printf("Warning: Config file not found at %s, attempting to load from environment variables only.", path)
			errEnv := cleanenv.ReadEnv(&cfg)
			if errEnv != nil {
				return nil, errEnv
			}
			return &cfg, nil
		}
		return nil, err
	}
	return &cfg, nil
}

func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH_TRACKER_SERVICE")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := LoadConfig(configPath)
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}
	return cfg
}
