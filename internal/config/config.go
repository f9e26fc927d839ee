package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config mirrors configs/app.yaml.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	MySQL     MySQLConfig     `mapstructure:"mysql"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Lock      LockConfig      `mapstructure:"lock"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig defines HTTP server options.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// MySQLConfig configures the relational database connection.
type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"maxIdleConns"`
	MaxOpenConns    int           `mapstructure:"maxOpenConns"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime"`
}

// RedisConfig configures the Redis client connection.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// KafkaConfig configures Kafka producer/consumer settings.
type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	OrderTopic    string   `mapstructure:"orderTopic"`
	RetryTopic    string   `mapstructure:"retryTopic"`
	DLQTopic      string   `mapstructure:"dlqTopic"`
	LowStockTopic string   `mapstructure:"lowStockTopic"`
	GroupID       string   `mapstructure:"groupId"`
}

// SMTPConfig configures email notifications.
type SMTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	User string `mapstructure:"user"`
	Pass string `mapstructure:"pass"`
	To   string `mapstructure:"to"`
}

// LockConfig controls the distributed lock manager defaults.
type LockConfig struct {
	TTL        time.Duration `mapstructure:"ttl"`
	MaxRetries int           `mapstructure:"maxRetries"`
}

// SchedulerConfig controls the lifecycle sweep and deferred jobs.
type SchedulerConfig struct {
	SessionSweepInterval  time.Duration `mapstructure:"sessionSweepInterval"`
	ActivitySweepInterval time.Duration `mapstructure:"activitySweepInterval"`
	QueuePollInterval     time.Duration `mapstructure:"queuePollInterval"`
	Lookahead             time.Duration `mapstructure:"lookahead"`
}

// LoggingConfig controls structured logging output.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Load loads configuration from a YAML file path.
func Load(path string) (*Config, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	if err := vp.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := vp.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// MustLoad wraps Load and panics on failure.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Lock.TTL <= 0 {
		c.Lock.TTL = 10 * time.Second
	}
	if c.Lock.MaxRetries <= 0 {
		c.Lock.MaxRetries = 3
	}
	if c.Scheduler.SessionSweepInterval <= 0 {
		c.Scheduler.SessionSweepInterval = time.Minute
	}
	if c.Scheduler.ActivitySweepInterval <= 0 {
		c.Scheduler.ActivitySweepInterval = 10 * time.Minute
	}
	if c.Scheduler.QueuePollInterval <= 0 {
		c.Scheduler.QueuePollInterval = time.Second
	}
	if c.Scheduler.Lookahead <= 0 {
		c.Scheduler.Lookahead = 30 * time.Minute
	}
}
