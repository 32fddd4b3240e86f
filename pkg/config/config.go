package config

import (
	"fmt"
	"time"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Controller ControllerConfig `mapstructure:"controller"`
	Circuit    CircuitConfig    `mapstructure:"circuit"`
	Cloud      CloudConfig      `mapstructure:"cloud"`
	Alert      AlertConfig      `mapstructure:"alert"`
	API        APIConfig        `mapstructure:"api"`
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

type AppConfig struct {
	Name            string        `mapstructure:"name"`
	Mode            string        `mapstructure:"mode"`
	LogLevel        string        `mapstructure:"log_level"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	MaxConnections  int           `mapstructure:"max_connections"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

func (d DatabaseConfig) DSN() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, sslMode,
	)
}

// ControllerConfig bounds one tick: how many groups evaluate concurrently and
// how long the whole pass may run before in-flight workers are cancelled.
type ControllerConfig struct {
	Parallelism  int           `mapstructure:"parallelism"`
	TickDeadline time.Duration `mapstructure:"tick_deadline"`
	CallTimeout  time.Duration `mapstructure:"call_timeout"`
}

type CircuitConfig struct {
	ErrorThreshold int           `mapstructure:"error_threshold"`
	OpenFor        time.Duration `mapstructure:"open_for"`
}

type CloudConfig struct {
	Region          string        `mapstructure:"region"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	Endpoint        string        `mapstructure:"endpoint"` // override for tests; empty means provider hosts
}

type AlertConfig struct {
	WebhookURL string        `mapstructure:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type APIConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type PrometheusConfig struct {
	Enabled bool `mapstructure:"enabled"`
}
