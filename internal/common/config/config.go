package config

import "fmt"

// Config is the main application configuration struct. It is assembled once
// at process start and handed to constructors explicitly; nothing reads
// configuration through globals after that.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	GenAI    GenAIConfig    `mapstructure:"genai"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	ListenAddress   string `mapstructure:"listen_address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`

	// StatementTimeout is applied server-side so runaway generated queries
	// are cancelled by the database, not the application. Milliseconds.
	StatementTimeout int `mapstructure:"statement_timeout"`

	// ReadOnly forces default_transaction_read_only on every session opened
	// with this config. The executor connection always sets it.
	ReadOnly bool `mapstructure:"read_only"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
	options := ""
	if p.ReadOnly {
		options += " -c default_transaction_read_only=on"
	}
	if p.StatementTimeout > 0 {
		options += fmt.Sprintf(" -c statement_timeout=%d", p.StatementTimeout)
	}
	if options != "" {
		dsn += fmt.Sprintf(" options='%s'", options[1:])
	}
	return dsn
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// ContextTTL bounds how long a cached store context snapshot is served.
	ContextTTL int `mapstructure:"context_ttl"` // seconds
}

// GenAIConfig holds settings for the chat-completion provider.
type GenAIConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"` // empty means provider default
	Model      string `mapstructure:"model"`
	Timeout    int    `mapstructure:"timeout"`     // milliseconds, per attempt
	MaxRetries int    `mapstructure:"max_retries"` // additional attempts after the first
}

// PipelineConfig holds tunables for question processing.
type PipelineConfig struct {
	BackoffBase int `mapstructure:"backoff_base"` // milliseconds
	BackoffMax  int `mapstructure:"backoff_max"`  // milliseconds
	MaxRows     int `mapstructure:"max_rows"`     // executor result cap
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
