// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App            AppConfig            `mapstructure:"app"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Intake         IntakeConfig         `mapstructure:"intake"`
	Reconciliation ReconciliationConfig `mapstructure:"reconciliation"`
	Notifications  NotificationConfig   `mapstructure:"notifications"`
	Archive        ArchiveConfig        `mapstructure:"archive"`
	Platform       PlatformConfig       `mapstructure:"platform"`
	Server         ServerConfig         `mapstructure:"server"`
	Logging        LoggingConfig        `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type DatabaseConfig struct {
	// Postgres holds the decision and counter tables.
	Postgres PostgresConfig `mapstructure:"postgres"`
	// Grants points at the external permission database.
	Grants        PostgresConfig      `mapstructure:"grants"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
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
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Domain Configuration ---

// IntakeConfig drives the intake sessions and reviewer authorization.
type IntakeConfig struct {
	QuestionSetPath   string   `mapstructure:"question_set_path"`
	AdminRoles        []string `mapstructure:"admin_roles"`
	AttachmentTimeout int      `mapstructure:"attachment_timeout"` // milliseconds
	SnapshotTTL       int      `mapstructure:"snapshot_ttl"`       // milliseconds, 0 keeps snapshots until close
	SummaryFieldLimit int      `mapstructure:"summary_field_limit"`
	AvatarURLTemplate string   `mapstructure:"avatar_url_template"`
}

// ReconciliationConfig configures the two grant sync sweeps.
type ReconciliationConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Interval    int    `mapstructure:"interval"` // milliseconds
	AcceptRole  string `mapstructure:"accept_role"`
	RejectRole  string `mapstructure:"reject_role"`
	Scope       string `mapstructure:"scope"`
	TablePrefix string `mapstructure:"table_prefix"`
	RowTimeout  int    `mapstructure:"row_timeout"` // milliseconds
}

// NotificationConfig holds settings for decision fan-out.
type NotificationConfig struct {
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		Region   string `mapstructure:"region"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
}

// ArchiveConfig holds settings for the closed-application index.
type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Index   string `mapstructure:"index"`
}

// PlatformConfig points at the chat-platform gateway.
type PlatformConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Token      string `mapstructure:"token"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
