// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on top
// and applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets that are commonly only provided via env.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Database.Postgres.User == "" {
		cfg.Database.Postgres.User = os.Getenv("DB_USER")
	}
	if cfg.Database.Postgres.Password == "" {
		cfg.Database.Postgres.Password = os.Getenv("DB_PASSWORD")
	}
	if cfg.Database.Grants.User == "" {
		cfg.Database.Grants.User = os.Getenv("GRANTS_DB_USER")
	}
	if cfg.Database.Grants.Password == "" {
		cfg.Database.Grants.Password = os.Getenv("GRANTS_DB_PASSWORD")
	}
	if cfg.Platform.Token == "" {
		cfg.Platform.Token = os.Getenv("PLATFORM_TOKEN")
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	for _, pg := range []*PostgresConfig{&cfg.Database.Postgres, &cfg.Database.Grants} {
		if pg.Port == 0 {
			pg.Port = 5432
		}
		if pg.MaxConnections == 0 {
			pg.MaxConnections = 10
		}
		if pg.MaxIdle == 0 {
			pg.MaxIdle = 2
		}
		if pg.SSLMode == "" {
			pg.SSLMode = "disable"
		}
	}

	if cfg.Intake.QuestionSetPath == "" {
		cfg.Intake.QuestionSetPath = "configs/questions.json"
	}
	if cfg.Intake.AttachmentTimeout == 0 {
		cfg.Intake.AttachmentTimeout = 15000
	}
	if cfg.Intake.SummaryFieldLimit == 0 {
		cfg.Intake.SummaryFieldLimit = 1024
	}
	if cfg.Intake.AvatarURLTemplate == "" {
		cfg.Intake.AvatarURLTemplate = "https://minotar.net/avatar/%s/100"
	}

	if cfg.Reconciliation.Interval == 0 {
		cfg.Reconciliation.Interval = 10000
	}
	if cfg.Reconciliation.Scope == "" {
		cfg.Reconciliation.Scope = "global"
	}
	if cfg.Reconciliation.TablePrefix == "" {
		cfg.Reconciliation.TablePrefix = "luckperms_"
	}
	if cfg.Reconciliation.RowTimeout == 0 {
		cfg.Reconciliation.RowTimeout = 5000
	}

	if cfg.Archive.Index == "" {
		cfg.Archive.Index = "intake-applications"
	}
	if cfg.Platform.Timeout == 0 {
		cfg.Platform.Timeout = 10000
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}
	if len(cfg.Intake.AdminRoles) == 0 {
		return fmt.Errorf("intake.admin_roles must list at least one role")
	}
	if cfg.Reconciliation.Enabled {
		if cfg.Database.Grants.Host == "" || cfg.Database.Grants.Database == "" {
			return fmt.Errorf("database.grants host and database are required when reconciliation is enabled")
		}
		if cfg.Reconciliation.AcceptRole == "" || cfg.Reconciliation.RejectRole == "" {
			return fmt.Errorf("reconciliation.accept_role and reconciliation.reject_role are required")
		}
	}
	if cfg.Notifications.SNS.Enabled && cfg.Notifications.SNS.TopicARN == "" {
		return fmt.Errorf("notifications.sns.topic_arn is required when sns is enabled")
	}
	if cfg.Archive.Enabled && len(cfg.Database.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("database.elasticsearch.addresses is required when archive is enabled")
	}
	if cfg.Platform.WebhookURL == "" {
		return fmt.Errorf("platform.webhook_url is required")
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
