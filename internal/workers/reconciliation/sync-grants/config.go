// internal/workers/reconciliation/sync-grants/config.go
package syncgrants

import (
	"fmt"
	"time"

	"whitelist-intake/internal/common/config"
	"whitelist-intake/internal/models"
)

type Config struct {
	Interval   time.Duration
	RowTimeout time.Duration
	AcceptRole string
	RejectRole string
	Scope      string
}

func LoadConfig(cfg config.ReconciliationConfig) *Config {
	return &Config{
		Interval:   config.GetDuration(cfg.Interval),
		RowTimeout: config.GetDuration(cfg.RowTimeout),
		AcceptRole: cfg.AcceptRole,
		RejectRole: cfg.RejectRole,
		Scope:      cfg.Scope,
	}
}

// RoleFor maps a decision class to the group granted for it.
func (c *Config) RoleFor(class models.Action) (string, error) {
	switch class {
	case models.ActionAccepted:
		return c.AcceptRole, nil
	case models.ActionRejected:
		return c.RejectRole, nil
	}
	return "", fmt.Errorf("decision class %q is not synced", class)
}
