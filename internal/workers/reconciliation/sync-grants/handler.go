// internal/workers/reconciliation/sync-grants/handler.go
package syncgrants

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "whitelist-intake/internal/common/errors"
	"whitelist-intake/internal/common/logger"
	"whitelist-intake/internal/common/metrics"
	"whitelist-intake/internal/common/observability"
	"whitelist-intake/internal/common/scheduler"
	"whitelist-intake/internal/grants"
	"whitelist-intake/internal/models"
)

const (
	JobAccepted = "sync-grants-accepted"
	JobRejected = "sync-grants-rejected"
)

// placeholderNicknames are values reviewers enter when the nickname is not
// known yet. Rows carrying them wait for a correction.
var placeholderNicknames = map[string]bool{
	"unknown": true,
	"-":       true,
}

// DecisionSource is the decision store surface the sweep needs.
type DecisionSource interface {
	ListUnsynced(ctx context.Context, action models.Action) ([]models.DecisionRecord, error)
	MarkSynced(ctx context.Context, applicantHandle string) (bool, error)
}

// GrantStore is the external permission database.
type GrantStore interface {
	LookupIdentity(ctx context.Context, nickname string) (string, error)
	InsertGrant(ctx context.Context, identity, permission, scope string) (grants.InsertResult, error)
}

type Handler struct {
	config    *Config
	decisions DecisionSource
	grants    GrantStore
	obs       *observability.Observability
	logger    logger.Logger
}

func NewHandler(config *Config, decisions DecisionSource, grantStore GrantStore, obs *observability.Observability, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		decisions: decisions,
		grants:    grantStore,
		obs:       obs,
		logger:    log.WithFields(map[string]interface{}{"worker": "sync-grants"}),
	}
}

// Job adapts a sweep of class to the scheduler.
func (h *Handler) Job(class models.Action) scheduler.JobFunc {
	return func(ctx context.Context) error {
		_, err := h.Sweep(ctx, class)
		return err
	}
}

// Sweep applies every unsynced decision of class to the grant store. A row
// that cannot be synced is left for the next sweep and never blocks the
// others. Only a failure to list rows fails the sweep.
func (h *Handler) Sweep(ctx context.Context, class models.Action) (*SweepResult, error) {
	start := time.Now()
	result := &SweepResult{Class: class}

	role, err := h.config.RoleFor(class)
	if err != nil {
		return nil, err
	}

	rows, err := h.decisions.ListUnsynced(ctx, class)
	if err != nil {
		h.finish(ctx, result, start, "error")
		return nil, err
	}
	result.Scanned = len(rows)

	for _, rec := range rows {
		if ctx.Err() != nil {
			break
		}
		switch h.syncRow(ctx, class, role, rec) {
		case rowSynced:
			result.Synced++
		case rowPending:
			result.Pending++
		case rowFailed:
			result.Failed++
		}
	}

	h.finish(ctx, result, start, "ok")
	if result.Scanned > 0 {
		h.logger.Info("sweep completed", map[string]interface{}{
			"class":   string(class),
			"scanned": result.Scanned,
			"synced":  result.Synced,
			"pending": result.Pending,
			"failed":  result.Failed,
		})
	}
	return result, nil
}

func (h *Handler) syncRow(ctx context.Context, class models.Action, role string, rec models.DecisionRecord) rowOutcome {
	log := h.logger.WithFields(map[string]interface{}{
		"class":     string(class),
		"applicant": rec.ApplicantHandle,
		"ticket":    rec.TicketNumber,
	})

	nickname := NormalizeNickname(rec.Nickname)
	if nickname == "" || placeholderNicknames[nickname] {
		log.Warn("skipping row without a usable nickname", map[string]interface{}{"nickname": rec.Nickname})
		metrics.SweepRowsPending.WithLabelValues(string(class), "no_nickname").Inc()
		return rowPending
	}

	if h.config.RowTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.RowTimeout)
		defer cancel()
	}

	identity, err := h.grants.LookupIdentity(ctx, nickname)
	if err != nil {
		if errors.Is(err, apperrors.ErrIdentityNotFound) {
			log.Info("identity not found, will retry", map[string]interface{}{"nickname": nickname})
			metrics.SweepRowsPending.WithLabelValues(string(class), "identity_not_found").Inc()
			return rowPending
		}
		return h.fail(log, class, "identity lookup failed", err)
	}

	res, err := h.grants.InsertGrant(ctx, identity, grants.GroupPermission(role), h.config.Scope)
	if err != nil {
		return h.fail(log, class, "grant insert failed", err)
	}

	flipped, err := h.decisions.MarkSynced(ctx, rec.ApplicantHandle)
	if err != nil {
		return h.fail(log, class, "mark synced failed", err)
	}

	log.Info("grant synced", map[string]interface{}{
		"nickname": nickname,
		"identity": identity,
		"grant":    res.String(),
		"flipped":  flipped,
	})
	metrics.SweepRowsSynced.WithLabelValues(string(class)).Inc()
	return rowSynced
}

func (h *Handler) fail(log logger.Logger, class models.Action, msg string, err error) rowOutcome {
	log.WithError(err).Error(msg, nil)
	metrics.SweepRowsFailed.WithLabelValues(string(class), string(apperrors.CodeOf(err))).Inc()
	return rowFailed
}

func (h *Handler) finish(ctx context.Context, result *SweepResult, start time.Time, status string) {
	result.Duration = time.Since(start)
	metrics.SweepDuration.WithLabelValues(string(result.Class)).Observe(result.Duration.Seconds())
	h.obs.RecordSweep(ctx, string(result.Class), status, result.Duration)
}

// NormalizeNickname turns a reviewer-entered nickname into the grant store
// lookup key.
func NormalizeNickname(raw string) string {
	return strings.ToLower(models.CleanNickname(raw))
}
