// internal/store/decision.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"whitelist-intake/internal/common/database"
	apperrors "whitelist-intake/internal/common/errors"
	"whitelist-intake/internal/common/logger"
	"whitelist-intake/internal/common/metrics"
	"whitelist-intake/internal/models"
)

const recordColumns = `id, applicant_handle, action, create_time, decision_time, nickname, channel_ref, "join", ticket_number`

// Decisions owns the decision table. Reviewer writes touch only action,
// nickname and decision_time; MarkSynced touches only the join flag.
type Decisions struct {
	db     *sql.DB
	logger logger.Logger
	now    func() time.Time
}

func NewDecisions(db *sql.DB, log logger.Logger) *Decisions {
	return &Decisions{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "decision-store"}),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateApplication allocates a ticket and inserts the applicant's row in a
// single transaction. A rejected duplicate rolls the ticket back.
func (d *Decisions) CreateApplication(ctx context.Context, applicant models.Applicant, now time.Time) (*models.DecisionRecord, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewDatabaseInsertFailedError("begin create application", err)
	}
	defer func() { _ = tx.Rollback() }()

	ticket, err := nextTicket(ctx, tx)
	if err != nil {
		return nil, err
	}

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO decision (applicant_handle, action, create_time, ticket_number)
		VALUES ($1, 'none', $2, $3)
		RETURNING id`,
		applicant.Handle, now, ticket,
	).Scan(&id)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperrors.NewDuplicateOpenApplicationError(applicant.Handle)
		}
		return nil, apperrors.NewDatabaseInsertFailedError("insert decision", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewDatabaseInsertFailedError("commit create application", err)
	}
	metrics.TicketsIssued.Inc()

	d.logger.Info("application record created", map[string]interface{}{
		"applicant": applicant.Handle,
		"ticket":    ticket,
	})

	return &models.DecisionRecord{
		ID:              id,
		ApplicantHandle: applicant.Handle,
		Action:          models.ActionNone,
		CreateTime:      now,
		TicketNumber:    ticket,
	}, nil
}

// HasOpenApplication is advisory; the unique constraint is authoritative.
func (d *Decisions) HasOpenApplication(ctx context.Context, applicantHandle string) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM decision
			WHERE applicant_handle = $1 AND action = 'none'
		)`, applicantHandle).Scan(&exists)
	if err != nil {
		return false, apperrors.NewDatabaseQueryFailedError("open application check", err)
	}
	return exists, nil
}

func (d *Decisions) AttachChannel(ctx context.Context, applicantHandle, channel string) error {
	res, err := d.db.ExecContext(ctx,
		`UPDATE decision SET channel_ref = $2 WHERE applicant_handle = $1`,
		applicantHandle, channel,
	)
	if err != nil {
		return apperrors.NewDatabaseUpdateFailedError("attach channel", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewApplicationNotFoundError(fmt.Sprintf("applicant: %s", applicantHandle))
	}
	return nil
}

// DiscardPending deletes an undecided row that never got a channel. Used
// when opening the channel fails after the row was created.
func (d *Decisions) DiscardPending(ctx context.Context, applicantHandle string) error {
	_, err := d.db.ExecContext(ctx, `
		DELETE FROM decision
		WHERE applicant_handle = $1 AND action = 'none' AND channel_ref IS NULL`,
		applicantHandle,
	)
	if err != nil {
		return apperrors.NewDatabaseUpdateFailedError("discard pending application", err)
	}
	return nil
}

func (d *Decisions) FindByChannel(ctx context.Context, channel string) (*models.DecisionRecord, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM decision WHERE channel_ref = $1`, channel)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewApplicationNotFoundError(fmt.Sprintf("channel: %s", channel))
	}
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("find by channel", err)
	}
	return rec, nil
}

func (d *Decisions) MarkAccepted(ctx context.Context, applicantHandle, nickname string) error {
	return d.decide(ctx, applicantHandle, models.ActionAccepted, nickname, "", "")
}

// MarkRejected records a rejection. With grantRoleOnReject false the row is
// stored as temporary_failure so no reject role is ever granted for it.
func (d *Decisions) MarkRejected(ctx context.Context, applicantHandle, nickname, reason, rationale string, grantRoleOnReject bool) (models.Action, error) {
	action := models.ActionRejected
	if !grantRoleOnReject {
		action = models.ActionTemporaryFailure
	}
	if err := d.decide(ctx, applicantHandle, action, nickname, reason, rationale); err != nil {
		return "", err
	}
	return action, nil
}

func (d *Decisions) MarkTemporaryFailure(ctx context.Context, applicantHandle, nickname, reason, rationale string) error {
	return d.decide(ctx, applicantHandle, models.ActionTemporaryFailure, nickname, reason, rationale)
}

func (d *Decisions) decide(ctx context.Context, applicantHandle string, action models.Action, nickname, reason, rationale string) error {
	res, err := d.db.ExecContext(ctx, `
		UPDATE decision
		SET action = $2, nickname = $3, decision_time = $4
		WHERE applicant_handle = $1 AND action = 'none'`,
		applicantHandle, string(action), nickname, d.now(),
	)
	if err != nil {
		return apperrors.NewDatabaseUpdateFailedError("record decision", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var current string
		err := d.db.QueryRowContext(ctx,
			`SELECT action FROM decision WHERE applicant_handle = $1`, applicantHandle).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NewApplicationNotFoundError(fmt.Sprintf("applicant: %s", applicantHandle))
		}
		if err != nil {
			return apperrors.NewDatabaseQueryFailedError("read decision", err)
		}
		return apperrors.NewAlreadyDecidedError(applicantHandle)
	}

	d.logger.Info("decision recorded", map[string]interface{}{
		"applicant": applicantHandle,
		"action":    string(action),
		"nickname":  nickname,
		"reason":    reason,
		"rationale": rationale,
	})
	return nil
}

// ListUnsynced returns decided rows of one class whose grant is not yet
// applied, oldest ticket first.
func (d *Decisions) ListUnsynced(ctx context.Context, action models.Action) ([]models.DecisionRecord, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM decision WHERE action = $1 AND "join" = false ORDER BY ticket_number`,
		string(action),
	)
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("list unsynced", err)
	}
	defer rows.Close()

	var records []models.DecisionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, apperrors.NewDatabaseQueryFailedError("scan unsynced", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("iterate unsynced", err)
	}
	return records, nil
}

// MarkSynced flips the join flag once. It reports whether this call did the
// flip.
func (d *Decisions) MarkSynced(ctx context.Context, applicantHandle string) (bool, error) {
	res, err := d.db.ExecContext(ctx, `
		UPDATE decision SET "join" = true
		WHERE applicant_handle = $1 AND "join" = false AND action IN ('accepted', 'rejected')`,
		applicantHandle,
	)
	if err != nil {
		return false, apperrors.NewDatabaseUpdateFailedError("mark synced", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s rowScanner) (*models.DecisionRecord, error) {
	var (
		rec          models.DecisionRecord
		action       string
		decisionTime sql.NullTime
		nickname     sql.NullString
		channel      sql.NullString
	)
	if err := s.Scan(
		&rec.ID, &rec.ApplicantHandle, &action, &rec.CreateTime, &decisionTime,
		&nickname, &channel, &rec.Join, &rec.TicketNumber,
	); err != nil {
		return nil, err
	}
	rec.Action = models.Action(action)
	if decisionTime.Valid {
		t := decisionTime.Time
		rec.DecisionTime = &t
	}
	rec.Nickname = nickname.String
	rec.ChannelRef = channel.String
	return &rec, nil
}
