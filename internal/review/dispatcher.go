// internal/review/dispatcher.go
package review

import (
	"context"
	"fmt"
	"strings"
	"time"

	"whitelist-intake/internal/archive"
	commonaws "whitelist-intake/internal/common/aws"
	apperrors "whitelist-intake/internal/common/errors"
	"whitelist-intake/internal/common/logger"
	"whitelist-intake/internal/common/metrics"
	"whitelist-intake/internal/intake"
	"whitelist-intake/internal/models"
	"whitelist-intake/pkg/registry"
)

// DecisionStore is the part of the decision table the reviewer flow writes.
type DecisionStore interface {
	HasOpenApplication(ctx context.Context, applicantHandle string) (bool, error)
	CreateApplication(ctx context.Context, applicant models.Applicant, now time.Time) (*models.DecisionRecord, error)
	AttachChannel(ctx context.Context, applicantHandle, channel string) error
	DiscardPending(ctx context.Context, applicantHandle string) error
	FindByChannel(ctx context.Context, channel string) (*models.DecisionRecord, error)
	MarkAccepted(ctx context.Context, applicantHandle, nickname string) error
	MarkRejected(ctx context.Context, applicantHandle, nickname, reason, rationale string, grantRoleOnReject bool) (models.Action, error)
}

// Platform is the chat platform: session output plus channel management.
type Platform interface {
	intake.Presenter
	OpenChannel(ctx context.Context, applicant models.Applicant, ticket int) (string, error)
	CloseChannel(ctx context.Context, channel string) error
}

type SnapshotStore interface {
	intake.SnapshotSaver
	Delete(ctx context.Context, channel string) error
}

type Archiver interface {
	Index(ctx context.Context, doc *archive.Document) error
}

type Publisher interface {
	Publish(ctx context.Context, event commonaws.DecisionEvent) (string, error)
}

// Config wires a Dispatcher. Archive and Publisher are optional.
type Config struct {
	AdminRoles  []string
	QuestionSet *registry.QuestionSet
	Session     intake.Deps
	Decisions   DecisionStore
	Registry    *intake.Registry
	Platform    Platform
	Snapshots   SnapshotStore
	Archive     Archiver
	Publisher   Publisher
}

// Dispatcher applies review actions. Dispatch is the only entry point.
type Dispatcher struct {
	cfg    Config
	deps   intake.Deps
	logger logger.Logger
	now    func() time.Time
}

func NewDispatcher(cfg Config, log logger.Logger) *Dispatcher {
	deps := cfg.Session
	deps.Questions = cfg.QuestionSet.Texts()
	deps.NicknameQuestion = cfg.QuestionSet.NicknameQuestion
	deps.Presenter = cfg.Platform
	deps.Snapshots = cfg.Snapshots
	if deps.Logger == nil {
		deps.Logger = log
	}
	return &Dispatcher{
		cfg:    cfg,
		deps:   deps,
		logger: log.WithFields(map[string]interface{}{"component": "review-dispatcher"}),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SessionDeps returns the collaborators new sessions are built with, for
// restoring snapshots at startup.
func (d *Dispatcher) SessionDeps() intake.Deps {
	return d.deps
}

func (d *Dispatcher) Dispatch(ctx context.Context, a Action) (*Outcome, error) {
	var (
		out *Outcome
		err error
	)
	switch act := a.(type) {
	case Create:
		out, err = d.create(ctx, act)
	case Collect:
		out, err = d.collect(act)
	case Submit:
		out, err = d.submit(ctx, act)
	case RequestMore:
		out, err = d.requestMore(ctx, act)
	case Accept:
		out, err = d.accept(ctx, act)
	case Reject:
		out, err = d.reject(ctx, act)
	case Close:
		out, err = d.closeApplication(ctx, act)
	default:
		err = apperrors.NewInvalidActionError(fmt.Sprintf("unsupported action %T", a))
	}

	kind := "unknown"
	if a != nil {
		kind = a.Kind()
	}
	result := "ok"
	if err != nil {
		result = string(apperrors.CodeOf(err))
		d.logger.WithError(err).Warn("review action failed", map[string]interface{}{"kind": kind})
	}
	metrics.ReviewActions.WithLabelValues(kind, result).Inc()
	return out, err
}

func (d *Dispatcher) create(ctx context.Context, act Create) (*Outcome, error) {
	handle := act.Applicant.Handle
	if handle == "" {
		return nil, apperrors.NewInvalidActionError("applicant handle is required")
	}
	if _, ok := d.cfg.Registry.LookupApplicant(handle); ok {
		return nil, apperrors.NewDuplicateOpenApplicationError(handle)
	}
	open, err := d.cfg.Decisions.HasOpenApplication(ctx, handle)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, apperrors.NewDuplicateOpenApplicationError(handle)
	}

	rec, err := d.cfg.Decisions.CreateApplication(ctx, act.Applicant, d.now())
	if err != nil {
		return nil, err
	}

	channel, err := d.cfg.Platform.OpenChannel(ctx, act.Applicant, rec.TicketNumber)
	if err != nil {
		d.discard(ctx, handle)
		return nil, err
	}
	if err := d.cfg.Decisions.AttachChannel(ctx, handle, channel); err != nil {
		d.discard(ctx, handle)
		if cerr := d.cfg.Platform.CloseChannel(ctx, channel); cerr != nil {
			d.logger.Error("failed to close orphaned channel", map[string]interface{}{"channel": channel, "error": cerr})
		}
		return nil, err
	}

	session := intake.NewSession(channel, act.Applicant, rec.TicketNumber, d.deps)
	if err := d.cfg.Registry.Register(channel, session); err != nil {
		return nil, err
	}

	d.logger.Info("application created", map[string]interface{}{
		"applicant": handle,
		"ticket":    rec.TicketNumber,
		"channel":   channel,
	})

	out := &Outcome{Kind: KindCreate, Channel: channel, Ticket: rec.TicketNumber}
	err = session.Start(ctx)
	out.State = session.State()
	return out, err
}

func (d *Dispatcher) discard(ctx context.Context, handle string) {
	if err := d.cfg.Decisions.DiscardPending(ctx, handle); err != nil {
		d.logger.Error("failed to discard pending application", map[string]interface{}{
			"applicant": handle,
			"error":     err,
		})
	}
}

func (d *Dispatcher) collect(act Collect) (*Outcome, error) {
	session, ok := d.cfg.Registry.Lookup(act.Channel)
	if !ok {
		return nil, apperrors.NewSessionNotFoundError(act.Channel)
	}
	out := &Outcome{Kind: KindCollect, Channel: act.Channel, Ticket: session.Ticket()}
	if act.Author != session.Applicant().Handle {
		out.Ignored = true
		return out, nil
	}
	if err := session.Collect(act.Message); err != nil {
		return nil, err
	}
	out.State = session.State()
	return out, nil
}

func (d *Dispatcher) submit(ctx context.Context, act Submit) (*Outcome, error) {
	session, ok := d.cfg.Registry.Lookup(act.Channel)
	if !ok {
		return nil, apperrors.NewSessionNotFoundError(act.Channel)
	}
	if act.Author != session.Applicant().Handle {
		return nil, apperrors.NewForbiddenError(act.Author)
	}
	err := session.Submit(ctx)
	out := &Outcome{Kind: KindSubmit, Channel: act.Channel, Ticket: session.Ticket(), State: session.State()}
	return out, err
}

func (d *Dispatcher) requestMore(ctx context.Context, act RequestMore) (*Outcome, error) {
	if err := d.authorize(act.Reviewer); err != nil {
		return nil, err
	}
	session, ok := d.cfg.Registry.Lookup(act.Channel)
	if !ok {
		return nil, apperrors.NewSessionNotFoundError(act.Channel)
	}
	err := session.RequestSupplemental(ctx, act.Questions, act.Rationale)
	if err == nil {
		d.logger.Info("supplemental answers requested", map[string]interface{}{
			"channel":   act.Channel,
			"reviewer":  act.Reviewer.Handle,
			"questions": act.Questions,
		})
	}
	return &Outcome{Kind: KindRequestMore, Channel: act.Channel, Ticket: session.Ticket(), State: session.State()}, err
}

// target is the application a reviewer action applies to.
type target struct {
	applicant models.Applicant
	ticket    int
	session   *intake.Session
	record    *models.DecisionRecord
}

// resolve finds the application for channel, from the live session first
// and from the decision table otherwise.
func (d *Dispatcher) resolve(ctx context.Context, channel string) (*target, error) {
	if session, ok := d.cfg.Registry.Lookup(channel); ok {
		return &target{applicant: session.Applicant(), ticket: session.Ticket(), session: session}, nil
	}
	rec, err := d.cfg.Decisions.FindByChannel(ctx, channel)
	if err != nil {
		return nil, err
	}
	return &target{
		applicant: models.Applicant{Handle: rec.ApplicantHandle},
		ticket:    rec.TicketNumber,
		record:    rec,
	}, nil
}

// nickname prefers the reviewer's value and falls back to the applicant's
// answer to the nickname question.
func (t *target) nickname(given string) string {
	if n := models.CleanNickname(given); n != "" {
		return n
	}
	if t.session != nil {
		return t.session.Nickname()
	}
	return ""
}

func (d *Dispatcher) accept(ctx context.Context, act Accept) (*Outcome, error) {
	if err := d.authorize(act.Reviewer); err != nil {
		return nil, err
	}
	t, err := d.resolve(ctx, act.Channel)
	if err != nil {
		return nil, err
	}
	nickname := t.nickname(act.Nickname)
	if nickname == "" {
		return nil, apperrors.NewInvalidActionError("nickname is required")
	}

	if err := d.cfg.Decisions.MarkAccepted(ctx, t.applicant.Handle, nickname); err != nil {
		return nil, err
	}

	out := &Outcome{Kind: KindAccept, Channel: act.Channel, Ticket: t.ticket, Decision: models.ActionAccepted}
	d.notify(ctx, act.Channel, models.Notice{
		Kind:      models.NoticeAccepted,
		Applicant: t.applicant,
		Reviewer:  act.Reviewer.Handle,
		Text:      fmt.Sprintf("Application accepted. Nickname: %s", nickname),
	})
	out.EventID = d.publish(ctx, t, nickname, models.ActionAccepted, "")
	return out, nil
}

func (d *Dispatcher) reject(ctx context.Context, act Reject) (*Outcome, error) {
	if err := d.authorize(act.Reviewer); err != nil {
		return nil, err
	}
	if strings.TrimSpace(act.Reason) == "" {
		return nil, apperrors.NewInvalidActionError("reject reason is required")
	}
	t, err := d.resolve(ctx, act.Channel)
	if err != nil {
		return nil, err
	}
	nickname := t.nickname(act.Nickname)
	if nickname == "" {
		return nil, apperrors.NewInvalidActionError("nickname is required")
	}

	action, err := d.cfg.Decisions.MarkRejected(ctx, t.applicant.Handle, nickname, act.Reason, act.Rationale, act.GrantRole)
	if err != nil {
		return nil, err
	}

	out := &Outcome{Kind: KindReject, Channel: act.Channel, Ticket: t.ticket, Decision: action}
	d.notify(ctx, act.Channel, models.Notice{
		Kind:      models.NoticeRejected,
		Applicant: t.applicant,
		Reviewer:  act.Reviewer.Handle,
		Text:      fmt.Sprintf("Application rejected. Nickname: %s", nickname),
		Reason:    act.Reason,
		Rationale: act.Rationale,
	})
	out.EventID = d.publish(ctx, t, nickname, action, act.Reason)
	return out, nil
}

func (d *Dispatcher) closeApplication(ctx context.Context, act Close) (*Outcome, error) {
	if err := d.authorize(act.Reviewer); err != nil {
		return nil, err
	}
	t, err := d.resolve(ctx, act.Channel)
	if err != nil {
		return nil, err
	}

	action := models.ActionNone
	nickname := ""
	rec := t.record
	if rec == nil {
		if rec, err = d.cfg.Decisions.FindByChannel(ctx, act.Channel); err != nil {
			d.logger.Warn("no decision row for closing channel", map[string]interface{}{
				"channel": act.Channel,
				"error":   err,
			})
		}
	}
	if rec != nil {
		action = rec.Action
		nickname = rec.Nickname
	}

	// Close waits for a batch in flight, so the snapshot delete below is the
	// last write for this channel.
	var answers []models.Answer
	if t.session != nil {
		answers = t.session.Close()
	}

	if d.cfg.Archive != nil {
		doc := archive.NewDocument(t.ticket, t.applicant, action, nickname, act.Reviewer.Handle, d.now(), d.deps.Questions, answers)
		if err := d.cfg.Archive.Index(ctx, doc); err != nil {
			d.logger.Error("failed to archive application", map[string]interface{}{
				"ticket": t.ticket,
				"error":  err,
			})
		}
	}

	if d.cfg.Snapshots != nil {
		if err := d.cfg.Snapshots.Delete(ctx, act.Channel); err != nil {
			d.logger.Warn("failed to delete session snapshot", map[string]interface{}{
				"channel": act.Channel,
				"error":   err,
			})
		}
	}
	d.cfg.Registry.Remove(act.Channel)

	d.logger.Info("application closed", map[string]interface{}{
		"ticket":   t.ticket,
		"channel":  act.Channel,
		"closedBy": act.Reviewer.Handle,
		"action":   string(action),
	})

	out := &Outcome{Kind: KindClose, Channel: act.Channel, Ticket: t.ticket, Decision: action}
	return out, d.cfg.Platform.CloseChannel(ctx, act.Channel)
}

func (d *Dispatcher) authorize(reviewer models.Reviewer) error {
	if !reviewer.HasAnyRole(d.cfg.AdminRoles) {
		return apperrors.NewForbiddenError(reviewer.Handle)
	}
	return nil
}

// notify posts a decision notice. The decision is already stored, so a
// failure is only logged.
func (d *Dispatcher) notify(ctx context.Context, channel string, notice models.Notice) {
	if err := d.cfg.Platform.Notify(ctx, channel, notice); err != nil {
		d.logger.Error("failed to post decision notice", map[string]interface{}{
			"channel": channel,
			"kind":    string(notice.Kind),
			"error":   err,
		})
	}
}

func (d *Dispatcher) publish(ctx context.Context, t *target, nickname string, action models.Action, reason string) string {
	if d.cfg.Publisher == nil {
		return ""
	}
	category := ""
	if reason != "" {
		category = d.cfg.QuestionSet.ReasonCategory(reason)
	}
	id, err := d.cfg.Publisher.Publish(ctx, commonaws.DecisionEvent{
		Ticket:    t.ticket,
		Applicant: t.applicant.Handle,
		Nickname:  nickname,
		Action:    string(action),
		Reason:    reason,
		Category:  category,
		DecidedAt: d.now(),
	})
	if err != nil {
		d.logger.Error("failed to publish decision event", map[string]interface{}{
			"ticket": t.ticket,
			"error":  err,
		})
		return ""
	}
	return id
}
