package intake

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "whitelist-intake/internal/common/errors"
	"whitelist-intake/internal/common/logger"
	"whitelist-intake/internal/models"
)

// Presenter renders session output on the chat platform.
type Presenter interface {
	AskQuestion(ctx context.Context, channel string, card models.QuestionCard) error
	ShowSummary(ctx context.Context, channel string, card models.SummaryCard) error
	Notify(ctx context.Context, channel string, notice models.Notice) error
}

// SnapshotSaver persists session state after each transition.
type SnapshotSaver interface {
	Save(ctx context.Context, snap models.SessionSnapshot) error
}

// Deps are the collaborators and settings shared by all sessions.
type Deps struct {
	Questions         []string
	NicknameQuestion  int
	AvatarURLTemplate string
	FieldLimit        int
	Fetcher           AttachmentFetcher
	Presenter         Presenter
	Snapshots         SnapshotSaver
	Logger            logger.Logger
}

type supplementalRound struct {
	indices   []int
	cursor    int
	rationale string
}

// Session drives one applicant through the question set. All methods are
// safe for concurrent use; batches on one session are processed one at a
// time.
type Session struct {
	mu   sync.Mutex
	deps Deps
	log  logger.Logger

	channel   string
	applicant models.Applicant
	ticket    int

	state        models.SessionState
	index        int
	collecting   bool
	answers      []models.Answer
	pending      []models.Message
	supplemental *supplementalRound
	closed       bool
}

func NewSession(channel string, applicant models.Applicant, ticket int, deps Deps) *Session {
	if deps.Logger == nil {
		deps.Logger = logger.NewNoOpLogger()
	}
	return &Session{
		deps:      deps,
		log:       deps.Logger.WithFields(map[string]interface{}{"channel": channel, "ticket": ticket}),
		channel:   channel,
		applicant: applicant,
		ticket:    ticket,
		answers:   make([]models.Answer, 0, len(deps.Questions)),
	}
}

// RestoreSession rebuilds a session from its snapshot. Attachment bytes are
// not part of snapshots and come back as nil.
func RestoreSession(snap models.SessionSnapshot, deps Deps) *Session {
	s := NewSession(snap.Channel, snap.Applicant, snap.Ticket, deps)
	s.state = snap.State
	s.index = snap.Index
	s.collecting = snap.Collecting
	for _, a := range snap.Answers {
		s.answers = append(s.answers, a.Clone())
	}
	if snap.Supplemental != nil {
		s.supplemental = &supplementalRound{
			indices:   append([]int(nil), snap.Supplemental.Indices...),
			cursor:    snap.Supplemental.Cursor,
			rationale: snap.Supplemental.Rationale,
		}
	}
	return s
}

// Start asks the first question.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != "" {
		return fmt.Errorf("session %s already started", s.channel)
	}
	s.index = 0
	s.state = models.StateAwaitingBatch
	s.collecting = true
	s.persist(ctx)

	s.log.Info("intake session started", map[string]interface{}{
		"applicant": s.applicant.Handle,
		"questions": len(s.deps.Questions),
	})
	if len(s.deps.Questions) == 0 {
		s.state = models.StateCompleted
		s.collecting = false
		s.persist(ctx)
		return s.emitSummary(ctx, false)
	}
	return s.askCurrent(ctx)
}

// Close ends the session and returns its final answers. It waits for a batch
// in flight; after it returns the session rejects input and writes no more
// snapshots or output.
func (s *Session) Close() []models.Answer {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.collecting = false
	s.pending = nil
	out := make([]models.Answer, len(s.answers))
	for i, a := range s.answers {
		out[i] = a.Clone()
	}
	return out
}

// Collect buffers one raw message for the batch being answered.
func (s *Session) Collect(msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.collecting {
		return apperrors.NewNoActiveCollectionError(s.channel)
	}
	s.pending = append(s.pending, msg)
	return nil
}

// Submit sends the buffered batch to whichever round is collecting.
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.pending
	switch {
	case s.collecting && s.state == models.StateAwaitingBatch:
		return s.submitBatch(ctx, batch)
	case s.collecting && s.state == models.StateAwaitingSupplemental:
		return s.submitSupplemental(ctx, batch)
	default:
		return apperrors.NewNoActiveCollectionError(s.channel)
	}
}

// SubmitBatch answers the current question with msgs.
func (s *Session) SubmitBatch(ctx context.Context, msgs []models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitBatch(ctx, msgs)
}

func (s *Session) submitBatch(ctx context.Context, msgs []models.Message) error {
	if !s.collecting || s.state != models.StateAwaitingBatch {
		return apperrors.NewNoActiveCollectionError(s.channel)
	}
	if len(msgs) == 0 {
		return apperrors.NewEmptyBatchError(s.channel)
	}

	answer := aggregate(ctx, s.deps.Fetcher, s.log, msgs)

	// len(answers) == index always holds while awaiting a batch.
	s.answers = append(s.answers, answer)
	s.index++
	s.pending = nil

	if s.index == len(s.deps.Questions) {
		s.state = models.StateCompleted
		s.collecting = false
		s.persist(ctx)
		s.log.Info("intake session completed", map[string]interface{}{"applicant": s.applicant.Handle})
		return s.emitSummary(ctx, false)
	}
	s.persist(ctx)
	return s.askCurrent(ctx)
}

// RequestSupplemental reopens the given 1-based questions after completion.
// Indices are validated up front and de-duplicated in order.
func (s *Session) RequestSupplemental(ctx context.Context, indices []int, rationale string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return apperrors.NewSessionNotFoundError(s.channel)
	}
	if s.state != models.StateCompleted {
		return apperrors.NewSessionNotCompletedError(s.channel)
	}
	count := len(s.deps.Questions)
	if len(indices) == 0 {
		return apperrors.NewInvalidQuestionIndexError(0, count)
	}

	seen := make(map[int]bool, len(indices))
	unique := make([]int, 0, len(indices))
	for _, idx := range indices {
		if idx < 1 || idx > count {
			return apperrors.NewInvalidQuestionIndexError(idx, count)
		}
		if !seen[idx] {
			seen[idx] = true
			unique = append(unique, idx)
		}
	}

	s.supplemental = &supplementalRound{indices: unique, rationale: rationale}
	s.state = models.StateAwaitingSupplemental
	s.collecting = true
	s.pending = nil
	s.persist(ctx)

	s.log.Info("supplemental round requested", map[string]interface{}{
		"indices": unique,
	})

	questions := make([]string, len(unique))
	for i, idx := range unique {
		questions[i] = fmt.Sprintf("%d. %s", idx, s.deps.Questions[idx-1])
	}
	if err := s.deps.Presenter.Notify(ctx, s.channel, models.Notice{
		Kind:      models.NoticeSupplementalRequested,
		Applicant: s.applicant,
		Text:      "A reviewer asked you to expand on the following questions. Answer each one and press send.",
		Rationale: rationale,
		Questions: questions,
	}); err != nil {
		return fmt.Errorf("notify supplemental request: %w", err)
	}
	return s.askCurrent(ctx)
}

// SubmitSupplementalBatch appends msgs to the answer being revisited.
func (s *Session) SubmitSupplementalBatch(ctx context.Context, msgs []models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitSupplemental(ctx, msgs)
}

func (s *Session) submitSupplemental(ctx context.Context, msgs []models.Message) error {
	if !s.collecting || s.state != models.StateAwaitingSupplemental || s.supplemental == nil {
		return apperrors.NewNoActiveCollectionError(s.channel)
	}
	if len(msgs) == 0 {
		return apperrors.NewEmptyBatchError(s.channel)
	}

	addition := aggregate(ctx, s.deps.Fetcher, s.log, msgs)

	pos := s.supplemental.indices[s.supplemental.cursor] - 1
	s.answers[pos] = appendAddendum(s.answers[pos], addition)
	s.supplemental.cursor++
	s.pending = nil

	if s.supplemental.cursor == len(s.supplemental.indices) {
		s.supplemental = nil
		s.state = models.StateCompleted
		s.collecting = false
		s.persist(ctx)
		s.log.Info("supplemental round completed", nil)
		return s.emitSummary(ctx, true)
	}
	s.persist(ctx)
	return s.askCurrent(ctx)
}

func (s *Session) askCurrent(ctx context.Context) error {
	if s.closed {
		return nil
	}
	total := len(s.deps.Questions)
	card := models.QuestionCard{Number: s.index + 1, Total: total}
	if s.state == models.StateAwaitingSupplemental {
		card.Number = s.supplemental.indices[s.supplemental.cursor]
		card.Supplemental = true
	}
	card.Text = s.deps.Questions[card.Number-1]

	if err := s.deps.Presenter.AskQuestion(ctx, s.channel, card); err != nil {
		return fmt.Errorf("ask question %d: %w", card.Number, err)
	}
	return nil
}

func (s *Session) emitSummary(ctx context.Context, updated bool) error {
	if s.closed {
		return nil
	}
	card := s.summary()
	card.Updated = updated
	if err := s.deps.Presenter.ShowSummary(ctx, s.channel, card); err != nil {
		return fmt.Errorf("show summary: %w", err)
	}
	return nil
}

func (s *Session) summary() models.SummaryCard {
	var attachments []models.Attachment
	for _, a := range s.answers {
		attachments = append(attachments, a.Clone().Attachments...)
	}
	return models.SummaryCard{
		Ticket:       s.ticket,
		Applicant:    s.applicant,
		Fields:       summaryFields(s.deps.Questions, s.answers, s.deps.FieldLimit),
		ThumbnailURL: thumbnailURL(s.deps.AvatarURLTemplate, s.answers, s.deps.NicknameQuestion),
		Attachments:  attachments,
	}
}

// persist saves a snapshot. A failed save is logged and never undoes the
// transition that preceded it.
func (s *Session) persist(ctx context.Context) {
	if s.closed || s.deps.Snapshots == nil {
		return
	}
	if err := s.deps.Snapshots.Save(ctx, s.snapshot()); err != nil {
		s.log.Warn("session snapshot save failed", map[string]interface{}{"error": err})
	}
}

func (s *Session) snapshot() models.SessionSnapshot {
	snap := models.SessionSnapshot{
		Channel:    s.channel,
		Applicant:  s.applicant,
		Ticket:     s.ticket,
		State:      s.state,
		Index:      s.index,
		Collecting: s.collecting,
		Answers:    make([]models.Answer, len(s.answers)),
		UpdatedAt:  time.Now().UTC(),
	}
	for i, a := range s.answers {
		snap.Answers[i] = a.Clone()
	}
	if s.supplemental != nil {
		snap.Supplemental = &models.SupplementalSnapshot{
			Indices:   append([]int(nil), s.supplemental.indices...),
			Cursor:    s.supplemental.cursor,
			Rationale: s.supplemental.rationale,
		}
	}
	return snap
}

func (s *Session) Channel() string             { return s.channel }
func (s *Session) Applicant() models.Applicant { return s.applicant }
func (s *Session) Ticket() int                 { return s.ticket }

func (s *Session) State() models.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

func (s *Session) Collecting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collecting
}

// Answers returns a deep copy of the answers written so far.
func (s *Session) Answers() []models.Answer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Answer, len(s.answers))
	for i, a := range s.answers {
		out[i] = a.Clone()
	}
	return out
}

// Summary renders the current summary card.
func (s *Session) Summary() models.SummaryCard {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary()
}

// Snapshot returns the durable form of the session.
func (s *Session) Snapshot() models.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Nickname returns the cleaned answer to the nickname question, if any.
func (s *Session) Nickname() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.deps.NicknameQuestion
	if q < 1 || q > len(s.answers) {
		return ""
	}
	return models.CleanNickname(s.answers[q-1].Text)
}
