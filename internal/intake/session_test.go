package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	apperrors "whitelist-intake/internal/common/errors"
	"whitelist-intake/internal/common/logger"
	"whitelist-intake/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nineQuestions = []string{
	"Your age?",
	"Your nickname?",
	"How long have you played?",
	"Tell us about yourself.",
	"Have you read the rules?",
	"How did you find us?",
	"Why our server?",
	"Similar servers?",
	"Can you join voice?",
}

type MockPresenter struct {
	mu        sync.Mutex
	questions []models.QuestionCard
	summaries []models.SummaryCard
	notices   []models.Notice
	AskErr    error
}

func (m *MockPresenter) AskQuestion(ctx context.Context, channel string, card models.QuestionCard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questions = append(m.questions, card)
	return m.AskErr
}

func (m *MockPresenter) ShowSummary(ctx context.Context, channel string, card models.SummaryCard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries = append(m.summaries, card)
	return nil
}

func (m *MockPresenter) Notify(ctx context.Context, channel string, notice models.Notice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notices = append(m.notices, notice)
	return nil
}

func (m *MockPresenter) askedNumbers() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	nums := make([]int, len(m.questions))
	for i, q := range m.questions {
		nums[i] = q.Number
	}
	return nums
}

type MockFetcher struct {
	files map[string][]byte
}

func (m *MockFetcher) Fetch(ctx context.Context, att models.Attachment) ([]byte, error) {
	if data, ok := m.files[att.URL]; ok {
		return data, nil
	}
	return nil, apperrors.NewAttachmentFetchFailedError(att.Filename, errors.New("404"))
}

type memorySnapshots struct {
	mu    sync.Mutex
	saved map[string]models.SessionSnapshot
	saves int
}

func (m *memorySnapshots) Save(ctx context.Context, snap models.SessionSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		m.saved = make(map[string]models.SessionSnapshot)
	}
	m.saved[snap.Channel] = snap
	m.saves++
	return nil
}

func createTestSession(t *testing.T, presenter *MockPresenter) *Session {
	t.Helper()
	return NewSession("chan-1", models.Applicant{Handle: "applicant#1"}, 17, Deps{
		Questions:         nineQuestions,
		NicknameQuestion:  2,
		AvatarURLTemplate: "https://minotar.net/avatar/%s/100",
		FieldLimit:        1024,
		Fetcher:           &MockFetcher{files: map[string][]byte{}},
		Presenter:         presenter,
		Logger:            logger.NewTestLogger(t),
	})
}

func text(s string) []models.Message {
	return []models.Message{{Text: s}}
}

func completeSession(t *testing.T, s *Session) {
	t.Helper()
	ctx := context.Background()
	for i := 1; i <= len(nineQuestions); i++ {
		answer := fmt.Sprintf("answer %d", i)
		if i == 2 {
			answer = "`PlayerX`"
		}
		require.NoError(t, s.SubmitBatch(ctx, text(answer)))
	}
}

func TestSession_NineQuestionsWithSupplementalRound(t *testing.T) {
	presenter := &MockPresenter{}
	s := createTestSession(t, presenter)
	ctx := context.Background()

	require.NoError(t, s.Start(ctx))
	assert.Equal(t, models.StateAwaitingBatch, s.State())
	assert.True(t, s.Collecting())

	completeSession(t, s)

	assert.Equal(t, models.StateCompleted, s.State())
	assert.Equal(t, 9, s.Index())
	assert.False(t, s.Collecting())
	before := s.Answers()
	require.Len(t, before, 9)
	assert.Equal(t, "answer 4", before[3].Text)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9}, presenter.askedNumbers())
	require.Len(t, presenter.summaries, 1)
	assert.Equal(t, "https://minotar.net/avatar/PlayerX/100", presenter.summaries[0].ThumbnailURL)

	require.NoError(t, s.RequestSupplemental(ctx, []int{4, 7}, "needs more detail"))
	assert.Equal(t, models.StateAwaitingSupplemental, s.State())
	require.Len(t, presenter.notices, 1)
	assert.Equal(t, "needs more detail", presenter.notices[0].Rationale)
	assert.Equal(t, []string{"4. Tell us about yourself.", "7. Why our server?"}, presenter.notices[0].Questions)

	require.NoError(t, s.SubmitSupplementalBatch(ctx, text("more about me")))
	require.NoError(t, s.SubmitSupplementalBatch(ctx, text("great community")))

	assert.Equal(t, models.StateCompleted, s.State())
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 4, 7}, presenter.askedNumbers())

	after := s.Answers()
	require.Len(t, after, 9)
	assert.Equal(t, "answer 4\nAddendum:\nmore about me", after[3].Text)
	assert.Equal(t, "answer 7\nAddendum:\ngreat community", after[6].Text)
	for i := range after {
		if i == 3 || i == 6 {
			continue
		}
		assert.Equal(t, before[i], after[i], "answer %d changed", i+1)
	}

	require.Len(t, presenter.summaries, 2)
	assert.True(t, presenter.summaries[1].Updated)
	assert.Equal(t, 17, presenter.summaries[1].Ticket)
}

func TestSession_EmptyBatchChangesNothing(t *testing.T) {
	s := createTestSession(t, &MockPresenter{})
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.SubmitBatch(ctx, text("21")))

	err := s.SubmitBatch(ctx, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrEmptyBatch))
	assert.Equal(t, 1, s.Index())
	assert.True(t, s.Collecting())
	assert.Len(t, s.Answers(), 1)

	err = s.Submit(ctx)
	assert.True(t, errors.Is(err, apperrors.ErrEmptyBatch))
	assert.Equal(t, 1, s.Index())
}

func TestSession_NoActiveCollection(t *testing.T) {
	s := createTestSession(t, &MockPresenter{})
	ctx := context.Background()

	err := s.SubmitBatch(ctx, text("before start"))
	assert.True(t, errors.Is(err, apperrors.ErrNoActiveCollection))

	require.NoError(t, s.Start(ctx))
	completeSession(t, s)

	err = s.SubmitBatch(ctx, text("one more"))
	assert.True(t, errors.Is(err, apperrors.ErrNoActiveCollection))
	err = s.Collect(models.Message{Text: "late"})
	assert.True(t, errors.Is(err, apperrors.ErrNoActiveCollection))
	err = s.SubmitSupplementalBatch(ctx, text("unrequested"))
	assert.True(t, errors.Is(err, apperrors.ErrNoActiveCollection))
	assert.Len(t, s.Answers(), 9)
}

func TestSession_RequestSupplementalValidation(t *testing.T) {
	presenter := &MockPresenter{}
	s := createTestSession(t, presenter)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	err := s.RequestSupplemental(ctx, []int{1}, "too early")
	assert.True(t, errors.Is(err, apperrors.ErrSessionNotCompleted))

	completeSession(t, s)

	tests := []struct {
		name    string
		indices []int
	}{
		{name: "empty", indices: nil},
		{name: "zero", indices: []int{0}},
		{name: "past the end", indices: []int{3, 10}},
		{name: "negative", indices: []int{-1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.RequestSupplemental(ctx, tt.indices, "")
			assert.True(t, errors.Is(err, apperrors.ErrInvalidQuestionIndex))
			assert.Equal(t, models.StateCompleted, s.State())
		})
	}

	asked := len(presenter.askedNumbers())
	require.NoError(t, s.RequestSupplemental(ctx, []int{4, 4, 2}, "dupes"))
	require.NoError(t, s.SubmitSupplementalBatch(ctx, text("a")))
	require.NoError(t, s.SubmitSupplementalBatch(ctx, text("b")))
	assert.Equal(t, []int{4, 2}, presenter.askedNumbers()[asked:])
	assert.Equal(t, models.StateCompleted, s.State())
}

func TestSession_CollectAndSubmitRouting(t *testing.T) {
	s := createTestSession(t, &MockPresenter{})
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	require.NoError(t, s.Collect(models.Message{Text: "first line"}))
	require.NoError(t, s.Collect(models.Message{Text: "second line"}))
	require.NoError(t, s.Submit(ctx))

	answers := s.Answers()
	require.Len(t, answers, 1)
	assert.Equal(t, "first line\nsecond line", answers[0].Text)

	for i := 2; i <= 9; i++ {
		require.NoError(t, s.Collect(models.Message{Text: "x"}))
		require.NoError(t, s.Submit(ctx))
	}
	require.NoError(t, s.RequestSupplemental(ctx, []int{1}, ""))
	require.NoError(t, s.Collect(models.Message{Text: "also 22 soon"}))
	require.NoError(t, s.Submit(ctx))

	assert.Equal(t, "first line\nsecond line\nAddendum:\nalso 22 soon", s.Answers()[0].Text)
	assert.Error(t, s.Submit(ctx))
}

func TestSession_AttachmentAggregation(t *testing.T) {
	presenter := &MockPresenter{}
	s := NewSession("chan-1", models.Applicant{Handle: "a"}, 1, Deps{
		Questions: []string{"Show us your build."},
		Fetcher: &MockFetcher{files: map[string][]byte{
			"https://cdn/shot.png": []byte("png"),
		}},
		Presenter: presenter,
		Logger:    logger.NewTestLogger(t),
	})
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	err := s.SubmitBatch(ctx, []models.Message{
		{Text: "look", Attachments: []models.Attachment{{Filename: "shot.png", URL: "https://cdn/shot.png", ContentType: "image/png"}}},
		{Attachments: []models.Attachment{{Filename: "voice.ogg", URL: "https://cdn/gone.ogg", ContentType: "audio/ogg"}}},
	})
	require.NoError(t, err)

	answer := s.Answers()[0]
	assert.Equal(t, "look\n[shot.png](attached below)\n[voice.ogg](attachment unavailable)\n[voice message]", answer.Text)
	assert.True(t, answer.Voice)
	require.Len(t, answer.Attachments, 2)
	assert.Equal(t, []byte("png"), answer.Attachments[0].Data)
	assert.False(t, answer.Attachments[0].FetchFailed)
	assert.Nil(t, answer.Attachments[1].Data)
	assert.True(t, answer.Attachments[1].FetchFailed)

	require.Len(t, presenter.summaries, 1)
	assert.Len(t, presenter.summaries[0].Attachments, 2)
}

func TestSession_EmissionFailureKeepsTransition(t *testing.T) {
	presenter := &MockPresenter{AskErr: errors.New("platform down")}
	s := createTestSession(t, presenter)
	ctx := context.Background()

	require.Error(t, s.Start(ctx))
	assert.Equal(t, models.StateAwaitingBatch, s.State())

	err := s.SubmitBatch(ctx, text("21"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "platform down")
	assert.Equal(t, 1, s.Index())
}

func TestSession_SnapshotsAndRestore(t *testing.T) {
	snaps := &memorySnapshots{}
	presenter := &MockPresenter{}
	deps := Deps{
		Questions:        nineQuestions,
		NicknameQuestion: 2,
		Fetcher:          &MockFetcher{},
		Presenter:        presenter,
		Snapshots:        snaps,
		Logger:           logger.NewTestLogger(t),
	}
	s := NewSession("chan-9", models.Applicant{Handle: "u9"}, 3, deps)
	ctx := context.Background()

	require.NoError(t, s.Start(ctx))
	completeSession(t, s)
	require.NoError(t, s.RequestSupplemental(ctx, []int{5, 6}, "why"))
	require.NoError(t, s.SubmitSupplementalBatch(ctx, text("yes")))

	snap := snaps.saved["chan-9"]
	assert.Equal(t, models.StateAwaitingSupplemental, snap.State)
	require.NotNil(t, snap.Supplemental)
	assert.Equal(t, 1, snap.Supplemental.Cursor)
	assert.Equal(t, 12, snaps.saves)

	restored := RestoreSession(snap, deps)
	assert.Equal(t, "PlayerX", restored.Nickname())
	require.NoError(t, restored.SubmitSupplementalBatch(ctx, text("friend")))
	assert.Equal(t, models.StateCompleted, restored.State())
	assert.Equal(t, "answer 6\nAddendum:\nfriend", restored.Answers()[5].Text)
	assert.Equal(t, "answer 5\nAddendum:\nyes", restored.Answers()[4].Text)
}

func TestSession_ConcurrentBatchesStayOrdered(t *testing.T) {
	s := createTestSession(t, &MockPresenter{})
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.SubmitBatch(ctx, text(fmt.Sprintf("batch %d", i)))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, models.StateCompleted, s.State())
	assert.Equal(t, 9, s.Index())
	answers := s.Answers()
	require.Len(t, answers, 9)
	for _, a := range answers {
		assert.True(t, strings.HasPrefix(a.Text, "batch "))
	}
}

func TestSession_SummaryFields(t *testing.T) {
	long := strings.Repeat("ж", 2500)
	fields := summaryFields([]string{"Q one", "Q two", "Q three"}, []models.Answer{
		{Text: long},
		{Text: "  "},
	}, 1024)

	require.Len(t, fields, 5)
	assert.Equal(t, "1. Q one", fields[0].Name)
	assert.Equal(t, "Answer 1 (continued)", fields[1].Name)
	assert.Equal(t, "Answer 1 (continued)", fields[2].Name)
	assert.Len(t, []rune(fields[0].Value), 1024)
	assert.Len(t, []rune(fields[2].Value), 452)
	assert.Equal(t, models.SummaryField{Name: "2. Q two", Value: "[no answer]"}, fields[3])
	assert.Equal(t, models.SummaryField{Name: "3. Q three", Value: "[no answer]"}, fields[4])
}

func TestThumbnailURL(t *testing.T) {
	answers := []models.Answer{{Text: "18"}, {Text: " `Steve_1` "}}
	assert.Equal(t, "https://minotar.net/avatar/Steve_1/100", thumbnailURL("https://minotar.net/avatar/%s/100", answers, 2))
	assert.Equal(t, "", thumbnailURL("", answers, 2))
	assert.Equal(t, "", thumbnailURL("https://x/%s", answers, 3))
	assert.Equal(t, "", thumbnailURL("https://x/%s", []models.Answer{{Text: "my nick is Steve"}}, 1))
}

func TestSession_CloseStopsWritesAndInput(t *testing.T) {
	snaps := &memorySnapshots{}
	presenter := &MockPresenter{}
	s := NewSession("chan-5", models.Applicant{Handle: "u5"}, 5, Deps{
		Questions: nineQuestions,
		Fetcher:   &MockFetcher{},
		Presenter: presenter,
		Snapshots: snaps,
		Logger:    logger.NewTestLogger(t),
	})
	ctx := context.Background()

	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.SubmitBatch(ctx, text("19")))
	saves := snaps.saves

	answers := s.Close()
	require.Len(t, answers, 1)
	assert.Equal(t, "19", answers[0].Text)
	assert.False(t, s.Collecting())

	err := s.Collect(models.Message{Text: "late"})
	assert.True(t, errors.Is(err, apperrors.ErrNoActiveCollection))
	err = s.SubmitBatch(ctx, text("late"))
	assert.True(t, errors.Is(err, apperrors.ErrNoActiveCollection))
	err = s.RequestSupplemental(ctx, []int{1}, "")
	assert.True(t, errors.Is(err, apperrors.ErrSessionNotFound))

	assert.Equal(t, saves, snaps.saves)
	assert.Len(t, presenter.questions, 2)
}
