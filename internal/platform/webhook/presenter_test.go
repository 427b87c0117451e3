package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "whitelist-intake/internal/common/errors"
	commonhttp "whitelist-intake/internal/common/http"
	"whitelist-intake/internal/common/logger"
	"whitelist-intake/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	path string
	auth string
	body map[string]interface{}
}

func newGateway(t *testing.T, respond func(w http.ResponseWriter, r *http.Request)) (*Presenter, *[]recorded) {
	var calls []recorded
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		calls = append(calls, recorded{path: r.URL.Path, auth: r.Header.Get("Authorization"), body: body})
		if respond != nil {
			respond(w, r)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)

	client := commonhttp.NewClient(5 * time.Second).WithToken("secret")
	return NewPresenter(client, server.URL+"/intake/", logger.NewTestLogger(t)), &calls
}

func TestPresenter_Cards(t *testing.T) {
	p, calls := newGateway(t, nil)
	ctx := context.Background()

	require.NoError(t, p.AskQuestion(ctx, "chan-1", models.QuestionCard{Number: 2, Total: 9, Text: "Nickname?"}))
	require.NoError(t, p.Notify(ctx, "chan-1", models.Notice{Kind: models.NoticeAccepted, Text: "welcome"}))
	require.NoError(t, p.ShowSummary(ctx, "chan-1", models.SummaryCard{
		Ticket: 3,
		Attachments: []models.Attachment{
			{Filename: "a.png", ContentType: "image/png", Data: []byte("png")},
			{Filename: "lost.png", FetchFailed: true},
		},
	}))

	require.Len(t, *calls, 3)
	assert.Equal(t, "/intake/questions", (*calls)[0].path)
	assert.Equal(t, "Bearer secret", (*calls)[0].auth)
	card := (*calls)[0].body["card"].(map[string]interface{})
	assert.Equal(t, float64(2), card["number"])

	assert.Equal(t, "/intake/notices", (*calls)[1].path)
	assert.Equal(t, "chan-1", (*calls)[1].body["channel"])

	assert.Equal(t, "/intake/summaries", (*calls)[2].path)
	files := (*calls)[2].body["files"].([]interface{})
	require.Len(t, files, 1)
	assert.Equal(t, "cG5n", files[0].(map[string]interface{})["data"])
}

func TestPresenter_OpenAndCloseChannel(t *testing.T) {
	p, calls := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/intake/channels" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"channel":"chan-42"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	channel, err := p.OpenChannel(context.Background(), models.Applicant{Handle: "steve"}, 42)
	require.NoError(t, err)
	assert.Equal(t, "chan-42", channel)
	assert.Equal(t, "application-0042", (*calls)[0].body["name"])

	require.NoError(t, p.CloseChannel(context.Background(), channel))
	assert.Equal(t, "/intake/channels/close", (*calls)[1].path)
}

func TestPresenter_Errors(t *testing.T) {
	p, _ := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/intake/channels" {
			_, _ = w.Write([]byte(`{}`))
			return
		}
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	_, err := p.OpenChannel(context.Background(), models.Applicant{Handle: "steve"}, 1)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeExternalServiceFailure, apperrors.CodeOf(err))

	err = p.Notify(context.Background(), "chan", models.Notice{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestChannelName(t *testing.T) {
	assert.Equal(t, "application-0007", ChannelName(7))
	assert.Equal(t, "application-12345", ChannelName(12345))
}
