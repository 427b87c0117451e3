// internal/platform/webhook/presenter.go
package webhook

import (
	"context"
	"fmt"
	"strings"

	apperrors "whitelist-intake/internal/common/errors"
	commonhttp "whitelist-intake/internal/common/http"
	"whitelist-intake/internal/common/logger"
	"whitelist-intake/internal/models"
)

const (
	pathQuestions    = "/questions"
	pathSummaries    = "/summaries"
	pathNotices      = "/notices"
	pathChannels     = "/channels"
	pathCloseChannel = "/channels/close"
)

type questionRequest struct {
	Channel string              `json:"channel"`
	Card    models.QuestionCard `json:"card"`
}

// file carries attachment bytes, which the card itself does not serialize.
type file struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType,omitempty"`
	Data        []byte `json:"data"`
}

type summaryRequest struct {
	Channel string             `json:"channel"`
	Card    models.SummaryCard `json:"card"`
	Files   []file             `json:"files,omitempty"`
}

type noticeRequest struct {
	Channel string        `json:"channel"`
	Notice  models.Notice `json:"notice"`
}

type openChannelRequest struct {
	Applicant models.Applicant `json:"applicant"`
	Ticket    int              `json:"ticket"`
	Name      string           `json:"name"`
}

type openChannelResponse struct {
	Channel string `json:"channel"`
}

type closeChannelRequest struct {
	Channel string `json:"channel"`
}

// Presenter forwards cards, notices and channel management to the chat
// platform gateway as JSON posts.
type Presenter struct {
	client  *commonhttp.Client
	baseURL string
	logger  logger.Logger
}

func NewPresenter(client *commonhttp.Client, baseURL string, log logger.Logger) *Presenter {
	return &Presenter{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  log.WithFields(map[string]interface{}{"component": "webhook-presenter"}),
	}
}

func (p *Presenter) AskQuestion(ctx context.Context, channel string, card models.QuestionCard) error {
	return p.post(ctx, pathQuestions, questionRequest{Channel: channel, Card: card}, nil)
}

func (p *Presenter) ShowSummary(ctx context.Context, channel string, card models.SummaryCard) error {
	req := summaryRequest{Channel: channel, Card: card}
	for _, att := range card.Attachments {
		if att.Data == nil {
			continue
		}
		req.Files = append(req.Files, file{Filename: att.Filename, ContentType: att.ContentType, Data: att.Data})
	}
	return p.post(ctx, pathSummaries, req, nil)
}

func (p *Presenter) Notify(ctx context.Context, channel string, notice models.Notice) error {
	return p.post(ctx, pathNotices, noticeRequest{Channel: channel, Notice: notice}, nil)
}

// OpenChannel asks the gateway for a private channel visible to the
// applicant and reviewers, and returns its reference.
func (p *Presenter) OpenChannel(ctx context.Context, applicant models.Applicant, ticket int) (string, error) {
	var resp openChannelResponse
	req := openChannelRequest{
		Applicant: applicant,
		Ticket:    ticket,
		Name:      ChannelName(ticket),
	}
	if err := p.post(ctx, pathChannels, req, &resp); err != nil {
		return "", err
	}
	if resp.Channel == "" {
		return "", apperrors.NewExternalServiceError("platform", fmt.Errorf("gateway returned no channel for ticket %d", ticket))
	}
	return resp.Channel, nil
}

func (p *Presenter) CloseChannel(ctx context.Context, channel string) error {
	return p.post(ctx, pathCloseChannel, closeChannelRequest{Channel: channel}, nil)
}

func (p *Presenter) post(ctx context.Context, path string, payload, out interface{}) error {
	if err := p.client.PostJSON(ctx, p.baseURL+path, payload, out); err != nil {
		p.logger.Warn("platform request failed", map[string]interface{}{
			"path":  path,
			"error": err,
		})
		return apperrors.NewExternalServiceError("platform", err)
	}
	return nil
}

// ChannelName is the channel name for a ticket, zero-padded to four digits.
func ChannelName(ticket int) string {
	return fmt.Sprintf("application-%04d", ticket)
}
