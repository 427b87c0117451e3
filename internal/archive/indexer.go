// internal/archive/indexer.go
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	apperrors "whitelist-intake/internal/common/errors"
	"whitelist-intake/internal/common/logger"
	"whitelist-intake/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const DefaultIndex = "intake-applications"

// AnswerDoc is one question/answer pair of a closed application.
type AnswerDoc struct {
	Question    string   `json:"question"`
	Answer      string   `json:"answer"`
	Voice       bool     `json:"voice,omitempty"`
	Attachments []string `json:"attachments,omitempty"`
}

// Document is the archived form of a closed application.
type Document struct {
	Ticket    int         `json:"ticket"`
	Applicant string      `json:"applicant"`
	Nickname  string      `json:"nickname,omitempty"`
	Action    string      `json:"action"`
	ClosedBy  string      `json:"closedBy"`
	ClosedAt  time.Time   `json:"closedAt"`
	Answers   []AnswerDoc `json:"answers"`
}

// NewDocument pairs questions with answers. Missing answers are archived
// empty so the positions stay aligned.
func NewDocument(ticket int, applicant models.Applicant, action models.Action, nickname string, closedBy string, closedAt time.Time, questions []string, answers []models.Answer) *Document {
	doc := &Document{
		Ticket:    ticket,
		Applicant: applicant.Handle,
		Nickname:  nickname,
		Action:    string(action),
		ClosedBy:  closedBy,
		ClosedAt:  closedAt.UTC(),
		Answers:   make([]AnswerDoc, 0, len(questions)),
	}
	for i, q := range questions {
		a := AnswerDoc{Question: q}
		if i < len(answers) {
			a.Answer = answers[i].Text
			a.Voice = answers[i].Voice
			for _, att := range answers[i].Attachments {
				a.Attachments = append(a.Attachments, att.Filename)
			}
		}
		doc.Answers = append(doc.Answers, a)
	}
	return doc
}

type Indexer struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewIndexer(client *elasticsearch.Client, index string, log logger.Logger) *Indexer {
	if index == "" {
		index = DefaultIndex
	}
	return &Indexer{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "archive", "index": index}),
	}
}

// Index stores doc under its ticket number, so closing the same application
// twice overwrites the earlier document.
func (i *Indexer) Index(ctx context.Context, doc *Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal archive document: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: strconv.Itoa(doc.Ticket),
		Body:       bytes.NewReader(body),
		Refresh:    "false",
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return apperrors.NewExternalServiceError("elasticsearch", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return apperrors.NewExternalServiceError("elasticsearch",
			fmt.Errorf("index ticket %d: %s: %s", doc.Ticket, res.Status(), string(msg)))
	}

	i.logger.Debug("application archived", map[string]interface{}{
		"ticket": doc.Ticket,
		"action": doc.Action,
	})
	return nil
}
