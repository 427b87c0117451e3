package models

import (
	"strings"
	"time"
)

// SessionState is the phase of an intake session.
type SessionState string

const (
	StateAwaitingBatch        SessionState = "awaiting_batch"
	StateCompleted            SessionState = "completed"
	StateAwaitingSupplemental SessionState = "awaiting_supplemental"
)

// Attachment references a file sent with a message. Data holds the fetched
// bytes and is never persisted.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType,omitempty"`
	URL         string `json:"url,omitempty"`
	Data        []byte `json:"-"`
	FetchFailed bool   `json:"fetchFailed,omitempty"`
}

func (a Attachment) IsVoice() bool {
	return strings.HasPrefix(a.ContentType, "audio/")
}

// Message is one raw chat message from the applicant.
type Message struct {
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Answer is the aggregated response to one question.
type Answer struct {
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Voice       bool         `json:"voice,omitempty"`
}

// Clone returns a deep copy.
func (a Answer) Clone() Answer {
	out := Answer{Text: a.Text, Voice: a.Voice}
	if a.Attachments != nil {
		out.Attachments = make([]Attachment, len(a.Attachments))
		for i, att := range a.Attachments {
			out.Attachments[i] = att
			if att.Data != nil {
				out.Attachments[i].Data = append([]byte(nil), att.Data...)
			}
		}
	}
	return out
}

type SupplementalSnapshot struct {
	Indices   []int  `json:"indices"`
	Cursor    int    `json:"cursor"`
	Rationale string `json:"rationale"`
}

// SessionSnapshot is the durable form of an intake session.
type SessionSnapshot struct {
	Channel      string                `json:"channel"`
	Applicant    Applicant             `json:"applicant"`
	Ticket       int                   `json:"ticket"`
	State        SessionState          `json:"state"`
	Index        int                   `json:"index"`
	Collecting   bool                  `json:"collecting"`
	Answers      []Answer              `json:"answers"`
	Supplemental *SupplementalSnapshot `json:"supplemental,omitempty"`
	UpdatedAt    time.Time             `json:"updatedAt"`
}
