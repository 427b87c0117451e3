// internal/models/notification.go
package models

// QuestionCard asks the applicant one question.
type QuestionCard struct {
	Number       int    `json:"number"` // 1-based
	Total        int    `json:"total"`
	Text         string `json:"text"`
	Supplemental bool   `json:"supplemental"`
}

type SummaryField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SummaryCard shows every question with its current answer.
type SummaryCard struct {
	Ticket       int            `json:"ticket"`
	Applicant    Applicant      `json:"applicant"`
	Fields       []SummaryField `json:"fields"`
	ThumbnailURL string         `json:"thumbnailUrl,omitempty"`
	Attachments  []Attachment   `json:"attachments,omitempty"`
	Updated      bool           `json:"updated"`
}

type NoticeKind string

const (
	NoticeSupplementalRequested NoticeKind = "supplemental_requested"
	NoticeAccepted              NoticeKind = "accepted"
	NoticeRejected              NoticeKind = "rejected"
	NoticeClosed                NoticeKind = "closed"
)

// Notice is a plain notification posted into an application channel.
type Notice struct {
	Kind      NoticeKind `json:"kind"`
	Applicant Applicant  `json:"applicant"`
	Reviewer  string     `json:"reviewer,omitempty"`
	Text      string     `json:"text"`
	Reason    string     `json:"reason,omitempty"`
	Rationale string     `json:"rationale,omitempty"`
	Questions []string   `json:"questions,omitempty"`
}
