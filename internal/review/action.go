// internal/review/action.go
package review

import "whitelist-intake/internal/models"

// Action is one trigger from the chat platform. The set is closed: only the
// types in this file implement it.
type Action interface {
	Kind() string
	action()
}

// Create opens a new application for Applicant.
type Create struct {
	Applicant models.Applicant `json:"applicant"`
}

// Collect buffers one applicant message for the answer being collected.
// Messages from anyone but the applicant are ignored.
type Collect struct {
	Channel string         `json:"channel"`
	Author  string         `json:"author"`
	Message models.Message `json:"message"`
}

// Submit sends the buffered messages as the answer.
type Submit struct {
	Channel string `json:"channel"`
	Author  string `json:"author"`
}

// RequestMore reopens the listed 1-based questions for an addendum.
type RequestMore struct {
	Channel   string          `json:"channel"`
	Reviewer  models.Reviewer `json:"reviewer"`
	Questions []int           `json:"questions"`
	Rationale string          `json:"rationale"`
}

type Accept struct {
	Channel  string          `json:"channel"`
	Reviewer models.Reviewer `json:"reviewer"`
	Nickname string          `json:"nickname"`
}

// Reject records a rejection. GrantRole false stores the outcome as a
// temporary failure that never reaches the grant store.
type Reject struct {
	Channel   string          `json:"channel"`
	Reviewer  models.Reviewer `json:"reviewer"`
	Nickname  string          `json:"nickname"`
	Reason    string          `json:"reason"`
	Rationale string          `json:"rationale"`
	GrantRole bool            `json:"grantRole"`
}

// Close archives the application and removes its channel.
type Close struct {
	Channel  string          `json:"channel"`
	Reviewer models.Reviewer `json:"reviewer"`
}

const (
	KindCreate      = "create"
	KindCollect     = "collect"
	KindSubmit      = "submit"
	KindRequestMore = "request_more"
	KindAccept      = "accept"
	KindReject      = "reject"
	KindClose       = "close"
)

func (Create) Kind() string      { return KindCreate }
func (Collect) Kind() string     { return KindCollect }
func (Submit) Kind() string      { return KindSubmit }
func (RequestMore) Kind() string { return KindRequestMore }
func (Accept) Kind() string      { return KindAccept }
func (Reject) Kind() string      { return KindReject }
func (Close) Kind() string       { return KindClose }

func (Create) action()      {}
func (Collect) action()     {}
func (Submit) action()      {}
func (RequestMore) action() {}
func (Accept) action()      {}
func (Reject) action()      {}
func (Close) action()       {}

// Outcome reports what a dispatched action did.
type Outcome struct {
	Kind     string              `json:"kind"`
	Channel  string              `json:"channel,omitempty"`
	Ticket   int                 `json:"ticket,omitempty"`
	State    models.SessionState `json:"state,omitempty"`
	Decision models.Action       `json:"decision,omitempty"`
	EventID  string              `json:"eventId,omitempty"`
	Ignored  bool                `json:"ignored,omitempty"`
}
