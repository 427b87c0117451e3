// internal/models/application.go
package models

import (
	"fmt"
	"time"
)

// Action is the reviewer outcome recorded on a decision row.
type Action string

const (
	ActionNone             Action = "none"
	ActionAccepted         Action = "accepted"
	ActionRejected         Action = "rejected"
	ActionTemporaryFailure Action = "temporary_failure"
)

func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionNone, ActionAccepted, ActionRejected, ActionTemporaryFailure:
		return a, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// IsDecided reports whether a reviewer has already acted.
func (a Action) IsDecided() bool {
	return a != ActionNone && a != ""
}

// Syncable reports whether rows with this action are propagated into the
// grant store.
func (a Action) Syncable() bool {
	return a == ActionAccepted || a == ActionRejected
}

// DecisionRecord is one row of the decision table.
type DecisionRecord struct {
	ID              int64      `json:"id" db:"id"`
	ApplicantHandle string     `json:"applicantHandle" db:"applicant_handle"`
	Action          Action     `json:"action" db:"action"`
	CreateTime      time.Time  `json:"createTime" db:"create_time"`
	DecisionTime    *time.Time `json:"decisionTime,omitempty" db:"decision_time"`
	Nickname        string     `json:"nickname,omitempty" db:"nickname"`
	ChannelRef      string     `json:"channelRef,omitempty" db:"channel_ref"`
	Join            bool       `json:"join" db:"join"`
	TicketNumber    int        `json:"ticketNumber" db:"ticket_number"`
}

// IsOpen reports whether the application still awaits a reviewer decision.
func (r *DecisionRecord) IsOpen() bool {
	return r.Action == ActionNone
}
