// internal/httpapi/envelope.go
package httpapi

import (
	"fmt"

	apperrors "whitelist-intake/internal/common/errors"
	"whitelist-intake/internal/models"
	"whitelist-intake/internal/review"
)

// Envelope is the wire form of a review action. Type selects which of the
// other fields are read.
type Envelope struct {
	Type      string            `json:"type"`
	Applicant *models.Applicant `json:"applicant,omitempty"`
	Channel   string            `json:"channel,omitempty"`
	Author    string            `json:"author,omitempty"`
	Message   *models.Message   `json:"message,omitempty"`
	Reviewer  *models.Reviewer  `json:"reviewer,omitempty"`
	Questions []int             `json:"questions,omitempty"`
	Rationale string            `json:"rationale,omitempty"`
	Nickname  string            `json:"nickname,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	GrantRole bool              `json:"grantRole,omitempty"`
}

// Action converts the envelope into a review action.
func (e *Envelope) Action() (review.Action, error) {
	switch e.Type {
	case review.KindCreate:
		if e.Applicant == nil {
			return nil, missing("applicant")
		}
		return review.Create{Applicant: *e.Applicant}, nil
	case review.KindCollect:
		if e.Message == nil {
			return nil, missing("message")
		}
		return review.Collect{Channel: e.Channel, Author: e.Author, Message: *e.Message}, nil
	case review.KindSubmit:
		return review.Submit{Channel: e.Channel, Author: e.Author}, nil
	case review.KindRequestMore, review.KindAccept, review.KindReject, review.KindClose:
		return e.reviewerAction()
	}
	return nil, apperrors.NewInvalidActionError(fmt.Sprintf("unknown action type %q", e.Type))
}

func (e *Envelope) reviewerAction() (review.Action, error) {
	if e.Reviewer == nil {
		return nil, missing("reviewer")
	}
	switch e.Type {
	case review.KindRequestMore:
		return review.RequestMore{Channel: e.Channel, Reviewer: *e.Reviewer, Questions: e.Questions, Rationale: e.Rationale}, nil
	case review.KindAccept:
		return review.Accept{Channel: e.Channel, Reviewer: *e.Reviewer, Nickname: e.Nickname}, nil
	case review.KindReject:
		return review.Reject{
			Channel:   e.Channel,
			Reviewer:  *e.Reviewer,
			Nickname:  e.Nickname,
			Reason:    e.Reason,
			Rationale: e.Rationale,
			GrantRole: e.GrantRole,
		}, nil
	default:
		return review.Close{Channel: e.Channel, Reviewer: *e.Reviewer}, nil
	}
}

func missing(field string) error {
	return apperrors.NewInvalidActionError(fmt.Sprintf("%s is required", field))
}
