// Package errors provides the error taxonomy shared by the intake core, the
// review dispatcher and the reconciliation loop.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorCode is a stable, machine-readable error identifier.
type ErrorCode string

// Session errors. All are surfaced to the caller with no state mutation.
const (
	ErrCodeEmptyBatch           ErrorCode = "EMPTY_BATCH"
	ErrCodeNoActiveCollection   ErrorCode = "NO_ACTIVE_COLLECTION"
	ErrCodeInvalidQuestionIndex ErrorCode = "INVALID_QUESTION_INDEX"
	ErrCodeSessionNotCompleted  ErrorCode = "SESSION_NOT_COMPLETED"
	ErrCodeSessionNotFound      ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeChannelAlreadyActive ErrorCode = "CHANNEL_ALREADY_ACTIVE"
)

// Decision store errors.
const (
	ErrCodeDuplicateOpenApplication ErrorCode = "DUPLICATE_OPEN_APPLICATION"
	ErrCodeAlreadyDecided           ErrorCode = "ALREADY_DECIDED"
	ErrCodeApplicationNotFound      ErrorCode = "APPLICATION_NOT_FOUND"
	ErrCodeDatabaseQueryFailed      ErrorCode = "DATABASE_QUERY_FAILED"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeDatabaseUpdateFailed     ErrorCode = "DATABASE_UPDATE_FAILED"
)

// Reviewer, attachment and reconciliation errors.
const (
	ErrCodeForbidden              ErrorCode = "FORBIDDEN"
	ErrCodeInvalidAction          ErrorCode = "INVALID_ACTION"
	ErrCodeAttachmentFetchFailed  ErrorCode = "ATTACHMENT_FETCH_FAILED"
	ErrCodeIdentityNotFound       ErrorCode = "IDENTITY_NOT_FOUND"
	ErrCodeGrantInsertFailed      ErrorCode = "GRANT_INSERT_FAILED"
	ErrCodeExternalServiceFailure ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports whether target carries the same code, so sentinel values match
// errors built by the constructors below.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	ErrEmptyBatch               = &StandardError{Code: ErrCodeEmptyBatch, Message: "batch contains no messages"}
	ErrNoActiveCollection       = &StandardError{Code: ErrCodeNoActiveCollection, Message: "session is not collecting an answer"}
	ErrInvalidQuestionIndex     = &StandardError{Code: ErrCodeInvalidQuestionIndex, Message: "invalid question index"}
	ErrSessionNotCompleted      = &StandardError{Code: ErrCodeSessionNotCompleted, Message: "session has not completed the question set"}
	ErrSessionNotFound          = &StandardError{Code: ErrCodeSessionNotFound, Message: "no active session for channel"}
	ErrChannelAlreadyActive     = &StandardError{Code: ErrCodeChannelAlreadyActive, Message: "channel already has an active session"}
	ErrDuplicateOpenApplication = &StandardError{Code: ErrCodeDuplicateOpenApplication, Message: "applicant already has an application"}
	ErrAlreadyDecided           = &StandardError{Code: ErrCodeAlreadyDecided, Message: "application already decided"}
	ErrApplicationNotFound      = &StandardError{Code: ErrCodeApplicationNotFound, Message: "application not found"}
	ErrForbidden                = &StandardError{Code: ErrCodeForbidden, Message: "reviewer lacks an admin role"}
	ErrInvalidAction            = &StandardError{Code: ErrCodeInvalidAction, Message: "invalid review action"}
	ErrIdentityNotFound         = &StandardError{Code: ErrCodeIdentityNotFound, Message: "identity not found in grant store"}
	ErrDatabaseQueryFailed      = &StandardError{Code: ErrCodeDatabaseQueryFailed, Message: "database query failed", Retryable: true}
	ErrDatabaseInsertFailed     = &StandardError{Code: ErrCodeDatabaseInsertFailed, Message: "database insert failed", Retryable: true}
	ErrDatabaseUpdateFailed     = &StandardError{Code: ErrCodeDatabaseUpdateFailed, Message: "database update failed", Retryable: true}
	ErrGrantInsertFailed        = &StandardError{Code: ErrCodeGrantInsertFailed, Message: "grant insert failed", Retryable: true}
	ErrAttachmentFetchFailed    = &StandardError{Code: ErrCodeAttachmentFetchFailed, Message: "attachment fetch failed", Retryable: true}
)

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewEmptyBatchError is returned when a submission carries zero messages.
func NewEmptyBatchError(channel string) *StandardError {
	return newError(ErrCodeEmptyBatch, ErrEmptyBatch.Message, fmt.Sprintf("channel: %s", channel), false)
}

func NewNoActiveCollectionError(channel string) *StandardError {
	return newError(ErrCodeNoActiveCollection, ErrNoActiveCollection.Message, fmt.Sprintf("channel: %s", channel), false)
}

func NewInvalidQuestionIndexError(index, questionCount int) *StandardError {
	return newError(ErrCodeInvalidQuestionIndex, ErrInvalidQuestionIndex.Message,
		fmt.Sprintf("index %d outside [1, %d]", index, questionCount), false)
}

func NewSessionNotCompletedError(channel string) *StandardError {
	return newError(ErrCodeSessionNotCompleted, ErrSessionNotCompleted.Message, fmt.Sprintf("channel: %s", channel), false)
}

func NewSessionNotFoundError(channel string) *StandardError {
	return newError(ErrCodeSessionNotFound, ErrSessionNotFound.Message, fmt.Sprintf("channel: %s", channel), false)
}

func NewChannelAlreadyActiveError(channel string) *StandardError {
	return newError(ErrCodeChannelAlreadyActive, ErrChannelAlreadyActive.Message, fmt.Sprintf("channel: %s", channel), false)
}

func NewDuplicateOpenApplicationError(applicant string) *StandardError {
	return newError(ErrCodeDuplicateOpenApplication, ErrDuplicateOpenApplication.Message, fmt.Sprintf("applicant: %s", applicant), false)
}

func NewAlreadyDecidedError(applicant string) *StandardError {
	return newError(ErrCodeAlreadyDecided, ErrAlreadyDecided.Message, fmt.Sprintf("applicant: %s", applicant), false)
}

func NewApplicationNotFoundError(details string) *StandardError {
	return newError(ErrCodeApplicationNotFound, ErrApplicationNotFound.Message, details, false)
}

func NewForbiddenError(reviewer string) *StandardError {
	return newError(ErrCodeForbidden, ErrForbidden.Message, fmt.Sprintf("reviewer: %s", reviewer), false)
}

func NewInvalidActionError(details string) *StandardError {
	return newError(ErrCodeInvalidAction, ErrInvalidAction.Message, details, false)
}

func NewIdentityNotFoundError(nickname string) *StandardError {
	return newError(ErrCodeIdentityNotFound, ErrIdentityNotFound.Message, fmt.Sprintf("nickname: %s", nickname), true)
}

func NewDatabaseQueryFailedError(op string, err error) *StandardError {
	return newError(ErrCodeDatabaseQueryFailed, ErrDatabaseQueryFailed.Message, fmt.Sprintf("op: %s, error: %v", op, err), true)
}

func NewDatabaseInsertFailedError(op string, err error) *StandardError {
	return newError(ErrCodeDatabaseInsertFailed, ErrDatabaseInsertFailed.Message, fmt.Sprintf("op: %s, error: %v", op, err), true)
}

func NewDatabaseUpdateFailedError(op string, err error) *StandardError {
	return newError(ErrCodeDatabaseUpdateFailed, ErrDatabaseUpdateFailed.Message, fmt.Sprintf("op: %s, error: %v", op, err), true)
}

func NewGrantInsertFailedError(identity string, err error) *StandardError {
	return newError(ErrCodeGrantInsertFailed, ErrGrantInsertFailed.Message, fmt.Sprintf("identity: %s, error: %v", identity, err), true)
}

func NewAttachmentFetchFailedError(filename string, err error) *StandardError {
	return newError(ErrCodeAttachmentFetchFailed, ErrAttachmentFetchFailed.Message, fmt.Sprintf("filename: %s, error: %v", filename, err), true)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalServiceFailure, fmt.Sprintf("external service '%s' error", service), err.Error(), true)
}

// CodeOf extracts the code of the first StandardError in err's chain.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return "INTERNAL_ERROR"
}

// IsRetryable reports whether err is a StandardError marked retryable.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}
