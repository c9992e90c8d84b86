// Package businessflow contains the core business logic and use cases for communication dispatch
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Communication-related errors
	ErrCommunicationValidation    = errors.New("communication validation failed")
	ErrCommunicationNotFound      = errors.New("communication not found")
	ErrCommunicationPersistFailed = errors.New("failed to persist communication")
	ErrSubjectRequired            = errors.New("subject is required")
	ErrSubjectTooLong             = errors.New("subject exceeds 500 characters")
	ErrContentRequired            = errors.New("content is required")
	ErrInvalidMessageType         = errors.New("invalid message type")
	ErrInvalidPriority            = errors.New("invalid priority")
	ErrInvalidTargetUUID          = errors.New("invalid target uuid")

	// Organization access errors
	ErrOrganizationAccessDenied = errors.New("organization access denied")

	// Dispatch errors
	ErrNoRecipients            = errors.New("no recipients resolved")
	ErrStatusUpdateFailed      = errors.New("failed to update communication status")
	ErrInvalidStatusTransition = errors.New("invalid communication status transition")
	ErrDispatchInProgress      = errors.New("dispatch already in progress")
	ErrDispatchPanicked        = errors.New("dispatch panicked")
	ErrDispatchInterrupted     = errors.New("dispatch interrupted")

	// Filter errors
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size must be between 1 and 100")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsCommunicationValidation(err error) bool {
	return errors.Is(err, ErrCommunicationValidation)
}

func IsCommunicationNotFound(err error) bool {
	return errors.Is(err, ErrCommunicationNotFound)
}

func IsCommunicationPersistFailed(err error) bool {
	return errors.Is(err, ErrCommunicationPersistFailed)
}

func IsOrganizationAccessDenied(err error) bool {
	return errors.Is(err, ErrOrganizationAccessDenied)
}

func IsNoRecipients(err error) bool {
	return errors.Is(err, ErrNoRecipients)
}

func IsStatusUpdateFailed(err error) bool {
	return errors.Is(err, ErrStatusUpdateFailed)
}

func IsInvalidStatusTransition(err error) bool {
	return errors.Is(err, ErrInvalidStatusTransition)
}

func IsDispatchInProgress(err error) bool {
	return errors.Is(err, ErrDispatchInProgress)
}

func IsDispatchInterrupted(err error) bool {
	return errors.Is(err, ErrDispatchInterrupted)
}

func IsInvalidPage(err error) bool {
	return errors.Is(err, ErrInvalidPage)
}

func IsInvalidPageSize(err error) bool {
	return errors.Is(err, ErrInvalidPageSize)
}
