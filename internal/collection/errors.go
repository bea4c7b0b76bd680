package collection

import (
	"errors"
	"fmt"
	"net/http"
)

// DomainError is the recoverable error surface of the collection service.
// Status follows the usual HTTP mapping: 422 validation, 404 not found,
// 403 permission denied.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// validationError carries the full message list in Details; no partial state
// is persisted when one is returned.
func validationError(messages ...string) *DomainError {
	message := "validation failed"
	if len(messages) > 0 {
		message = messages[0]
	}
	return domainError(http.StatusUnprocessableEntity, "validation_failed", message, messages)
}

func notFoundError(message string) *DomainError {
	return domainError(http.StatusNotFound, "not_found", message, nil)
}

func permissionError(message string) *DomainError {
	return domainError(http.StatusForbidden, "forbidden", message, nil)
}

func errStatus(err error, status int) bool {
	var domain *DomainError
	return errors.As(err, &domain) && domain.Status == status
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return errStatus(err, http.StatusUnprocessableEntity) }

// IsNotFound reports whether err is a missing-reference failure.
func IsNotFound(err error) bool { return errStatus(err, http.StatusNotFound) }

// IsPermission reports whether err is a permission denial.
func IsPermission(err error) bool { return errStatus(err, http.StatusForbidden) }

// ValidationMessages returns the message list of a validation error, or nil.
func ValidationMessages(err error) []string {
	var domain *DomainError
	if !errors.As(err, &domain) {
		return nil
	}
	messages, ok := domain.Details.([]string)
	if !ok {
		return nil
	}
	return messages
}
