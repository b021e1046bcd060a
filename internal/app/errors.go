package app

import (
	"fmt"
	"net/http"
)

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

func errNotFound(what string) *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", what+" not found", nil)
}

func errForbidden() *DomainError {
	return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
}

func errValidation(message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, nil)
}

func errInvalidMerge(message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "INVALID_MERGE", message, nil)
}

func errMergeStale() *DomainError {
	return domainError(http.StatusConflict, "MERGE_STALE",
		"Target branch changed since the diff was computed; re-run the diff and retry", nil)
}

func errUnresolvedConflicts(keys []string) *DomainError {
	return domainError(http.StatusConflict, "UNRESOLVED_CONFLICTS",
		"Merge has conflicts without resolutions", map[string]any{"keys": keys})
}
