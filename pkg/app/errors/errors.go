// Package errors categorises service errors so transports can map them to
// status codes without inspecting messages.
package errors

import (
	"errors"
	"net/http"
)

// Category classifies a ServiceError. Categories below
// CategoryDependencyFailure are caused by the caller.
type Category int

const (
	// CategoryNoError is the zero value; no ServiceError carries it.
	CategoryNoError Category = iota
	// CategoryDataError marks malformed or out-of-range request input.
	CategoryDataError
	// CategoryResourceNotFound marks a lookup of an unknown item, collection or run.
	CategoryResourceNotFound
	// CategoryDependencyFailure marks a failing upstream such as the ledger node.
	CategoryDependencyFailure
	// CategoryGeneralError marks an unexpected failure, usually of the store.
	CategoryGeneralError
	// CategoryConnectionTimeout marks an upstream that did not answer in time.
	CategoryConnectionTimeout
)

var categoryNames = map[Category]string{
	CategoryNoError:           "CategoryNoError",
	CategoryDataError:         "CategoryDataError",
	CategoryResourceNotFound:  "CategoryResourceNotFound",
	CategoryDependencyFailure: "CategoryDependencyFailure",
	CategoryGeneralError:      "CategoryGeneralError",
	CategoryConnectionTimeout: "CategoryConnectionTimeout",
}

var categoryStatus = map[Category]int{
	CategoryDataError:         http.StatusBadRequest,
	CategoryResourceNotFound:  http.StatusNotFound,
	CategoryDependencyFailure: http.StatusBadGateway,
	CategoryGeneralError:      http.StatusInternalServerError,
	CategoryConnectionTimeout: http.StatusGatewayTimeout,
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "CategoryGeneralError"
}

// ServiceError pairs a client-safe Message with the underlying error, which
// is only ever logged.
type ServiceError struct {
	Category Category
	Message  string
	Err      error
}

func (err ServiceError) Error() string {
	if err.Err != nil {
		return err.Err.Error()
	}
	return err.Message
}

func (err ServiceError) Unwrap() error {
	return err.Err
}

// Is matches targets carrying the same message.
func (err ServiceError) Is(target error) bool {
	return err.Message == target.Error()
}

// StatusCode returns the HTTP status for the error's category.
func (err ServiceError) StatusCode() int {
	if code, ok := categoryStatus[err.Category]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// Is reports whether err wraps a ServiceError of category cat.
func Is(err error, cat Category) bool {
	var svcErr *ServiceError
	return errors.As(err, &svcErr) && svcErr.Category == cat
}

// IsInternalError reports whether err is not attributable to the caller.
// Errors that are not ServiceErrors count as internal.
func IsInternalError(err error) bool {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr.Category < CategoryDependencyFailure {
		return false
	}
	return true
}

func newError(cat Category, err error, message, fallback string) error {
	if err == nil {
		err = errors.New(fallback)
	}
	return &ServiceError{Category: cat, Message: message, Err: err}
}

// GeneralError hides err behind "Internal Server Error".
func GeneralError(err error) error {
	return newError(CategoryGeneralError, err, "Internal Server Error", "internal server error")
}

// ResourceNotFoundError returns message to the client; err is logged.
func ResourceNotFoundError(err error, message string) error {
	return newError(CategoryResourceNotFound, err, message, "resource not found: "+message)
}

// BadRequestError returns message to the client; err is logged.
func BadRequestError(err error, message string) error {
	return newError(CategoryDataError, err, message, "bad request: "+message)
}

// TimeoutError hides err behind "Upstream Timeout".
func TimeoutError(err error) error {
	return newError(CategoryConnectionTimeout, err, "Upstream Timeout", "dependency timeout")
}

// DependencyError returns message to the client for a failing upstream.
func DependencyError(err error, message string) error {
	return newError(CategoryDependencyFailure, err, message, "dependency failure: "+message)
}
