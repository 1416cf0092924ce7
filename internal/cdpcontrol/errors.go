package cdpcontrol

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	CodeValidation      = "VALIDATION"
	CodeElementNotFound = "ELEMENT_NOT_FOUND"
	CodeEvalFailure     = "EVAL_FAILURE"
	CodeEvalTimeout     = "EVAL_TIMEOUT"
	CodeCDPUnavailable  = "CDP_UNAVAILABLE"
	CodeNavigation      = "NAVIGATION"
)

// transientHints are substrings in error causes that indicate a transient
// failure worth retrying (e.g. broken connection, detached node).
var transientHints = []string{
	"context deadline exceeded",
	"target closed",
	"session closed",
	"websocket",
	"connection reset",
	"broken pipe",
	"eof",
	"connection refused",
	"connection closed",
	"node is detached",
	"could not find node",
	"net::err_",
}

// CodedError is a typed error used for stable API mapping.
type CodedError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CodedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *CodedError) Unwrap() error { return e.Cause }

func newError(code, msg string, cause error) error {
	return &CodedError{Code: code, Message: msg, Cause: cause}
}

// CodeOf returns the code of the first CodedError in err's chain, or "".
func CodeOf(err error) string {
	var coded *CodedError
	if !errors.As(err, &coded) {
		return ""
	}
	return coded.Code
}

// IsTransient reports whether err is environment flakiness worth a local
// retry. Caller cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var coded *CodedError
	if !errors.As(err, &coded) {
		return false
	}

	switch coded.Code {
	case CodeCDPUnavailable, CodeEvalTimeout, CodeNavigation:
		return true
	case CodeValidation:
		return false
	}
	if coded.Cause == nil {
		return false
	}
	cause := strings.ToLower(coded.Cause.Error())
	for _, hint := range transientHints {
		if strings.Contains(cause, hint) {
			return true
		}
	}
	return false
}
