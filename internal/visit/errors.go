// internal/visit/errors.go
package visit

import (
	"errors"
	"fmt"
)

// Common visit errors
var (
	ErrTargetCrashed = errors.New("page target crashed")
	ErrRedirected    = errors.New("navigation interrupted by redirect")
)

// ErrorCode classifies why a visit failed
type ErrorCode string

const (
	CodeLaunch            ErrorCode = "LAUNCH_FAILED"
	CodePageSetup         ErrorCode = "PAGE_SETUP_FAILED"
	CodeNavigationTimeout ErrorCode = "NAVIGATION_TIMEOUT"
	CodeNavigation        ErrorCode = "NAVIGATION_FAILED"
	CodeGraphTimeout      ErrorCode = "GRAPH_TIMEOUT"
	CodeGraph             ErrorCode = "GRAPH_FAILED"
	CodeArtifact          ErrorCode = "ARTIFACT_WRITE_FAILED"
	CodeTargetCrash       ErrorCode = "TARGET_CRASHED"
	CodeRedirectLimit     ErrorCode = "REDIRECT_LIMIT"
	CodeCanceled          ErrorCode = "CANCELED"
)

// Error is a failed visit. Callers treat every *Error as "try the next
// candidate URL".
type Error struct {
	Code       ErrorCode
	Message    string
	URL        string
	Underlying error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s (%s): %v", e.Code, e.Message, e.URL, e.Underlying)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.URL)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Underlying
}

// Is matches another *Error by code, anything else through Underlying.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return errors.Is(e.Underlying, target)
}

func newError(code ErrorCode, url, message string, err error) *Error {
	return &Error{Code: code, Message: message, URL: url, Underlying: err}
}

// CodeOf returns the code of a visit error, or "" for other errors.
func CodeOf(err error) ErrorCode {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}
