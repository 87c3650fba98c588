package cipher

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ytget/ytsave/errs"
)

// Error codes
const (
	ErrCodePlayerJSNotFound     = "PLAYER_JS_NOT_FOUND"
	ErrCodePlayerJSDownload     = "PLAYER_JS_DOWNLOAD_FAILED"
	ErrCodeSignatureInvalid     = "SIGNATURE_INVALID"
	ErrCodeSignatureNotFound    = "SIGNATURE_NOT_FOUND"
	ErrCodeTransformNotFound    = "TRANSFORM_NOT_FOUND"
	ErrCodeTransformUnsupported = "TRANSFORM_UNSUPPORTED"
)

// Error represents a structured error with code and details
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Code + ": " + e.Message
	if e.Details != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Details)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying transport or I/O error, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes every cipher error match errs.ErrCipherFailed.
func (e *Error) Is(target error) bool {
	return target == errs.ErrCipherFailed
}

// MarshalJSON implements json.Marshaler
func (e *Error) MarshalJSON() ([]byte, error) {
	type Alias Error
	return json.Marshal(&struct {
		*Alias
		Error string `json:"error"`
	}{
		Alias: (*Alias)(e),
		Error: e.Error(),
	})
}

// NewError creates a new Error with the given code and message
func NewError(code string, message string, details ...any) *Error {
	e := &Error{
		Code:    code,
		Message: message,
	}
	if len(details) > 0 {
		e.Details = details[0]
	}
	return e
}

func wrapError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func codeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsNotFound returns true if the player script or the decipher function is missing
func IsNotFound(err error) bool {
	c := codeOf(err)
	return c == ErrCodePlayerJSNotFound || c == ErrCodeSignatureNotFound || c == ErrCodeTransformNotFound
}

// IsInvalid returns true if the error is an invalid signature error
func IsInvalid(err error) bool {
	return codeOf(err) == ErrCodeSignatureInvalid
}

// IsUnsupported returns true if the plan uses a statement the parser does not know
func IsUnsupported(err error) bool {
	return codeOf(err) == ErrCodeTransformUnsupported
}
