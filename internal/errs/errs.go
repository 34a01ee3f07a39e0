// Package errs defines the error taxonomy shared by the client library,
// the collector server and the wire codec.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType classifies an error reported by the DataExchange API.
type ErrorType int

const (
	APIError ErrorType = iota
	APIKeyNotAllowed
	APIIllegalSession
	APIInvalidArgument
	DataExchangeNotLicensed
	DataExchangeNoTestRunning
	RecordingNotLicensed
	RecordingIllegalStateForOperation
	RecordingCannotGetRecorderSettings
	RecordingCannotGetRecordingStatus
	// TransientSamplingFailure marks a failure inside a monitoring tick.
	// It never leaves the scheduler.
	TransientSamplingFailure
)

var errorTypeNames = [...]string{
	APIError:                           "NL-API-ERROR",
	APIKeyNotAllowed:                   "NL-API-KEY-NOT-ALLOWED",
	APIIllegalSession:                  "NL-API-ILLEGAL-SESSION",
	APIInvalidArgument:                 "NL-API-INVALID-ARGUMENT",
	DataExchangeNotLicensed:            "NL-DATAEXCHANGE-NOT-LICENSED",
	DataExchangeNoTestRunning:          "NL-DATAEXCHANGE-NO-TEST-RUNNING",
	RecordingNotLicensed:               "NL-RECORDING-NOT-LICENSED",
	RecordingIllegalStateForOperation:  "NL-RECORDING-ILLEGAL-STATE-FOR-OPERATION",
	RecordingCannotGetRecorderSettings: "NL-RECORDING-CANNOT-GET-RECORDER-SETTINGS",
	RecordingCannotGetRecordingStatus:  "NL-RECORDING-CANNOT-GET-RECORDING-STATUS",
	TransientSamplingFailure:           "NL-TRANSIENT-SAMPLING-FAILURE",
}

// legacy 5.0.x spellings
var legacyErrorTypes = map[string]ErrorType{
	"NL-DATAEXCHANGE-NOT-LICENSIED":       DataExchangeNotLicensed,
	"NL-DATAEXCHANGE-API-KEY-NOT-ALLOWED": APIKeyNotAllowed,
	"NL-DATAEXCHANGE-ILLEGAL-SESSION":     APIIllegalSession,
	"NL-DATAEXCHANGE-INVALID-ARGUMENT":    APIInvalidArgument,
}

func (t ErrorType) String() string {
	if t < 0 || int(t) >= len(errorTypeNames) {
		return errorTypeNames[APIError]
	}
	return errorTypeNames[t]
}

// ErrorTypes lists every known error type in declaration order.
func ErrorTypes() []ErrorType {
	types := make([]ErrorType, len(errorTypeNames))
	for i := range errorTypeNames {
		types[i] = ErrorType(i)
	}
	return types
}

// ParseErrorType maps a display string back to its ErrorType. Matching is
// case-insensitive and accepts '_' in place of '-'. Unknown text maps to APIError.
func ParseErrorType(text string) ErrorType {
	text = strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(text, "_", "-")))
	if text == "" {
		return APIError
	}
	for i, name := range errorTypeNames {
		if name == text {
			return ErrorType(i)
		}
	}
	if t, ok := legacyErrorTypes[text]; ok {
		return t
	}
	return APIError
}

// Sentinels usable with errors.Is.
var (
	ErrInvalidArgument   = &Error{Type: APIInvalidArgument}
	ErrIllegalSession    = &Error{Type: APIIllegalSession}
	ErrKeyNotAllowed     = &Error{Type: APIKeyNotAllowed}
	ErrTransientSampling = &Error{Type: TransientSamplingFailure}
	ErrNotFound          = errors.New("not found")
)

// Error is a typed DataExchange error.
type Error struct {
	Type    ErrorType
	Details string
	Cause   error
}

const (
	beginDetails = "("
	endDetails   = ")"
)

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Type.String())
	if e.Details != "" {
		sb.WriteString(beginDetails)
		sb.WriteString(e.Details)
		sb.WriteString(endDetails)
	}
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

// Wire renders the error the way the collector writes it into a response body.
func (e *Error) Wire() string {
	if e.Details == "" {
		return e.Type.String()
	}
	return e.Type.String() + beginDetails + e.Details + endDetails
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports type equality, so errors.Is(err, ErrInvalidArgument) matches any
// invalid-argument error regardless of details.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Type == e.Type
}

// New creates a typed error.
func New(t ErrorType, details string) *Error {
	return &Error{Type: t, Details: details}
}

// Wrap creates a typed error around cause.
func Wrap(t ErrorType, details string, cause error) *Error {
	return &Error{Type: t, Details: details, Cause: cause}
}

// InvalidArgument is a shorthand for New(APIInvalidArgument, fmt.Sprintf(...)).
func InvalidArgument(format string, args ...any) *Error {
	return New(APIInvalidArgument, fmt.Sprintf(format, args...))
}

// Parse rebuilds an error from a collector response body of the form
// "TYPE" or "TYPE(details)".
func Parse(message string) *Error {
	message = strings.TrimSpace(message)
	if message == "" {
		return New(APIError, "")
	}
	begin := strings.Index(message, beginDetails)
	end := strings.LastIndex(message, endDetails)
	if begin >= 0 && end > begin {
		return New(ParseErrorType(message[:begin]), message[begin+len(beginDetails):end])
	}
	return New(ParseErrorType(message), "")
}

// TypeOf returns the ErrorType carried by err, or APIError when err is not typed.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return APIError
}
