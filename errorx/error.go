package errorx

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// CliniaError is the typed error carried across package boundaries.
// Type drives the HTTP status while Message is safe to return to clients.
type CliniaError struct {
	Type    ErrorType     `json:"type"`
	Message string        `json:"message"`
	Details []CliniaError `json:"details,omitempty"`

	OriginalError error `json:"-"` // Not returned to clients

	stack Callers
}

var _ error = (*CliniaError)(nil)

var errorMessageRegexp = regexp.MustCompile(`^\[(.*?)\] (.*)$`)

func (e CliniaError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Type.String(), e.Message)
}

func (e *CliniaError) Unwrap() error {
	return e.OriginalError
}

// StackTrace returns the callers recorded when the error was created.
func (e *CliniaError) StackTrace() Callers {
	return e.stack
}

// WithDetails returns a copy of the error with the given details appended.
func (e *CliniaError) WithDetails(details ...*CliniaError) *CliniaError {
	out := *e
	out.Details = make([]CliniaError, 0, len(e.Details)+len(details))
	out.Details = append(out.Details, e.Details...)
	for _, d := range details {
		if d == nil {
			continue
		}
		out.Details = append(out.Details, CliniaError{Type: d.Type, Message: d.Message})
	}
	return &out
}

// WithOriginalError returns a copy of the error wrapping err.
func (e *CliniaError) WithOriginalError(err error) *CliniaError {
	out := *e
	out.OriginalError = err
	return &out
}

func newWithStack(t ErrorType, msg string) *CliniaError {
	return &CliniaError{
		Type:    t,
		Message: msg,
		stack:   callers(2),
	}
}

// NewCliniaErrorFromMessage parses the output of CliniaError.Error back into an error.
func NewCliniaErrorFromMessage(msg string) (*CliniaError, error) {
	m := errorMessageRegexp.FindStringSubmatch(strings.TrimSpace(msg))
	if m == nil {
		return nil, fmt.Errorf("%q is not a valid error type", msg)
	}

	eT, err := ParseErrorType(m[1])
	if err != nil {
		return nil, err
	}

	return &CliniaError{
		Type:    eT,
		Message: m[2],
	}, nil
}

// IsCliniaError finds the first CliniaError in the chain of e.
func IsCliniaError(e error) (*CliniaError, bool) {
	if e == nil {
		return nil, false
	}

	var ce *CliniaError
	if errors.As(e, &ce) && ce.Type != ErrorTypeUnspecified {
		return ce, true
	}

	if v, ok := errors.Cause(e).(CliniaError); ok && v.Type != ErrorTypeUnspecified {
		return &v, true
	}

	return nil, false
}

// TypeOf returns the type of the first CliniaError in the chain of e, or ErrorTypeUnspecified.
func TypeOf(e error) ErrorType {
	ce, ok := IsCliniaError(e)
	if !ok {
		return ErrorTypeUnspecified
	}
	return ce.Type
}

func isType(e error, t ErrorType) bool {
	mE, ok := IsCliniaError(e)
	if !ok {
		return false
	}

	return mE.Type == t
}
