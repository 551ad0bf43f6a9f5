package errorx

import "net/http"

type ErrorType string

// Errors status code are defined here:
// https://chromium.googlesource.com/external/github.com/grpc/grpc/+/refs/tags/v1.21.4-pre1/doc/statuscodes.md

const (
	// The Invalid type should not be used, only useful to assert whether or not an error is a CliniaError during cast
	ErrorTypeUnspecified        = ErrorType("")
	ErrorTypeAborted            = ErrorType("ABORTED")
	ErrorTypeAlreadyExists      = ErrorType("ALREADY_EXISTS")
	ErrorTypeDeadlineExceeded   = ErrorType("DEADLINE_EXCEEDED")
	ErrorTypeFailedPrecondition = ErrorType("FAILED_PRECONDITION")
	ErrorTypeInternal           = ErrorType("INTERNAL")
	ErrorTypeInvalidArgument    = ErrorType("INVALID_ARGUMENT")
	ErrorTypeNotFound           = ErrorType("NOT_FOUND")
	ErrorTypeUnavailable        = ErrorType("UNAVAILABLE")
	ErrorTypeUnimplemented      = ErrorType("UNIMPLEMENTED")
	ErrorTypePayloadTooLarge    = ErrorType("PAYLOAD_TOO_LARGE")
)

func ParseErrorType(s string) (ErrorType, error) {
	e := ErrorType(s)
	if err := e.Validate(); err != nil {
		return ErrorTypeUnspecified, err
	}

	return e, nil
}

func (e ErrorType) String() string {
	return string(e)
}

func (e ErrorType) Validate() error {
	switch e {
	case ErrorTypeAborted,
		ErrorTypeAlreadyExists,
		ErrorTypeDeadlineExceeded,
		ErrorTypeFailedPrecondition,
		ErrorTypeInternal,
		ErrorTypeInvalidArgument,
		ErrorTypeNotFound,
		ErrorTypeUnavailable,
		ErrorTypeUnimplemented,
		ErrorTypePayloadTooLarge:
		return nil
	default:
		return InvalidArgumentErrorf("invalid error type: %s", e)
	}
}

// HTTPStatus returns the status code reported to clients for the error type.
func (e ErrorType) HTTPStatus() int {
	switch e {
	case ErrorTypeAborted, ErrorTypeAlreadyExists:
		return http.StatusConflict
	case ErrorTypeDeadlineExceeded:
		return http.StatusGatewayTimeout
	case ErrorTypeFailedPrecondition, ErrorTypeInvalidArgument:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	case ErrorTypeUnimplemented:
		return http.StatusNotImplemented
	case ErrorTypePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}
