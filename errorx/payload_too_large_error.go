package errorx

import "fmt"

// PayloadTooLargeErrorf creates a CliniaError with type ErrorTypePayloadTooLarge and a formatted message
func PayloadTooLargeErrorf(format string, args ...any) *CliniaError {
	return newWithStack(
		ErrorTypePayloadTooLarge,
		fmt.Sprintf(format, args...),
	)
}

func IsPayloadTooLargeError(e error) bool {
	return isType(e, ErrorTypePayloadTooLarge)
}
