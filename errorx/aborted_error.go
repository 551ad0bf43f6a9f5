package errorx

import "fmt"

// AbortedErrorf creates a CliniaError with type ErrorTypeAborted and a formatted message
func AbortedErrorf(format string, args ...any) *CliniaError {
	return newWithStack(
		ErrorTypeAborted,
		fmt.Sprintf(format, args...),
	)
}

func IsAbortedError(e error) bool {
	return isType(e, ErrorTypeAborted)
}
