package errorx

import "fmt"

// UnimplementedErrorf creates a CliniaError with type ErrorTypeUnimplemented and a formatted message
func UnimplementedErrorf(format string, args ...any) *CliniaError {
	return newWithStack(
		ErrorTypeUnimplemented,
		fmt.Sprintf(format, args...),
	)
}

func IsUnimplementedError(e error) bool {
	return isType(e, ErrorTypeUnimplemented)
}
