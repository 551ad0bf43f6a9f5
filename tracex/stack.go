package tracex

import (
	"fmt"
	"runtime"
	"strings"
)

const maxStackTraceLen = 1024

// stackTrace formats the stack of the caller, skipping skip frames (runtime.Callers and
// stackTrace included).
func stackTrace(skip int) string {
	pc := make([]uintptr, 10)
	n := runtime.Callers(skip, pc)
	frames := runtime.CallersFrames(pc[:n])

	var sb strings.Builder
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&sb, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		if !more || sb.Len() > maxStackTraceLen {
			break
		}
	}
	return sb.String()
}

// GetStackTrace returns the stack trace of the caller.
func GetStackTrace() string {
	return stackTrace(3)
}
