package slogx

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
)

const redactionText = "**[REDACTED]**"

var sensitiveHeaders = map[string]bool{
	"authorization": true,
	"cookie":        true,
}

// RedactHeaders returns the headers as an attribute, replacing sensitive values.
func RedactHeaders(headers http.Header) slog.Attr {
	headerMap := make(map[string][]string, len(headers))
	for key, values := range headers {
		if sensitiveHeaders[strings.ToLower(key)] {
			headerMap[key] = []string{redactionText}
		} else {
			headerMap[key] = values
		}
	}

	return slog.Any("headers", headerMap)
}

// RequestAttrs groups the loggable parts of an incoming request.
func RequestAttrs(r *http.Request) slog.Attr {
	remoteIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		remoteIP = r.RemoteAddr
	}

	return slog.GroupAttrs("http_request",
		RedactHeaders(r.Header),
		slog.String("method", r.Method),
		slog.String("path", r.URL.EscapedPath()),
		slog.String("host", r.Host),
		slog.String("remote", remoteIP),
	)
}
