package clusterx

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/clinia/xbulk/bulkx"
)

const DefaultNumberOfShards = 1

// ValidateIndexName checks the rules every index name must follow.
func ValidateIndexName(name string) error {
	switch {
	case name == "":
		return bulkx.InvalidIndexNameError(name, "must not be empty")
	case name == "." || name == "..":
		return bulkx.InvalidIndexNameError(name, "must not be '.' or '..'")
	case strings.ContainsAny(name, `\/*?"<>| ,#:`):
		return bulkx.InvalidIndexNameError(name, `must not contain the following characters [ , ", *, \, <, |, ,, >, /, ?, #, :]`)
	case strings.HasPrefix(name, "_") || strings.HasPrefix(name, "-") || strings.HasPrefix(name, "+"):
		return bulkx.InvalidIndexNameError(name, "must not start with '_', '-', or '+'")
	case len(name) > 255:
		return bulkx.InvalidIndexNameError(name, "index name is too long")
	}
	for _, r := range name {
		if unicode.IsUpper(r) {
			return bulkx.InvalidIndexNameError(name, "must be lowercase")
		}
	}
	return nil
}

// CreateIndex creates an open index directly on the service. It is the index creator used
// when no external store owns the topology.
func (s *Service) CreateIndex(ctx context.Context, name string, _ time.Duration) error {
	if err := ValidateIndexName(name); err != nil {
		return err
	}
	return s.Submit(ctx, "create-index ["+name+"]", Event{Type: EventCreateIndex, Index: name}.Apply)
}
