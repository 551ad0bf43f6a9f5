// Package assertx holds test assertions built on go-cmp and JSON comparisons.
package assertx

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/sjson"
)

type tHelper interface {
	Helper()
}

var spewConfig = spew.ConfigState{
	Indent:                  " ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
	DisableMethods:          true,
	MaxDepth:                10,
}

// Equal compares with go-cmp so options like cmpopts.IgnoreFields can be used.
func Equal[T any](t assert.TestingT, expected, actual T, opts ...cmp.Option) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if diff := cmp.Diff(expected, actual, opts...); diff != "" {
		return assert.Fail(t, "Not equal (-expected +actual):\n"+diff)
	}
	return true
}

// ElementsMatch asserts both slices hold the same elements, ignoring order. Duplicates
// must appear the same number of times.
func ElementsMatch[T any](t assert.TestingT, expected, actual []T, opts ...cmp.Option) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}

	used := make([]bool, len(actual))
	var missing []T
	for _, e := range expected {
		found := false
		for j, a := range actual {
			if !used[j] && cmp.Equal(e, a, opts...) {
				used[j] = true
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, e)
		}
	}

	var extra []T
	for j, a := range actual {
		if !used[j] {
			extra = append(extra, a)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return true
	}

	var msg bytes.Buffer
	msg.WriteString("elements differ")
	if len(missing) > 0 {
		msg.WriteString("\n\nmissing from actual:\n")
		msg.WriteString(spewConfig.Sdump(missing))
	}
	if len(extra) > 0 {
		msg.WriteString("\n\nunexpected in actual:\n")
		msg.WriteString(spewConfig.Sdump(extra))
	}
	return assert.Fail(t, msg.String())
}

// EqualAsJSON marshals actual and compares it to the expected JSON document. The
// paths in except are removed from both sides first.
func EqualAsJSON(t require.TestingT, expected string, actual any, except ...string) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	raw, err := json.Marshal(actual)
	require.NoError(t, err)

	exp, act := expected, string(raw)
	for _, path := range except {
		exp, err = sjson.Delete(exp, path)
		require.NoError(t, err)
		act, err = sjson.Delete(act, path)
		require.NoError(t, err)
	}
	return assert.JSONEq(t, strings.TrimSpace(exp), act)
}
