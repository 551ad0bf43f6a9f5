package routing

import (
	"testing"

	"github.com/clinia/xbulk/bulkx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoCreatePolicy(t *testing.T) {
	state := testState(t)

	for _, tc := range []struct {
		policy string
		index  string
		create bool
		reason string
	}{
		{policy: "", index: "new", create: true},
		{policy: "true", index: "new", create: true},
		{policy: "true", index: "products"},
		{policy: "true", index: "catalog"},
		{policy: "false", index: "products"},
		{policy: "false", index: "new", reason: "no such index [new] and [action.auto_create_index] is [false]"},
		{policy: "+logs-*,-*", index: "logs-2024", create: true},
		{policy: "+logs-*,-*", index: "metrics", reason: "no such index [metrics] and [action.auto_create_index] contains [-*] which forbids automatic creation of the index"},
		{policy: "-logs-secret*, logs-*", index: "logs-secret-1", reason: "no such index [logs-secret-1] and [action.auto_create_index] contains [-logs-secret*] which forbids automatic creation of the index"},
		{policy: "logs-*", index: "metrics", reason: "no such index [metrics] and [action.auto_create_index] ([logs-*]) doesn't match"},
	} {
		t.Run("should decide "+tc.index+" with policy "+tc.policy, func(t *testing.T) {
			p, err := ParseAutoCreatePolicy(tc.policy)
			require.NoError(t, err)

			create, err := p.ShouldAutoCreate(tc.index, state)
			if tc.reason != "" {
				ie, ok := bulkx.AsItemError(err)
				require.True(t, ok)
				assert.Equal(t, bulkx.KindIndexNotFound, ie.Kind)
				assert.Equal(t, tc.reason, ie.Reason())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.create, create)
		})
	}

	t.Run("should reject empty patterns", func(t *testing.T) {
		_, err := ParseAutoCreatePolicy("+,logs")
		assert.Error(t, err)
	})
}
