package shard

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/clinia/xbulk/bulkx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testShard = bulkx.ShardID{Index: "products", ID: 0}

func indexOp(id, source string, mutate ...func(*bulkx.IndexOp)) *bulkx.IndexOp {
	op := bulkx.NewIndexOp("products", id, json.RawMessage(source))
	for _, m := range mutate {
		m(op)
	}
	return op
}

func TestMemoryEngine(t *testing.T) {
	ctx := context.Background()

	t.Run("should index, get and delete documents", func(t *testing.T) {
		e := NewMemoryEngine()

		out, err := e.Index(ctx, testShard, indexOp("1", `{"a":1}`), NoPrecondition)
		require.NoError(t, err)
		assert.Equal(t, &WriteOutcome{Version: 1, SeqNo: 0, PrimaryTerm: 1, Created: true}, out)

		out, err = e.Index(ctx, testShard, indexOp("1", `{"a":2}`), NoPrecondition)
		require.NoError(t, err)
		assert.Equal(t, &WriteOutcome{Version: 2, SeqNo: 1, PrimaryTerm: 1}, out)

		snap, err := e.Get(ctx, testShard, "1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), snap.Version)
		assert.JSONEq(t, `{"a":2}`, string(snap.Source))

		out, err = e.Delete(ctx, testShard, bulkx.NewDeleteOp("products", "1"), NoPrecondition)
		require.NoError(t, err)
		assert.Equal(t, &WriteOutcome{Version: 3, SeqNo: 2, PrimaryTerm: 1, Found: true}, out)

		snap, err = e.Get(ctx, testShard, "1")
		require.NoError(t, err)
		assert.Nil(t, snap)
	})

	t.Run("should keep shards apart", func(t *testing.T) {
		e := NewMemoryEngine()
		_, err := e.Index(ctx, testShard, indexOp("1", `{}`), NoPrecondition)
		require.NoError(t, err)

		snap, err := e.Get(ctx, bulkx.ShardID{Index: "products", ID: 1}, "1")
		require.NoError(t, err)
		assert.Nil(t, snap)
	})

	t.Run("should fail to delete a missing document", func(t *testing.T) {
		e := NewMemoryEngine()

		_, err := e.Delete(ctx, testShard, bulkx.NewDeleteOp("products", "1"), NoPrecondition)
		assert.Equal(t, bulkx.KindDocumentMissing, bulkx.KindOf(err))
		assert.Equal(t, 404, bulkx.StatusOf(err))
	})

	for _, tc := range []struct {
		name    string
		op      *bulkx.IndexOp
		pre     Precondition
		version int64
		reason  string
	}{
		{
			name:   "create over an existing document",
			op:     indexOp("1", `{}`, func(o *bulkx.IndexOp) { o.Create = true }),
			pre:    NoPrecondition,
			reason: "[_doc][1]: version conflict, document already exists (current version [3])",
		},
		{
			name:   "internal version mismatch",
			op:     indexOp("1", `{}`, func(o *bulkx.IndexOp) { o.Version = 2 }),
			pre:    NoPrecondition,
			reason: "[_doc][1]: version conflict, current version [3] is different than the one provided [2]",
		},
		{
			name:    "internal version match",
			op:      indexOp("1", `{}`, func(o *bulkx.IndexOp) { o.Version = 3 }),
			pre:     NoPrecondition,
			version: 4,
		},
		{
			name:   "external version not higher",
			op:     indexOp("1", `{}`, func(o *bulkx.IndexOp) { o.Version, o.VersionType = 3, bulkx.VersionTypeExternal }),
			pre:    NoPrecondition,
			reason: "[_doc][1]: version conflict, current version [3] is higher or equal to the one provided [3]",
		},
		{
			name:    "external version higher",
			op:      indexOp("1", `{}`, func(o *bulkx.IndexOp) { o.Version, o.VersionType = 10, bulkx.VersionTypeExternal }),
			pre:     NoPrecondition,
			version: 10,
		},
		{
			name:    "external_gte equal version",
			op:      indexOp("1", `{}`, func(o *bulkx.IndexOp) { o.Version, o.VersionType = 3, bulkx.VersionTypeExternalGTE }),
			pre:     NoPrecondition,
			version: 3,
		},
		{
			name:    "force lower version",
			op:      indexOp("1", `{}`, func(o *bulkx.IndexOp) { o.Version, o.VersionType = 1, bulkx.VersionTypeForce }),
			pre:     NoPrecondition,
			version: 1,
		},
		{
			name:   "stale sequence number",
			op:     indexOp("1", `{}`),
			pre:    Precondition{IfSeqNo: 0, IfPrimaryTerm: 1},
			reason: "[_doc][1]: version conflict, required seqNo [0], primary term [1]. current document has seqNo [2] and primary term [1]",
		},
		{
			name:    "current sequence number",
			op:      indexOp("1", `{}`),
			pre:     Precondition{IfSeqNo: 2, IfPrimaryTerm: 1},
			version: 4,
		},
		{
			name:   "sequence number of a missing document",
			op:     indexOp("2", `{}`),
			pre:    Precondition{IfSeqNo: 2, IfPrimaryTerm: 1},
			reason: "[_doc][2]: version conflict, required seqNo [2], primary term [1] but no document was found",
		},
	} {
		t.Run("should handle "+tc.name, func(t *testing.T) {
			e := NewMemoryEngine()
			for i := 0; i < 3; i++ {
				_, err := e.Index(ctx, testShard, indexOp("1", `{}`), NoPrecondition)
				require.NoError(t, err)
			}

			out, err := e.Index(ctx, testShard, tc.op, tc.pre)
			if tc.reason != "" {
				ie, ok := bulkx.AsItemError(err)
				require.True(t, ok)
				assert.Equal(t, bulkx.KindVersionConflict, ie.Kind)
				assert.Equal(t, tc.reason, ie.Reason())
				assert.Equal(t, 409, ie.Status())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.version, out.Version)
		})
	}
}
