package shard

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/clinia/xbulk/bulkx"
	"github.com/clinia/xbulk/bulkx/update"
	loggerxtest "github.com/clinia/xbulk/loggerx/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// racingEngine writes the document behind the back of the executor right after each of
// the first n reads, so the writes that follow those reads conflict.
type racingEngine struct {
	*MemoryEngine
	races int
	reads int
}

func (e *racingEngine) Get(ctx context.Context, shard bulkx.ShardID, id string) (*update.Snapshot, error) {
	e.reads++
	snap, err := e.MemoryEngine.Get(ctx, shard, id)
	if err != nil || e.races == 0 {
		return snap, err
	}
	e.races--
	_, err = e.MemoryEngine.Index(ctx, shard, indexOp(id, `{"counter":100}`), NoPrecondition)
	return snap, err
}

func newTestExecutor(t *testing.T, engine Engine) *Executor {
	l := loggerxtest.NewTestLogger(t)
	return NewExecutor(l, engine, update.NewResolver(l, nil))
}

func updateOp(id, doc string, mutate ...func(*bulkx.UpdateOp)) *bulkx.UpdateOp {
	op := bulkx.NewUpdateOp("products", id)
	op.Doc = json.RawMessage(doc)
	for _, m := range mutate {
		m(op)
	}
	return op
}

func TestExecutor(t *testing.T) {
	ctx := context.Background()

	t.Run("should apply items in order and keep going after failures", func(t *testing.T) {
		exec := newTestExecutor(t, NewMemoryEngine())

		resp, err := exec.Execute(ctx, &Request{
			Shard: testShard,
			Items: []Item{
				{ID: 0, Op: indexOp("1", `{"name":"a"}`)},
				{ID: 2, Op: indexOp("1", `{"name":"b"}`, func(o *bulkx.IndexOp) { o.Create = true })},
				{ID: 4, Op: updateOp("1", `{"price":3}`)},
				{ID: 5, Op: bulkx.NewDeleteOp("products", "2")},
				{ID: 7, Op: bulkx.NewDeleteOp("products", "1")},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, testShard, resp.Shard)
		require.Len(t, resp.Items, 5)

		assert.Equal(t, []int{0, 2, 4, 5, 7}, []int{resp.Items[0].ItemID, resp.Items[1].ItemID, resp.Items[2].ItemID, resp.Items[3].ItemID, resp.Items[4].ItemID})

		assert.False(t, resp.Items[0].IsFailed())
		assert.Equal(t, bulkx.OutcomeCreated, resp.Items[0].Result.Result)
		assert.Equal(t, &bulkx.ShardInfo{Total: 1, Successful: 1}, resp.Items[0].Result.Shards)

		assert.True(t, resp.Items[1].IsFailed())
		assert.Equal(t, 409, resp.Items[1].Status())
		assert.Equal(t, "products", resp.Items[1].Index())

		assert.Equal(t, bulkx.OutcomeUpdated, resp.Items[2].Result.Result)
		assert.Equal(t, int64(2), resp.Items[2].Result.Version)

		assert.True(t, resp.Items[3].IsFailed())
		assert.Equal(t, 404, resp.Items[3].Status())

		assert.Equal(t, bulkx.OutcomeDeleted, resp.Items[4].Result.Result)
		assert.Equal(t, int64(3), resp.Items[4].Result.Version)
	})

	t.Run("should report a noop when the partial document changes nothing", func(t *testing.T) {
		engine := NewMemoryEngine()
		_, err := engine.Index(ctx, testShard, indexOp("1", `{"price":3}`), NoPrecondition)
		require.NoError(t, err)

		resp, err := newTestExecutor(t, engine).Execute(ctx, &Request{
			Shard:   testShard,
			Refresh: bulkx.RefreshImmediate,
			Items: []Item{{ID: 0, Op: updateOp("1", `{"price":3}`, func(o *bulkx.UpdateOp) {
				o.FetchSource = &bulkx.FetchSourceContext{Fetch: true}
			})}},
		})
		require.NoError(t, err)

		res := resp.Items[0].Result
		assert.Equal(t, bulkx.OutcomeNoop, res.Result)
		assert.Equal(t, int64(1), res.Version)
		assert.Equal(t, bulkx.UnassignedSeqNo, res.SeqNo)
		assert.False(t, res.ForcedRefresh)
		assert.Equal(t, &bulkx.ShardInfo{}, res.Shards)
		require.NotNil(t, res.Get)
		assert.Equal(t, map[string]any{"price": float64(3)}, res.Get.Source)
	})

	t.Run("should upsert and return the upserted source", func(t *testing.T) {
		resp, err := newTestExecutor(t, NewMemoryEngine()).Execute(ctx, &Request{
			Shard:   testShard,
			Refresh: bulkx.RefreshImmediate,
			Items: []Item{{ID: 0, Op: updateOp("1", `{"price":3}`, func(o *bulkx.UpdateOp) {
				o.DocAsUpsert = true
				o.FetchSource = &bulkx.FetchSourceContext{Fetch: true}
			})}},
		})
		require.NoError(t, err)

		res := resp.Items[0].Result
		assert.Equal(t, bulkx.OutcomeCreated, res.Result)
		assert.True(t, res.ForcedRefresh)
		require.NotNil(t, res.Get)
		assert.Equal(t, map[string]any{"price": float64(3)}, res.Get.Source)
	})

	t.Run("should fail an update of a missing document", func(t *testing.T) {
		resp, err := newTestExecutor(t, NewMemoryEngine()).Execute(ctx, &Request{
			Shard: testShard,
			Items: []Item{{ID: 3, Op: updateOp("1", `{"price":3}`)}},
		})
		require.NoError(t, err)
		require.True(t, resp.Items[0].IsFailed())
		assert.Equal(t, 404, resp.Items[0].Status())
		assert.Equal(t, bulkx.KindDocumentMissing, bulkx.KindOf(resp.Items[0].Failure.Cause))
	})

	t.Run("should retry an update on version conflicts", func(t *testing.T) {
		engine := &racingEngine{MemoryEngine: NewMemoryEngine(), races: 2}
		_, err := engine.MemoryEngine.Index(ctx, testShard, indexOp("1", `{"counter":1}`), NoPrecondition)
		require.NoError(t, err)

		resp, err := newTestExecutor(t, engine).Execute(ctx, &Request{
			Shard: testShard,
			Items: []Item{{ID: 0, Op: updateOp("1", `{"name":"x"}`, func(o *bulkx.UpdateOp) { o.RetryOnConflict = 2 })}},
		})
		require.NoError(t, err)
		require.False(t, resp.Items[0].IsFailed())
		assert.Equal(t, 3, engine.reads)
		assert.Equal(t, int64(4), resp.Items[0].Result.Version)

		snap, err := engine.MemoryEngine.Get(ctx, testShard, "1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"counter":100,"name":"x"}`, string(snap.Source))
	})

	t.Run("should give up after retry_on_conflict retries", func(t *testing.T) {
		engine := &racingEngine{MemoryEngine: NewMemoryEngine(), races: 5}
		_, err := engine.MemoryEngine.Index(ctx, testShard, indexOp("1", `{"counter":1}`), NoPrecondition)
		require.NoError(t, err)

		resp, err := newTestExecutor(t, engine).Execute(ctx, &Request{
			Shard: testShard,
			Items: []Item{{ID: 0, Op: updateOp("1", `{"name":"x"}`, func(o *bulkx.UpdateOp) { o.RetryOnConflict = 1 })}},
		})
		require.NoError(t, err)
		require.True(t, resp.Items[0].IsFailed())
		assert.Equal(t, 2, engine.reads)
		assert.Equal(t, 409, resp.Items[0].Status())
	})

	t.Run("should time out the remaining items once the context is done", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		resp, err := newTestExecutor(t, NewMemoryEngine()).Execute(cctx, &Request{
			Shard:   testShard,
			Timeout: time.Second,
			Items: []Item{
				{ID: 0, Op: indexOp("1", `{}`)},
				{ID: 1, Op: indexOp("2", `{}`)},
			},
		})
		require.NoError(t, err)
		for _, item := range resp.Items {
			require.True(t, item.IsFailed())
			assert.Equal(t, bulkx.KindTimeout, bulkx.KindOf(item.Failure.Cause))
			assert.Equal(t, "[timeout_exception] shard [products][0] timed out after [1s]", item.FailureMessage())
		}
	})
}
