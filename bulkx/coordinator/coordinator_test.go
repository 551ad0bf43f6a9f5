package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/clinia/xbulk/bulkx"
	"github.com/clinia/xbulk/bulkx/ingest"
	"github.com/clinia/xbulk/bulkx/routing"
	"github.com/clinia/xbulk/bulkx/script"
	"github.com/clinia/xbulk/bulkx/shard"
	"github.com/clinia/xbulk/bulkx/update"
	"github.com/clinia/xbulk/clusterx"
	"github.com/clinia/xbulk/errorx"
	"github.com/clinia/xbulk/loggerx"
	loggerxtest "github.com/clinia/xbulk/loggerx/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type creatorMock struct {
	mock.Mock
}

var _ IndexCreator = (*creatorMock)(nil)

func (m *creatorMock) CreateIndex(ctx context.Context, name string, timeout time.Duration) error {
	return m.Called(ctx, name, timeout).Error(0)
}

// failingDispatcher fails every request sent to one shard and forwards the others.
type failingDispatcher struct {
	next  shard.Dispatcher
	shard bulkx.ShardID
}

func (d *failingDispatcher) Dispatch(ctx context.Context, req *shard.Request) (*shard.Response, error) {
	if req.Shard == d.shard {
		return nil, bulkx.TransportError(req.Shard.String(), errors.New("connection reset by peer"))
	}
	return d.next.Dispatch(ctx, req)
}

// truncatingDispatcher drops the last item of every shard response, or the whole response
// when dropAll is set.
type truncatingDispatcher struct {
	next    shard.Dispatcher
	dropAll bool
}

func (d *truncatingDispatcher) Dispatch(ctx context.Context, req *shard.Request) (*shard.Response, error) {
	if d.dropAll {
		return nil, nil
	}
	resp, err := d.next.Dispatch(ctx, req)
	if err != nil {
		return nil, err
	}
	resp.Items = resp.Items[:len(resp.Items)-1]
	return resp, nil
}

func blockRetries(t *testing.T, reader sdkmetric.Reader) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "bulk.block_retries" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

type testEnv struct {
	l          *loggerx.Logger
	cluster    *clusterx.Service
	engine     *shard.MemoryEngine
	dispatcher shard.Dispatcher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	l := loggerxtest.NewTestLogger(t)

	cluster := clusterx.NewService(l, nil)
	t.Cleanup(cluster.Close)

	scripts, err := script.NewService(l, script.Config{CacheSize: 16})
	require.NoError(t, err)
	t.Cleanup(scripts.Close)

	engine := shard.NewMemoryEngine()
	exec := shard.NewExecutor(l, engine, update.NewResolver(l, scripts))
	return &testEnv{
		l:          l,
		cluster:    cluster,
		engine:     engine,
		dispatcher: shard.NewLocalDispatcher(l, exec),
	}
}

func (e *testEnv) coordinator(t *testing.T, opts ...Option) *Coordinator {
	t.Helper()
	c, err := New(e.l, e.cluster, e.dispatcher, opts...)
	require.NoError(t, err)
	return c
}

func (e *testEnv) apply(t *testing.T, ev clusterx.Event) {
	t.Helper()
	require.NoError(t, e.cluster.Submit(context.Background(), string(ev.Type), ev.Apply))
}

func doc(v string) json.RawMessage {
	return json.RawMessage(v)
}

func TestCoordinatorExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("should answer every item in request order", func(t *testing.T) {
		env := newTestEnv(t)
		env.apply(t, clusterx.Event{Type: clusterx.EventCreateIndex, Index: "products", NumberOfShards: 3})
		env.apply(t, clusterx.Event{Type: clusterx.EventCreateIndex, Index: "orders", NumberOfShards: 2})
		c := env.coordinator(t)

		req := bulkx.NewBulkRequest()
		for i := 0; i < 20; i++ {
			index := "products"
			if i%3 == 0 {
				index = "orders"
			}
			req.Add(bulkx.NewIndexOp(index, strconv.Itoa(i), doc(`{"n":`+strconv.Itoa(i)+`}`)), nil)
		}

		resp, err := c.Execute(ctx, req)
		require.NoError(t, err)
		require.Len(t, resp.Items, 20)
		assert.False(t, resp.HasFailures())
		assert.Equal(t, bulkx.NoIngestTook, resp.IngestTookInMillis)
		for i, item := range resp.Items {
			assert.Equal(t, i, item.ItemID)
			assert.Equal(t, strconv.Itoa(i), item.ID())
			assert.Equal(t, bulkx.OutcomeCreated, item.Result.Result)
		}
	})

	t.Run("should execute index, delete and scripted update in one batch", func(t *testing.T) {
		env := newTestEnv(t)
		c := env.coordinator(t)

		req := bulkx.NewBulkRequest()
		req.Add(bulkx.NewIndexOp("products", "1", doc(`{"name":"tent"}`)), nil)
		req.Add(bulkx.NewDeleteOp("products", "2"), nil)
		upd := bulkx.NewUpdateOp("products", "1")
		upd.Script = &bulkx.Script{Source: "'none'"}
		req.Add(upd, nil)

		resp, err := c.Execute(ctx, req)
		require.NoError(t, err)
		require.Len(t, resp.Items, 3)

		assert.Equal(t, bulkx.OpTypeIndex, resp.Items[0].OpType)
		assert.Equal(t, bulkx.OutcomeCreated, resp.Items[0].Result.Result)
		assert.Equal(t, int64(1), resp.Items[0].Result.Version)

		assert.Equal(t, bulkx.OpTypeDelete, resp.Items[1].OpType)
		require.True(t, resp.Items[1].IsFailed())
		assert.Equal(t, 404, resp.Items[1].Status())

		assert.Equal(t, bulkx.OpTypeUpdate, resp.Items[2].OpType)
		require.False(t, resp.Items[2].IsFailed())
		assert.Equal(t, bulkx.OutcomeNoop, resp.Items[2].Result.Result)
		assert.Equal(t, int64(1), resp.Items[2].Result.Version)

		assert.True(t, env.cluster.State().HasIndexOrAlias("products"))
	})

	t.Run("should not create indices that exist", func(t *testing.T) {
		env := newTestEnv(t)
		env.apply(t, clusterx.Event{Type: clusterx.EventCreateIndex, Index: "products"})
		env.apply(t, clusterx.Event{Type: clusterx.EventPutAlias, Alias: &clusterx.AliasMetadata{Name: "catalog", Indices: []string{"products"}}})
		creator := &creatorMock{}
		c := env.coordinator(t, WithIndexCreator(creator))

		req := bulkx.NewBulkRequest().
			Add(bulkx.NewIndexOp("products", "1", doc(`{}`)), nil).
			Add(bulkx.NewIndexOp("catalog", "2", doc(`{}`)), nil)

		resp, err := c.Execute(ctx, req)
		require.NoError(t, err)
		assert.False(t, resp.HasFailures())
		assert.Equal(t, "products", resp.Items[1].Index())
		creator.AssertNotCalled(t, "CreateIndex", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("should fail every item of an index that could not be created", func(t *testing.T) {
		env := newTestEnv(t)
		env.apply(t, clusterx.Event{Type: clusterx.EventCreateIndex, Index: "orders"})
		creator := &creatorMock{}
		creator.On("CreateIndex", mock.Anything, "products", bulkx.DefaultTimeout).
			Return(errorx.InternalErrorf("disk full")).Once()
		c := env.coordinator(t, WithIndexCreator(creator))

		req := bulkx.NewBulkRequest().
			Add(bulkx.NewIndexOp("products", "1", doc(`{}`)), nil).
			Add(bulkx.NewIndexOp("orders", "2", doc(`{}`)), nil).
			Add(bulkx.NewDeleteOp("products", "3"), nil)

		resp, err := c.Execute(ctx, req)
		require.NoError(t, err)
		require.Len(t, resp.Items, 3)
		for _, i := range []int{0, 2} {
			require.True(t, resp.Items[i].IsFailed())
			assert.Equal(t, 500, resp.Items[i].Status())
			assert.Contains(t, resp.Items[i].FailureMessage(), "disk full")
		}
		assert.False(t, resp.Items[1].IsFailed())
		creator.AssertExpectations(t)
	})

	t.Run("should retry an index creation while the creator is unavailable", func(t *testing.T) {
		env := newTestEnv(t)
		creator := &creatorMock{}
		creator.On("CreateIndex", mock.Anything, "products", mock.Anything).
			Return(errorx.UnavailableErrorf("master not discovered")).Once()
		creator.On("CreateIndex", mock.Anything, "products", mock.Anything).
			Run(func(args mock.Arguments) {
				assert.NoError(t, env.cluster.CreateIndex(ctx, "products", time.Second))
			}).
			Return(nil).Once()
		c := env.coordinator(t, WithIndexCreator(creator), WithAutoCreateRetry(3, time.Millisecond))

		resp, err := c.Execute(ctx, bulkx.NewBulkRequest().Add(bulkx.NewIndexOp("products", "1", doc(`{}`)), nil))
		require.NoError(t, err)
		assert.False(t, resp.HasFailures())
		creator.AssertExpectations(t)
	})

	t.Run("should treat an index created concurrently as created", func(t *testing.T) {
		env := newTestEnv(t)
		creator := &creatorMock{}
		creator.On("CreateIndex", mock.Anything, "products", mock.Anything).
			Run(func(args mock.Arguments) {
				assert.NoError(t, env.cluster.CreateIndex(ctx, "products", time.Second))
			}).
			Return(bulkx.ResourceAlreadyExistsError("products")).Once()
		c := env.coordinator(t, WithIndexCreator(creator))

		resp, err := c.Execute(ctx, bulkx.NewBulkRequest().Add(bulkx.NewIndexOp("products", "1", doc(`{}`)), nil))
		require.NoError(t, err)
		assert.False(t, resp.HasFailures())
	})

	t.Run("should fail items of indices the policy forbids to create", func(t *testing.T) {
		env := newTestEnv(t)
		policy, err := routing.ParseAutoCreatePolicy("+logs-*,-*")
		require.NoError(t, err)
		c := env.coordinator(t, WithAutoCreatePolicy(policy))

		req := bulkx.NewBulkRequest().
			Add(bulkx.NewIndexOp("products", "1", doc(`{}`)), nil).
			Add(bulkx.NewIndexOp("logs-2024", "2", doc(`{}`)), nil)

		resp, err := c.Execute(ctx, req)
		require.NoError(t, err)
		require.True(t, resp.Items[0].IsFailed())
		assert.Equal(t, bulkx.KindIndexNotFound, bulkx.KindOf(resp.Items[0].Failure.Cause))
		assert.Contains(t, resp.Items[0].FailureMessage(), "forbids automatic creation of the index")
		assert.False(t, resp.Items[1].IsFailed())
	})

	t.Run("should report a disabled auto creation policy", func(t *testing.T) {
		env := newTestEnv(t)
		env.apply(t, clusterx.Event{Type: clusterx.EventCreateIndex, Index: "orders"})
		policy, err := routing.ParseAutoCreatePolicy("false")
		require.NoError(t, err)
		creator := &creatorMock{}
		c := env.coordinator(t, WithAutoCreatePolicy(policy), WithIndexCreator(creator))

		req := bulkx.NewBulkRequest().
			Add(bulkx.NewIndexOp("products", "1", doc(`{}`)), nil).
			Add(bulkx.NewIndexOp("orders", "2", doc(`{}`)), nil)

		resp, err := c.Execute(ctx, req)
		require.NoError(t, err)
		require.True(t, resp.Items[0].IsFailed())
		assert.Equal(t, 404, resp.Items[0].Status())
		assert.Equal(t, "[index_not_found_exception] no such index [products] and [action.auto_create_index] is [false]", resp.Items[0].FailureMessage())
		assert.False(t, resp.Items[1].IsFailed())
		creator.AssertNotCalled(t, "CreateIndex", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("should fail only the items of a shard that could not be reached", func(t *testing.T) {
		env := newTestEnv(t)
		env.apply(t, clusterx.Event{Type: clusterx.EventCreateIndex, Index: "products"})
		env.apply(t, clusterx.Event{Type: clusterx.EventCreateIndex, Index: "orders"})
		env.dispatcher = &failingDispatcher{next: env.dispatcher, shard: bulkx.ShardID{Index: "orders", ID: 0}}
		c := env.coordinator(t)

		req := bulkx.NewBulkRequest().
			Add(bulkx.NewIndexOp("orders", "1", doc(`{}`)), nil).
			Add(bulkx.NewIndexOp("products", "2", doc(`{}`)), nil).
			Add(bulkx.NewIndexOp("orders", "3", doc(`{}`)), nil)

		resp, err := c.Execute(ctx, req)
		require.NoError(t, err)
		for _, i := range []int{0, 2} {
			item := resp.Items[i]
			require.True(t, item.IsFailed())
			assert.Equal(t, "orders", item.Index())
			assert.Equal(t, strconv.Itoa(i+1), item.ID())
			assert.Equal(t, 503, item.Status())
			assert.Equal(t, "[transport_exception] failed to execute bulk on shard [orders][0]", item.FailureMessage())
		}
		assert.False(t, resp.Items[1].IsFailed())
	})

	t.Run("should fail the items a shard response left unanswered", func(t *testing.T) {
		env := newTestEnv(t)
		env.apply(t, clusterx.Event{Type: clusterx.EventCreateIndex, Index: "products"})
		env.dispatcher = &truncatingDispatcher{next: env.dispatcher}
		c := env.coordinator(t)

		req := bulkx.NewBulkRequest().
			Add(bulkx.NewIndexOp("products", "1", doc(`{}`)), nil).
			Add(bulkx.NewIndexOp("products", "2", doc(`{}`)), nil)

		resp, err := c.Execute(ctx, req)
		require.NoError(t, err)
		require.Len(t, resp.Items, 2)
		assert.False(t, resp.Items[0].IsFailed())
		require.True(t, resp.Items[1].IsFailed())
		assert.Equal(t, 1, resp.Items[1].ItemID)
		assert.Equal(t, "2", resp.Items[1].ID())
		assert.Equal(t, bulkx.KindTransport, bulkx.KindOf(resp.Items[1].Failure.Cause))
		assert.Equal(t, 503, resp.Items[1].Status())
	})

	t.Run("should fail every item of a shard that returned no response", func(t *testing.T) {
		env := newTestEnv(t)
		env.apply(t, clusterx.Event{Type: clusterx.EventCreateIndex, Index: "products"})
		env.dispatcher = &truncatingDispatcher{next: env.dispatcher, dropAll: true}
		c := env.coordinator(t)

		req := bulkx.NewBulkRequest().
			Add(bulkx.NewIndexOp("products", "1", doc(`{}`)), nil).
			Add(bulkx.NewDeleteOp("products", "2"), nil)

		resp, err := c.Execute(ctx, req)
		require.NoError(t, err)
		require.Len(t, resp.Items, 2)
		for i, item := range resp.Items {
			assert.Equal(t, i, item.ItemID)
			require.True(t, item.IsFailed())
			assert.Equal(t, "[transport_exception] failed to execute bulk on shard [products][0]", item.FailureMessage())
		}
	})

	t.Run("should answer an update of a missing document with a not found failure", func(t *testing.T) {
		env := newTestEnv(t)
		env.apply(t, clusterx.Event{Type: clusterx.EventCreateIndex, Index: "products"})
		c := env.coordinator(t)

		upd := bulkx.NewUpdateOp("products", "missing")
		upd.Doc = doc(`{"name":"tent"}`)
		retried := bulkx.NewUpdateOp("products", "missing")
		retried.Doc = doc(`{"name":"tent"}`)
		retried.RetryOnConflict = 2

		resp, err := c.Execute(ctx, bulkx.NewBulkRequest().Add(upd, nil).Add(retried, nil))
		require.NoError(t, err)
		for _, item := range resp.Items {
			require.True(t, item.IsFailed())
			assert.Equal(t, bulkx.KindDocumentMissing, bulkx.KindOf(item.Failure.Cause))
			assert.Equal(t, 404, item.Status())
		}
	})

	t.Run("should keep the kind of a failing update script", func(t *testing.T) {
		env := newTestEnv(t)
		c := env.coordinator(t)

		upd := bulkx.NewUpdateOp("products", "1")
		upd.Script = &bulkx.Script{Source: "ctx._source.missing.field"}
		req := bulkx.NewBulkRequest().
			Add(bulkx.NewIndexOp("products", "1", doc(`{"name":"tent"}`)), nil).
			Add(upd, nil)

		resp, err := c.Execute(ctx, req)
		require.NoError(t, err)
		assert.False(t, resp.Items[0].IsFailed())
		require.True(t, resp.Items[1].IsFailed())
		assert.Equal(t, bulkx.KindScriptExecution, bulkx.KindOf(resp.Items[1].Failure.Cause))
		assert.NotEqual(t, 500, resp.Items[1].Status())
	})

	t.Run("should fail items of a blocked index", func(t *testing.T) {
		env := newTestEnv(t)
		env.apply(t, clusterx.Event{Type: clusterx.EventCreateIndex, Index: "products"})
		env.apply(t, clusterx.Event{Type: clusterx.EventCreateIndex, Index: "orders"})
		env.apply(t, clusterx.Event{Type: clusterx.EventAddBlock, Index: "orders", Block: &clusterx.IndexReadOnlyBlock})
		c := env.coordinator(t)

		req := bulkx.NewBulkRequest().
			Add(bulkx.NewIndexOp("orders", "1", doc(`{}`)), nil).
			Add(bulkx.NewIndexOp("products", "2", doc(`{}`)), nil)

		resp, err := c.Execute(ctx, req)
		require.NoError(t, err)
		require.True(t, resp.Items[0].IsFailed())
		assert.Equal(t, "[cluster_block_exception] blocked by: [index read-only (api)];", resp.Items[0].FailureMessage())
		assert.False(t, resp.Items[1].IsFailed())
	})

	t.Run("should fail the batch on a non retryable block", func(t *testing.T) {
		env := newTestEnv(t)
		env.apply(t, clusterx.Event{Type: clusterx.EventCreateIndex, Index: "products"})
		env.apply(t, clusterx.Event{Type: clusterx.EventAddBlock, Block: &clusterx.ReadOnlyBlock})
		c := env.coordinator(t)

		resp, err := c.Execute(ctx, bulkx.NewBulkRequest().Add(bulkx.NewIndexOp("products", "1", doc(`{}`)), nil))
		require.Error(t, err)
		assert.Nil(t, resp)
		assert.Equal(t, bulkx.KindClusterBlock, bulkx.KindOf(err))
		assert.True(t, errorx.IsFailedPreconditionError(err))
		assert.Equal(t, "[cluster_block_exception] blocked by: [cluster read-only (api)];", err.Error())
	})

	t.Run("should wait for a retryable block to clear", func(t *testing.T) {
		env := newTestEnv(t)
		env.apply(t, clusterx.Event{Type: clusterx.EventCreateIndex, Index: "products"})
		env.apply(t, clusterx.Event{Type: clusterx.EventAddBlock, Block: &clusterx.NoMasterBlockWrites})
		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		t.Cleanup(func() { _ = mp.Shutdown(ctx) })
		c := env.coordinator(t, WithMeterProvider(mp))

		type result struct {
			resp *bulkx.BulkResponse
			err  error
		}
		done := make(chan result, 1)
		go func() {
			resp, err := c.Execute(ctx, bulkx.NewBulkRequest().Add(bulkx.NewIndexOp("products", "1", doc(`{}`)), nil))
			done <- result{resp, err}
		}()

		require.Eventually(t, func() bool {
			return blockRetries(t, reader) > 0
		}, 5*time.Second, 5*time.Millisecond)
		select {
		case <-done:
			t.Fatal("bulk request completed while the cluster was blocked")
		default:
		}

		env.apply(t, clusterx.Event{Type: clusterx.EventRemoveBlock, Block: &clusterx.NoMasterBlockWrites})

		select {
		case r := <-done:
			require.NoError(t, r.err)
			assert.False(t, r.resp.HasFailures())
		case <-time.After(5 * time.Second):
			t.Fatal("bulk request did not complete after the block cleared")
		}
	})

	t.Run("should give up on a retryable block at the request timeout", func(t *testing.T) {
		env := newTestEnv(t)
		env.apply(t, clusterx.Event{Type: clusterx.EventCreateIndex, Index: "products"})
		env.apply(t, clusterx.Event{Type: clusterx.EventAddBlock, Block: &clusterx.NoMasterBlockWrites})
		c := env.coordinator(t)

		req := bulkx.NewBulkRequest().Add(bulkx.NewIndexOp("products", "1", doc(`{}`)), nil)
		req.Timeout = 20 * time.Millisecond

		_, err := c.Execute(ctx, req)
		require.Error(t, err)
		assert.Equal(t, bulkx.KindClusterBlock, bulkx.KindOf(err))
		assert.True(t, errorx.IsUnavailableError(err))
	})

	t.Run("should report a node closed while waiting on a block", func(t *testing.T) {
		env := newTestEnv(t)
		env.apply(t, clusterx.Event{Type: clusterx.EventCreateIndex, Index: "products"})
		env.apply(t, clusterx.Event{Type: clusterx.EventAddBlock, Block: &clusterx.NoMasterBlockWrites})
		c := env.coordinator(t)
		env.cluster.Close()

		_, err := c.Execute(ctx, bulkx.NewBulkRequest().Add(bulkx.NewIndexOp("products", "1", doc(`{}`)), nil))
		require.Error(t, err)
		assert.Equal(t, bulkx.KindNodeClosed, bulkx.KindOf(err))
	})

	t.Run("should reject an invalid request", func(t *testing.T) {
		env := newTestEnv(t)
		c := env.coordinator(t)

		_, err := c.Execute(ctx, bulkx.NewBulkRequest())
		require.Error(t, err)
		assert.Equal(t, bulkx.KindValidation, bulkx.KindOf(err))
		assert.Contains(t, err.Error(), "no requests added")
	})
}

func TestCoordinatorIngest(t *testing.T) {
	ctx := context.Background()

	newIngest := func(t *testing.T, env *testEnv) *ingest.Service {
		svc := ingest.NewService(env.l)
		require.NoError(t, svc.PutPipeline("tag", []byte(`{"processors":[{"set":{"field":"tagged","value":true}}]}`)))
		require.NoError(t, svc.PutPipeline("broken", []byte(`{"processors":[{"fail":{"message":"rejected by pipeline"}}]}`)))
		return svc
	}

	pipelined := func(id, pipeline string) *bulkx.IndexOp {
		op := bulkx.NewIndexOp("products", id, doc(`{"name":"tent"}`))
		op.Pipeline = pipeline
		return op
	}

	t.Run("should answer pipeline failures in place", func(t *testing.T) {
		env := newTestEnv(t)
		c := env.coordinator(t, WithIngest(newIngest(t, env)))

		req := bulkx.NewBulkRequest().
			Add(pipelined("1", "tag"), nil).
			Add(pipelined("2", "broken"), nil).
			Add(bulkx.NewDeleteOp("products", "1"), nil)

		resp, err := c.Execute(ctx, req)
		require.NoError(t, err)
		require.Len(t, resp.Items, 3)
		assert.GreaterOrEqual(t, resp.IngestTookInMillis, int64(0))

		for i, item := range resp.Items {
			assert.Equal(t, i, item.ItemID)
		}
		assert.Equal(t, bulkx.OutcomeCreated, resp.Items[0].Result.Result)
		require.True(t, resp.Items[1].IsFailed())
		assert.Contains(t, resp.Items[1].FailureMessage(), "rejected by pipeline")
		assert.Equal(t, bulkx.OutcomeDeleted, resp.Items[2].Result.Result)

		snap, err := env.engine.Get(ctx, bulkx.ShardID{Index: "products"}, "2")
		require.NoError(t, err)
		assert.Nil(t, snap)
	})

	t.Run("should not route anything when every item failed in ingest", func(t *testing.T) {
		env := newTestEnv(t)
		creator := &creatorMock{}
		c := env.coordinator(t, WithIngest(newIngest(t, env)), WithIndexCreator(creator))

		req := bulkx.NewBulkRequest().
			Add(pipelined("1", "broken"), nil).
			Add(pipelined("2", "broken"), nil)

		resp, err := c.Execute(ctx, req)
		require.NoError(t, err)
		require.Len(t, resp.Items, 2)
		for i, item := range resp.Items {
			assert.Equal(t, i, item.ItemID)
			assert.True(t, item.IsFailed())
		}
		creator.AssertNotCalled(t, "CreateIndex", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("should fail items referencing an unknown pipeline", func(t *testing.T) {
		env := newTestEnv(t)
		c := env.coordinator(t)

		resp, err := c.Execute(ctx, bulkx.NewBulkRequest().Add(pipelined("1", "missing"), nil))
		require.NoError(t, err)
		require.True(t, resp.Items[0].IsFailed())
		assert.Equal(t, "[illegal_argument_exception] pipeline with id [missing] does not exist", resp.Items[0].FailureMessage())
	})
}

func TestCoordinatorMetrics(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.apply(t, clusterx.Event{Type: clusterx.EventCreateIndex, Index: "products"})

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(ctx) })
	c := env.coordinator(t, WithMeterProvider(mp))

	req := bulkx.NewBulkRequest().
		Add(bulkx.NewIndexOp("products", "1", doc(`{}`)), nil).
		Add(bulkx.NewDeleteOp("products", "missing"), nil)
	_, err := c.Execute(ctx, req)
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	t.Run("should count items by outcome", func(t *testing.T) {
		counts := map[string]int64{}
		for _, sm := range rm.ScopeMetrics {
			for _, m := range sm.Metrics {
				if m.Name != "bulk.items" {
					continue
				}
				sum, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				for _, dp := range sum.DataPoints {
					outcome, _ := dp.Attributes.Value("outcome")
					counts[outcome.AsString()] += dp.Value
				}
			}
		}
		assert.Equal(t, map[string]int64{"created": 1, "failed": 1}, counts)
	})
}
