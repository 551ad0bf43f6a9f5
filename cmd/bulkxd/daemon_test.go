package main

import (
	"context"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/clinia/xbulk/configx"
	"github.com/clinia/xbulk/errorx"
	"github.com/clinia/xbulk/testx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type itemResult struct {
	ID      string `json:"_id"`
	Version int64  `json:"_version"`
	Result  string `json:"result"`
	Status  int    `json:"status"`
	Get     *struct {
		Source map[string]any `json:"_source"`
	} `json:"get"`
	Error *struct {
		Type string `json:"type"`
	} `json:"error"`
}

type bulkResult struct {
	Errors bool                    `json:"errors"`
	Items  []map[string]itemResult `json:"items"`
}

func newTestDaemon(t *testing.T, values map[string]any) (*daemon, *testx.ConcurrentBuffer) {
	t.Helper()
	ctx := context.Background()

	base := map[string]any{
		"log.level":      "debug",
		"storage.engine": "memory",
		"ingest.pipelines": map[string]any{
			"tag": map[string]any{
				"processors": []any{
					map[string]any{"set": map[string]any{"field": "tagged", "value": true}},
				},
			},
		},
		"script.stored": map[string]any{
			"incr": "{'_source': merge(ctx._source, {'n': ctx._source.n + params.n})}",
		},
	}
	for k, v := range values {
		base[k] = v
	}

	conf, err := loadConfig(ctx, nil, nil, configx.DisableEnvLoading(), configx.WithValues(base))
	require.NoError(t, err)
	t.Cleanup(conf.Close)

	out := testx.NewConcurrentBuffer()
	d, err := newDaemon(ctx, conf, out)
	require.NoError(t, err)
	t.Cleanup(func() { d.close(context.Background()) })
	return d, out
}

func TestDaemon(t *testing.T) {
	t.Run("should run a bulk request end to end", func(t *testing.T) {
		d, _ := newTestDaemon(t, nil)

		res, body := testx.PostNDJSON[bulkResult](d.handler, "/products/_bulk?pipeline=tag", testx.NDJSON(
			`{"index":{"_id":"1"}}`,
			`{"n":1}`,
			`{"update":{"_id":"1","_source":true}}`,
			`{"script":{"id":"incr","params":{"n":2}}}`,
			`{"delete":{"_id":"missing"}}`,
		))
		require.Equal(t, http.StatusOK, res.Code)
		require.Len(t, body.Items, 3)

		assert.Equal(t, "created", body.Items[0]["index"].Result)
		assert.Equal(t, http.StatusCreated, body.Items[0]["index"].Status)

		updated := body.Items[1]["update"]
		assert.Equal(t, "updated", updated.Result)
		assert.EqualValues(t, 2, updated.Version)
		require.NotNil(t, updated.Get)
		assert.Equal(t, map[string]any{"n": float64(3), "tagged": true}, updated.Get.Source)

		missing := body.Items[2]["delete"]
		assert.Equal(t, http.StatusNotFound, missing.Status)
		require.NotNil(t, missing.Error)
		assert.Equal(t, "document_missing_exception", missing.Error.Type)
		assert.True(t, body.Errors)
	})

	t.Run("should update a single document", func(t *testing.T) {
		d, _ := newTestDaemon(t, nil)

		res, created := testx.PostJSON[itemResult](d.handler, "/products/_doc/1/_advanceupdate?doc_as_upsert=true",
			`{"doc":{"n":1}}`)
		require.Equal(t, http.StatusCreated, res.Code)
		assert.Equal(t, "created", created.Result)

		res, updated := testx.PostJSON[itemResult](d.handler, "/products/_doc/1/_advanceupdate?version=1&_source=true",
			`{"doc":{"n":2}}`)
		require.Equal(t, http.StatusOK, res.Code)
		assert.Equal(t, "updated", updated.Result)
		assert.EqualValues(t, 2, updated.Version)
		require.NotNil(t, updated.Get)
		assert.Equal(t, map[string]any{"n": float64(2)}, updated.Get.Source)

		res, _ = testx.PostJSON[itemResult](d.handler, "/products/_doc/1/_advanceupdate?version=1",
			`{"doc":{"n":3}}`)
		assert.Equal(t, http.StatusConflict, res.Code)

		res, _ = testx.PostJSON[itemResult](d.handler, "/products/_doc/2/_advanceupdate",
			`{"doc":{"n":3}}`)
		assert.Equal(t, http.StatusNotFound, res.Code)
	})

	t.Run("should reject auto creation when the policy forbids it", func(t *testing.T) {
		d, _ := newTestDaemon(t, map[string]any{"bulk.auto_create_index": "false"})

		res, body := testx.PostNDJSON[bulkResult](d.handler, "/_bulk", testx.NDJSON(
			`{"index":{"_index":"products","_id":"1"}}`,
			`{"n":1}`,
		))
		require.Equal(t, http.StatusOK, res.Code)
		require.Len(t, body.Items, 1)
		assert.True(t, body.Errors)
		require.NotNil(t, body.Items[0]["index"].Error)
		assert.Equal(t, "index_not_found_exception", body.Items[0]["index"].Error.Type)
	})

	t.Run("should expose health and metrics", func(t *testing.T) {
		d, _ := newTestDaemon(t, nil)

		res, _ := testx.GetJSON[map[string]any](d.handler, "/health")
		assert.Equal(t, http.StatusOK, res.Code)

		testx.PostNDJSON[bulkResult](d.handler, "/products/_bulk", testx.NDJSON(`{"index":{}}`, `{}`))
		metrics := testx.Get(d.handler, "/metrics")
		require.Equal(t, http.StatusOK, metrics.Code)
		assert.Contains(t, metrics.Body.String(), "xbulk_http_requests_total")

		d.cluster.Close()
		res, _ = testx.GetJSON[map[string]any](d.handler, "/health")
		assert.Equal(t, http.StatusServiceUnavailable, res.Code)
	})

	t.Run("should honor feature flags", func(t *testing.T) {
		d, _ := newTestDaemon(t, map[string]any{"feature_flags.wait_for_active_shards": true})

		res, _ := testx.PostNDJSON[bulkResult](d.handler, "/products/_bulk?wait_for_active_shards=1", testx.NDJSON(`{"index":{}}`, `{}`))
		assert.Equal(t, http.StatusOK, res.Code)
	})

	t.Run("should reject an unknown storage engine", func(t *testing.T) {
		_, err := loadConfig(context.Background(), nil, nil, configx.DisableEnvLoading(), configx.WithValue("storage.engine", "rocksdb"))
		require.Error(t, err)
		assert.True(t, errorx.IsInvalidArgumentError(err))
	})

	t.Run("should fail on an invalid stored script", func(t *testing.T) {
		ctx := context.Background()
		conf, err := loadConfig(ctx, nil, nil, configx.DisableEnvLoading(), configx.WithValue("script.stored", map[string]any{"bad": "1 +"}))
		require.NoError(t, err)
		t.Cleanup(conf.Close)

		_, err = newDaemon(ctx, conf, testx.NewConcurrentBuffer())
		require.Error(t, err)
		assert.True(t, errorx.IsInvalidArgumentError(err))
		assert.Contains(t, err.Error(), "stored script [bad] is invalid")
	})

	t.Run("should fail on an invalid pipeline", func(t *testing.T) {
		ctx := context.Background()
		conf, err := loadConfig(ctx, nil, nil, configx.DisableEnvLoading(), configx.WithValue("ingest.pipelines", map[string]any{
			"broken": map[string]any{"processors": []any{map[string]any{"explode": map[string]any{}}}},
		}))
		require.NoError(t, err)
		t.Cleanup(conf.Close)

		_, err = newDaemon(ctx, conf, testx.NewConcurrentBuffer())
		require.Error(t, err)
	})
}

func TestServe(t *testing.T) {
	t.Run("should serve until the context is done", func(t *testing.T) {
		lis, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := lis.Addr().String()
		require.NoError(t, lis.Close())

		d, out := newTestDaemon(t, map[string]any{"http.address": addr})

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- d.serve(ctx) }()

		require.Eventually(t, func() bool {
			res, err := http.Get("http://" + addr + "/health")
			if err != nil {
				return false
			}
			defer res.Body.Close()
			return res.StatusCode == http.StatusOK
		}, 5*time.Second, 10*time.Millisecond)

		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("server did not stop")
		}
		assert.True(t, strings.Contains(out.String(), "shutting down"))
	})
}
