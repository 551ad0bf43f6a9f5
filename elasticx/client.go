// Package elasticx backs the bulk coordinator with an Elasticsearch cluster: documents are
// stored through the document APIs, missing indices are created through the index API and
// the topology is loaded from the cluster state.
package elasticx

import (
	"context"
	"math"
	"time"

	"github.com/clinia/xbulk/errorx"
	"github.com/clinia/xbulk/loggerx"
	"github.com/clinia/xbulk/retryx"
	"github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/esapi"
	"go.opentelemetry.io/otel/attribute"
)

// Client provides access to a single Elastic server, or an entire cluster of Elastic servers.
type Client struct {
	l  *loggerx.Logger
	es esapi.Transport
}

// NewClient creates a new Client based on the given config.
func NewClient(l *loggerx.Logger, config elasticsearch.Config) (*Client, error) {
	es, err := elasticsearch.NewClient(config)
	if err != nil {
		return nil, errorx.InternalErrorf("failed to create elasticsearch client: %s", err.Error()).WithOriginalError(err)
	}
	return &Client{l: l, es: es}, nil
}

// Init waits for the cluster to answer. Attempts are bounded by maxElapsed only.
func (c *Client) Init(ctx context.Context, maxElapsed time.Duration) error {
	attempt := 0
	return retryx.ExponentialRetry(func() error {
		attempt++
		res, err := esapi.PingRequest{}.Do(ctx, c.es)
		if err != nil {
			c.l.Debug(ctx, "elasticsearch is not reachable yet", attribute.Int("attempt", attempt), attribute.String("error", err.Error()))
			return errorx.UnavailableErrorf("elasticsearch is not reachable: %s", err.Error()).WithOriginalError(err)
		}
		defer res.Body.Close()

		if res.IsError() {
			return withElasticError(res, "", "")
		}
		return nil
	},
		retryx.WithRetryCount(math.MaxInt),
		retryx.WithMaxElapsedTime(maxElapsed),
		retryx.WithContext(ctx),
	)
}
