package elasticx

import (
	"context"
	"time"

	"github.com/clinia/xbulk/bulkx"
	"github.com/elastic/go-elasticsearch/v9/esapi"
	"go.opentelemetry.io/otel/attribute"
)

// IndexCreator creates the indices a bulk request writes to but that do not exist yet.
type IndexCreator struct {
	c *Client
}

func NewIndexCreator(c *Client) *IndexCreator {
	return &IndexCreator{c: c}
}

// CreateIndex creates index with the cluster defaults. It fails with an already exists
// error when the index was created in the meantime.
func (ic *IndexCreator) CreateIndex(ctx context.Context, index string, timeout time.Duration) error {
	res, err := esapi.IndicesCreateRequest{
		Index:   index,
		Timeout: timeout,
	}.Do(ctx, ic.c.es)
	if err != nil {
		return bulkx.TransportError("["+index+"]", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return withElasticError(res, index, "")
	}
	ic.c.l.Info(ctx, "created index", attribute.String("index", index))
	return nil
}
