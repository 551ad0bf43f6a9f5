// Package arangox stores the documents of every shard in ArangoDB. Its schema is kept up
// to date with versioned migrations.
package arangox

import (
	"context"
	"math"
	"time"

	arangoDriver "github.com/arangodb/go-driver"
	arangohttp "github.com/arangodb/go-driver/http"
	"github.com/clinia/xbulk/errorx"
	"github.com/clinia/xbulk/loggerx"
	"github.com/clinia/xbulk/retryx"
	"go.opentelemetry.io/otel/attribute"
)

type Config struct {
	Endpoints []string `json:"endpoints"`
	Username  string   `json:"username"`
	Password  string   `json:"password"`
	Database  string   `json:"database"`
}

// Connect opens c.Database, creating it when it does not exist. It waits up to maxElapsed
// for the server to answer.
func Connect(ctx context.Context, l *loggerx.Logger, c Config, maxElapsed time.Duration) (arangoDriver.Database, error) {
	conn, err := arangohttp.NewConnection(arangohttp.ConnectionConfig{
		Endpoints: c.Endpoints,
	})
	if err != nil {
		return nil, errorx.InternalErrorf("failed to create arangodb connection: %s", err.Error()).WithOriginalError(err)
	}

	cc := arangoDriver.ClientConfig{Connection: conn}
	if c.Username != "" {
		cc.Authentication = arangoDriver.BasicAuthentication(c.Username, c.Password)
	}
	client, err := arangoDriver.NewClient(cc)
	if err != nil {
		return nil, errorx.InternalErrorf("failed to create arangodb client: %s", err.Error()).WithOriginalError(err)
	}

	var db arangoDriver.Database
	attempt := 0
	err = retryx.ExponentialRetry(func() error {
		attempt++
		exists, err := client.DatabaseExists(ctx, c.Database)
		if err != nil {
			l.Debug(ctx, "arangodb is not reachable yet", attribute.Int("attempt", attempt), attribute.String("error", err.Error()))
			return errorx.UnavailableErrorf("arangodb is not reachable: %s", err.Error()).WithOriginalError(err)
		}
		if exists {
			db, err = client.Database(ctx, c.Database)
		} else {
			db, err = client.CreateDatabase(ctx, c.Database, nil)
		}
		return err
	},
		retryx.WithRetryCount(math.MaxInt),
		retryx.WithMaxElapsedTime(maxElapsed),
		retryx.WithContext(ctx),
	)
	if err != nil {
		return nil, err
	}
	return db, nil
}
