package arangox

import (
	"context"
	"os"
	"testing"

	arangoDriver "github.com/arangodb/go-driver"
	arangohttp "github.com/arangodb/go-driver/http"
	"github.com/stretchr/testify/require"
)

// newFixture recreates dbName on the server named by ARANGO_URL. Tests needing a server
// are skipped when it is not set.
func newFixture(t *testing.T, dbName string) (context.Context, arangoDriver.Database) {
	t.Helper()
	ctx := context.Background()

	dsnHost := os.Getenv("ARANGO_URL")
	if dsnHost == "" {
		t.Skip("ARANGO_URL is not set")
	}

	conn, err := arangohttp.NewConnection(arangohttp.ConnectionConfig{
		Endpoints: []string{dsnHost},
	})
	require.NoError(t, err)

	c, err := arangoDriver.NewClient(arangoDriver.ClientConfig{
		Connection: conn,
	})
	require.NoError(t, err)

	exists, err := c.DatabaseExists(ctx, dbName)
	require.NoError(t, err)
	if exists {
		db, err := c.Database(ctx, dbName)
		require.NoError(t, err)
		require.NoError(t, db.Remove(ctx))
	}

	db, err := c.CreateDatabase(ctx, dbName, &arangoDriver.CreateDatabaseOptions{})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Remove(context.Background())
	})

	return ctx, db
}
