package arangox

import (
	"context"
	"testing"

	arangoDriver "github.com/arangodb/go-driver"
	"github.com/clinia/xbulk/assertx"
	loggerxtest "github.com/clinia/xbulk/loggerx/test"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context, arangoDriver.Database) error {
	return nil
}

func TestNewMigrator(t *testing.T) {
	t.Run("should panic when passing migrations with conflicting versions", func(t *testing.T) {
		assert.PanicsWithValue(t, "duplicated migration version 1", func() {
			NewMigrator(NewMigratorOptions{
				Package: "package-1",
				Logger:  loggerxtest.NewTestLogger(t),
				Migrations: Migrations{
					{Version: 1, Up: noop, Down: noop},
					{Version: 1, Up: noop, Down: noop},
				},
			})
		})
	})
}

func TestIndexType(t *testing.T) {
	t.Run("should parse index types", func(t *testing.T) {
		it, err := ParseIndexType(" time_to_live ")
		require.NoError(t, err)
		assert.Equal(t, IndexTypeTTL, it)

		_, err = ParseIndexType("geo")
		assert.Error(t, err)
	})

	t.Run("should round trip through JSON", func(t *testing.T) {
		b, err := IndexTypePersistent.MarshalJSON()
		require.NoError(t, err)
		assert.Equal(t, `"PERSISTENT"`, string(b))

		var it IndexType
		require.NoError(t, it.UnmarshalJSON([]byte(`"TIME_TO_LIVE"`)))
		assert.Equal(t, IndexTypeTTL, it)
	})
}

func TestMigration(t *testing.T) {
	ctx, db := newFixture(t, "test_migration")
	l := loggerxtest.NewTestLogger(t)

	fetch := func(t *testing.T, pkg string) []versionRecord {
		cur, err := db.Query(ctx, `FOR m IN @@collection FILTER m.package == @pkg RETURN m`, map[string]interface{}{
			"@collection": DefaultMigrationsCollection,
			"pkg":         pkg,
		})
		require.NoError(t, err)
		defer cur.Close()

		var out []versionRecord
		for cur.HasMore() {
			var rec versionRecord
			_, err := cur.ReadDocument(ctx, &rec)
			require.NoError(t, err)
			out = append(out, rec)
		}
		return out
	}

	t.Run("should apply the same version in multiple packages", func(t *testing.T) {
		for _, pkg := range []string{"package-1", "package-2"} {
			m := NewMigrator(NewMigratorOptions{
				Database:   db,
				Package:    pkg,
				Logger:     l,
				Migrations: Migrations{{Version: 1, Description: "initial " + pkg, Up: noop, Down: noop}},
			})
			require.NoError(t, m.Up(ctx, AllAvailable))
		}

		assertx.ElementsMatch(t, []versionRecord{
			{Version: 1, Package: "package-1", Description: "initial package-1"},
		}, fetch(t, "package-1"), cmpopts.IgnoreFields(versionRecord{}, "Timestamp"))
		assert.Len(t, fetch(t, "package-2"), 1)
	})

	t.Run("should up and down in batches", func(t *testing.T) {
		applied := map[uint]bool{}
		mig := func(v uint) Migration {
			return Migration{
				Version: v,
				Up: func(context.Context, arangoDriver.Database) error {
					applied[v] = true
					return nil
				},
				Down: func(context.Context, arangoDriver.Database) error {
					delete(applied, v)
					return nil
				},
			}
		}
		m := NewMigrator(NewMigratorOptions{
			Database:   db,
			Package:    "package-3",
			Logger:     l,
			Migrations: Migrations{mig(3), mig(1), mig(2)},
		})

		require.NoError(t, m.Up(ctx, 2))
		cur, latest, _, err := m.Version(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint(2), cur)
		assert.Equal(t, uint(3), latest)

		require.NoError(t, m.Up(ctx, AllAvailable))
		assert.Len(t, fetch(t, "package-3"), 3)

		require.NoError(t, m.Down(ctx, 1))
		assert.Equal(t, map[uint]bool{1: true}, applied)
		assert.Len(t, fetch(t, "package-3"), 1)
	})

	t.Run("should not apply anything in dry run mode", func(t *testing.T) {
		called := false
		m := NewMigrator(NewMigratorOptions{
			Database: db,
			Package:  "package-4",
			Logger:   l,
			DryRun:   true,
			Migrations: Migrations{{Version: 1, Up: func(context.Context, arangoDriver.Database) error {
				called = true
				return nil
			}}},
		})

		require.NoError(t, m.Up(ctx, AllAvailable))
		assert.False(t, called)
		assert.Empty(t, fetch(t, "package-4"))
	})
}
