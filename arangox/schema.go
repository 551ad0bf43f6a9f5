package arangox

import (
	"context"

	arangoDriver "github.com/arangodb/go-driver"
	"github.com/clinia/xbulk/loggerx"
)

const (
	DocumentsCollection = "documents"
	SequencesCollection = "sequences"

	migrationsPackage = "xbulk/engine"
)

// EngineMigrations create the collections used by Engine.
var EngineMigrations = Migrations{
	{
		Version:     1,
		Description: "create the documents collection",
		Up: func(ctx context.Context, db arangoDriver.Database) error {
			_, err := CreateCollection(ctx, db, CollectionParam{
				Name: DocumentsCollection,
				Indexes: []IndexParam{{
					Type:   IndexTypePersistent,
					Fields: []string{"index", "shard"},
				}},
			})
			return err
		},
		Down: func(ctx context.Context, db arangoDriver.Database) error {
			return DropCollection(ctx, db, DocumentsCollection)
		},
	},
	{
		Version:     2,
		Description: "create the per shard sequence numbers collection",
		Up: func(ctx context.Context, db arangoDriver.Database) error {
			_, err := CreateCollection(ctx, db, CollectionParam{Name: SequencesCollection})
			return err
		},
		Down: func(ctx context.Context, db arangoDriver.Database) error {
			return DropCollection(ctx, db, SequencesCollection)
		},
	},
}

// Migrate brings the engine collections of db to the latest version.
func Migrate(ctx context.Context, l *loggerx.Logger, db arangoDriver.Database) error {
	return NewMigrator(NewMigratorOptions{
		Database:   db,
		Package:    migrationsPackage,
		Migrations: EngineMigrations,
		Logger:     l,
	}).Up(ctx, AllAvailable)
}
