package arangox

import (
	"context"
	"sort"

	arangoDriver "github.com/arangodb/go-driver"
)

// MigrationFunc is used to define actions to be performed for a migration.
type MigrationFunc func(ctx context.Context, db arangoDriver.Database) error

// Migration is a single versioned change to the database. Version must be unique within a
// package. Down reverts what Up did.
type Migration struct {
	Version     uint
	Description string
	Up          MigrationFunc
	Down        MigrationFunc
}

type Migrations []Migration

func (ms Migrations) Sort() {
	sort.Slice(ms, func(i, j int) bool {
		return ms[i].Version < ms[j].Version
	})
}
