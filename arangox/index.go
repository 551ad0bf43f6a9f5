package arangox

import (
	"context"
	"encoding/json"
	"strings"

	arangoDriver "github.com/arangodb/go-driver"
	"github.com/clinia/xbulk/errorx"
)

type IndexType int

const (
	IndexTypePersistent IndexType = iota
	IndexTypeTTL
)

var (
	IndexType_name = map[int]string{
		0: "PERSISTENT",
		1: "TIME_TO_LIVE",
	}
	IndexType_value = map[string]int{
		"PERSISTENT":   0,
		"TIME_TO_LIVE": 1,
	}
)

func (u IndexType) String() string {
	return IndexType_name[int(u)]
}

func ParseIndexType(s string) (IndexType, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	value, ok := IndexType_value[s]
	if !ok {
		return IndexType(0), errorx.InvalidArgumentErrorf("%q is not a valid index type", s)
	}

	return IndexType(value), nil
}

func (u IndexType) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

func (u *IndexType) UnmarshalJSON(data []byte) (err error) {
	var indexType string
	if err := json.Unmarshal(data, &indexType); err != nil {
		return err
	}

	if *u, err = ParseIndexType(indexType); err != nil {
		return err
	}

	return nil
}

// CreateCollection creates the collection of p when it is missing, then ensures its indexes.
func CreateCollection(ctx context.Context, db arangoDriver.Database, p CollectionParam) (arangoDriver.Collection, error) {
	exists, err := db.CollectionExists(ctx, p.Name)
	if err != nil {
		return nil, err
	}

	var col arangoDriver.Collection
	if exists {
		col, err = db.Collection(ctx, p.Name)
	} else {
		col, err = db.CreateCollection(ctx, p.Name, p.Options)
	}
	if err != nil {
		return nil, err
	}

	return col, MigrateIndexes(ctx, col, p.Indexes)
}

func MigrateIndexes(ctx context.Context, col arangoDriver.Collection, indexes []IndexParam) error {
	for _, idx := range indexes {
		var err error
		switch idx.Type {
		case IndexTypePersistent:
			_, _, err = col.EnsurePersistentIndex(ctx, idx.Fields, idx.PersistentIndexOptions)
		case IndexTypeTTL:
			_, _, err = col.EnsureTTLIndex(ctx, idx.Fields[0], idx.ExpireAfter, idx.TTLIndexOptions)
		}

		if err != nil {
			return err
		}
	}

	return nil
}

// DropCollection removes the collection when it exists.
func DropCollection(ctx context.Context, db arangoDriver.Database, name string) error {
	exists, err := db.CollectionExists(ctx, name)
	if err != nil || !exists {
		return err
	}
	col, err := db.Collection(ctx, name)
	if err != nil {
		return err
	}
	return col.Remove(ctx)
}
