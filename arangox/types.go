package arangox

import (
	arangoDriver "github.com/arangodb/go-driver"
)

type CollectionParam struct {
	Name    string
	Options *arangoDriver.CreateCollectionOptions
	Indexes []IndexParam
}

type IndexParam struct {
	Type                   IndexType
	Fields                 []string
	ExpireAfter            int
	PersistentIndexOptions *arangoDriver.EnsurePersistentIndexOptions
	TTLIndexOptions        *arangoDriver.EnsureTTLIndexOptions
}
