package clusterx

import (
	"github.com/clinia/xbulk/bulkx"
	"github.com/clinia/xbulk/errorx"
	"github.com/samber/lo"
)

type EventType string

const (
	EventCreateIndex EventType = "create_index"
	EventDeleteIndex EventType = "delete_index"
	EventCloseIndex  EventType = "close_index"
	EventOpenIndex   EventType = "open_index"
	EventPutAlias    EventType = "put_alias"
	EventDeleteAlias EventType = "delete_alias"
	EventAddBlock    EventType = "add_block"
	EventRemoveBlock EventType = "remove_block"
)

// Event is a topology change as published by the control plane. Index scopes block events
// to one index; without it they are global.
type Event struct {
	Type            EventType      `json:"type"`
	Index           string         `json:"index,omitempty"`
	NumberOfShards  int            `json:"number_of_shards,omitempty"`
	RoutingRequired bool           `json:"routing_required,omitempty"`
	Alias           *AliasMetadata `json:"alias,omitempty"`
	Block           *Block         `json:"block,omitempty"`
}

// Apply returns s with e applied. s is modified in place.
func (e Event) Apply(s *State) (*State, error) {
	switch e.Type {
	case EventCreateIndex:
		if s.HasIndexOrAlias(e.Index) {
			return nil, bulkx.ResourceAlreadyExistsError(e.Index)
		}
		shards := e.NumberOfShards
		if shards <= 0 {
			shards = DefaultNumberOfShards
		}
		s.Metadata.Indices[e.Index] = &IndexMetadata{
			Name:            e.Index,
			State:           IndexStateOpen,
			NumberOfShards:  shards,
			RoutingRequired: e.RoutingRequired,
		}
	case EventDeleteIndex:
		if _, ok := s.Index(e.Index); !ok {
			return nil, bulkx.IndexNotFoundError(e.Index)
		}
		delete(s.Metadata.Indices, e.Index)
		delete(s.Blocks.Indices, e.Index)
		for name, a := range s.Metadata.Aliases {
			a.Indices = lo.Without(a.Indices, e.Index)
			if len(a.Indices) == 0 {
				delete(s.Metadata.Aliases, name)
			}
		}
	case EventCloseIndex, EventOpenIndex:
		im, ok := s.Index(e.Index)
		if !ok {
			return nil, bulkx.IndexNotFoundError(e.Index)
		}
		im.State = IndexStateOpen
		if e.Type == EventCloseIndex {
			im.State = IndexStateClose
		}
	case EventPutAlias:
		if e.Alias == nil || e.Alias.Name == "" {
			return nil, errorx.InvalidArgumentErrorf("alias is missing")
		}
		if _, ok := s.Index(e.Alias.Name); ok {
			return nil, bulkx.InvalidIndexNameError(e.Alias.Name, "an index exists with the same name as the alias")
		}
		for _, idx := range e.Alias.Indices {
			if _, ok := s.Index(idx); !ok {
				return nil, bulkx.IndexNotFoundError(idx)
			}
		}
		alias := *e.Alias
		s.Metadata.Aliases[alias.Name] = &alias
	case EventDeleteAlias:
		name := e.Index
		if e.Alias != nil {
			name = e.Alias.Name
		}
		if _, ok := s.Alias(name); !ok {
			return nil, errorx.NotFoundErrorf("aliases [%s] missing", name)
		}
		delete(s.Metadata.Aliases, name)
	case EventAddBlock:
		if e.Block == nil {
			return nil, errorx.InvalidArgumentErrorf("block is missing")
		}
		if e.Index == "" {
			s.Blocks.addGlobal(*e.Block)
		} else {
			s.Blocks.addIndex(e.Index, *e.Block)
		}
	case EventRemoveBlock:
		if e.Block == nil {
			return nil, errorx.InvalidArgumentErrorf("block is missing")
		}
		if e.Index == "" {
			s.Blocks.removeGlobal(e.Block.ID)
		} else {
			s.Blocks.removeIndex(e.Index, e.Block.ID)
		}
	default:
		return nil, errorx.InvalidArgumentErrorf("unknown topology event [%s]", e.Type)
	}
	return s, nil
}
