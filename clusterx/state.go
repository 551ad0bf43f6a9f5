// Package clusterx holds the topology the bulk coordinator routes against: indices,
// aliases and blocks, versioned and observable.
package clusterx

import (
	"maps"
	"slices"
)

type IndexState string

const (
	IndexStateOpen  IndexState = "open"
	IndexStateClose IndexState = "close"
)

type IndexMetadata struct {
	Name            string     `json:"name"`
	State           IndexState `json:"state"`
	NumberOfShards  int        `json:"number_of_shards"`
	RoutingRequired bool       `json:"routing_required,omitempty"`
}

// AliasMetadata points a name at one or more indices. IndexRouting, when set, is the
// routing used for writes through the alias.
type AliasMetadata struct {
	Name         string   `json:"name"`
	Indices      []string `json:"indices"`
	IndexRouting string   `json:"index_routing,omitempty"`
}

type Metadata struct {
	Indices map[string]*IndexMetadata `json:"indices"`
	Aliases map[string]*AliasMetadata `json:"aliases"`
}

// State is an immutable snapshot of the topology. Updates go through Service.Submit which
// works on a Clone.
type State struct {
	Version  int64    `json:"version"`
	Metadata Metadata `json:"metadata"`
	Blocks   Blocks   `json:"blocks"`
}

func NewState() *State {
	return &State{
		Metadata: Metadata{
			Indices: map[string]*IndexMetadata{},
			Aliases: map[string]*AliasMetadata{},
		},
		Blocks: Blocks{Indices: map[string][]Block{}},
	}
}

func (s *State) Clone() *State {
	out := &State{
		Version: s.Version,
		Metadata: Metadata{
			Indices: make(map[string]*IndexMetadata, len(s.Metadata.Indices)),
			Aliases: make(map[string]*AliasMetadata, len(s.Metadata.Aliases)),
		},
		Blocks: Blocks{
			Global:  slices.Clone(s.Blocks.Global),
			Indices: make(map[string][]Block, len(s.Blocks.Indices)),
		},
	}
	for k, v := range s.Metadata.Indices {
		im := *v
		out.Metadata.Indices[k] = &im
	}
	for k, v := range s.Metadata.Aliases {
		am := *v
		am.Indices = slices.Clone(v.Indices)
		out.Metadata.Aliases[k] = &am
	}
	for k, v := range s.Blocks.Indices {
		out.Blocks.Indices[k] = slices.Clone(v)
	}
	return out
}

func (s *State) Index(name string) (*IndexMetadata, bool) {
	im, ok := s.Metadata.Indices[name]
	return im, ok
}

func (s *State) Alias(name string) (*AliasMetadata, bool) {
	am, ok := s.Metadata.Aliases[name]
	return am, ok
}

// HasIndexOrAlias reports whether name is taken by an index or an alias.
func (s *State) HasIndexOrAlias(name string) bool {
	_, isIndex := s.Metadata.Indices[name]
	_, isAlias := s.Metadata.Aliases[name]
	return isIndex || isAlias
}

// IndexNames returns the sorted names of every index.
func (s *State) IndexNames() []string {
	return slices.Sorted(maps.Keys(s.Metadata.Indices))
}
