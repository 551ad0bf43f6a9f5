// Package routing resolves the concrete index and the shard of every bulk item.
package routing

import (
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/clinia/xbulk/bulkx"
	"github.com/clinia/xbulk/clusterx"
	"github.com/segmentio/ksuid"
)

type Option func(*Resolver)

// WithIDGeneration lets index and create items without an id get a generated one.
func WithIDGeneration(allow bool) Option {
	return func(r *Resolver) {
		r.allowIDGeneration = allow
	}
}

// WithIDGenerator replaces the generator of document ids.
func WithIDGenerator(gen func() string) Option {
	return func(r *Resolver) {
		r.newID = gen
	}
}

// Resolver resolves items against one topology snapshot. It caches the concrete index of
// every name it sees and must not outlive the routing pass it was created for.
type Resolver struct {
	state             *clusterx.State
	allowIDGeneration bool
	newID             func() string
	concrete          map[string]string
}

func NewResolver(state *clusterx.State, opts ...Option) *Resolver {
	r := &Resolver{
		state:    state,
		newID:    func() string { return ksuid.New().String() },
		concrete: map[string]string{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ConcreteIndex returns the index name points to, following single index aliases.
func (r *Resolver) ConcreteIndex(name string) (string, error) {
	if c, ok := r.concrete[name]; ok {
		return c, nil
	}

	concrete := name
	if alias, ok := r.state.Alias(name); ok {
		if len(alias.Indices) != 1 {
			return "", bulkx.IllegalArgumentError("Alias [%s] has more than one indices associated with it [[%s]], can't execute a single index op", name, strings.Join(alias.Indices, ", "))
		}
		concrete = alias.Indices[0]
	}

	im, ok := r.state.Index(concrete)
	if !ok {
		return "", bulkx.IndexNotFoundError(name)
	}
	if im.State == clusterx.IndexStateClose {
		return "", bulkx.IndexClosedError(concrete)
	}

	r.concrete[name] = concrete
	return concrete, nil
}

// ResolveIfAbsent resolves the index of op and rewrites op to target it.
func (r *Resolver) ResolveIfAbsent(op bulkx.Op) (string, error) {
	concrete, err := r.ConcreteIndex(op.IndexName())
	if err != nil {
		return "", err
	}
	if concrete != op.IndexName() {
		op.SetIndexName(concrete)
	}
	return concrete, nil
}

// ResolveRouting completes the routing of op, which must already target concrete: alias
// index routing, required routing and id generation.
func (r *Resolver) ResolveRouting(op bulkx.Op, alias, concrete string) error {
	if a, ok := r.state.Alias(alias); ok && a.IndexRouting != "" {
		switch op.RoutingKey() {
		case "", a.IndexRouting:
			op.SetRoutingKey(a.IndexRouting)
		default:
			return bulkx.IllegalArgumentError("Alias [%s] has index routing associated with it [%s], and was provided with routing value [%s], rejecting operation", alias, a.IndexRouting, op.RoutingKey())
		}
	}

	im, _ := r.state.Index(concrete)
	if im != nil && im.RoutingRequired && op.RoutingKey() == "" {
		return bulkx.RoutingMissingError(concrete, op.TypeName(), op.DocID())
	}

	if io, ok := op.(*bulkx.IndexOp); ok && io.ID == "" {
		if !r.allowIDGeneration {
			return bulkx.ValidationError("id is missing")
		}
		io.ID = r.newID()
		io.AutoGeneratedID = true
	}
	return nil
}

// Shard returns the shard of concrete holding the document with the given id and routing.
func (r *Resolver) Shard(concrete, id, routing string) (bulkx.ShardID, error) {
	im, ok := r.state.Index(concrete)
	if !ok {
		return bulkx.ShardID{}, bulkx.IndexNotFoundError(concrete)
	}
	return bulkx.ShardID{Index: concrete, ID: ShardNum(id, routing, im.NumberOfShards)}, nil
}

// ShardNum hashes routing, or id when routing is empty, onto one of numberOfShards shards.
func ShardNum(id, routing string, numberOfShards int) int {
	if numberOfShards <= 1 {
		return 0
	}
	key := routing
	if key == "" {
		key = id
	}
	return int(xxhash.Sum64String(key) % uint64(numberOfShards))
}
