package shard

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/clinia/xbulk/bulkx"
	"github.com/clinia/xbulk/bulkx/update"
)

type storedDoc struct {
	version     int64
	seqNo       int64
	primaryTerm int64
	routing     string
	parent      string
	source      []byte
}

func (d *storedDoc) state() *DocState {
	if d == nil {
		return nil
	}
	return &DocState{Version: d.version, SeqNo: d.seqNo, PrimaryTerm: d.primaryTerm}
}

type shardStore struct {
	seqNo int64
	docs  map[string]*storedDoc
}

// MemoryEngine keeps every shard in memory. It implements the internal, external,
// external_gte and force version types.
type MemoryEngine struct {
	mu          sync.RWMutex
	primaryTerm int64
	shards      map[bulkx.ShardID]*shardStore
}

var _ Engine = (*MemoryEngine)(nil)

func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{
		primaryTerm: 1,
		shards:      map[bulkx.ShardID]*shardStore{},
	}
}

func (e *MemoryEngine) store(shard bulkx.ShardID) *shardStore {
	s, ok := e.shards[shard]
	if !ok {
		s = &shardStore{seqNo: -1, docs: map[string]*storedDoc{}}
		e.shards[shard] = s
	}
	return s
}

func (e *MemoryEngine) Get(_ context.Context, shard bulkx.ShardID, id string) (*update.Snapshot, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s, ok := e.shards[shard]
	if !ok {
		return nil, nil
	}
	d, ok := s.docs[id]
	if !ok {
		return nil, nil
	}
	return &update.Snapshot{
		Index:       shard.Index,
		Type:        bulkx.DefaultType,
		ID:          id,
		Version:     d.version,
		SeqNo:       d.seqNo,
		PrimaryTerm: d.primaryTerm,
		Routing:     d.routing,
		Parent:      d.parent,
		Source:      slices.Clone(d.source),
	}, nil
}

func (e *MemoryEngine) Index(_ context.Context, shard bulkx.ShardID, op *bulkx.IndexOp, pre Precondition) (*WriteOutcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.store(shard)
	cur := s.docs[op.ID]
	if op.Create && cur != nil {
		return nil, bulkx.VersionConflictError(shard.Index, op.Type, op.ID, fmt.Sprintf("document already exists (current version [%d])", cur.version))
	}
	if err := CheckPrecondition(shard, op.Type, op.ID, cur.state(), pre); err != nil {
		return nil, err
	}
	version, err := NextVersion(shard, op.Type, op.ID, cur.state(), op.Version, op.VersionType)
	if err != nil {
		return nil, err
	}

	s.seqNo++
	s.docs[op.ID] = &storedDoc{
		version:     version,
		seqNo:       s.seqNo,
		primaryTerm: e.primaryTerm,
		routing:     op.Routing,
		parent:      op.Parent,
		source:      slices.Clone(op.Source),
	}
	return &WriteOutcome{Version: version, SeqNo: s.seqNo, PrimaryTerm: e.primaryTerm, Created: cur == nil}, nil
}

func (e *MemoryEngine) Delete(_ context.Context, shard bulkx.ShardID, op *bulkx.DeleteOp, pre Precondition) (*WriteOutcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.store(shard)
	cur := s.docs[op.ID]
	if err := CheckPrecondition(shard, op.Type, op.ID, cur.state(), pre); err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, MissingDocumentError(shard, op)
	}
	version, err := NextVersion(shard, op.Type, op.ID, cur.state(), op.Version, op.VersionType)
	if err != nil {
		return nil, err
	}

	s.seqNo++
	delete(s.docs, op.ID)
	return &WriteOutcome{Version: version, SeqNo: s.seqNo, PrimaryTerm: e.primaryTerm, Found: true}, nil
}

func (e *MemoryEngine) Refresh(context.Context, bulkx.ShardID) error {
	return nil
}
