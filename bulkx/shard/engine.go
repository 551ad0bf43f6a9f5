// Package shard applies the items routed to one shard to a storage engine.
package shard

import (
	"context"

	"github.com/clinia/xbulk/bulkx"
	"github.com/clinia/xbulk/bulkx/update"
)

// Precondition restricts a write to the document at a known sequence number and primary
// term. IfSeqNo is bulkx.UnassignedSeqNo when the write is unconditional.
type Precondition struct {
	IfSeqNo       int64
	IfPrimaryTerm int64
}

var NoPrecondition = Precondition{IfSeqNo: bulkx.UnassignedSeqNo}

func (p Precondition) IsSet() bool {
	return p.IfSeqNo != bulkx.UnassignedSeqNo
}

// WriteOutcome is the state of a document after a successful write.
type WriteOutcome struct {
	Version     int64
	SeqNo       int64
	PrimaryTerm int64
	// Created is set when an index created the document. Found is set when a delete
	// removed one.
	Created bool
	Found   bool
}

// Engine is the storage of the documents of every shard. Writes that do not match the
// version or the precondition fail with a version conflict error. Deleting a missing
// document fails with a document missing error.
type Engine interface {
	// Get returns nil and no error when the document does not exist.
	Get(ctx context.Context, shard bulkx.ShardID, id string) (*update.Snapshot, error)
	Index(ctx context.Context, shard bulkx.ShardID, op *bulkx.IndexOp, pre Precondition) (*WriteOutcome, error)
	Delete(ctx context.Context, shard bulkx.ShardID, op *bulkx.DeleteOp, pre Precondition) (*WriteOutcome, error)
	Refresh(ctx context.Context, shard bulkx.ShardID) error
}
