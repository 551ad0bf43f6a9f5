package shard

import (
	"fmt"

	"github.com/clinia/xbulk/bulkx"
)

// DocState is the versioning state of a stored document. Engines pass nil for a missing
// document.
type DocState struct {
	Version     int64
	SeqNo       int64
	PrimaryTerm int64
}

// CheckPrecondition fails with a version conflict when pre is set and cur is missing or at
// another sequence number or primary term.
func CheckPrecondition(shard bulkx.ShardID, typ, id string, cur *DocState, pre Precondition) error {
	if !pre.IsSet() {
		return nil
	}
	if cur == nil {
		return bulkx.VersionConflictError(shard.Index, typ, id, fmt.Sprintf("required seqNo [%d], primary term [%d] but no document was found", pre.IfSeqNo, pre.IfPrimaryTerm))
	}
	if cur.SeqNo != pre.IfSeqNo || cur.PrimaryTerm != pre.IfPrimaryTerm {
		return bulkx.VersionConflictError(shard.Index, typ, id, fmt.Sprintf("required seqNo [%d], primary term [%d]. current document has seqNo [%d] and primary term [%d]", pre.IfSeqNo, pre.IfPrimaryTerm, cur.SeqNo, cur.PrimaryTerm))
	}
	return nil
}

// NextVersion returns the version of the document after a write of the given version and
// version type, or a conflict when the write is out of date.
func NextVersion(shard bulkx.ShardID, typ, id string, cur *DocState, version int64, vt bulkx.VersionType) (int64, error) {
	current := bulkx.NotFound
	if cur != nil {
		current = cur.Version
	}
	conflict := func(reason string, args ...any) (int64, error) {
		return 0, bulkx.VersionConflictError(shard.Index, typ, id, fmt.Sprintf(reason, args...))
	}

	switch vt {
	case bulkx.VersionTypeExternal:
		if cur != nil && current >= version {
			return conflict("current version [%d] is higher or equal to the one provided [%d]", current, version)
		}
		return version, nil
	case bulkx.VersionTypeExternalGTE:
		if cur != nil && current > version {
			return conflict("current version [%d] is higher than the one provided [%d]", current, version)
		}
		return version, nil
	case bulkx.VersionTypeForce:
		return version, nil
	default:
		if version != bulkx.MatchAny && current != version {
			if cur == nil {
				return conflict("document does not exist (expected version [%d])", version)
			}
			return conflict("current version [%d] is different than the one provided [%d]", current, version)
		}
		if cur == nil {
			return 1, nil
		}
		return current + 1, nil
	}
}

// MissingDocumentError is the failure of deleting a document that does not exist. An
// internal version other than match any reports a conflict instead.
func MissingDocumentError(shard bulkx.ShardID, op *bulkx.DeleteOp) error {
	if op.VersionType == bulkx.VersionTypeInternal && op.Version != bulkx.MatchAny {
		return bulkx.VersionConflictError(shard.Index, op.Type, op.ID, fmt.Sprintf("current version [%d] is different than the one provided [%d]", bulkx.NotFound, op.Version))
	}
	return bulkx.DocumentMissingError(shard.Index, op.Type, op.ID)
}
