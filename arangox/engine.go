package arangox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	arangoDriver "github.com/arangodb/go-driver"
	"github.com/clinia/xbulk/bulkx"
	"github.com/clinia/xbulk/bulkx/shard"
	"github.com/clinia/xbulk/bulkx/update"
	"github.com/clinia/xbulk/errorx"
)

const primaryTerm = 1

type storedDocument struct {
	Key         string          `json:"_key"`
	Index       string          `json:"index"`
	Shard       int             `json:"shard"`
	Type        string          `json:"type"`
	ID          string          `json:"id"`
	Routing     string          `json:"routing,omitempty"`
	Parent      string          `json:"parent,omitempty"`
	Version     int64           `json:"version"`
	SeqNo       int64           `json:"seq_no"`
	PrimaryTerm int64           `json:"primary_term"`
	Source      json.RawMessage `json:"source"`
}

func (d *storedDocument) state() *shard.DocState {
	if d == nil {
		return nil
	}
	return &shard.DocState{Version: d.Version, SeqNo: d.SeqNo, PrimaryTerm: d.PrimaryTerm}
}

// Engine keeps every document in one collection keyed by index, shard and id. Sequence
// numbers are counted per shard in a second collection. Writes replace the revision they
// read, so a concurrent write to the same document surfaces as a version conflict.
type Engine struct {
	db        arangoDriver.Database
	docs      arangoDriver.Collection
	sequences string
}

var _ shard.Engine = (*Engine)(nil)

// NewEngine expects the collections created by Migrate.
func NewEngine(ctx context.Context, db arangoDriver.Database) (*Engine, error) {
	docs, err := db.Collection(ctx, DocumentsCollection)
	if err != nil {
		return nil, errorx.FailedPreconditionErrorf("collection [%s] is missing, run the migrations first", DocumentsCollection).WithOriginalError(err)
	}
	return &Engine{db: db, docs: docs, sequences: SequencesCollection}, nil
}

// documentKey escapes the parts of the key, so the result only holds characters allowed
// in a document key.
func documentKey(sid bulkx.ShardID, id string) string {
	return fmt.Sprintf("%s:%d:%s", url.QueryEscape(sid.Index), sid.ID, url.QueryEscape(id))
}

func (e *Engine) read(ctx context.Context, key string) (*storedDocument, string, error) {
	var doc storedDocument
	meta, err := e.docs.ReadDocument(ctx, key, &doc)
	if err != nil {
		if arangoDriver.IsNotFound(err) {
			return nil, "", nil
		}
		return nil, "", err
	}
	return &doc, meta.Rev, nil
}

func (e *Engine) Get(ctx context.Context, sid bulkx.ShardID, id string) (*update.Snapshot, error) {
	doc, _, err := e.read(ctx, documentKey(sid, id))
	if err != nil {
		return nil, storageError(sid, id, err)
	}
	if doc == nil {
		return nil, nil
	}

	snap := &update.Snapshot{
		Index:       sid.Index,
		Type:        doc.Type,
		ID:          id,
		Version:     doc.Version,
		SeqNo:       doc.SeqNo,
		PrimaryTerm: doc.PrimaryTerm,
		Routing:     doc.Routing,
		Parent:      doc.Parent,
		Source:      doc.Source,
	}
	if bytes.Equal(snap.Source, []byte("null")) {
		snap.Source = nil
	}
	return snap, nil
}

func (e *Engine) Index(ctx context.Context, sid bulkx.ShardID, op *bulkx.IndexOp, pre shard.Precondition) (*shard.WriteOutcome, error) {
	key := documentKey(sid, op.ID)
	cur, rev, err := e.read(ctx, key)
	if err != nil {
		return nil, storageError(sid, op.ID, err)
	}
	if op.Create && cur != nil {
		return nil, bulkx.VersionConflictError(sid.Index, op.Type, op.ID, fmt.Sprintf("document already exists (current version [%d])", cur.Version))
	}
	if err := shard.CheckPrecondition(sid, op.Type, op.ID, cur.state(), pre); err != nil {
		return nil, err
	}
	version, err := shard.NextVersion(sid, op.Type, op.ID, cur.state(), op.Version, op.VersionType)
	if err != nil {
		return nil, err
	}

	seqNo, err := e.nextSeqNo(ctx, sid)
	if err != nil {
		return nil, storageError(sid, op.ID, err)
	}

	doc := storedDocument{
		Key:         key,
		Index:       sid.Index,
		Shard:       sid.ID,
		Type:        op.Type,
		ID:          op.ID,
		Routing:     op.Routing,
		Parent:      op.Parent,
		Version:     version,
		SeqNo:       seqNo,
		PrimaryTerm: primaryTerm,
		Source:      op.Source,
	}
	if cur == nil {
		_, err = e.docs.CreateDocument(ctx, doc)
	} else {
		_, err = e.docs.ReplaceDocument(arangoDriver.WithRevision(ctx, rev), key, doc)
	}
	if err != nil {
		return nil, writeError(sid, op.Type, op.ID, err)
	}
	return &shard.WriteOutcome{Version: version, SeqNo: seqNo, PrimaryTerm: primaryTerm, Created: cur == nil}, nil
}

func (e *Engine) Delete(ctx context.Context, sid bulkx.ShardID, op *bulkx.DeleteOp, pre shard.Precondition) (*shard.WriteOutcome, error) {
	key := documentKey(sid, op.ID)
	cur, rev, err := e.read(ctx, key)
	if err != nil {
		return nil, storageError(sid, op.ID, err)
	}
	if err := shard.CheckPrecondition(sid, op.Type, op.ID, cur.state(), pre); err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, shard.MissingDocumentError(sid, op)
	}
	version, err := shard.NextVersion(sid, op.Type, op.ID, cur.state(), op.Version, op.VersionType)
	if err != nil {
		return nil, err
	}

	seqNo, err := e.nextSeqNo(ctx, sid)
	if err != nil {
		return nil, storageError(sid, op.ID, err)
	}
	if _, err := e.docs.RemoveDocument(arangoDriver.WithRevision(ctx, rev), key); err != nil {
		return nil, writeError(sid, op.Type, op.ID, err)
	}
	return &shard.WriteOutcome{Version: version, SeqNo: seqNo, PrimaryTerm: primaryTerm, Found: true}, nil
}

// Refresh is a no-op: committed documents are visible to the next read.
func (e *Engine) Refresh(context.Context, bulkx.ShardID) error {
	return nil
}

// nextSeqNo increments the sequence number of sid. The first write of a shard gets 0.
func (e *Engine) nextSeqNo(ctx context.Context, sid bulkx.ShardID) (int64, error) {
	cursor, err := e.db.Query(ctx, `
		UPSERT { _key: @key }
			INSERT { _key: @key, seq_no: 0 }
			UPDATE { seq_no: OLD.seq_no + 1 }
			IN @@collection OPTIONS { exclusive: true }
			RETURN NEW.seq_no
		`, map[string]interface{}{
		"@collection": e.sequences,
		"key":         fmt.Sprintf("%s:%d", url.QueryEscape(sid.Index), sid.ID),
	})
	if err != nil {
		return 0, err
	}
	defer cursor.Close()

	var seqNo int64
	if _, err := cursor.ReadDocument(ctx, &seqNo); err != nil {
		return 0, err
	}
	return seqNo, nil
}

func writeError(sid bulkx.ShardID, typ, id string, err error) error {
	switch {
	case arangoDriver.IsConflict(err):
		return bulkx.VersionConflictError(sid.Index, typ, id, "document already exists")
	case arangoDriver.IsPreconditionFailed(err), arangoDriver.IsNotFound(err):
		return bulkx.VersionConflictError(sid.Index, typ, id, "document was modified concurrently")
	default:
		return storageError(sid, id, err)
	}
}

func storageError(sid bulkx.ShardID, id string, err error) error {
	if arangoDriver.IsResponse(err) {
		return bulkx.TransportError(sid.String(), err)
	}
	return bulkx.ForItem(errorx.InternalErrorf("arangodb: %s", err.Error()).WithOriginalError(err), sid.Index, id)
}
