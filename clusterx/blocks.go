package clusterx

import (
	"net/http"
	"slices"

	"github.com/clinia/xbulk/bulkx"
	"github.com/samber/lo"
)

type BlockLevel string

const (
	BlockLevelRead          BlockLevel = "read"
	BlockLevelWrite         BlockLevel = "write"
	BlockLevelMetadataRead  BlockLevel = "metadata_read"
	BlockLevelMetadataWrite BlockLevel = "metadata_write"
)

// Block rejects operations at the listed levels. A retryable block is expected to clear on
// its own, such as the block held while the cluster recovers.
type Block struct {
	ID          int          `json:"id"`
	Description string       `json:"description"`
	Retryable   bool         `json:"retryable"`
	Status      int          `json:"status,omitempty"`
	Levels      []BlockLevel `json:"levels"`
}

func (b Block) Contains(level BlockLevel) bool {
	return slices.Contains(b.Levels, level)
}

var (
	// NoMasterBlockWrites is held while no master is elected.
	NoMasterBlockWrites = Block{
		ID:          2,
		Description: "no master",
		Retryable:   true,
		Status:      http.StatusServiceUnavailable,
		Levels:      []BlockLevel{BlockLevelWrite, BlockLevelMetadataWrite},
	}
	// ReadOnlyBlock is set by an operator to stop writes to the whole cluster.
	ReadOnlyBlock = Block{
		ID:          6,
		Description: "cluster read-only (api)",
		Retryable:   false,
		Status:      http.StatusForbidden,
		Levels:      []BlockLevel{BlockLevelWrite, BlockLevelMetadataWrite},
	}
	IndexReadOnlyBlock = Block{
		ID:          5,
		Description: "index read-only (api)",
		Retryable:   false,
		Status:      http.StatusForbidden,
		Levels:      []BlockLevel{BlockLevelWrite, BlockLevelMetadataWrite},
	}
)

type Blocks struct {
	Global  []Block            `json:"global,omitempty"`
	Indices map[string][]Block `json:"indices,omitempty"`
}

func (b Blocks) global(level BlockLevel) []Block {
	return lo.Filter(b.Global, func(blk Block, _ int) bool { return blk.Contains(level) })
}

// GlobalBlockedError returns the error for the global blocks at level, or nil when nothing
// is blocked. The error is retryable only when every block is.
func (b Blocks) GlobalBlockedError(level BlockLevel) *bulkx.ItemError {
	return blockedError(b.global(level))
}

// IndexBlockedError is GlobalBlockedError for the blocks of one index, global blocks
// included.
func (b Blocks) IndexBlockedError(level BlockLevel, index string) *bulkx.ItemError {
	blocks := b.global(level)
	blocks = append(blocks, lo.Filter(b.Indices[index], func(blk Block, _ int) bool { return blk.Contains(level) })...)
	return blockedError(blocks)
}

func blockedError(blocks []Block) *bulkx.ItemError {
	if len(blocks) == 0 {
		return nil
	}
	retryable := lo.EveryBy(blocks, func(blk Block) bool { return blk.Retryable })
	return bulkx.ClusterBlockError(retryable, lo.Map(blocks, func(blk Block, _ int) string {
		return blk.Description
	})...)
}

func (b *Blocks) addGlobal(blk Block) {
	if lo.ContainsBy(b.Global, func(cur Block) bool { return cur.ID == blk.ID }) {
		return
	}
	b.Global = append(b.Global, blk)
}

func (b *Blocks) removeGlobal(id int) {
	b.Global = lo.Reject(b.Global, func(cur Block, _ int) bool { return cur.ID == id })
}

func (b *Blocks) addIndex(index string, blk Block) {
	if b.Indices == nil {
		b.Indices = map[string][]Block{}
	}
	if lo.ContainsBy(b.Indices[index], func(cur Block) bool { return cur.ID == blk.ID }) {
		return
	}
	b.Indices[index] = append(b.Indices[index], blk)
}

func (b *Blocks) removeIndex(index string, id int) {
	left := lo.Reject(b.Indices[index], func(cur Block, _ int) bool { return cur.ID == id })
	if len(left) == 0 {
		delete(b.Indices, index)
		return
	}
	b.Indices[index] = left
}
