package update

import (
	"testing"

	"github.com/clinia/xbulk/bulkx"
	"github.com/stretchr/testify/assert"
)

func TestExtractGetResult(t *testing.T) {
	source := map[string]any{
		"name":  "shoe",
		"price": 12.0,
		"meta":  map[string]any{"color": "red", "size": 42.0},
	}

	t.Run("should return nothing when nothing is requested", func(t *testing.T) {
		assert.Nil(t, ExtractGetResult(bulkx.NewUpdateOp("a", "1"), source))

		op := bulkx.NewUpdateOp("a", "1")
		op.FetchSource = bulkx.DoNotFetchSource
		assert.Nil(t, ExtractGetResult(op, source))
	})

	t.Run("should return the whole source", func(t *testing.T) {
		op := bulkx.NewUpdateOp("a", "1")
		op.FetchSource = bulkx.FetchSource
		assert.Equal(t, &bulkx.GetResult{Found: true, Source: source}, ExtractGetResult(op, source))
	})

	t.Run("should filter the source", func(t *testing.T) {
		op := bulkx.NewUpdateOp("a", "1")
		op.FetchSource = &bulkx.FetchSourceContext{Fetch: true, Includes: []string{"meta.*", "name"}, Excludes: []string{"meta.size"}}
		assert.Equal(t, map[string]any{
			"name": "shoe",
			"meta": map[string]any{"color": "red"},
		}, ExtractGetResult(op, source).Source)
	})

	t.Run("should extract the requested fields", func(t *testing.T) {
		op := bulkx.NewUpdateOp("a", "1")
		op.Fields = []string{"meta.color", "missing", "_source"}
		res := ExtractGetResult(op, source)
		assert.Equal(t, map[string]any{"meta.color": []any{"red"}}, res.Fields)
		assert.Equal(t, source, res.Source)
	})
}
