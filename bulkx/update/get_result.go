package update

import (
	"encoding/json"
	"strings"

	"github.com/clinia/xbulk/bulkx"
	"github.com/clinia/xbulk/stringsx"
	"github.com/tidwall/gjson"
)

// ExtractGetResult builds the document returned with an update result. It applies the
// fetch source filtering of op and the deprecated fields list. It returns nil when the
// update asked for neither.
func ExtractGetResult(op *bulkx.UpdateOp, source map[string]any) *bulkx.GetResult {
	fetch := op.FetchSource != nil && op.FetchSource.Fetch
	if len(op.Fields) == 0 && !fetch {
		return nil
	}

	res := &bulkx.GetResult{Found: true}
	sourceRequested := false

	if len(op.Fields) > 0 {
		raw, _ := json.Marshal(source)
		for _, f := range op.Fields {
			if f == "_source" {
				sourceRequested = true
				continue
			}
			v := gjson.GetBytes(raw, f)
			if !v.Exists() || v.Type == gjson.Null {
				continue
			}
			if res.Fields == nil {
				res.Fields = map[string]any{}
			}
			res.Fields[f] = []any{v.Value()}
		}
	}

	filtered := source
	if fetch {
		sourceRequested = true
		if len(op.FetchSource.Includes) > 0 || len(op.FetchSource.Excludes) > 0 {
			filtered = FilterSource(source, op.FetchSource.Includes, op.FetchSource.Excludes)
		}
	}
	if sourceRequested {
		res.Source = filtered
	}
	return res
}

// FilterSource keeps the paths of source matching includes, or every path when includes is
// empty, then drops the paths matching excludes. Patterns are dotted paths and may use '*'.
func FilterSource(source map[string]any, includes, excludes []string) map[string]any {
	return filterMap(source, "", includes, excludes)
}

func filterMap(m map[string]any, prefix string, includes, excludes []string) map[string]any {
	out := map[string]any{}
	for k, v := range m {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if stringsx.SimpleMatchAny(excludes, path) {
			continue
		}

		included := len(includes) == 0 || stringsx.SimpleMatchAny(includes, path)
		child, isMap := v.(map[string]any)
		switch {
		case isMap && included:
			out[k] = filterMap(child, path, nil, excludes)
		case isMap && mayMatchBelow(includes, path):
			if sub := filterMap(child, path, includes, excludes); len(sub) > 0 {
				out[k] = sub
			}
		case included:
			out[k] = v
		}
	}
	return out
}

func mayMatchBelow(patterns []string, path string) bool {
	for _, p := range patterns {
		if strings.HasPrefix(p, path+".") || strings.Contains(p, "*") {
			return true
		}
	}
	return false
}
