package configx

import (
	"strings"

	"github.com/clinia/xbulk/errorx"
	"github.com/tidwall/gjson"
)

// schemaDefaults collects the default of every property reachable through nested
// "properties" of schema, keyed by dotted path.
func schemaDefaults(schema []byte) (map[string]any, error) {
	if !gjson.ValidBytes(schema) {
		return nil, errorx.InvalidArgumentErrorf("config schema is not valid JSON")
	}
	out := map[string]any{}
	collectDefaults(gjson.ParseBytes(schema), nil, out)
	return out, nil
}

func collectDefaults(node gjson.Result, path []string, out map[string]any) {
	if d := node.Get("default"); d.Exists() && len(path) > 0 {
		out[strings.Join(path, delimiter)] = d.Value()
	}
	node.Get("properties").ForEach(func(key, child gjson.Result) bool {
		collectDefaults(child, append(path[:len(path):len(path)], key.String()), out)
		return true
	})
}
