package bulkx

import (
	"github.com/clinia/xbulk/stringsx"
	"github.com/spf13/cast"
)

// FetchSourceContext controls which parts of the source are returned with a result.
type FetchSourceContext struct {
	Fetch    bool     `json:"fetch"`
	Includes []string `json:"includes,omitempty"`
	Excludes []string `json:"excludes,omitempty"`
}

var (
	FetchSource      = &FetchSourceContext{Fetch: true}
	DoNotFetchSource = &FetchSourceContext{Fetch: false}
)

// ParseFetchSource reads the `_source` value of an action or update body. It accepts a
// boolean, a comma separated string, an array of patterns or an object with includes and
// excludes.
func ParseFetchSource(v any) (*FetchSourceContext, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case bool:
		if t {
			return FetchSource, nil
		}
		return DoNotFetchSource, nil
	case string:
		return ParseFetchSourceParams(t, "", "")
	case []any:
		includes, err := cast.ToStringSliceE(t)
		if err != nil {
			return nil, ParseError("Malformed _source: %s", err.Error())
		}
		return &FetchSourceContext{Fetch: true, Includes: includes}, nil
	case map[string]any:
		ctx := &FetchSourceContext{Fetch: true}
		for k, raw := range t {
			patterns, err := toPatterns(raw)
			if err != nil {
				return nil, ParseError("Malformed _source [%s]: %s", k, err.Error())
			}
			switch k {
			case "includes", "include":
				ctx.Includes = patterns
			case "excludes", "exclude":
				ctx.Excludes = patterns
			default:
				return nil, ParseError("Unknown key for a START_OBJECT in [_source]: [%s].", k)
			}
		}
		return ctx, nil
	default:
		return nil, ParseError("Expected one of [true, false, string, array, object] in [_source] but found [%v]", v)
	}
}

// ParseFetchSourceParams builds a context from the `_source`, `_source_includes` and
// `_source_excludes` query parameters. It returns nil when none is set.
func ParseFetchSourceParams(source, includes, excludes string) (*FetchSourceContext, error) {
	var ctx *FetchSourceContext
	if source != "" {
		if b, err := cast.ToBoolE(source); err == nil {
			ctx = &FetchSourceContext{Fetch: b}
		} else {
			ctx = &FetchSourceContext{Fetch: true, Includes: stringsx.SplitTrimmed(source, ",")}
		}
	}
	if includes != "" || excludes != "" {
		if ctx == nil {
			ctx = &FetchSourceContext{Fetch: true}
		}
		if includes != "" {
			ctx.Includes = stringsx.SplitTrimmed(includes, ",")
		}
		if excludes != "" {
			ctx.Excludes = stringsx.SplitTrimmed(excludes, ",")
		}
	}
	return ctx, nil
}

func toPatterns(v any) ([]string, error) {
	if s, ok := v.(string); ok {
		return []string{s}, nil
	}
	return cast.ToStringSliceE(v)
}
