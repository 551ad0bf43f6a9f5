package routing

import (
	"fmt"
	"strings"

	"github.com/clinia/xbulk/bulkx"
	"github.com/clinia/xbulk/clusterx"
	"github.com/clinia/xbulk/stringsx"
)

type autoCreatePattern struct {
	expr    string
	include bool
}

// AutoCreatePolicy decides which missing indices a bulk request may create. It is parsed
// from "true", "false" or a comma separated list of patterns, each optionally prefixed by
// '+' to allow or '-' to forbid. The first matching pattern wins.
type AutoCreatePolicy struct {
	raw      string
	enabled  bool
	patterns []autoCreatePattern
}

func ParseAutoCreatePolicy(v string) (*AutoCreatePolicy, error) {
	v = strings.TrimSpace(v)
	p := &AutoCreatePolicy{raw: v}
	if v == "" {
		p.raw, p.enabled = "true", true
		return p, nil
	}
	if v == "true" || v == "false" {
		p.enabled = v == "true"
		return p, nil
	}

	for _, expr := range stringsx.SplitTrimmed(v, ",") {
		include := true
		switch expr[0] {
		case '+':
			expr = expr[1:]
		case '-':
			include = false
			expr = expr[1:]
		}
		if expr == "" {
			return nil, bulkx.IllegalArgumentError("Can't parse [%s] for setting [action.auto_create_index] must be either [true, false, or a comma separated list of index patterns]", v)
		}
		p.patterns = append(p.patterns, autoCreatePattern{expr: expr, include: include})
	}
	p.enabled = true
	return p, nil
}

func (p *AutoCreatePolicy) String() string {
	return p.raw
}

// ShouldAutoCreate reports whether index has to be created before the request runs. It
// returns an index not found error when the index is missing and may not be created.
func (p *AutoCreatePolicy) ShouldAutoCreate(index string, state *clusterx.State) (bool, error) {
	if state.HasIndexOrAlias(index) {
		return false, nil
	}
	if !p.enabled {
		return false, bulkx.AutoCreateForbiddenError(index, "[action.auto_create_index] is [false]")
	}
	if len(p.patterns) == 0 {
		return true, nil
	}
	for _, pat := range p.patterns {
		if !stringsx.SimpleMatch(pat.expr, index) {
			continue
		}
		if !pat.include {
			return false, bulkx.AutoCreateForbiddenError(index, fmt.Sprintf("[action.auto_create_index] contains [-%s] which forbids automatic creation of the index", pat.expr))
		}
		return true, nil
	}
	return false, bulkx.AutoCreateForbiddenError(index, fmt.Sprintf("[action.auto_create_index] ([%s]) doesn't match", p.raw))
}
