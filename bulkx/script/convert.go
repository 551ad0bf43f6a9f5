package script

import (
	"github.com/clinia/xbulk/errorx"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

// toNative converts a CEL value into plain Go values: maps with string keys, slices and
// scalars.
func toNative(v ref.Val) (any, error) {
	if types.IsError(v) {
		return nil, errorx.InvalidArgumentErrorf("%v", v)
	}

	switch t := v.(type) {
	case traits.Mapper:
		out := map[string]any{}
		it := t.Iterator()
		for it.HasNext() == types.True {
			k := it.Next()
			key, ok := k.Value().(string)
			if !ok {
				return nil, errorx.InvalidArgumentErrorf("map keys must be strings, found [%s]", k.Type().TypeName())
			}
			val, err := toNative(t.Get(k))
			if err != nil {
				return nil, err
			}
			out[key] = val
		}
		return out, nil
	case traits.Lister:
		size, _ := t.Size().(types.Int)
		out := make([]any, 0, int(size))
		for i := types.Int(0); i < size; i++ {
			val, err := toNative(t.Get(i))
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		}
		return out, nil
	}

	if v.Type() == types.NullType {
		return nil, nil
	}
	return v.Value(), nil
}
