// Package script runs update scripts written in CEL.
//
// A script sees the update context as `ctx` and the script parameters as `params`. It
// returns either a map whose entries replace the matching entries of ctx, such as
// `{'_source': merge(ctx._source, {'price': params.price})}`, or a string naming the
// operation to perform, such as `'none'`.
package script

import (
	"context"
	"math"
	"sync"

	"github.com/clinia/xbulk/bulkx"
	"github.com/clinia/xbulk/errorx"
	"github.com/clinia/xbulk/loggerx"
	"github.com/dgraph-io/ristretto"
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/ext"
	"go.opentelemetry.io/otel/attribute"
)

const LangCEL = "cel"

type Config struct {
	// CacheSize is the number of compiled programs kept in memory.
	CacheSize int64
}

// Service compiles, caches and runs scripts. Stored scripts are referenced by id.
type Service struct {
	l     *loggerx.Logger
	env   *cel.Env
	cache *ristretto.Cache

	mu     sync.RWMutex
	stored map[string]string
}

func NewService(l *loggerx.Logger, c Config) (*Service, error) {
	if c.CacheSize <= 0 {
		c.CacheSize = 1000
	}

	env, err := cel.NewEnv(
		cel.Variable("ctx", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("params", cel.MapType(cel.StringType, cel.DynType)),
		ext.Strings(),
		ext.Math(),
		mergeFunction(),
	)
	if err != nil {
		return nil, errorx.InternalErrorf("failed to create the script environment: %s", err.Error())
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: c.CacheSize * 10,
		MaxCost:     c.CacheSize,
		BufferItems: 64,
	})
	if err != nil {
		return nil, errorx.InternalErrorf("failed to create the script cache: %s", err.Error())
	}

	return &Service{
		l:      l,
		env:    env,
		cache:  cache,
		stored: map[string]string{},
	}, nil
}

func (s *Service) Close() {
	s.cache.Close()
}

// PutScript stores a script under id after checking that it compiles.
func (s *Service) PutScript(id, source string) error {
	if _, err := s.program(source); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stored[id] = source
	return nil
}

func (s *Service) DeleteScript(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stored, id)
}

// Execute runs script against vars and returns the resulting context. vars is not modified.
func (s *Service) Execute(ctx context.Context, script *bulkx.Script, vars map[string]any) (map[string]any, error) {
	if script.Lang != "" && script.Lang != LangCEL {
		return nil, errorx.InvalidArgumentErrorf("script_lang not supported [%s]", script.Lang)
	}

	source := script.Source
	if script.ID != "" {
		s.mu.RLock()
		stored, ok := s.stored[script.ID]
		s.mu.RUnlock()
		if !ok {
			return nil, errorx.NotFoundErrorf("unable to find script [%s]", script.ID)
		}
		source = stored
	}

	prg, err := s.program(source)
	if err != nil {
		return nil, err
	}

	params := script.Params
	if params == nil {
		params = map[string]any{}
	}
	sctx, _ := normalize(vars).(map[string]any)
	out, _, err := prg.ContextEval(ctx, map[string]any{
		"ctx":    sctx,
		"params": normalize(params),
	})
	if err != nil {
		return nil, errorx.InvalidArgumentErrorf("%s", err.Error()).WithOriginalError(err)
	}

	result, err := toNative(out)
	if err != nil {
		return nil, err
	}

	switch r := result.(type) {
	case nil:
	case string:
		sctx["op"] = r
	case map[string]any:
		for k, v := range r {
			sctx[k] = v
		}
	default:
		s.l.Debug(ctx, "script returned an unsupported value", attribute.String("script", script.IDOrCode()))
		return nil, errorx.InvalidArgumentErrorf("script must return a map or a string, found [%s]", out.Type().TypeName())
	}
	return sctx, nil
}

func (s *Service) program(source string) (cel.Program, error) {
	if v, ok := s.cache.Get(source); ok {
		return v.(cel.Program), nil
	}

	ast, iss := s.env.Compile(source)
	if iss != nil && iss.Err() != nil {
		return nil, errorx.InvalidArgumentErrorf("compile error: %s", iss.Err().Error())
	}
	prg, err := s.env.Program(ast, cel.InterruptCheckFrequency(100))
	if err != nil {
		return nil, errorx.InvalidArgumentErrorf("program construction error: %s", err.Error())
	}
	s.cache.Set(source, prg, 1)
	return prg, nil
}

// normalize deep copies v, turning whole JSON numbers into integers so scripts can use
// integer arithmetic on decoded documents.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return int64(t)
		}
		return t
	default:
		return v
	}
}

func mergeFunction() cel.EnvOption {
	mapType := cel.MapType(cel.StringType, cel.DynType)
	return cel.Function("merge",
		cel.Overload("merge_map_map", []*cel.Type{mapType, mapType}, mapType,
			cel.BinaryBinding(func(lhs, rhs ref.Val) ref.Val {
				l, err := toNative(lhs)
				if err != nil {
					return types.NewErr("merge: %s", err.Error())
				}
				r, err := toNative(rhs)
				if err != nil {
					return types.NewErr("merge: %s", err.Error())
				}
				lm, lok := l.(map[string]any)
				rm, rok := r.(map[string]any)
				if !lok || !rok {
					return types.NewErr("merge: both arguments must be maps")
				}
				out := make(map[string]any, len(lm)+len(rm))
				for k, v := range lm {
					out[k] = v
				}
				for k, v := range rm {
					out[k] = v
				}
				return types.DefaultTypeAdapter.NativeToValue(out)
			}),
		),
	)
}
