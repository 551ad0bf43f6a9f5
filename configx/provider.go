// Package configx loads configuration from schema defaults, files, environment variables
// and command line flags, in increasing order of precedence, and validates the result
// against a JSON schema.
package configx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/clinia/xbulk/errorx"
	"github.com/clinia/xbulk/loggerx"
	"github.com/google/uuid"
	"github.com/inhies/go-bytesize"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/ory/jsonschema/v3"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
)

const delimiter = "."

type tuple struct {
	Key   string
	Value any
}

// Provider holds the merged configuration. Reads are safe while files are reloaded.
type Provider struct {
	l *loggerx.Logger

	schema    *jsonschema.Schema
	rawSchema []byte

	files               []string
	flags               *pflag.FlagSet
	envPrefix           string
	baseValues          []tuple
	forcedValues        []tuple
	immutables          []string
	skipValidation      bool
	disableEnvLoading   bool
	disableFileWatching bool
	onChanges           []func(ChangeEvent, error)

	mu sync.RWMutex
	k  *koanf.Koanf

	stopWatching func()
}

// New loads the configuration described by schema. The schema defaults are the lowest
// layer; WithValue overrides everything.
func New(ctx context.Context, schema []byte, opts ...OptionModifier) (*Provider, error) {
	p := &Provider{
		rawSchema:           schema,
		envPrefix:           "BULKX_",
		disableFileWatching: true,
	}
	for _, opt := range opts {
		opt(p)
	}

	compiled, err := compileSchema(ctx, schema)
	if err != nil {
		return nil, err
	}
	p.schema = compiled

	k, err := p.load()
	if err != nil {
		return nil, err
	}
	p.k = k

	if !p.disableFileWatching && len(p.files) > 0 {
		stop, err := p.watch(ctx)
		if err != nil {
			return nil, err
		}
		p.stopWatching = stop
	}
	return p, nil
}

func compileSchema(ctx context.Context, schema []byte) (*jsonschema.Schema, error) {
	id := gjson.GetBytes(schema, "$id").String()
	if id == "" {
		id = fmt.Sprintf("%s.json", uuid.Must(uuid.NewRandom()).String())
	}

	compiler := jsonschema.NewCompiler()
	compiler.ExtractAnnotations = true
	if err := compiler.AddResource(id, bytes.NewReader(schema)); err != nil {
		return nil, errorx.InvalidArgumentErrorf("unable to add config schema: %s", err.Error()).WithOriginalError(err)
	}
	s, err := compiler.Compile(ctx, id)
	if err != nil {
		return nil, errorx.InvalidArgumentErrorf("unable to compile config schema: %s", err.Error()).WithOriginalError(err)
	}
	return s, nil
}

// load builds a fresh koanf instance out of every layer and validates it.
func (p *Provider) load() (*koanf.Koanf, error) {
	k := koanf.New(delimiter)

	defaults, err := schemaDefaults(p.rawSchema)
	if err != nil {
		return nil, err
	}
	if err := k.Load(confmap.Provider(defaults, delimiter), nil); err != nil {
		return nil, errorx.InternalErrorf("unable to load schema defaults: %s", err.Error()).WithOriginalError(err)
	}
	if err := k.Load(confmap.Provider(tuplesToMap(p.baseValues), delimiter), nil); err != nil {
		return nil, errorx.InternalErrorf("unable to load base values: %s", err.Error()).WithOriginalError(err)
	}

	for _, f := range p.files {
		parser, err := parserFor(f)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(f), parser); err != nil {
			return nil, errorx.InvalidArgumentErrorf("unable to load config file [%s]: %s", f, err.Error()).WithOriginalError(err)
		}
	}

	if !p.disableEnvLoading {
		if err := k.Load(env.Provider(p.envPrefix, delimiter, p.envKey), nil); err != nil {
			return nil, errorx.InternalErrorf("unable to load environment variables: %s", err.Error()).WithOriginalError(err)
		}
	}

	if p.flags != nil {
		if err := k.Load(posflag.Provider(p.flags, delimiter, k), nil); err != nil {
			return nil, errorx.InternalErrorf("unable to load flags: %s", err.Error()).WithOriginalError(err)
		}
	}

	if err := k.Load(confmap.Provider(tuplesToMap(p.forcedValues), delimiter), nil); err != nil {
		return nil, errorx.InternalErrorf("unable to load forced values: %s", err.Error()).WithOriginalError(err)
	}

	if !p.skipValidation {
		if err := p.validate(k); err != nil {
			return nil, err
		}
	}
	return k, nil
}

// envKey maps BULKX_BULK__AUTO_CREATE_INDEX to bulk.auto_create_index. A double
// underscore separates levels so keys may contain single ones.
func (p *Provider) envKey(s string) string {
	s = strings.TrimPrefix(s, p.envPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", delimiter)
}

func (p *Provider) validate(k *koanf.Koanf) error {
	raw, err := json.Marshal(k.Raw())
	if err != nil {
		return errorx.InternalErrorf("unable to encode configuration: %s", err.Error()).WithOriginalError(err)
	}
	if err := p.schema.Validate(bytes.NewReader(raw)); err != nil {
		return errorx.InvalidArgumentErrorf("invalid configuration: %s", err.Error()).WithOriginalError(err)
	}
	return nil
}

func tuplesToMap(ts []tuple) map[string]any {
	m := make(map[string]any, len(ts))
	for _, t := range ts {
		m[t.Key] = t.Value
	}
	return m
}

func (p *Provider) koanf() *koanf.Koanf {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.k
}

func (p *Provider) Close() {
	if p.stopWatching != nil {
		p.stopWatching()
	}
}

func (p *Provider) Exists(key string) bool {
	return p.koanf().Exists(key)
}

func (p *Provider) Get(key string) any {
	return p.koanf().Get(key)
}

func (p *Provider) String(key string) string {
	return p.koanf().String(key)
}

// StringF returns the value of key or fallback when key is not set.
func (p *Provider) StringF(key, fallback string) string {
	if !p.Exists(key) {
		return fallback
	}
	return p.String(key)
}

func (p *Provider) Strings(key string) []string {
	return cast.ToStringSlice(p.koanf().Get(key))
}

func (p *Provider) Int(key string) int {
	return cast.ToInt(p.koanf().Get(key))
}

func (p *Provider) Bool(key string) bool {
	return cast.ToBool(p.koanf().Get(key))
}

// Duration parses values such as "30s". Integers are read as nanoseconds.
func (p *Provider) Duration(key string) time.Duration {
	return cast.ToDuration(p.koanf().Get(key))
}

// ByteSize parses values such as "100MB". Integers are read as bytes.
func (p *Provider) ByteSize(key string) (bytesize.ByteSize, error) {
	v := p.koanf().Get(key)
	switch t := v.(type) {
	case nil:
		return 0, nil
	case string:
		b, err := bytesize.Parse(t)
		if err != nil {
			return 0, errorx.InvalidArgumentErrorf("value of [%s] is not a byte size: %s", key, err.Error())
		}
		return b, nil
	default:
		n, err := cast.ToInt64E(t)
		if err != nil {
			return 0, errorx.InvalidArgumentErrorf("value of [%s] is not a byte size: %s", key, err.Error())
		}
		return bytesize.ByteSize(n), nil
	}
}

// BoolMap returns the boolean entries below key, such as feature flags.
func (p *Provider) BoolMap(key string) map[string]bool {
	out := map[string]bool{}
	for k, v := range p.koanf().Cut(key).All() {
		out[k] = cast.ToBool(v)
	}
	return out
}

// Unmarshal decodes the subtree at key into v using the json struct tags. Strings such as
// "30s" decode into time.Duration fields.
func (p *Provider) Unmarshal(key string, v any) error {
	if err := p.koanf().UnmarshalWithConf(key, v, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return errorx.InvalidArgumentErrorf("failed to decode configuration [%s]: %s", key, err.Error()).WithOriginalError(err)
	}
	return nil
}

// All returns the flattened configuration.
func (p *Provider) All() map[string]any {
	return p.koanf().All()
}

func (p *Provider) reload(ctx context.Context, ev ChangeEvent) {
	k, err := p.load()
	if err == nil {
		err = p.checkImmutables(k)
	}
	if err == nil {
		p.mu.Lock()
		p.k = k
		p.mu.Unlock()
	}
	if p.l != nil {
		if err != nil {
			p.l.WithError(err).Error(ctx, "the changed configuration could not be loaded, keeping the last working revision", attribute.String("file", ev.File))
		} else {
			p.l.Info(ctx, "configuration change processed successfully", attribute.String("file", ev.File))
		}
	}
	for _, fn := range p.onChanges {
		fn(ev, err)
	}
}

func (p *Provider) checkImmutables(next *koanf.Koanf) error {
	cur := p.koanf()
	for _, key := range p.immutables {
		from, to := cur.Get(key), next.Get(key)
		if fmt.Sprint(from) != fmt.Sprint(to) {
			return &ImmutableError{Key: key, From: from, To: to}
		}
	}
	return nil
}

// ImmutableError reports a change to a key that may only be set at startup.
type ImmutableError struct {
	Key  string
	From any
	To   any
}

func (e *ImmutableError) Error() string {
	return fmt.Sprintf("immutable configuration key [%s] changed from [%v] to [%v]", e.Key, e.From, e.To)
}
