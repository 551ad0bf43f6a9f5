package configx

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/clinia/xbulk/errorx"
	"github.com/ghodss/yaml"
	"github.com/knadh/koanf"
	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/pelletier/go-toml"
)

// yamlParser goes through JSON so that YAML documents decode to the same types as JSON ones.
type yamlParser struct{}

func (yamlParser) Unmarshal(b []byte) (map[string]any, error) {
	js, err := yaml.YAMLToJSON(b)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(js, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (yamlParser) Marshal(m map[string]any) ([]byte, error) {
	return yaml.Marshal(m)
}

type tomlParser struct{}

func (tomlParser) Unmarshal(b []byte) (map[string]any, error) {
	tree, err := toml.LoadBytes(b)
	if err != nil {
		return nil, err
	}
	return tree.ToMap(), nil
}

func (tomlParser) Marshal(m map[string]any) ([]byte, error) {
	tree, err := toml.TreeFromMap(m)
	if err != nil {
		return nil, err
	}
	return tree.Marshal()
}

func parserFor(path string) (koanf.Parser, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return yamlParser{}, nil
	case ".toml":
		return tomlParser{}, nil
	case ".json":
		return kjson.Parser(), nil
	default:
		return nil, errorx.InvalidArgumentErrorf("unknown config file extension [%s], expected one of [.yaml, .yml, .toml, .json]", ext)
	}
}
