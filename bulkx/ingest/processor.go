package ingest

import (
	"strings"

	"github.com/clinia/xbulk/bulkx"
	"github.com/clinia/xbulk/errorx"
	"github.com/spf13/cast"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	metaIndex   = "_index"
	metaID      = "_id"
	metaRouting = "_routing"
)

// Document is the item being preprocessed. Processors may change the metadata as well as
// the source.
type Document struct {
	Index   string
	ID      string
	Routing string
	Source  []byte
}

func (d *Document) get(field string) gjson.Result {
	switch field {
	case metaIndex:
		return gjson.Parse(quote(d.Index))
	case metaID:
		return gjson.Parse(quote(d.ID))
	case metaRouting:
		return gjson.Parse(quote(d.Routing))
	}
	return gjson.GetBytes(d.Source, field)
}

func (d *Document) set(field string, raw string) (err error) {
	switch field {
	case metaIndex:
		d.Index = cast.ToString(gjson.Parse(raw).Value())
	case metaID:
		d.ID = cast.ToString(gjson.Parse(raw).Value())
	case metaRouting:
		d.Routing = cast.ToString(gjson.Parse(raw).Value())
	default:
		d.Source, err = sjson.SetRawBytes(d.Source, field, []byte(raw))
	}
	return err
}

func (d *Document) remove(field string) (err error) {
	switch field {
	case metaIndex, metaID:
		return errorx.InvalidArgumentErrorf("field [%s] cannot be removed", field)
	case metaRouting:
		d.Routing = ""
	default:
		d.Source, err = sjson.DeleteBytes(d.Source, field)
	}
	return err
}

// Processor is one step of a pipeline.
type Processor interface {
	Type() string
	Execute(doc *Document) error
}

type processorFactory func(cfg gjson.Result) (Processor, error)

var factories = map[string]processorFactory{
	"set":       newSetProcessor,
	"remove":    newRemoveProcessor,
	"rename":    newRenameProcessor,
	"lowercase": newLowercaseProcessor,
	"fail":      newFailProcessor,
}

type setProcessor struct {
	field    string
	value    string
	override bool
}

func newSetProcessor(cfg gjson.Result) (Processor, error) {
	field, err := requiredString(cfg, "set", "field")
	if err != nil {
		return nil, err
	}
	value := cfg.Get("value")
	if !value.Exists() {
		return nil, errorx.InvalidArgumentErrorf("[value] required property is missing for processor [set]")
	}
	override := true
	if o := cfg.Get("override"); o.Exists() {
		override = o.Bool()
	}
	return &setProcessor{field: field, value: value.Raw, override: override}, nil
}

func (p *setProcessor) Type() string { return "set" }

func (p *setProcessor) Execute(doc *Document) error {
	if !p.override {
		if cur := doc.get(p.field); cur.Exists() && cur.Type != gjson.Null && cur.String() != "" {
			return nil
		}
	}
	return doc.set(p.field, p.value)
}

type removeProcessor struct {
	fields        []string
	ignoreMissing bool
}

func newRemoveProcessor(cfg gjson.Result) (Processor, error) {
	f := cfg.Get("field")
	var fields []string
	switch {
	case f.IsArray():
		for _, v := range f.Array() {
			fields = append(fields, v.String())
		}
	case f.Type == gjson.String:
		fields = []string{f.String()}
	}
	if len(fields) == 0 {
		return nil, errorx.InvalidArgumentErrorf("[field] required property is missing for processor [remove]")
	}
	return &removeProcessor{fields: fields, ignoreMissing: cfg.Get("ignore_missing").Bool()}, nil
}

func (p *removeProcessor) Type() string { return "remove" }

func (p *removeProcessor) Execute(doc *Document) error {
	for _, f := range p.fields {
		if !doc.get(f).Exists() {
			if p.ignoreMissing {
				continue
			}
			return errorx.InvalidArgumentErrorf("field [%s] not present as part of path [%s]", lastSegment(f), f)
		}
		if err := doc.remove(f); err != nil {
			return err
		}
	}
	return nil
}

type renameProcessor struct {
	field         string
	target        string
	ignoreMissing bool
}

func newRenameProcessor(cfg gjson.Result) (Processor, error) {
	field, err := requiredString(cfg, "rename", "field")
	if err != nil {
		return nil, err
	}
	target, err := requiredString(cfg, "rename", "target_field")
	if err != nil {
		return nil, err
	}
	return &renameProcessor{field: field, target: target, ignoreMissing: cfg.Get("ignore_missing").Bool()}, nil
}

func (p *renameProcessor) Type() string { return "rename" }

func (p *renameProcessor) Execute(doc *Document) error {
	v := doc.get(p.field)
	if !v.Exists() {
		if p.ignoreMissing {
			return nil
		}
		return errorx.InvalidArgumentErrorf("field [%s] doesn't exist", p.field)
	}
	if doc.get(p.target).Exists() {
		return errorx.InvalidArgumentErrorf("field [%s] already exists", p.target)
	}
	if err := doc.set(p.target, v.Raw); err != nil {
		return err
	}
	return doc.remove(p.field)
}

type lowercaseProcessor struct {
	field         string
	target        string
	ignoreMissing bool
}

func newLowercaseProcessor(cfg gjson.Result) (Processor, error) {
	field, err := requiredString(cfg, "lowercase", "field")
	if err != nil {
		return nil, err
	}
	target := cfg.Get("target_field").String()
	if target == "" {
		target = field
	}
	return &lowercaseProcessor{field: field, target: target, ignoreMissing: cfg.Get("ignore_missing").Bool()}, nil
}

func (p *lowercaseProcessor) Type() string { return "lowercase" }

func (p *lowercaseProcessor) Execute(doc *Document) error {
	v := doc.get(p.field)
	if !v.Exists() || v.Type == gjson.Null {
		if p.ignoreMissing {
			return nil
		}
		return errorx.InvalidArgumentErrorf("field [%s] is null or missing", p.field)
	}
	if v.Type != gjson.String {
		return errorx.InvalidArgumentErrorf("field [%s] of type [%s] cannot be lowercased", p.field, v.Type.String())
	}
	return doc.set(p.target, quote(strings.ToLower(v.String())))
}

type failProcessor struct {
	message string
}

func newFailProcessor(cfg gjson.Result) (Processor, error) {
	msg, err := requiredString(cfg, "fail", "message")
	if err != nil {
		return nil, err
	}
	return &failProcessor{message: msg}, nil
}

func (p *failProcessor) Type() string { return "fail" }

func (p *failProcessor) Execute(*Document) error {
	return errorx.InvalidArgumentErrorf("%s", p.message)
}

func requiredString(cfg gjson.Result, processor, key string) (string, error) {
	v := cfg.Get(key)
	if v.Type != gjson.String || v.String() == "" {
		return "", errorx.InvalidArgumentErrorf("[%s] required property is missing for processor [%s]", key, processor)
	}
	return v.String(), nil
}

func lastSegment(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[i+1:]
	}
	return path
}

func quote(s string) string {
	raw, _ := sjson.Set("", "v", s)
	return gjson.Get(raw, "v").Raw
}

// apply copies the document back onto op.
func (d *Document) apply(op *bulkx.IndexOp) {
	if d.Index != op.Index {
		op.SetIndexName(d.Index)
	}
	op.ID = d.ID
	op.Routing = d.Routing
	op.Source = d.Source
}
