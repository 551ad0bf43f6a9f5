package bulkx

import (
	"bytes"
	"encoding/json"

	"github.com/clinia/xbulk/errorx"
	"github.com/clinia/xbulk/stringsx"
	"github.com/inhies/go-bytesize"
	"github.com/spf13/cast"
	"github.com/tidwall/gjson"
)

// Defaults are applied to every action that does not set the value itself.
type Defaults struct {
	Index       string
	Type        string
	Routing     string
	Pipeline    string
	FetchSource *FetchSourceContext
	Fields      []string
}

// Parser decodes the newline delimited bulk format: an action line per operation followed
// by a source line for everything but delete.
type Parser struct {
	AllowExplicitIndex bool
	// MaxContentLength rejects larger bodies when set.
	MaxContentLength bytesize.ByteSize
	Defaults         Defaults
}

func NewParser(allowExplicitIndex bool, maxContentLength bytesize.ByteSize) *Parser {
	return &Parser{
		AllowExplicitIndex: allowExplicitIndex,
		MaxContentLength:   maxContentLength,
	}
}

// WithDefaults returns a copy of the parser applying d.
func (p *Parser) WithDefaults(d Defaults) *Parser {
	out := *p
	out.Defaults = d
	return &out
}

// Parse decodes data into a new request. Every operation gets payload as its tag.
func (p *Parser) Parse(data []byte, payload any) (*BulkRequest, error) {
	req := NewBulkRequest()
	if err := p.ParseInto(req, data, payload); err != nil {
		return nil, err
	}
	return req, nil
}

// ParseInto appends the operations of data to req.
func (p *Parser) ParseInto(req *BulkRequest, data []byte, payload any) error {
	if p.MaxContentLength > 0 && bytesize.ByteSize(len(data)) > p.MaxContentLength {
		return errorx.PayloadTooLargeErrorf("bulk body of [%s] exceeds max_content_length [%s]",
			bytesize.ByteSize(len(data)).String(), p.MaxContentLength.String())
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		return IllegalArgumentError("The bulk request must be terminated by a newline [\\n]")
	}

	line := 0
	from := 0
	for {
		next := bytes.IndexByte(data[from:], '\n')
		if next == -1 {
			break
		}
		next += from
		line++

		actionLine := trimCarriageReturn(data[from:next])
		from = next + 1
		if len(bytes.TrimSpace(actionLine)) == 0 {
			continue
		}

		a, err := p.parseAction(actionLine, line)
		if err != nil {
			return err
		}

		if a.action == OpTypeDelete {
			op := NewDeleteOp(a.index, a.id)
			a.applyMeta(&op.DocMeta)
			req.Add(op, payload)
			continue
		}

		next = bytes.IndexByte(data[from:], '\n')
		if next == -1 {
			break
		}
		next += from
		line++
		body := trimCarriageReturn(data[from:next])
		from = next + 1

		switch a.action {
		case OpTypeIndex, OpTypeCreate:
			op := NewIndexOp(a.index, a.id, json.RawMessage(bytes.Clone(body)))
			a.applyMeta(&op.DocMeta)
			op.Pipeline = a.pipeline
			op.Create = a.action == OpTypeCreate || a.opType == OpTypeCreate
			req.Add(op, payload)
		case OpTypeUpdate:
			op := NewUpdateOp(a.index, a.id)
			a.applyMeta(&op.DocMeta)
			op.RetryOnConflict = a.retryOnConflict
			if err := parseUpdateBody(op, body, line); err != nil {
				return err
			}
			if a.fetchSource != nil {
				op.FetchSource = a.fetchSource
			}
			if a.fields != nil {
				op.Fields = a.fields
			}
			req.Add(op, payload)
		}
	}
	return nil
}

type actionMeta struct {
	action          OpType
	index           string
	typ             string
	id              string
	routing         string
	parent          string
	opType          OpType
	version         int64
	versionType     VersionType
	retryOnConflict int
	pipeline        string
	fetchSource     *FetchSourceContext
	fields          []string
}

func (a *actionMeta) applyMeta(m *DocMeta) {
	m.Type = a.typ
	m.Routing = a.routing
	m.Parent = a.parent
	m.Version = a.version
	m.VersionType = a.versionType
	// routing defaults to the parent id
	if m.Routing == "" && m.Parent != "" {
		m.Routing = m.Parent
	}
}

func (p *Parser) parseAction(raw []byte, line int) (*actionMeta, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ParseError("Malformed action/metadata line [%d], the line is not valid JSON", line)
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, IllegalArgumentError("Malformed action/metadata line [%d], expected START_OBJECT but found [%s]", line, tokenName(root))
	}

	var name string
	var params gjson.Result
	root.ForEach(func(k, v gjson.Result) bool {
		name, params = k.String(), v
		return false
	})
	if name == "" && !params.Exists() {
		return nil, IllegalArgumentError("Malformed action/metadata line [%d], expected FIELD_NAME but found [END_OBJECT]", line)
	}

	a := &actionMeta{
		index:       p.Defaults.Index,
		typ:         p.Defaults.Type,
		routing:     p.Defaults.Routing,
		pipeline:    p.Defaults.Pipeline,
		fetchSource: p.Defaults.FetchSource,
		fields:      p.Defaults.Fields,
		version:     MatchAny,
		versionType: VersionTypeInternal,
	}
	if a.typ == "" {
		a.typ = DefaultType
	}

	switch t := OpType(name); t {
	case OpTypeIndex, OpTypeCreate, OpTypeUpdate, OpTypeDelete:
		a.action = t
	default:
		return nil, IllegalArgumentError("Malformed action/metadata line [%d], expected one of [create, delete, index, update] but found [%s]", line, name)
	}

	if !params.IsObject() {
		if params.Type == gjson.Null {
			return a, nil
		}
		return nil, IllegalArgumentError("Malformed action/metadata line [%d], expected START_OBJECT or END_OBJECT but found [%s]", line, tokenName(params))
	}

	var err error
	params.ForEach(func(k, v gjson.Result) bool {
		err = p.applyParam(a, k.String(), v, line)
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (p *Parser) applyParam(a *actionMeta, field string, v gjson.Result, line int) error {
	if v.IsArray() {
		if field == "_source" {
			return p.applyFetchSource(a, v)
		}
		if field != "fields" {
			return IllegalArgumentError("Malformed action/metadata line [%d], expected a simple value for field [%s] but found [START_ARRAY]", line, field)
		}
		fields, err := cast.ToStringSliceE(v.Value())
		if err != nil {
			return IllegalArgumentError("Malformed action/metadata line [%d], [fields] must be a list of strings", line)
		}
		a.fields = fields
		return nil
	}
	if v.IsObject() {
		if field != "_source" {
			return IllegalArgumentError("Malformed action/metadata line [%d], expected a simple value for field [%s] but found [START_OBJECT]", line, field)
		}
		return p.applyFetchSource(a, v)
	}
	if v.Type == gjson.Null {
		return nil
	}

	switch field {
	case "_index":
		if !p.AllowExplicitIndex {
			return IllegalArgumentError("explicit index in bulk is not allowed")
		}
		a.index = v.String()
	case "_type":
		a.typ = v.String()
	case "_id":
		a.id = v.String()
	case "_routing", "routing":
		a.routing = v.String()
	case "_parent", "parent":
		a.parent = v.String()
	case "op_type", "opType":
		t, err := ParseOpType(v.String())
		if err != nil || (t != OpTypeIndex && t != OpTypeCreate) {
			return IllegalArgumentError("opType must be 'create' or 'index', found: [%s]", v.String())
		}
		a.opType = t
	case "_version", "version":
		n, err := cast.ToInt64E(v.Value())
		if err != nil {
			return IllegalArgumentError("Malformed action/metadata line [%d], [%s] must be a number", line, field)
		}
		a.version = n
	case "_version_type", "_versionType", "version_type", "versionType":
		vt, err := ParseVersionType(v.String())
		if err != nil {
			return IllegalArgumentError("No version type match [%s]", v.String())
		}
		a.versionType = vt
	case "_retry_on_conflict", "_retryOnConflict", "retry_on_conflict":
		n, err := cast.ToIntE(v.Value())
		if err != nil {
			return IllegalArgumentError("Malformed action/metadata line [%d], [%s] must be a number", line, field)
		}
		a.retryOnConflict = n
	case "pipeline":
		a.pipeline = v.String()
	case "fields":
		return IllegalArgumentError("Action/metadata line [%d] contains a simple value for parameter [fields] while a list is expected", line)
	case "_source":
		return p.applyFetchSource(a, v)
	default:
		return IllegalArgumentError("Action/metadata line [%d] contains an unknown parameter [%s]", line, field)
	}
	return nil
}

func (p *Parser) applyFetchSource(a *actionMeta, v gjson.Result) error {
	ctx, err := ParseFetchSource(v.Value())
	if err != nil {
		return err
	}
	a.fetchSource = ctx
	return nil
}

// ParseUpdateBody reads the body of a single document update into op.
func ParseUpdateBody(op *UpdateOp, body []byte) error {
	return parseUpdateBody(op, body, 1)
}

func parseUpdateBody(op *UpdateOp, body []byte, line int) error {
	if !gjson.ValidBytes(body) {
		return ParseError("Failed to parse update request on line [%d]", line)
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return ParseError("Failed to parse update request on line [%d], expected START_OBJECT but found [%s]", line, tokenName(root))
	}

	var err error
	root.ForEach(func(k, v gjson.Result) bool {
		err = applyUpdateField(op, k.String(), v)
		return err == nil
	})
	return err
}

func applyUpdateField(op *UpdateOp, field string, v gjson.Result) error {
	switch field {
	case "script":
		s, err := ParseScript(v)
		if err != nil {
			return err
		}
		op.Script = s
	case "scripted_upsert":
		op.ScriptedUpsert = v.Bool()
	case "upsert":
		if !v.IsObject() {
			return ParseError("[UpdateRequest] failed to parse field [upsert], expected START_OBJECT")
		}
		op.Upsert = json.RawMessage(v.Raw)
	case "doc":
		if !v.IsObject() {
			return ParseError("[UpdateRequest] failed to parse field [doc], expected START_OBJECT")
		}
		op.Doc = json.RawMessage(v.Raw)
	case "doc_as_upsert":
		op.DocAsUpsert = v.Bool()
	case "detect_noop":
		op.DetectNoop = v.Bool()
	case "fields":
		if v.IsArray() {
			fields, err := cast.ToStringSliceE(v.Value())
			if err != nil {
				return ParseError("[UpdateRequest] failed to parse field [fields]")
			}
			op.Fields = fields
		} else {
			op.Fields = stringsx.SplitTrimmed(v.String(), ",")
		}
	case "_source":
		ctx, err := ParseFetchSource(v.Value())
		if err != nil {
			return err
		}
		op.FetchSource = ctx
	default:
		return ParseError("[UpdateRequest] unknown field [%s], parser not found", field)
	}
	return nil
}

// ParseScript reads a script given either as its source or as an object with source, id,
// lang and params.
func ParseScript(v gjson.Result) (*Script, error) {
	if v.Type == gjson.String {
		return &Script{Source: v.String()}, nil
	}
	if !v.IsObject() {
		return nil, ParseError("expected a string or an object for [script] but found [%s]", tokenName(v))
	}

	s := &Script{}
	var err error
	v.ForEach(func(k, val gjson.Result) bool {
		switch k.String() {
		case "source", "inline", "code":
			s.Source = val.String()
		case "id":
			s.ID = val.String()
		case "lang":
			s.Lang = val.String()
		case "params":
			m, ok := val.Value().(map[string]any)
			if !ok {
				err = ParseError("[script] params must be an object")
				return false
			}
			s.Params = m
		default:
			err = ParseError("[script] unknown field [%s], parser not found", k.String())
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if s.Source == "" && s.ID == "" {
		return nil, ParseError("must specify either [source] for an inline script or [id] for a stored script")
	}
	if s.Source != "" && s.ID != "" {
		return nil, ParseError("[script] cannot set both [source] and [id]")
	}
	return s, nil
}

func trimCarriageReturn(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\r' {
		return b[:n-1]
	}
	return b
}

func tokenName(r gjson.Result) string {
	switch {
	case r.IsObject():
		return "START_OBJECT"
	case r.IsArray():
		return "START_ARRAY"
	}
	switch r.Type {
	case gjson.String:
		return "VALUE_STRING"
	case gjson.Number:
		return "VALUE_NUMBER"
	case gjson.True, gjson.False:
		return "VALUE_BOOLEAN"
	case gjson.Null:
		return "VALUE_NULL"
	default:
		return "END_OBJECT"
	}
}
