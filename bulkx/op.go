package bulkx

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/clinia/xbulk/errorx"
	"github.com/tidwall/gjson"
)

type OpType string

const (
	OpTypeIndex  OpType = "index"
	OpTypeCreate OpType = "create"
	OpTypeUpdate OpType = "update"
	OpTypeDelete OpType = "delete"
)

func (t OpType) String() string {
	return string(t)
}

func ParseOpType(s string) (OpType, error) {
	switch t := OpType(s); t {
	case OpTypeIndex, OpTypeCreate, OpTypeUpdate, OpTypeDelete:
		return t, nil
	default:
		return "", errorx.InvalidArgumentErrorf("opType must be 'create' or 'index', found: [%s]", s)
	}
}

type VersionType string

const (
	VersionTypeInternal    VersionType = "internal"
	VersionTypeExternal    VersionType = "external"
	VersionTypeExternalGTE VersionType = "external_gte"
	VersionTypeForce       VersionType = "force"
)

const (
	// MatchAny means no version was supplied by the caller.
	MatchAny int64 = -3
	// NotFound is the version reported for documents that do not exist.
	NotFound int64 = -1
)

func ParseVersionType(s string) (VersionType, error) {
	switch t := VersionType(s); t {
	case VersionTypeInternal, VersionTypeExternal, VersionTypeExternalGTE, VersionTypeForce:
		return t, nil
	case "external_gt":
		return VersionTypeExternal, nil
	default:
		return "", errorx.InvalidArgumentErrorf("No version type match [%s]", s)
	}
}

// ValidVersionForWrites reports whether v can be written with the version type.
func (t VersionType) ValidVersionForWrites(v int64) bool {
	switch t {
	case VersionTypeExternal, VersionTypeExternalGTE, VersionTypeForce:
		return v >= 0
	default:
		return v > 0 || v == MatchAny
	}
}

type RefreshPolicy string

const (
	RefreshNone      RefreshPolicy = ""
	RefreshImmediate RefreshPolicy = "true"
	RefreshWaitFor   RefreshPolicy = "wait_for"
)

func ParseRefreshPolicy(s string) (RefreshPolicy, error) {
	switch s {
	case "", "false":
		return RefreshNone, nil
	case "true":
		return RefreshImmediate, nil
	case "wait_for":
		return RefreshWaitFor, nil
	default:
		return RefreshNone, errorx.InvalidArgumentErrorf("Unknown value for refresh: [%s].", s)
	}
}

// ActiveShardCount is the number of shard copies that must be active before a write proceeds.
type ActiveShardCount int

const (
	ActiveShardsDefault ActiveShardCount = -2
	ActiveShardsAll     ActiveShardCount = -1
)

func ParseActiveShardCount(s string) (ActiveShardCount, error) {
	switch s {
	case "", "default":
		return ActiveShardsDefault, nil
	case "all":
		return ActiveShardsAll, nil
	}

	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return ActiveShardsDefault, errorx.InvalidArgumentErrorf("cannot parse ActiveShardCount[%s]", s)
	}
	return ActiveShardCount(n), nil
}

func (c ActiveShardCount) String() string {
	switch c {
	case ActiveShardsDefault:
		return "default"
	case ActiveShardsAll:
		return "all"
	default:
		return strconv.Itoa(int(c))
	}
}

// Script is a reference to user supplied transform code.
type Script struct {
	Source string         `json:"source,omitempty"`
	ID     string         `json:"id,omitempty"`
	Lang   string         `json:"lang,omitempty"`
	Params map[string]any `json:"params,omitempty"`
}

// IDOrCode identifies the script in logs.
func (s *Script) IDOrCode() string {
	if s.ID != "" {
		return s.ID
	}
	return s.Source
}

// Op is a single write of a bulk request. It is implemented by *IndexOp, *UpdateOp and
// *DeleteOp only; switch on the concrete type to handle every kind.
type Op interface {
	OpType() OpType
	IndexName() string
	SetIndexName(index string)
	TypeName() string
	DocID() string
	RoutingKey() string
	SetRoutingKey(routing string)
	ParentID() string
	RefreshPolicy() RefreshPolicy
	VersionValue() int64
	VersionKind() VersionType

	// validate returns the item level validation messages.
	validate() []string
	sizeInBytes() int64
}

// DocMeta holds the metadata shared by every operation kind.
type DocMeta struct {
	Index       string
	Type        string
	ID          string
	Routing     string
	Parent      string
	Version     int64
	VersionType VersionType
	Refresh     RefreshPolicy
}

func newDocMeta(index, id string) DocMeta {
	return DocMeta{
		Index:       index,
		Type:        DefaultType,
		ID:          id,
		Version:     MatchAny,
		VersionType: VersionTypeInternal,
	}
}

func (m *DocMeta) IndexName() string { return m.Index }
func (m *DocMeta) SetIndexName(index string) { m.Index = index }
func (m *DocMeta) TypeName() string { return m.Type }
func (m *DocMeta) DocID() string { return m.ID }
func (m *DocMeta) RoutingKey() string { return m.Routing }
func (m *DocMeta) SetRoutingKey(routing string) { m.Routing = routing }
func (m *DocMeta) ParentID() string { return m.Parent }
func (m *DocMeta) RefreshPolicy() RefreshPolicy { return m.Refresh }
func (m *DocMeta) VersionValue() int64 { return m.Version }
func (m *DocMeta) VersionKind() VersionType { return m.VersionType }

func (m *DocMeta) validateMeta() []string {
	var msgs []string
	if m.Index == "" {
		msgs = append(msgs, "index is missing")
	}
	if !m.VersionType.ValidVersionForWrites(m.Version) {
		msgs = append(msgs, fmt.Sprintf("illegal version value [%d] for version type [%s]", m.Version, m.VersionType))
	}
	return msgs
}

// IndexOp writes a whole document. Create is the index operation with Create set.
type IndexOp struct {
	DocMeta
	Source   json.RawMessage
	Create   bool
	Pipeline string
	// AutoGeneratedID is set when the id was generated while routing.
	AutoGeneratedID bool
}

func NewIndexOp(index, id string, source json.RawMessage) *IndexOp {
	return &IndexOp{DocMeta: newDocMeta(index, id), Source: source}
}

func NewCreateOp(index, id string, source json.RawMessage) *IndexOp {
	op := NewIndexOp(index, id, source)
	op.Create = true
	return op
}

func (o *IndexOp) OpType() OpType {
	if o.Create {
		return OpTypeCreate
	}
	return OpTypeIndex
}

func (o *IndexOp) validate() []string {
	var msgs []string
	if len(o.Source) == 0 {
		msgs = append(msgs, "source is missing")
	} else if !gjson.ValidBytes(o.Source) || !gjson.ParseBytes(o.Source).IsObject() {
		msgs = append(msgs, "source must be a JSON object")
	}
	if o.Create && o.VersionType != VersionTypeInternal {
		msgs = append(msgs, "create operations only support internal versioning. use index instead")
	}
	return append(msgs, o.validateMeta()...)
}

func (o *IndexOp) sizeInBytes() int64 {
	return int64(len(o.Source))
}

// UpdateOp changes an existing document through a partial document or a script.
type UpdateOp struct {
	DocMeta
	Doc             json.RawMessage
	Upsert          json.RawMessage
	Script          *Script
	ScriptedUpsert  bool
	DocAsUpsert     bool
	DetectNoop      bool
	RetryOnConflict int
	FetchSource     *FetchSourceContext
	// Fields is deprecated in favor of FetchSource.
	Fields []string
}

func NewUpdateOp(index, id string) *UpdateOp {
	return &UpdateOp{DocMeta: newDocMeta(index, id), DetectNoop: true}
}

func (o *UpdateOp) OpType() OpType { return OpTypeUpdate }

func (o *UpdateOp) validate() []string {
	var msgs []string
	if o.ID == "" {
		msgs = append(msgs, "id is missing")
	}
	if o.VersionType != VersionTypeInternal && o.VersionType != VersionTypeForce {
		msgs = append(msgs, fmt.Sprintf("version type [%s] is not supported by the update API", o.VersionType))
	}
	msgs = append(msgs, o.validateMeta()...)
	if o.Version != MatchAny && len(o.Upsert) > 0 {
		msgs = append(msgs, "can't provide both upsert request and a version")
	}
	switch {
	case o.Script == nil && len(o.Doc) == 0:
		msgs = append(msgs, "script or doc is missing")
	case o.Script != nil && len(o.Doc) > 0:
		msgs = append(msgs, "can't provide both script and doc")
	}
	if o.DocAsUpsert && len(o.Doc) == 0 {
		msgs = append(msgs, "doc must be specified if doc_as_upsert is enabled")
	}
	if o.RetryOnConflict < 0 {
		msgs = append(msgs, "retry_on_conflict must be greater or equal to 0")
	}
	return msgs
}

func (o *UpdateOp) sizeInBytes() int64 {
	n := int64(len(o.Doc) + len(o.Upsert))
	if o.Script != nil {
		n += int64(len(o.Script.Source))
	}
	return n
}

type DeleteOp struct {
	DocMeta
}

func NewDeleteOp(index, id string) *DeleteOp {
	return &DeleteOp{DocMeta: newDocMeta(index, id)}
}

func (o *DeleteOp) OpType() OpType { return OpTypeDelete }

func (o *DeleteOp) validate() []string {
	var msgs []string
	if o.ID == "" {
		msgs = append(msgs, "id is missing")
	}
	return append(msgs, o.validateMeta()...)
}

func (o *DeleteOp) sizeInBytes() int64 { return 0 }

// ValidateOp returns the item level validation error of op, or nil.
func ValidateOp(op Op) error {
	msgs := op.validate()
	if len(msgs) == 0 {
		return nil
	}
	return ValidationError(msgs...)
}

var (
	_ Op = (*IndexOp)(nil)
	_ Op = (*UpdateOp)(nil)
	_ Op = (*DeleteOp)(nil)
)
