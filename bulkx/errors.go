package bulkx

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/clinia/xbulk/errorx"
	"github.com/pkg/errors"
)

// ErrorKind is the wire type of an item or batch error.
type ErrorKind string

const (
	KindValidation            ErrorKind = "action_request_validation_exception"
	KindIllegalArgument       ErrorKind = "illegal_argument_exception"
	KindDocumentMissing       ErrorKind = "document_missing_exception"
	KindDocumentSourceMissing ErrorKind = "document_source_missing_exception"
	KindScriptExecution       ErrorKind = "script_exception"
	KindIndexNotFound         ErrorKind = "index_not_found_exception"
	KindIndexClosed           ErrorKind = "index_closed_exception"
	KindVersionConflict       ErrorKind = "version_conflict_engine_exception"
	KindClusterBlock          ErrorKind = "cluster_block_exception"
	KindRoutingMissing        ErrorKind = "routing_missing_exception"
	KindTransport             ErrorKind = "transport_exception"
	KindNodeClosed            ErrorKind = "node_closed_exception"
	KindResourceAlreadyExists ErrorKind = "resource_already_exists_exception"
	KindInvalidIndexName      ErrorKind = "invalid_index_name_exception"
	KindIngestProcessor       ErrorKind = "ingest_processor_exception"
	KindTimeout               ErrorKind = "timeout_exception"
	KindParse                 ErrorKind = "parse_exception"
	KindGeneric               ErrorKind = "exception"
)

// ItemError is an error attributed to a bulk item or to the whole batch. The wrapped
// CliniaError holds the reason and decides the status code.
type ItemError struct {
	Kind  ErrorKind
	Index string
	ID    string
	Err   *errorx.CliniaError

	// Suppressed holds earlier failures that were superseded by this one.
	Suppressed []error
}

var _ error = (*ItemError)(nil)

func (e *ItemError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Kind, e.Reason())
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

func (e *ItemError) Reason() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Message
}

// Cause returns the error that triggered this one, if any.
func (e *ItemError) Cause() error {
	if e.Err == nil {
		return nil
	}
	return e.Err.OriginalError
}

func (e *ItemError) Status() int {
	if e.Err == nil {
		return http.StatusInternalServerError
	}
	return e.Err.Type.HTTPStatus()
}

// WithSuppressed returns a copy of the error carrying the given superseded failures.
func (e *ItemError) WithSuppressed(errs ...error) *ItemError {
	out := *e
	out.Suppressed = append(append([]error{}, e.Suppressed...), errs...)
	return &out
}

func (e *ItemError) withCause(cause error) *ItemError {
	e.Err = e.Err.WithOriginalError(cause)
	return e
}

func newItemError(kind ErrorKind, index, id string, err *errorx.CliniaError) *ItemError {
	return &ItemError{Kind: kind, Index: index, ID: id, Err: err}
}

// AsItemError finds the first ItemError in the chain of err.
func AsItemError(err error) (*ItemError, bool) {
	var ie *ItemError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}

// KindOf returns the wire type of err.
func KindOf(err error) ErrorKind {
	if ie, ok := AsItemError(err); ok {
		return ie.Kind
	}
	switch errorx.TypeOf(err) {
	case errorx.ErrorTypeInvalidArgument:
		return KindIllegalArgument
	case errorx.ErrorTypeDeadlineExceeded:
		return KindTimeout
	case errorx.ErrorTypeAlreadyExists:
		return KindResourceAlreadyExists
	case errorx.ErrorTypeNotFound:
		return KindIndexNotFound
	default:
		return KindGeneric
	}
}

// StatusOf returns the HTTP status code matching err.
func StatusOf(err error) int {
	if ie, ok := AsItemError(err); ok {
		return ie.Status()
	}
	return errorx.TypeOf(err).HTTPStatus()
}

// ValidationError joins item validation messages the way batch validation reports them.
func ValidationError(msgs ...string) *ItemError {
	var b strings.Builder
	b.WriteString("Validation Failed: ")
	for i, m := range msgs {
		fmt.Fprintf(&b, "%d: %s;", i+1, m)
	}
	return newItemError(KindValidation, "", "", errorx.InvalidArgumentErrorf("%s", b.String()))
}

func IllegalArgumentError(format string, args ...any) *ItemError {
	return newItemError(KindIllegalArgument, "", "", errorx.InvalidArgumentErrorf(format, args...))
}

func ParseError(format string, args ...any) *ItemError {
	return newItemError(KindParse, "", "", errorx.InvalidArgumentErrorf(format, args...))
}

func DocumentMissingError(index, typ, id string) *ItemError {
	return newItemError(KindDocumentMissing, index, id, errorx.NotFoundErrorf("[%s][%s]: document missing", typ, id))
}

func DocumentSourceMissingError(index, typ, id string) *ItemError {
	return newItemError(KindDocumentSourceMissing, index, id, errorx.FailedPreconditionErrorf("[%s][%s]: document source missing", typ, id))
}

// ScriptExecutionError wraps a failure of user supplied script code.
func ScriptExecutionError(cause error) *ItemError {
	return newItemError(KindScriptExecution, "", "", errorx.InvalidArgumentErrorf("failed to execute script")).withCause(cause)
}

func IndexNotFoundError(index string) *ItemError {
	return newItemError(KindIndexNotFound, index, "", errorx.NotFoundErrorf("no such index [%s]", index))
}

// AutoCreateForbiddenError is an IndexNotFoundError explaining why the index was not created.
func AutoCreateForbiddenError(index, why string) *ItemError {
	return newItemError(KindIndexNotFound, index, "", errorx.NotFoundErrorf("no such index [%s] and %s", index, why))
}

func IndexClosedError(index string) *ItemError {
	return newItemError(KindIndexClosed, index, "", errorx.FailedPreconditionErrorf("closed"))
}

func InvalidIndexNameError(index, why string) *ItemError {
	return newItemError(KindInvalidIndexName, index, "", errorx.InvalidArgumentErrorf("Invalid index name [%s], %s", index, why))
}

func ResourceAlreadyExistsError(index string) *ItemError {
	return newItemError(KindResourceAlreadyExists, index, "", errorx.AlreadyExistsErrorf("index [%s] already exists", index))
}

// VersionConflictError reports a failed compare and set on a document.
func VersionConflictError(index, typ, id, reason string) *ItemError {
	return newItemError(KindVersionConflict, index, id, errorx.AbortedErrorf("[%s][%s]: version conflict, %s", typ, id, reason))
}

func RoutingMissingError(index, typ, id string) *ItemError {
	return newItemError(KindRoutingMissing, index, id, errorx.InvalidArgumentErrorf("routing is required for [%s]/[%s]/[%s]", index, typ, id))
}

// TransportError is the failure of a whole partition sub-batch.
func TransportError(shard string, cause error) *ItemError {
	return newItemError(KindTransport, "", "", errorx.UnavailableErrorf("failed to execute bulk on shard %s", shard)).withCause(cause)
}

func NodeClosedError() *ItemError {
	return newItemError(KindNodeClosed, "", "", errorx.UnavailableErrorf("node closed while waiting for a topology change"))
}

// ClusterBlockError reports the write blocks that prevented the batch from executing.
func ClusterBlockError(retryable bool, descriptions ...string) *ItemError {
	reason := "blocked by: [" + strings.Join(descriptions, "];[") + "];"
	if retryable {
		return newItemError(KindClusterBlock, "", "", errorx.UnavailableErrorf("%s", reason))
	}
	return newItemError(KindClusterBlock, "", "", errorx.FailedPreconditionErrorf("%s", reason))
}

// IngestProcessorError reports a failed processor. The reason carries the message of cause.
func IngestProcessorError(processor string, cause error) *ItemError {
	msg := cause.Error()
	if ce, ok := errorx.IsCliniaError(cause); ok {
		msg = ce.Message
	}
	return newItemError(KindIngestProcessor, "", "", errorx.InvalidArgumentErrorf("processor [%s] failed: %s", processor, msg)).withCause(cause)
}

func TimeoutError(format string, args ...any) *ItemError {
	return newItemError(KindTimeout, "", "", errorx.DeadlineExceededErrorf(format, args...))
}

// ForItem returns a copy of err bound to a document. Errors that are not ItemErrors are
// wrapped into a generic item error.
func ForItem(err error, index, id string) *ItemError {
	ie, ok := AsItemError(err)
	if !ok {
		ce, isClinia := errorx.IsCliniaError(err)
		if !isClinia {
			ce = errorx.InternalErrorf("%s", err.Error()).WithOriginalError(err)
		}
		ie = newItemError(KindOf(err), "", "", ce)
	}
	out := *ie
	if out.Index == "" {
		out.Index = index
	}
	if out.ID == "" {
		out.ID = id
	}
	return &out
}

// ErrorBody is the JSON rendering of an error.
type ErrorBody struct {
	Type       ErrorKind    `json:"type"`
	Reason     string       `json:"reason"`
	Index      string       `json:"index,omitempty"`
	CausedBy   *ErrorBody   `json:"caused_by,omitempty"`
	Suppressed []*ErrorBody `json:"suppressed,omitempty"`
}

func NewErrorBody(err error) *ErrorBody {
	if err == nil {
		return nil
	}
	ie, ok := AsItemError(err)
	if !ok {
		reason := err.Error()
		if ce, isClinia := errorx.IsCliniaError(err); isClinia {
			reason = ce.Message
		}
		return &ErrorBody{Type: KindOf(err), Reason: reason}
	}

	body := &ErrorBody{
		Type:     ie.Kind,
		Reason:   ie.Reason(),
		Index:    ie.Index,
		CausedBy: NewErrorBody(ie.Cause()),
	}
	for _, s := range ie.Suppressed {
		body.Suppressed = append(body.Suppressed, NewErrorBody(s))
	}
	return body
}
