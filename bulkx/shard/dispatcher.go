package shard

import (
	"context"

	"github.com/clinia/xbulk/bulkx"
	"github.com/clinia/xbulk/loggerx"
	"github.com/clinia/xbulk/tracex"
)

// Dispatcher sends a shard request to wherever the shard lives. An error means the
// request as a whole could not be executed.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *Request) (*Response, error)
}

// LocalDispatcher executes shard requests in process.
type LocalDispatcher struct {
	l    *loggerx.Logger
	exec *Executor
}

var _ Dispatcher = (*LocalDispatcher)(nil)

func NewLocalDispatcher(l *loggerx.Logger, exec *Executor) *LocalDispatcher {
	return &LocalDispatcher{l: l, exec: exec}
}

// Dispatch runs req within its timeout. A panic while executing fails the whole request
// with a transport error.
func (d *LocalDispatcher) Dispatch(ctx context.Context, req *Request) (resp *Response, err error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	defer tracex.RecoverWithError(ctx, d.l, "panic while executing shard request", func(cause error) {
		resp, err = nil, bulkx.TransportError(req.Shard.String(), cause)
	})
	return d.exec.Execute(ctx, req)
}
