package clusterx

import (
	"context"
	"time"

	"github.com/clinia/xbulk/timerx"
)

type Resolution int

const (
	Changed Resolution = iota
	TimedOut
	Closed
)

func (r Resolution) String() string {
	switch r {
	case Changed:
		return "changed"
	case TimedOut:
		return "timed_out"
	default:
		return "closed"
	}
}

// Observer waits for topology changes on behalf of one operation, within the operation's
// deadline.
type Observer struct {
	svc      *Service
	observed *State
	deadline time.Time
	timedOut bool
}

// NewObserver starts observing from the current state. A zero timeout never times out.
func NewObserver(svc *Service, timeout time.Duration) *Observer {
	o := &Observer{svc: svc, observed: svc.State()}
	if timeout > 0 {
		o.deadline = time.Now().Add(timeout)
	}
	return o
}

func (o *Observer) ObservedState() *State {
	return o.observed
}

// IsTimedOut reports whether a previous wait ran into the deadline.
func (o *Observer) IsTimedOut() bool {
	return o.timedOut
}

// WaitForNextChange blocks until the state moves past the observed one, the deadline
// passes, the service closes or ctx is done. The observed state is updated in every case
// but Closed.
func (o *Observer) WaitForNextChange(ctx context.Context) Resolution {
	changed := make(chan *State, 1)
	remove := o.svc.AddListener(func(_, cur *State) {
		select {
		case changed <- cur:
		default:
		}
	})
	defer remove()

	if cur := o.svc.State(); cur.Version != o.observed.Version {
		o.observed = cur
		return Changed
	}

	var timeout <-chan time.Time
	if !o.deadline.IsZero() {
		timer := time.NewTimer(time.Until(o.deadline))
		defer timerx.StopTimer(timer)
		timeout = timer.C
	}

	select {
	case cur := <-changed:
		o.observed = cur
		return Changed
	case <-timeout:
		o.timedOut = true
		o.observed = o.svc.State()
		return TimedOut
	case <-ctx.Done():
		o.timedOut = true
		o.observed = o.svc.State()
		return TimedOut
	case <-o.svc.Closed():
		return Closed
	}
}
