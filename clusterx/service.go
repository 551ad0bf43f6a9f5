package clusterx

import (
	"context"
	"sync"

	"github.com/clinia/xbulk/errorx"
	"github.com/clinia/xbulk/loggerx"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
)

// Listener is called after every applied change with the previous and the new state.
type Listener func(prev, cur *State)

type listener struct {
	fn Listener
}

// Service owns the current State. Changes are applied one at a time and published to the
// listeners in order.
type Service struct {
	l *loggerx.Logger

	mu        sync.RWMutex
	state     *State
	listeners []*listener
	closed    chan struct{}
	closeOnce sync.Once

	submitMu sync.Mutex
}

func NewService(l *loggerx.Logger, initial *State) *Service {
	if initial == nil {
		initial = NewState()
	}
	return &Service{
		l:      l,
		state:  initial,
		closed: make(chan struct{}),
	}
}

func (s *Service) State() *State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Submit applies update to a copy of the current state. Returning the input unchanged, or
// nil, is a no-op. Otherwise the version is bumped and the listeners notified.
func (s *Service) Submit(ctx context.Context, source string, update func(*State) (*State, error)) error {
	select {
	case <-s.closed:
		return errorx.UnavailableErrorf("cluster service is closed")
	default:
	}

	s.submitMu.Lock()
	defer s.submitMu.Unlock()

	prev := s.State()
	next, err := update(prev.Clone())
	if err != nil {
		s.l.Debug(ctx, "topology update rejected", attribute.String("source", source), attribute.String("error", err.Error()))
		return err
	}
	if next == nil {
		return nil
	}
	next.Version = prev.Version + 1

	s.mu.Lock()
	s.state = next
	listeners := lo.Map(s.listeners, func(l *listener, _ int) Listener { return l.fn })
	s.mu.Unlock()

	s.l.Debug(ctx, "topology updated", attribute.String("source", source), attribute.Int64("version", next.Version))
	for _, fn := range listeners {
		fn(prev, next)
	}
	return nil
}

// AddListener registers fn and returns the function removing it.
func (s *Service) AddListener(fn Listener) (remove func()) {
	out := &listener{fn: fn}
	s.mu.Lock()
	s.listeners = append(s.listeners, out)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, idx, ok := lo.FindIndexOf(s.listeners, func(l *listener) bool { return l == out }); ok {
			s.listeners = append(s.listeners[:idx], s.listeners[idx+1:]...)
		}
	}
}

// Closed is closed once the service stops accepting changes.
func (s *Service) Closed() <-chan struct{} {
	return s.closed
}

func (s *Service) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
}
