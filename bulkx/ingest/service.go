package ingest

import (
	"context"
	"sync"

	"github.com/clinia/xbulk/bulkx"
	"github.com/clinia/xbulk/errorx"
	"github.com/clinia/xbulk/loggerx"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
)

// NoPipeline disables preprocessing for an item.
const NoPipeline = "_none"

type Pipeline struct {
	ID          string
	Description string
	Processors  []Processor

	ignoreFailure []bool
}

// ParsePipeline reads a pipeline definition:
//
//	{"description": "...", "processors": [{"set": {"field": "a", "value": 1}}]}
func ParsePipeline(id string, config []byte) (*Pipeline, error) {
	if !gjson.ValidBytes(config) {
		return nil, errorx.InvalidArgumentErrorf("pipeline [%s] is not valid JSON", id)
	}
	root := gjson.ParseBytes(config)
	procs := root.Get("processors")
	if !procs.IsArray() {
		return nil, errorx.InvalidArgumentErrorf("[processors] required property is missing")
	}

	p := &Pipeline{ID: id, Description: root.Get("description").String()}
	var err error
	procs.ForEach(func(_, entry gjson.Result) bool {
		if !entry.IsObject() || len(entry.Map()) != 1 {
			err = errorx.InvalidArgumentErrorf("a processor must be an object with a single key")
			return false
		}
		entry.ForEach(func(key, cfg gjson.Result) bool {
			factory, ok := factories[key.String()]
			if !ok {
				err = errorx.InvalidArgumentErrorf("No processor type exists with name [%s]", key.String())
				return false
			}
			var proc Processor
			if proc, err = factory(cfg); err != nil {
				return false
			}
			p.Processors = append(p.Processors, proc)
			p.ignoreFailure = append(p.ignoreFailure, cfg.Get("ignore_failure").Bool())
			return true
		})
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Run executes the processors in order and stops at the first failure that is not ignored.
func (p *Pipeline) Run(doc *Document) error {
	for i, proc := range p.Processors {
		if err := proc.Execute(doc); err != nil {
			if p.ignoreFailure[i] {
				continue
			}
			return bulkx.IngestProcessorError(proc.Type(), err)
		}
	}
	return nil
}

// Service holds the registered pipelines and implements Executor.
type Service struct {
	l         *loggerx.Logger
	mu        sync.RWMutex
	pipelines map[string]*Pipeline
}

var _ Executor = (*Service)(nil)

func NewService(l *loggerx.Logger) *Service {
	return &Service{
		l:         l,
		pipelines: map[string]*Pipeline{},
	}
}

func (s *Service) PutPipeline(id string, config []byte) error {
	p, err := ParsePipeline(id, config)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipelines[id] = p
	return nil
}

func (s *Service) GetPipeline(id string) (*Pipeline, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pipelines[id]
	return p, ok
}

func (s *Service) DeletePipeline(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pipelines[id]; !ok {
		return errorx.NotFoundErrorf("pipeline [%s] is missing", id)
	}
	delete(s.pipelines, id)
	return nil
}

// ExecuteBulk runs the pipeline of every index and create item. A processed item has its
// pipeline cleared so it is not processed twice.
func (s *Service) ExecuteBulk(ctx context.Context, it Iterator, onFailure func(op *bulkx.IndexOp, err error)) error {
	for it.HasNext() {
		if err := ctx.Err(); err != nil {
			return err
		}

		op, ok := it.Next().(*bulkx.IndexOp)
		if !ok || op.Pipeline == "" {
			continue
		}
		if op.Pipeline == NoPipeline {
			op.Pipeline = ""
			continue
		}

		p, ok := s.GetPipeline(op.Pipeline)
		if !ok {
			onFailure(op, bulkx.IllegalArgumentError("pipeline with id [%s] does not exist", op.Pipeline))
			continue
		}

		doc := &Document{Index: op.Index, ID: op.ID, Routing: op.Routing, Source: append([]byte(nil), op.Source...)}
		if err := p.Run(doc); err != nil {
			s.l.Debug(ctx, "failed to execute pipeline for document",
				attribute.String("pipeline", p.ID),
				attribute.String("index", op.Index),
				attribute.String("id", op.ID),
				attribute.String("error", err.Error()),
			)
			onFailure(op, err)
			continue
		}
		doc.apply(op)
		op.Pipeline = ""
	}
	return nil
}
