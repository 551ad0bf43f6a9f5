package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/clinia/xbulk/bulkx"
	"github.com/clinia/xbulk/errorx"
	"github.com/clinia/xbulk/retryx"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// autoCreateIndices creates the missing indices of op concurrently and fails the items
// of every index that could not be created. Indices the policy forbids are recorded on op
// and fail while routing. It returns the creation failures.
func (c *Coordinator) autoCreateIndices(ctx context.Context, op *bulkOperation) []error {
	ctx, span, l := c.instrument(ctx, "autoCreateIndices")
	defer span.End()

	state := c.cluster.State()
	var toCreate []string
	for _, index := range op.req.Indices() {
		create, err := c.autoCreate.ShouldAutoCreate(index, state)
		if err != nil {
			op.cannotCreate[index] = err
			continue
		}
		if create {
			toCreate = append(toCreate, index)
		}
	}
	if len(toCreate) == 0 {
		return nil
	}
	span.SetAttributes(attribute.StringSlice("bulk.auto_create", toCreate))

	var (
		mu       sync.Mutex
		failures = map[string]error{}
		g        errgroup.Group
	)
	for _, index := range toCreate {
		g.Go(func() error {
			err := c.createIndex(ctx, index, op.req.Timeout)
			c.metrics.recordAutoCreate(ctx, err)
			if err != nil {
				l.WithError(err).Warn(ctx, "failed to auto create index", attribute.String("index", index))
				mu.Lock()
				failures[index] = err
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, index := range toCreate {
		err, ok := failures[index]
		if !ok {
			continue
		}
		op.failIndex(index, err)
		errs = append(errs, err)
	}
	return errs
}

// createIndex creates index, retrying while the creator is unavailable. An index created
// concurrently by someone else counts as created. Earlier attempts are kept as suppressed
// errors of the returned one.
func (c *Coordinator) createIndex(ctx context.Context, index string, timeout time.Duration) error {
	var attempts []error
	_ = retryx.ExponentialRetry(func() error {
		err := c.creator.CreateIndex(ctx, index, timeout)
		if err == nil || errorx.IsAlreadyExistsError(err) {
			attempts = nil
			return nil
		}
		attempts = append(attempts, err)
		if !errorx.IsUnavailableError(err) {
			return backoff.Permanent(err)
		}
		return err
	},
		retryx.WithRetryCount(c.createAttempts),
		retryx.WithInterval(c.createInterval),
		retryx.WithContext(ctx),
	)
	if len(attempts) == 0 {
		return nil
	}

	last := bulkx.ForItem(attempts[len(attempts)-1], index, "")
	if len(attempts) > 1 {
		last = last.WithSuppressed(attempts[:len(attempts)-1]...)
	}
	return last
}
