// Package flowpool provides bounded-concurrency fan-out over a slice of
// inputs: the research pipeline owns its item list up front — one
// provider's query batch per search call, one URL per extraction — and
// runs a processor that never fails the whole batch. Built on the same
// errgroup.SetLimit concurrency-bounding idiom used elsewhere in this
// module, with pkg/safe.WithRecover layered in so a panicking worker
// degrades to a recovered zero-value result instead of crashing the pool.
package flowpool

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/tangerg/deepresearch/pkg/safe"
)

// Map applies fn to every item in items, running at most parallelism
// workers concurrently, and returns results in input order. If
// parallelism <= 0, all items run concurrently. fn is expected to handle
// its own errors (by returning a result value carrying them); Map itself
// never fails.
func Map[I any, O any](ctx context.Context, items []I, parallelism int, fn func(context.Context, I) O) []O {
	results := make([]O, len(items))
	if len(items) == 0 {
		return results
	}

	group, groupCtx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		group.SetLimit(parallelism)
	}

	for i, item := range items {
		i, item := i, item
		group.Go(func() error {
			if groupCtx.Err() != nil {
				return nil
			}
			safe.WithRecover(func() {
				results[i] = fn(groupCtx, item)
			})()
			return nil
		})
	}
	_ = group.Wait()
	return results
}

// MapErr is Map for functions that separately report an error, collecting
// results and errors in parallel input-order slices. Useful when a
// caller wants to distinguish "ran and failed" from "produced a zero
// value".
func MapErr[I any, O any](ctx context.Context, items []I, parallelism int, fn func(context.Context, I) (O, error)) ([]O, []error) {
	type pair struct {
		val O
		err error
	}
	pairs := Map(ctx, items, parallelism, func(ctx context.Context, item I) pair {
		v, err := fn(ctx, item)
		return pair{v, err}
	})
	results := make([]O, len(pairs))
	errs := make([]error, len(pairs))
	for i, p := range pairs {
		results[i] = p.val
		errs[i] = p.err
	}
	return results, errs
}
