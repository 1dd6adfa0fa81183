package transform

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

// Input is one named source of a batch.
type Input struct {
	Name   string
	Source []byte
}

// Result is the outcome of one batch entry; exactly one of Output and Err is set.
type Result struct {
	Output *Output
	Err    error
	Name   string
	// Source is the original content, kept for diffs and write-back.
	Source []byte
}

// Batch transforms inputs concurrently. Results keep the input order. A
// failing file never stops the others; the returned error is only set when
// ctx is cancelled.
func (tr *Transformer) Batch(ctx context.Context, inputs []Input) ([]Result, error) {
	return tr.run(ctx, len(inputs), func(ctx context.Context, idx int) Result {
		out, err := tr.File(ctx, inputs[idx].Name, inputs[idx].Source)

		return Result{Name: inputs[idx].Name, Source: inputs[idx].Source, Output: out, Err: err}
	})
}

// Paths reads and transforms files concurrently.
func (tr *Transformer) Paths(ctx context.Context, paths []string) ([]Result, error) {
	return tr.run(ctx, len(paths), func(ctx context.Context, idx int) Result {
		source, err := ReadFile(paths[idx], tr.maxSize)
		if err != nil {
			return Result{Name: paths[idx], Err: err}
		}

		out, err := tr.File(ctx, paths[idx], source)

		return Result{Name: paths[idx], Source: source, Output: out, Err: err}
	})
}

func (tr *Transformer) run(ctx context.Context, count int, job func(context.Context, int) Result) ([]Result, error) {
	results := make([]Result, count)

	workers := tr.workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)

	for idx := range count {
		if groupCtx.Err() != nil {
			break
		}

		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return fmt.Errorf("batch: %w", err)
			}

			results[idx] = job(groupCtx, idx)

			return nil
		})
	}

	err := group.Wait()
	if err == nil {
		err = ctx.Err()
	}

	if err != nil {
		return results, fmt.Errorf("batch: %w", err)
	}

	return results, nil
}

// Errors joins the per-file errors of results, or returns nil.
func Errors(results []Result) error {
	var errs []error

	for _, result := range results {
		if result.Err != nil {
			errs = append(errs, result.Err)
		}
	}

	return errors.Join(errs...)
}

// Summary counts the outcomes of a batch.
type Summary struct {
	Files     int    `json:"files"`
	Rewritten int    `json:"rewritten"`
	Unchanged int    `json:"unchanged"`
	Failed    int    `json:"failed"`
	Rewrites  int    `json:"rewrites"`
	Bytes     uint64 `json:"bytes"`
}

// Summarize counts results.
func Summarize(results []Result) Summary {
	summary := Summary{Files: len(results)}

	for _, result := range results {
		summary.Bytes += uint64(len(result.Source))

		switch {
		case result.Err != nil:
			summary.Failed++
		case result.Output.Changed:
			summary.Rewritten++
			summary.Rewrites += len(result.Output.Rewrites)
		default:
			summary.Unchanged++
		}
	}

	return summary
}

func (summary Summary) String() string {
	return fmt.Sprintf("%d files (%s): %d rewritten, %d unchanged, %d failed, %d specifiers rewritten",
		summary.Files, humanize.Bytes(summary.Bytes), summary.Rewritten, summary.Unchanged, summary.Failed, summary.Rewrites)
}
