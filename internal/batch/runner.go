package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/klytics/docbridge/internal/formats/convert"
)

// Task outcomes.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// Result is the outcome of one task.
type Result struct {
	JobID    string        `json:"job"`
	Input    string        `json:"input"`
	Output   string        `json:"output,omitempty"`
	Status   string        `json:"status"`
	Native   bool          `json:"native"`
	Warnings int           `json:"warnings"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"durationNs"`
}

// Runner runs tasks on at most Workers goroutines. The converter is shared;
// it holds no per-conversion state.
type Runner struct {
	conv    *convert.Converter
	workers int
	log     *zap.Logger

	// Progress, when set, is called once per finished task. Calls are
	// serialized.
	Progress func(done, total int, r Result)
}

// NewRunner returns a Runner. workers below 1 runs tasks one at a time.
func NewRunner(conv *convert.Converter, workers int, log *zap.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{conv: conv, workers: workers, log: log}
}

// Run plans m relative to dir and converts every task. Results are returned
// in plan order. With on_failure: stop, the first failure cancels the tasks
// not yet started, which are reported as skipped, and Run returns an error.
func (r *Runner) Run(ctx context.Context, m *Manifest, dir string) ([]Result, error) {
	tasks, err := m.Plan(dir)
	if err != nil {
		return nil, err
	}

	workers := r.workers
	if m.Workers > 0 {
		workers = m.Workers
	}
	conv := r.conv
	if m.Standalone && !conv.Options().Standalone {
		opts := conv.Options()
		opts.Standalone = true
		conv = conv.WithOptions(opts)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.log.Info("running manifest",
		zap.String("name", m.Name),
		zap.Int("tasks", len(tasks)),
		zap.Int("workers", workers),
	)

	results := make([]Result, len(tasks))
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		done     int
		firstErr error
	)
	sem := make(chan struct{}, workers)

	for i, t := range tasks {
		wg.Add(1)
		go func(idx int, t Task) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
			}

			var res Result
			if ctx.Err() != nil {
				res = Result{JobID: t.JobID, Input: t.Input, Status: StatusSkipped}
			} else {
				res = runTask(ctx, conv, t)
			}

			mu.Lock()
			defer mu.Unlock()
			results[idx] = res
			done++
			if res.Status == StatusError {
				r.log.Warn("task failed", zap.String("job", t.JobID), zap.String("input", t.Input), zap.String("error", res.Error))
				if m.OnFailure == OnFailureStop && firstErr == nil {
					firstErr = fmt.Errorf("job %q failed on %s: %s", t.JobID, t.Input, res.Error)
					cancel()
				}
			}
			if r.Progress != nil {
				r.Progress(done, len(tasks), res)
			}
		}(i, t)
	}
	wg.Wait()

	if firstErr != nil {
		return results, firstErr
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

func runTask(ctx context.Context, conv *convert.Converter, t Task) Result {
	start := time.Now()
	res := Result{JobID: t.JobID, Input: t.Input, Status: StatusOK}

	fr, err := conv.ConvertFile(ctx, t.Input, t.Output, t.To, t.Base)
	res.Duration = time.Since(start)
	if err != nil {
		res.Status = StatusError
		res.Error = err.Error()
		return res
	}
	res.Output = fr.Path
	res.Native = fr.Native
	res.Warnings = len(fr.Warnings)
	return res
}

// Summary counts results by status.
func Summary(results []Result) (ok, failed, skipped int) {
	for _, r := range results {
		switch r.Status {
		case StatusOK:
			ok++
		case StatusError:
			failed++
		case StatusSkipped:
			skipped++
		}
	}
	return ok, failed, skipped
}
