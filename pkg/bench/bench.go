// Package bench measures append throughput of record stores.
//
// Each iteration opens a fresh target, appends Ops records across Workers
// goroutines, commits and closes it. Only the appends and the commit are
// timed.
package bench

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ssargent/pagestore/pkg/serializer"
)

// Workload produces the payload appended by every operation.
type Workload struct {
	Name    string
	Payload func() ([]byte, error)
}

func fixed(n int) func() ([]byte, error) {
	b := make([]byte, n)
	return func() ([]byte, error) { return b, nil }
}

// Workloads are the standard append workloads.
var Workloads = []Workload{
	{Name: "zero", Payload: func() ([]byte, error) { return serializer.Int64{}.Serialize(0) }},
	{Name: "small", Payload: fixed(1 << 10)},
	{Name: "medium", Payload: fixed(64 << 10)},
	{Name: "big", Payload: fixed(128 << 10)},
}

// WorkloadByName looks up one of Workloads.
func WorkloadByName(name string) (Workload, error) {
	for _, w := range Workloads {
		if w.Name == name {
			return w, nil
		}
	}
	return Workload{}, fmt.Errorf("unknown workload %q", name)
}

// Options controls a run.
type Options struct {
	Ops        int
	Workers    int
	Iterations int
}

// Result is the outcome of one workload on one target.
type Result struct {
	Target     string        `json:"target"`
	Workload   string        `json:"workload"`
	Iterations int           `json:"iterations"`
	Ops        int           `json:"ops"`
	Workers    int           `json:"workers"`
	Elapsed    time.Duration `json:"elapsed_ns"`
	Commit     time.Duration `json:"commit_ns"`
	OpsPerMs   float64       `json:"ops_per_ms"`
	P50        time.Duration `json:"p50_ns"`
	P99        time.Duration `json:"p99_ns"`
	Max        time.Duration `json:"max_ns"`
}

func (r Result) String() string {
	return fmt.Sprintf("%-8s %-7s %10.1f ops/ms  p50 %-10s p99 %-10s commit %s",
		r.Target, r.Workload, r.OpsPerMs, r.P50, r.P99, r.Commit/time.Duration(max(r.Iterations, 1)))
}

// Run executes w against fresh targets from factory.
func Run(ctx context.Context, factory Factory, w Workload, opts Options) (Result, error) {
	if opts.Ops <= 0 || opts.Workers <= 0 || opts.Iterations <= 0 {
		return Result{}, fmt.Errorf("ops, workers and iterations must be positive")
	}
	data, err := w.Payload()
	if err != nil {
		return Result{}, fmt.Errorf("payload for %s: %w", w.Name, err)
	}

	res := Result{
		Target:     factory.Name,
		Workload:   w.Name,
		Iterations: opts.Iterations,
		Workers:    opts.Workers,
	}
	var latencies []time.Duration

	for i := 0; i < opts.Iterations; i++ {
		target, err := factory.Open()
		if err != nil {
			return res, fmt.Errorf("open %s: %w", factory.Name, err)
		}

		elapsed, commit, lat, err := runIteration(ctx, target, data, opts)
		closeErr := target.Close()
		if err != nil {
			return res, err
		}
		if closeErr != nil {
			return res, fmt.Errorf("close %s: %w", factory.Name, closeErr)
		}

		res.Ops += opts.Ops
		res.Elapsed += elapsed
		res.Commit += commit
		latencies = append(latencies, lat...)
	}

	if ms := float64(res.Elapsed) / float64(time.Millisecond); ms > 0 {
		res.OpsPerMs = float64(res.Ops) / ms
	}
	slices.Sort(latencies)
	res.P50 = percentile(latencies, 0.50)
	res.P99 = percentile(latencies, 0.99)
	res.Max = percentile(latencies, 1)
	return res, nil
}

func runIteration(ctx context.Context, target Target, data []byte, opts Options) (elapsed, commit time.Duration, latencies []time.Duration, err error) {
	var mu sync.Mutex
	latencies = make([]time.Duration, 0, opts.Ops)

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < opts.Workers; w++ {
		n := opts.Ops / opts.Workers
		if w < opts.Ops%opts.Workers {
			n++
		}
		g.Go(func() error {
			local := make([]time.Duration, 0, n)
			for j := 0; j < n; j++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				t := time.Now()
				if err := target.Put(data); err != nil {
					return fmt.Errorf("put: %w", err)
				}
				local = append(local, time.Since(t))
			}
			mu.Lock()
			latencies = append(latencies, local...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, 0, nil, err
	}

	commitStart := time.Now()
	if err := target.Commit(); err != nil {
		return 0, 0, nil, fmt.Errorf("commit: %w", err)
	}
	commit = time.Since(commitStart)
	return time.Since(start), commit, latencies, nil
}

// percentile expects sorted input.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	i := int(float64(len(sorted)-1) * p)
	return sorted[i]
}
