/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ssargent/pagestore/pkg/bench"
	"github.com/ssargent/pagestore/pkg/store"
)

// benchCmd represents the bench command
var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure append throughput",
	Long: `Append records to fresh stores and report ops/ms. Every iteration opens
a new target, runs the puts across the workers, commits and closes it.

Workloads: zero (8-byte int64), small (1 KiB), medium (64 KiB), big (128 KiB).
Targets: memory, file, mmap (page store volumes) and pebble (baseline).

Examples:
  pagestore bench
  pagestore bench --workload small --target memory,pebble --ops 100000 --workers 8`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		workloadNames, _ := cmd.Flags().GetString("workload")
		targetNames, _ := cmd.Flags().GetString("target")
		ops, _ := cmd.Flags().GetInt("ops")
		workers, _ := cmd.Flags().GetInt("workers")
		iterations, _ := cmd.Flags().GetInt("iterations")
		pageSize, _ := cmd.Flags().GetInt("page-size")
		shift, _ := cmd.Flags().GetUint("shift")
		dir, _ := cmd.Flags().GetString("dir")
		asJSON, _ := cmd.Flags().GetBool("json")

		if dir == "" {
			tmp, err := os.MkdirTemp("", "pagestore-bench")
			if err != nil {
				return err
			}
			defer os.RemoveAll(tmp)
			dir = tmp
		}

		workloads, err := selectWorkloads(workloadNames)
		if err != nil {
			return err
		}
		factories, err := selectTargets(targetNames, dir, pageSize, shift)
		if err != nil {
			return err
		}

		opts := bench.Options{Ops: ops, Workers: workers, Iterations: iterations}
		var results []bench.Result
		for _, f := range factories {
			for _, w := range workloads {
				res, err := bench.Run(cmd.Context(), f, w, opts)
				if err != nil {
					return fmt.Errorf("%s/%s: %w", f.Name, w.Name, err)
				}
				results = append(results, res)
				if !asJSON {
					cmd.Println(res)
				}
			}
		}

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(benchCmd)
	benchCmd.Flags().String("workload", "all", "Comma-separated workloads, or all")
	benchCmd.Flags().String("target", "memory,pebble", "Comma-separated targets: memory, file, mmap, pebble")
	benchCmd.Flags().Int("ops", 10000, "Puts per iteration")
	benchCmd.Flags().Int("workers", 4, "Concurrent writers")
	benchCmd.Flags().Int("iterations", 3, "Fresh stores per workload")
	benchCmd.Flags().Int("page-size", store.DefaultPageSize, "Page size of page store targets")
	benchCmd.Flags().Uint("shift", store.DefaultConcurrencyShift, "Concurrency shift of page store targets")
	benchCmd.Flags().String("dir", "", "Directory for on-disk targets (default is a temp dir)")
	benchCmd.Flags().Bool("json", false, "Print results as JSON")
}

func selectWorkloads(names string) ([]bench.Workload, error) {
	if names == "" || names == "all" {
		return bench.Workloads, nil
	}
	var out []bench.Workload
	for _, name := range strings.Split(names, ",") {
		w, err := bench.WorkloadByName(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func selectTargets(names, dir string, pageSize int, shift uint) ([]bench.Factory, error) {
	var out []bench.Factory
	for _, name := range strings.Split(names, ",") {
		cfg := store.DefaultConfig()
		cfg.PageSize = pageSize
		cfg.ConcurrencyShift = shift

		switch strings.TrimSpace(name) {
		case "memory":
			out = append(out, bench.EngineFactory(cfg, dir))
		case "file":
			cfg.InMemory = false
			out = append(out, bench.EngineFactory(cfg, dir))
		case "mmap":
			cfg.InMemory = false
			cfg.UseMmap = true
			out = append(out, bench.EngineFactory(cfg, dir))
		case "pebble":
			out = append(out, bench.PebbleFactory(dir, false))
		default:
			return nil, fmt.Errorf("unknown target %q", name)
		}
	}
	return out, nil
}
