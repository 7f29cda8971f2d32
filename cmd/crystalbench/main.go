// Copyright 2025 go-highway Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command crystalbench runs the crystal query kernels over generated data
// and reports per-phase timings.
//
// Usage:
//
//	crystalbench join --dim-rows 65536 --fact-rows 16777216 --trials 3
//	crystalbench q11 --config bench.toml
//	crystalbench q32 --orders 6000000 --log-level debug
//
// Each trial prints one JSON line of timings in milliseconds; a summary
// table follows the last trial.
package main

import (
	"fmt"
	"os"

	"github.com/ajroetker/go-crystal/crystal/device"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

type flagValues struct {
	config         string
	logLevel       string
	workers        int
	memoryLimit    int64
	blockThreads   int
	itemsPerThread int
	trials         int
	seed           uint64
	dimRows        int
	factRows       int
	orders         int
	where          []string
	validate       bool
	metrics        bool
}

func registerFlags(fs *pflag.FlagSet, f *flagValues) {
	fs.StringVarP(&f.config, "config", "c", "", "TOML configuration file")
	fs.StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.IntVar(&f.workers, "workers", 0, "block-executing goroutines (0: GOMAXPROCS)")
	fs.Int64Var(&f.memoryLimit, "memory-limit", 0, "device memory limit in bytes (0: unlimited)")
	fs.IntVar(&f.blockThreads, "block-threads", 0, "threads per block")
	fs.IntVar(&f.itemsPerThread, "items-per-thread", 0, "items per thread")
	fs.IntVarP(&f.trials, "trials", "t", 0, "number of trials")
	fs.Uint64Var(&f.seed, "seed", 0, "data generator seed")
	fs.IntVar(&f.dimRows, "dim-rows", 0, "dimension rows for join")
	fs.IntVar(&f.factRows, "fact-rows", 0, "fact rows for join")
	fs.IntVar(&f.orders, "orders", 0, "lineorder rows for the SSB queries")
	fs.StringArrayVar(&f.where, "where", nil, `scan filter "<column><op><value>", repeatable`)
	fs.BoolVar(&f.validate, "validate", false, "check build keys on the host before launching")
	fs.BoolVar(&f.metrics, "metrics", false, "print the device metrics after the run")
}

// apply overrides cfg with every flag set on the command line.
func (f *flagValues) apply(fs *pflag.FlagSet, cfg *Config) error {
	set := func(name string, fn func()) {
		if fs.Changed(name) {
			fn()
		}
	}
	set("log-level", func() { cfg.Log.Level = f.logLevel })
	set("workers", func() { cfg.Device.Workers = f.workers })
	set("memory-limit", func() { cfg.Device.MemoryLimit = f.memoryLimit })
	set("block-threads", func() { cfg.Kernel.BlockThreads = f.blockThreads })
	set("items-per-thread", func() { cfg.Kernel.ItemsPerThread = f.itemsPerThread })
	set("trials", func() { cfg.Bench.Trials = f.trials })
	set("seed", func() { cfg.Bench.Seed = f.seed })
	set("dim-rows", func() { cfg.Bench.DimRows = f.dimRows })
	set("fact-rows", func() { cfg.Bench.FactRows = f.factRows })
	set("orders", func() { cfg.Bench.Star.Orders = f.orders })
	set("validate", func() { cfg.Bench.Validate = f.validate })
	set("metrics", func() { cfg.Bench.Metrics = f.metrics })
	if fs.Changed("where") {
		cfg.Bench.Where = cfg.Bench.Where[:0:0]
		for _, w := range f.where {
			term, err := parseTerm(w)
			if err != nil {
				return err
			}
			cfg.Bench.Where = append(cfg.Bench.Where, term)
		}
	}
	return nil
}

// env is what every subcommand runs with.
type env struct {
	cfg      Config
	logger   *zap.Logger
	dev      *device.Device
	registry *prometheus.Registry
}

func (e *env) close() {
	e.dev.Close()
	_ = e.logger.Sync()
}

func newEnv(cmd *cobra.Command, f *flagValues) (*env, error) {
	cfg, err := loadConfig(f.config)
	if err != nil {
		return nil, err
	}
	if err := f.apply(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger, err := cfg.Log.build()
	if err != nil {
		return nil, err
	}
	registry := prometheus.NewRegistry()
	opts := cfg.Device
	opts.Logger = logger
	opts.Registerer = registry
	dev := device.New(device.WithOptions(opts))
	fmt.Fprintf(cmd.OutOrStdout(), "Running on %s\n", dev.Name())
	return &env{cfg: cfg, logger: logger, dev: dev, registry: registry}, nil
}

func newRootCommand() *cobra.Command {
	var f flagValues
	root := &cobra.Command{
		Use:           "crystalbench",
		Short:         "Benchmark block-parallel join and scan kernels",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	registerFlags(root.PersistentFlags(), &f)

	subcommands := []struct {
		use, short string
		run        func(*cobra.Command, *env) error
	}{
		{"join", "Two-table hash join with a multiplicative aggregate", runJoin},
		{"q11", "SSB Q1.1 filtered scan", runScan("q11")},
		{"q12", "SSB Q1.2 filtered scan", runScan("q12")},
		{"q13", "SSB Q1.3 filtered scan", runScan("q13")},
		{"scan", "Discounted-revenue scan with --where filters", runWhere},
		{"semi", "Presence-only semi-join on supplier region", runSemi},
		{"q32", "SSB Q3.2 star join with grouped revenue", runQ32},
		{"project", "Linear and sigmoid projections", runProject},
	}
	for _, sc := range subcommands {
		root.AddCommand(&cobra.Command{
			Use:   sc.use,
			Short: sc.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				e, err := newEnv(cmd, &f)
				if err != nil {
					return err
				}
				defer e.close()
				if err := sc.run(cmd, e); err != nil {
					return err
				}
				if e.cfg.Bench.Metrics {
					return e.writeMetrics(cmd.OutOrStdout())
				}
				return nil
			},
		})
	}
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		if errors.Is(err, device.ErrOutOfMemory) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
