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

package main

import (
	"regexp"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/ajroetker/go-crystal/crystal"
	"github.com/ajroetker/go-crystal/crystal/contrib/datagen"
	"github.com/ajroetker/go-crystal/crystal/contrib/ssb"
	"github.com/ajroetker/go-crystal/crystal/device"
	"github.com/cockroachdb/errors"
)

// BenchConfig sizes the generated inputs and the trial loop.
type BenchConfig struct {
	Trials   int    `toml:"trials"`
	Seed     uint64 `toml:"seed"`
	DimRows  int    `toml:"dim_rows"`
	FactRows int    `toml:"fact_rows"`

	// Star sizes the tables of the SSB queries.
	Star datagen.Sizes `toml:"star"`

	// Region selects suppliers for the semi-join.
	Region int32 `toml:"region"`

	Q32 ssb.Q32Params `toml:"q32"`

	// MaxRows caps the grouped rows printed.
	MaxRows int `toml:"max_rows"`

	// Where holds the filters of the scan subcommand, ANDed.
	Where []Term `toml:"where"`

	// Validate checks build keys on the host before launching.
	Validate bool `toml:"validate"`

	// Metrics prints the device metrics after the run.
	Metrics bool `toml:"metrics"`
}

// Term is one comparison "column op value" over a lineorder column.
type Term struct {
	Column string     `toml:"column"`
	Op     crystal.Op `toml:"op"`
	Value  int32      `toml:"value"`
}

var termRE = regexp.MustCompile(`^\s*([a-z_]+)\s*(<=|>=|==|<|>)\s*(-?\d+)\s*$`)

// parseTerm parses a term written as in "quantity<25".
func parseTerm(s string) (Term, error) {
	m := termRE.FindStringSubmatch(s)
	if m == nil {
		return Term{}, errors.Newf("where %q: want <column><op><value>", s)
	}
	op, err := crystal.ParseOp(m[2])
	if err != nil {
		return Term{}, err
	}
	v, err := strconv.ParseInt(m[3], 10, 32)
	if err != nil {
		return Term{}, errors.Wrapf(err, "where %q", s)
	}
	return Term{Column: m[1], Op: op, Value: int32(v)}, nil
}

// Config is the crystalbench configuration file.
type Config struct {
	Kernel crystal.Config `toml:"kernel"`
	Device device.Options `toml:"device"`
	Log    LogConfig      `toml:"log"`
	Bench  BenchConfig    `toml:"bench"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Kernel: crystal.DefaultConfig(),
		Log:    LogConfig{Level: "info", Format: "console", MaxSize: 512},
		Bench: BenchConfig{
			Trials:   3,
			DimRows:  1 << 16,
			FactRows: 1 << 24,
			Star:     datagen.DefaultSizes(),
			Region:   2,
			Q32:      ssb.DefaultQ32(),
			MaxRows:  20,
		},
	}
}

// loadConfig reads path over the defaults. An empty path returns the
// defaults.
func loadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, errors.Wrapf(err, "reading config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, errors.Newf("config %s: unknown keys %v", path, undecoded)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if err := c.Kernel.Validate(); err != nil {
		return err
	}
	if c.Bench.Trials <= 0 {
		return errors.Newf("bench.trials must be positive, got %d", c.Bench.Trials)
	}
	if c.Bench.DimRows <= 0 || c.Bench.FactRows < 0 {
		return errors.Newf("bench: need dim_rows > 0 and fact_rows >= 0, got %d and %d",
			c.Bench.DimRows, c.Bench.FactRows)
	}
	s := c.Bench.Star
	if s.Suppliers <= 0 || s.Customers <= 0 || s.Orders < 0 {
		return errors.Newf("bench.star: need positive suppliers and customers, got %+v", s)
	}
	var orders ssb.LineOrder
	for _, term := range c.Bench.Where {
		if _, err := orders.Column(term.Column); err != nil {
			return errors.Wrap(err, "bench.where")
		}
		if !term.Op.Valid() {
			return errors.Newf("bench.where: invalid operator %v", term.Op)
		}
	}
	return nil
}
