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

// Package pipeline composes crystal block primitives into build+probe query
// kernels. A Query declares dimension builds, fact filters, probes and an
// aggregate; Run executes it on a device.Device as a fixed sequence of host
// steps:
//
//  0. optional host-side check of the build keys (Build.Validate)
//  1. memset: every hash table and output buffer is zeroed
//  2. build: one launch per dimension table, independent builds concurrently
//  3. host wait until every build launch has completed
//  4. probe: one launch over the fact table
//  5. readback of the accumulator or the non-empty groups
//
// The same skeleton runs a two-table join, a filtered scan with no builds,
// and a multi-dimension star join with grouped output.
package pipeline

import (
	"fmt"
	"time"

	"github.com/ajroetker/go-crystal/crystal"
	"github.com/ajroetker/go-crystal/crystal/device"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

// Timings records the wall time of each host step of a run.
type Timings struct {
	Memset time.Duration
	Build  time.Duration
	Probe  time.Duration
	Total  time.Duration
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (t Timings) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddDuration("memset", t.Memset)
	enc.AddDuration("build", t.Build)
	enc.AddDuration("probe", t.Probe)
	enc.AddDuration("total", t.Total)
	return nil
}

// String formats the timings in milliseconds as one JSON object.
func (t Timings) String() string {
	ms := func(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }
	return fmt.Sprintf(`{"time_memset":%.3f,"time_build":%.3f,"time_probe":%.3f,"time_total":%.3f}`,
		ms(t.Memset), ms(t.Build), ms(t.Probe), ms(t.Total))
}

// Result is the readback of one run.
type Result struct {
	// Sum is the scalar aggregate. Zero for grouped queries.
	Sum uint64

	// Groups holds the non-empty groups in group-index order, which sorts by
	// the GroupBy keys with the first key varying slowest.
	Groups []crystal.Group

	// BuildRows is the number of occupied slots per build, in Builds order.
	BuildRows []int

	Timings Timings
}

// Pipeline runs queries on one device with one block shape.
type Pipeline struct {
	dev    *device.Device
	cfg    crystal.Config
	logger *zap.Logger
}

// New returns a pipeline that launches on dev with blocks shaped by cfg.
func New(dev *device.Device, cfg crystal.Config) *Pipeline {
	return &Pipeline{dev: dev, cfg: cfg, logger: dev.Logger().Named("pipeline")}
}

// Config returns the block shape.
func (p *Pipeline) Config() crystal.Config { return p.cfg }

// state is the device memory of one run. It lives from the memset to the
// readback.
type state struct {
	tables  []*hashTable
	acc     *crystal.Accumulator
	groups  *crystal.GroupTable
	release []func()
}

func (s *state) buffers() []device.Buffer {
	bufs := lo.Map(s.tables, func(t *hashTable, _ int) device.Buffer { return t })
	if s.groups != nil {
		return append(bufs, s.groups)
	}
	return append(bufs, s.acc)
}

func (s *state) free() {
	for _, r := range s.release {
		r()
	}
}

func groupDims(keys []GroupKey) crystal.GroupDims {
	return lo.Map(keys, func(g GroupKey, _ int) crystal.GroupDim {
		return crystal.GroupDim{Min: g.Min, Cardinality: g.Cardinality}
	})
}

// alloc reserves device memory for every buffer of q before allocating it.
func (p *Pipeline) alloc(q *Query) (*state, error) {
	s := &state{}
	reserve := func(name string, bytes int64) error {
		release, err := p.dev.Reserve(name, bytes)
		if err != nil {
			return err
		}
		s.release = append(s.release, release)
		return nil
	}
	for _, b := range q.Builds {
		if err := reserve("hash_table/"+b.Name, tableBytes(b)); err != nil {
			s.free()
			return nil, err
		}
		s.tables = append(s.tables, newHashTable(b))
	}
	if q.Grouped() {
		dims := groupDims(q.Aggregate.GroupBy)
		if err := reserve("groups", int64(dims.NumGroups())*int64(len(dims)+2)*8); err != nil {
			s.free()
			return nil, err
		}
		s.groups = crystal.NewGroupTable(dims)
	} else {
		if err := reserve("accumulator", 8); err != nil {
			s.free()
			return nil, err
		}
		s.acc = &crystal.Accumulator{}
	}
	return s, nil
}

// Run executes q and returns its readback. Build key violations, group
// domain violations, kernel faults and memory exhaustion abort the run.
func (p *Pipeline) Run(q Query) (Result, error) {
	var res Result
	if err := q.validate(); err != nil {
		return res, err
	}
	for _, b := range q.Builds {
		if !b.Validate {
			continue
		}
		if err := validateBuild(b); err != nil {
			p.logger.Warn("build keys rejected", zap.String("query", q.Name), zap.Error(err))
			return res, errors.Wrapf(err, "%s", q.Name)
		}
	}
	sw := device.StartStopwatch()

	s, err := p.alloc(&q)
	if err != nil {
		return res, errors.Wrapf(err, "%s: allocate", q.Name)
	}
	defer s.free()

	p.dev.Memset(s.buffers()...)
	res.Timings.Memset = sw.Lap()

	var g errgroup.Group
	for i, b := range q.Builds {
		ht := s.tables[i]
		g.Go(func() error {
			if err := p.dev.Launch(q.Name+"/build/"+b.Name, p.cfg, len(b.Keys), buildKernel(b, ht)); err != nil {
				return err
			}
			return ht.Err()
		})
	}
	if err := g.Wait(); err != nil {
		p.logger.Warn("build failed", zap.String("query", q.Name), zap.Error(err))
		return res, errors.Wrapf(err, "%s", q.Name)
	}
	res.BuildRows = lo.Map(s.tables, func(t *hashTable, _ int) int { return t.Len() })
	res.Timings.Build = sw.Lap()

	k := &probeKernel{
		filters: compileFilters(q.Filters),
		probes: lo.Map(q.Probes, func(pr Probe, _ int) boundProbe {
			return boundProbe{keys: pr.Keys, table: s.tables[pr.Build]}
		}),
		product: q.Aggregate.Product,
		groupBy: q.Aggregate.GroupBy,
		acc:     s.acc,
		groups:  s.groups,
	}
	if err := p.dev.Launch(q.Name+"/probe", p.cfg, q.Rows, k.run); err != nil {
		return res, errors.Wrapf(err, "%s", q.Name)
	}
	res.Timings.Probe = sw.Lap()

	if s.groups != nil {
		if err := s.groups.Err(); err != nil {
			p.logger.Warn("group domain violated", zap.String("query", q.Name), zap.Error(err))
			return res, errors.Wrapf(err, "%s", q.Name)
		}
		res.Groups = s.groups.Groups()
	} else {
		res.Sum = s.acc.Load()
	}
	res.Timings.Total = sw.Total()

	p.logger.Debug("run",
		zap.String("query", q.Name),
		zap.Int("rows", q.Rows),
		zap.Ints("build_rows", res.BuildRows),
		zap.Uint64("sum", res.Sum),
		zap.Int("groups", len(res.Groups)),
		zap.Object("timings", res.Timings))
	return res, nil
}
