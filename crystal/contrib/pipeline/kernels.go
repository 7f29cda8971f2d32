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

package pipeline

import (
	"github.com/ajroetker/go-crystal/crystal"
	"github.com/ajroetker/go-crystal/crystal/device"
	"github.com/cockroachdb/errors"
)

type compiledFilter struct {
	column []int32
	preds  []crystal.Predicate[int32]
	any    bool
}

type filterSet []compiledFilter

func compileFilters(filters []Filter) filterSet {
	var out filterSet
	for _, f := range filters {
		if len(f.Preds) == 0 {
			continue
		}
		cf := compiledFilter{column: f.Column, any: f.Any}
		for _, p := range f.Preds {
			cf.preds = append(cf.preds, crystal.NewPredicate(p.Op, p.Value))
		}
		out = append(out, cf)
	}
	return out
}

// apply narrows mask by every filter, loading each filter column into regs.
func (fs filterSet) apply(t crystal.Tile, regs *crystal.RegisterTile[int32], mask *crystal.SelectionMask) {
	for _, f := range fs {
		crystal.BlockLoad(t, f.column, regs)
		if !f.any {
			for _, p := range f.preds {
				crystal.EvaluateAnd(t, regs, p, mask)
			}
			continue
		}
		either := crystal.NewSelectionMask(t.Config)
		crystal.Evaluate(t, regs, f.preds[0], either)
		for _, p := range f.preds[1:] {
			crystal.EvaluateOr(t, regs, p, either)
		}
		mask.And(either)
	}
}

// test evaluates the filters on the host for one row.
func (fs filterSet) test(row int) bool {
	for _, f := range fs {
		v := f.column[row]
		hit := !f.any
		for _, p := range f.preds {
			if f.any {
				hit = hit || p.Test(v)
			} else {
				hit = hit && p.Test(v)
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

// validateBuild runs the host-side key check over the rows of b that pass
// its filters.
func validateBuild(b Build) error {
	keys := b.Keys
	var vals []int32
	if b.Values != nil {
		vals = b.Values[:len(b.Keys)]
	}
	if fs := compileFilters(b.Filters); len(fs) > 0 {
		keys = nil
		if vals != nil {
			vals = []int32{}
		}
		for row, k := range b.Keys {
			if !fs.test(row) {
				continue
			}
			keys = append(keys, k)
			if vals != nil {
				vals = append(vals, b.Values[row])
			}
		}
	}
	var err error
	if vals == nil {
		err = crystal.ValidateKeys(keys, b.NumSlots, b.KeysMin)
	} else {
		err = crystal.ValidatePairs(keys, vals, b.NumSlots, b.KeysMin)
	}
	return errors.Wrapf(err, "validate build %s", b.Name)
}

// hashTable is the device table of one build: presence-only when pairs is
// nil.
type hashTable struct {
	device.SlotBuffer
	name  string
	keys  *crystal.KeyTable[int32]
	pairs *crystal.PairTable[int32, int32]
}

func newHashTable(b Build) *hashTable {
	if b.Values == nil {
		keys := crystal.NewKeyTable[int32](b.NumSlots, b.KeysMin)
		return &hashTable{SlotBuffer: keys, name: b.Name, keys: keys}
	}
	pairs := crystal.NewPairTable[int32, int32](b.NumSlots, b.KeysMin)
	return &hashTable{SlotBuffer: pairs, name: b.Name, pairs: pairs}
}

func tableBytes(b Build) int64 {
	if b.Values == nil {
		return int64(b.NumSlots) * 4
	}
	return int64(b.NumSlots) * 8
}

func (h *hashTable) Len() int {
	if h.pairs != nil {
		return h.pairs.Len()
	}
	return h.keys.Len()
}

func (h *hashTable) Err() error {
	var err error
	if h.pairs != nil {
		err = h.pairs.Err()
	} else {
		err = h.keys.Err()
	}
	return errors.Wrapf(err, "build %s", h.name)
}

// buildKernel returns the block body of a build launch.
func buildKernel(b Build, ht *hashTable) func(crystal.Tile) {
	filters := compileFilters(b.Filters)
	return func(t crystal.Tile) {
		mask := crystal.NewSelectionMask(t.Config)
		keys := crystal.NewRegisterTile[int32](t.Config)
		crystal.InitFlags(t, mask)
		filters.apply(t, keys, mask)

		crystal.BlockLoad(t, b.Keys, keys)
		if ht.pairs == nil {
			crystal.BuildKeys(t, keys, mask, ht.keys)
			return
		}
		vals := crystal.NewRegisterTile[int32](t.Config)
		crystal.BlockLoad(t, b.Values, vals)
		crystal.BuildPairs(t, keys, vals, mask, ht.pairs)
	}
}

type boundProbe struct {
	keys  []int32
	table *hashTable
}

// probeKernel holds everything the probe launch reads.
type probeKernel struct {
	filters filterSet
	probes  []boundProbe
	product []Operand
	groupBy []GroupKey
	acc     *crystal.Accumulator
	groups  *crystal.GroupTable
}

// load returns one register tile per operand. Column operands are loaded
// from the fact table; payload operands share the probe's output tile.
func load(t crystal.Tile, ops []Operand, payloads []*crystal.RegisterTile[int32]) []*crystal.RegisterTile[int32] {
	out := make([]*crystal.RegisterTile[int32], len(ops))
	for i, op := range ops {
		if op.Column == nil {
			out[i] = payloads[op.Probe]
			continue
		}
		out[i] = crystal.NewRegisterTile[int32](t.Config)
		crystal.BlockLoad(t, op.Column, out[i])
	}
	return out
}

func product(factors []*crystal.RegisterTile[int32], tid, item int) int64 {
	p := int64(1)
	for _, f := range factors {
		p *= int64(f.At(tid, item))
	}
	return p
}

func (k *probeKernel) run(t crystal.Tile) {
	cfg := t.Config
	mask := crystal.NewSelectionMask(cfg)
	scratch := crystal.NewRegisterTile[int32](cfg)
	crystal.InitFlags(t, mask)
	k.filters.apply(t, scratch, mask)

	payloads := make([]*crystal.RegisterTile[int32], len(k.probes))
	for i, p := range k.probes {
		crystal.BlockLoad(t, p.keys, scratch)
		if p.table.pairs == nil {
			crystal.ProbeKeys(t, scratch, mask, p.table.keys)
			continue
		}
		payloads[i] = crystal.NewRegisterTile[int32](cfg)
		crystal.ProbePairs(t, scratch, payloads[i], mask, p.table.pairs)
	}

	factors := load(t, k.product, payloads)
	if k.groups == nil {
		sums := make([]uint64, cfg.BlockThreads)
		for tid := range cfg.BlockThreads {
			flags := mask.Thread(tid)
			for i := range t.ThreadItems(tid) {
				if flags[i] {
					sums[tid] += uint64(product(factors, tid, i))
				}
			}
		}
		crystal.BlockReduce(cfg, sums, k.acc)
		return
	}

	keyOps := make([]Operand, len(k.groupBy))
	for i, g := range k.groupBy {
		keyOps[i] = g.Operand
	}
	keys := load(t, keyOps, payloads)
	attrs := make([]int32, len(keys))
	for tid := range cfg.BlockThreads {
		flags := mask.Thread(tid)
		for i := range t.ThreadItems(tid) {
			if !flags[i] {
				continue
			}
			for j, kt := range keys {
				attrs[j] = kt.At(tid, i)
			}
			k.groups.Update(attrs, product(factors, tid, i))
		}
	}
}
