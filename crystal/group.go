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

package crystal

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// GroupDim declares the domain [Min, Min+Cardinality) of one grouping
// attribute.
type GroupDim struct {
	Min         int32
	Cardinality int32
}

// GroupDims is an ordered list of grouping attributes. The first attribute
// varies slowest in the group index.
type GroupDims []GroupDim

// NumGroups returns the product of the cardinalities.
func (d GroupDims) NumGroups() int {
	n := 1
	for _, dim := range d {
		n *= int(dim.Cardinality)
	}
	return n
}

// Index returns the mixed-radix group index of attrs, or false when an
// attribute lies outside its domain.
func (d GroupDims) Index(attrs []int32) (int, bool) {
	idx := 0
	for i, dim := range d {
		v := int64(attrs[i]) - int64(dim.Min)
		if v < 0 || v >= int64(dim.Cardinality) {
			return 0, false
		}
		idx = idx*int(dim.Cardinality) + int(v)
	}
	return idx, true
}

// Group is one non-empty row of a GroupTable.
type Group struct {
	Index int
	Attrs []int32
	Count int64
	Sum   int64
}

// GroupTable is the grouped output array. Each group owns len(dims)+2 words:
// the attribute values, a row count and the running sum. A group is
// non-empty iff its count is positive.
type GroupTable struct {
	dims       GroupDims
	stride     int
	words      []atomic.Int64
	outOfRange atomic.Int64
}

// NewGroupTable allocates a zeroed table with one entry per group of dims.
func NewGroupTable(dims GroupDims) *GroupTable {
	stride := len(dims) + 2
	return &GroupTable{
		dims:   dims,
		stride: stride,
		words:  make([]atomic.Int64, dims.NumGroups()*stride),
	}
}

// Dims returns the grouping attributes.
func (g *GroupTable) Dims() GroupDims { return g.dims }

// Update adds measure to the group of attrs. Concurrent updates of one group
// store identical attribute values, so only the count and sum need atomic
// read-modify-write.
func (g *GroupTable) Update(attrs []int32, measure int64) {
	idx, ok := g.dims.Index(attrs)
	if !ok {
		g.outOfRange.Add(1)
		return
	}
	w := g.words[idx*g.stride : (idx+1)*g.stride]
	for i, a := range attrs[:len(g.dims)] {
		w[i].Store(int64(a))
	}
	w[len(g.dims)].Add(1)
	w[len(g.dims)+1].Add(measure)
}

// Groups returns the non-empty groups in index order. It is meant for the
// host, after the launch has completed.
func (g *GroupTable) Groups() []Group {
	var out []Group
	nd := len(g.dims)
	for idx := range g.dims.NumGroups() {
		w := g.words[idx*g.stride : (idx+1)*g.stride]
		count := w[nd].Load()
		if count == 0 {
			continue
		}
		attrs := make([]int32, nd)
		for i := range attrs {
			attrs[i] = int32(w[i].Load())
		}
		out = append(out, Group{Index: idx, Attrs: attrs, Count: count, Sum: w[nd+1].Load()})
	}
	return out
}

// Reset zeroes every group and the violation counter.
func (g *GroupTable) Reset() {
	g.ResetSlots(0, len(g.words))
	g.ResetCounters()
}

// Slots returns the number of words backing the table.
func (g *GroupTable) Slots() int { return len(g.words) }

// ResetSlots zeroes words [start, end). Disjoint ranges may be reset
// concurrently.
func (g *GroupTable) ResetSlots(start, end int) {
	for i := start; i < end; i++ {
		g.words[i].Store(0)
	}
}

// ResetCounters zeroes the violation counter.
func (g *GroupTable) ResetCounters() { g.outOfRange.Store(0) }

// Bytes returns the device memory footprint.
func (g *GroupTable) Bytes() int64 { return int64(len(g.words)) * 8 }

// Err reports rows whose attributes fell outside the declared domains.
func (g *GroupTable) Err() error {
	if n := g.outOfRange.Load(); n > 0 {
		return errors.Wrapf(ErrGroupOutOfRange, "%d rows dropped", n)
	}
	return nil
}
