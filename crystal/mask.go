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

// SelectionMask holds one flag per register-tile slot of a block. Flags are
// combined monotonically by successive predicate evaluations, and a
// hash-table probe miss clears the flag of the probing slot.
type SelectionMask struct {
	perThread int
	flags     []bool
}

// NewSelectionMask allocates a mask shaped by cfg with every flag cleared.
func NewSelectionMask(cfg Config) *SelectionMask {
	return &SelectionMask{
		perThread: cfg.ItemsPerThread,
		flags:     make([]bool, cfg.TileSize()),
	}
}

// Thread returns the flags of thread tid.
func (m *SelectionMask) Thread(tid int) []bool {
	base := tid * m.perThread
	return m.flags[base : base+m.perThread : base+m.perThread]
}

// Selected reports the flag of slot item of thread tid.
func (m *SelectionMask) Selected(tid, item int) bool {
	return m.flags[tid*m.perThread+item]
}

// Clear unselects slot item of thread tid.
func (m *SelectionMask) Clear(tid, item int) {
	m.flags[tid*m.perThread+item] = false
}

// Count returns the number of selected slots.
func (m *SelectionMask) Count() int {
	n := 0
	for _, f := range m.flags {
		if f {
			n++
		}
	}
	return n
}

// And intersects m with other slot by slot.
func (m *SelectionMask) And(other *SelectionMask) {
	for i, f := range other.flags {
		m.flags[i] = m.flags[i] && f
	}
}

// InitFlags selects every slot of the tile. On a partial tile the slots past
// the tile end are left unselected, so later primitives never act on them.
func InitFlags(t Tile, m *SelectionMask) {
	for tid := range t.BlockThreads {
		flags := m.Thread(tid)
		n := t.ThreadItems(tid)
		for i := range flags {
			flags[i] = i < n
		}
	}
}

type combine int

const (
	combineAssign combine = iota
	combineAnd
	combineOr
)

// Evaluate assigns pred's result for every slot of items to the mask.
func Evaluate[T Lanes](t Tile, items *RegisterTile[T], pred Predicate[T], m *SelectionMask) {
	evaluate(t, items, pred, m, combineAssign)
}

// EvaluateAnd ANDs pred's result into the mask. Slots that are already
// unselected are still evaluated.
func EvaluateAnd[T Lanes](t Tile, items *RegisterTile[T], pred Predicate[T], m *SelectionMask) {
	evaluate(t, items, pred, m, combineAnd)
}

// EvaluateOr ORs pred's result into the mask.
func EvaluateOr[T Lanes](t Tile, items *RegisterTile[T], pred Predicate[T], m *SelectionMask) {
	evaluate(t, items, pred, m, combineOr)
}

// evaluate applies pred to each valid slot: all slots on the direct path,
// the in-tile prefix of each thread on the guarded path.
func evaluate[T Lanes](t Tile, items *RegisterTile[T], pred Predicate[T], m *SelectionMask, c combine) {
	for tid := range t.BlockThreads {
		regs := items.Thread(tid)
		flags := m.Thread(tid)
		n := t.ThreadItems(tid)
		for i := range n {
			r := pred.Test(regs[i])
			switch c {
			case combineAssign:
				flags[i] = r
			case combineAnd:
				flags[i] = flags[i] && r
			case combineOr:
				flags[i] = flags[i] || r
			}
		}
	}
}
