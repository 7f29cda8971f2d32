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
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// ErrInvalidQuery is returned by Run for queries that reference missing
// builds or probes, or whose columns are shorter than their row counts.
var ErrInvalidQuery = errors.New("pipeline: invalid query")

// Pred is one comparison "column op Value".
type Pred struct {
	Op    crystal.Op
	Value int32
}

// Lt, Gt, Le, Ge and Eq build a Pred.
func Lt(v int32) Pred { return Pred{Op: crystal.OpLess, Value: v} }
func Gt(v int32) Pred { return Pred{Op: crystal.OpGreater, Value: v} }
func Le(v int32) Pred { return Pred{Op: crystal.OpLessEqual, Value: v} }
func Ge(v int32) Pred { return Pred{Op: crystal.OpGreaterEqual, Value: v} }
func Eq(v int32) Pred { return Pred{Op: crystal.OpEqual, Value: v} }

// Filter narrows the selection by comparisons over one column. The
// predicates are ANDed, or ORed when Any is set; the filter result is always
// ANDed into the selection. A filter without predicates selects everything.
type Filter struct {
	Column []int32
	Preds  []Pred
	Any    bool
}

// Between returns the filter lo <= column <= hi.
func Between(column []int32, lo, hi int32) Filter {
	return Filter{Column: column, Preds: []Pred{Ge(lo), Le(hi)}}
}

// Where returns the conjunctive filter over column.
func Where(column []int32, preds ...Pred) Filter {
	return Filter{Column: column, Preds: preds}
}

// Build describes one dimension table inserted into a hash table during the
// build phase. Rows surviving Filters insert Keys[row], with Values[row] as
// payload. A nil Values builds a presence-only table.
type Build struct {
	Name     string
	Keys     []int32
	Values   []int32
	Filters  []Filter
	NumSlots int
	KeysMin  int32

	// Validate checks the surviving keys on the host before any launch:
	// every key has a slot and repeated keys carry one payload.
	Validate bool
}

// Probe joins the fact table to Builds[Build] on the foreign-key column Keys.
type Probe struct {
	Build int
	Keys  []int32
}

// Operand is a per-row value of the probe phase: a fact column, or the
// payload matched by a probe.
type Operand struct {
	Column []int32
	Probe  int
}

// Column returns an operand reading a fact column.
func Column(c []int32) Operand { return Operand{Column: c, Probe: -1} }

// Payload returns an operand reading the payload matched by Probes[probe].
func Payload(probe int) Operand { return Operand{Probe: probe} }

// GroupKey is a grouping attribute with domain [Min, Min+Cardinality).
type GroupKey struct {
	Operand
	Min         int32
	Cardinality int32
}

// Aggregate sums, over the selected fact rows, the product of Product. With
// GroupBy empty the sum is one scalar; otherwise each group gets its own sum
// and row count. An empty Product counts rows.
type Aggregate struct {
	Product []Operand
	GroupBy []GroupKey
}

// Query is one build+probe pipeline over a fact table of Rows rows.
type Query struct {
	Name      string
	Rows      int
	Builds    []Build
	Filters   []Filter
	Probes    []Probe
	Aggregate Aggregate
}

// WithValidation returns q with Validate set on every build.
func (q Query) WithValidation() Query {
	q.Builds = lo.Map(q.Builds, func(b Build, _ int) Build {
		b.Validate = true
		return b
	})
	return q
}

// Grouped reports whether the query produces grouped output.
func (q *Query) Grouped() bool { return len(q.Aggregate.GroupBy) > 0 }

func (q *Query) validate() error {
	if q.Rows < 0 {
		return errors.Wrapf(ErrInvalidQuery, "%s: negative row count %d", q.Name, q.Rows)
	}
	for i, b := range q.Builds {
		if b.Values != nil && len(b.Values) < len(b.Keys) {
			return errors.Wrapf(ErrInvalidQuery, "%s: build %q: %d values for %d keys",
				q.Name, b.Name, len(b.Values), len(b.Keys))
		}
		if b.NumSlots < 0 {
			return errors.Wrapf(ErrInvalidQuery, "%s: build %q: negative slot count", q.Name, b.Name)
		}
		if err := checkFilters(b.Filters, len(b.Keys)); err != nil {
			return errors.Wrapf(err, "%s: build %d (%s)", q.Name, i, b.Name)
		}
	}
	if err := checkFilters(q.Filters, q.Rows); err != nil {
		return errors.Wrapf(err, "%s: fact filter", q.Name)
	}
	for i, p := range q.Probes {
		if p.Build < 0 || p.Build >= len(q.Builds) {
			return errors.Wrapf(ErrInvalidQuery, "%s: probe %d references build %d of %d",
				q.Name, i, p.Build, len(q.Builds))
		}
		if len(p.Keys) < q.Rows {
			return errors.Wrapf(ErrInvalidQuery, "%s: probe %d: %d keys for %d rows",
				q.Name, i, len(p.Keys), q.Rows)
		}
	}
	for _, op := range q.Aggregate.Product {
		if err := q.checkOperand(op); err != nil {
			return err
		}
	}
	for _, g := range q.Aggregate.GroupBy {
		if err := q.checkOperand(g.Operand); err != nil {
			return err
		}
		if g.Cardinality <= 0 {
			return errors.Wrapf(ErrInvalidQuery, "%s: group cardinality %d", q.Name, g.Cardinality)
		}
	}
	return nil
}

func (q *Query) checkOperand(op Operand) error {
	if op.Column != nil {
		if len(op.Column) < q.Rows {
			return errors.Wrapf(ErrInvalidQuery, "%s: operand column has %d rows, want %d",
				q.Name, len(op.Column), q.Rows)
		}
		return nil
	}
	if op.Probe < 0 || op.Probe >= len(q.Probes) {
		return errors.Wrapf(ErrInvalidQuery, "%s: operand references probe %d of %d",
			q.Name, op.Probe, len(q.Probes))
	}
	if q.Builds[q.Probes[op.Probe].Build].Values == nil {
		return errors.Wrapf(ErrInvalidQuery, "%s: operand reads probe %d, whose build has no payload",
			q.Name, op.Probe)
	}
	return nil
}

func checkFilters(filters []Filter, rows int) error {
	for i, f := range filters {
		if len(f.Column) < rows {
			return errors.Wrapf(ErrInvalidQuery, "filter %d: %d rows, want %d", i, len(f.Column), rows)
		}
		for _, p := range f.Preds {
			if !p.Op.Valid() {
				return errors.Wrapf(ErrInvalidQuery, "filter %d: unknown operator %s", i, p.Op)
			}
		}
	}
	return nil
}
