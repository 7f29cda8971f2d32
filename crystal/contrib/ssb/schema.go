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

// Package ssb instantiates the pipeline skeleton for Star Schema Benchmark
// style queries: a plain two-table join, the discounted-revenue scans of the
// first query flight, a presence-only semi-join, and the three-dimension
// city revenue query Q3.2 with grouped output.
//
// Tables are column sets of int32 columns, as loaded by a column store.
package ssb

import "github.com/cockroachdb/errors"

// Date key and year bounds of the SSB date dimension.
const (
	MinDateKey = 19920101
	MaxDateKey = 19981230
	MinYear    = 1992
	MaxYear    = 1998

	// NumCities is the size of the city code domain [0, NumCities).
	NumCities = 250
)

// Relation is a key/value table, used both as a dimension (unique keys) and
// as a fact table (foreign keys).
type Relation struct {
	Keys []int32
	Vals []int32
}

// Len returns the number of rows.
func (r Relation) Len() int { return len(r.Keys) }

// LineOrder is the fact table.
type LineOrder struct {
	OrderDate     []int32
	CustKey       []int32
	SuppKey       []int32
	Quantity      []int32
	Discount      []int32
	ExtendedPrice []int32
	Revenue       []int32
}

// Len returns the number of rows.
func (l *LineOrder) Len() int { return len(l.OrderDate) }

// ErrUnknownColumn is returned by LineOrder.Column.
var ErrUnknownColumn = errors.New("ssb: unknown lineorder column")

// Column returns the column called name, spelled as in the SSB schema
// without the lo_ prefix.
func (l *LineOrder) Column(name string) ([]int32, error) {
	switch name {
	case "orderdate":
		return l.OrderDate, nil
	case "custkey":
		return l.CustKey, nil
	case "suppkey":
		return l.SuppKey, nil
	case "quantity":
		return l.Quantity, nil
	case "discount":
		return l.Discount, nil
	case "extendedprice":
		return l.ExtendedPrice, nil
	case "revenue":
		return l.Revenue, nil
	}
	return nil, errors.Wrapf(ErrUnknownColumn, "%q", name)
}

// Date is the date dimension, keyed by yyyymmdd.
type Date struct {
	DateKey []int32
	Year    []int32
}

// Len returns the number of rows.
func (d *Date) Len() int { return len(d.DateKey) }

// Supplier is the supplier dimension, keyed 1..Len().
type Supplier struct {
	SuppKey []int32
	Nation  []int32
	Region  []int32
	City    []int32
}

// Len returns the number of rows.
func (s *Supplier) Len() int { return len(s.SuppKey) }

// Customer is the customer dimension, keyed 1..Len().
type Customer struct {
	CustKey []int32
	Nation  []int32
	Region  []int32
	City    []int32
}

// Len returns the number of rows.
func (c *Customer) Len() int { return len(c.CustKey) }
