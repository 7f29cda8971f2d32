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

package ssb

import (
	"github.com/ajroetker/go-crystal/crystal"
	p "github.com/ajroetker/go-crystal/crystal/contrib/pipeline"
	"github.com/samber/lo"
)

// HashJoin joins fact to dim on fact.Keys = dim.Keys and sums
// fact.Vals × dim.Vals. dim keys must be unique and drawn from
// [1, dim.Len()].
func HashJoin(dim, fact Relation) p.Query {
	return p.Query{
		Name: "join",
		Rows: fact.Len(),
		Builds: []p.Build{{
			Name:     "dim",
			Keys:     dim.Keys,
			Values:   dim.Vals,
			NumSlots: dim.Len(),
			KeysMin:  1,
		}},
		Probes: []p.Probe{{Build: 0, Keys: fact.Keys}},
		Aggregate: p.Aggregate{
			Product: []p.Operand{p.Column(fact.Vals), p.Payload(0)},
		},
	}
}

// Scan sums discount × extendedprice over the orders passing every filter.
func Scan(orders *LineOrder, filters ...p.Filter) p.Query {
	return p.Query{
		Name:    "scan",
		Rows:    orders.Len(),
		Filters: filters,
		Aggregate: p.Aggregate{
			Product: []p.Operand{p.Column(orders.Discount), p.Column(orders.ExtendedPrice)},
		},
	}
}

// discountedRevenue is the Scan of the first query flight.
func discountedRevenue(name string, orders *LineOrder, date, quantity p.Filter, discLo, discHi int32) p.Query {
	q := Scan(orders, date, quantity, p.Between(orders.Discount, discLo, discHi))
	q.Name = name
	return q
}

// Q11 selects 1993 orders with quantity below 25 and discount in [1, 3].
func Q11(orders *LineOrder) p.Query {
	return discountedRevenue("q11", orders,
		p.Where(orders.OrderDate, p.Ge(19930000), p.Lt(19940000)),
		p.Where(orders.Quantity, p.Lt(25)),
		1, 3)
}

// Q12 selects January 1994 orders with quantity in [26, 35] and discount
// in [4, 6].
func Q12(orders *LineOrder) p.Query {
	return discountedRevenue("q12", orders,
		p.Between(orders.OrderDate, 19940101, 19940131),
		p.Between(orders.Quantity, 26, 35),
		4, 6)
}

// Q13 selects orders of 1994-02-04 through 1994-02-10 with quantity in
// [26, 35] and discount in [5, 7].
func Q13(orders *LineOrder) p.Query {
	return discountedRevenue("q13", orders,
		p.Between(orders.OrderDate, 19940204, 19940210),
		p.Between(orders.Quantity, 26, 35),
		5, 7)
}

// SemiJoinSum sums the revenue of orders whose supplier is in region. The
// supplier table only records presence, no payload.
func SemiJoinSum(orders *LineOrder, s *Supplier, region int32) p.Query {
	return p.Query{
		Name: "semi_join",
		Rows: orders.Len(),
		Builds: []p.Build{{
			Name:     "supplier",
			Keys:     s.SuppKey,
			Filters:  []p.Filter{p.Where(s.Region, p.Eq(region))},
			NumSlots: s.Len(),
			KeysMin:  1,
		}},
		Probes:    []p.Probe{{Build: 0, Keys: orders.SuppKey}},
		Aggregate: p.Aggregate{Product: []p.Operand{p.Column(orders.Revenue)}},
	}
}

// Q32Params selects the customer and supplier nation and the year range of
// Q3.2.
type Q32Params struct {
	Nation int32 `toml:"nation"`
	YearLo int32 `toml:"year_lo"`
	YearHi int32 `toml:"year_hi"`
}

// DefaultQ32 is nation 24 over 1992 through 1997.
func DefaultQ32() Q32Params {
	return Q32Params{Nation: 24, YearLo: 1992, YearHi: 1997}
}

// Q32 sums revenue per (supplier city, customer city, year) for orders
// between a customer and a supplier of one nation, within a year range.
func Q32(orders *LineOrder, s *Supplier, c *Customer, d *Date, params Q32Params) p.Query {
	return p.Query{
		Name: "q32",
		Rows: orders.Len(),
		Builds: []p.Build{
			{
				Name:     "supplier",
				Keys:     s.SuppKey,
				Values:   s.City,
				Filters:  []p.Filter{p.Where(s.Nation, p.Eq(params.Nation))},
				NumSlots: s.Len(),
				KeysMin:  1,
			},
			{
				Name:     "customer",
				Keys:     c.CustKey,
				Values:   c.City,
				Filters:  []p.Filter{p.Where(c.Nation, p.Eq(params.Nation))},
				NumSlots: c.Len(),
				KeysMin:  1,
			},
			{
				Name:     "date",
				Keys:     d.DateKey,
				Values:   d.Year,
				Filters:  []p.Filter{p.Between(d.Year, params.YearLo, params.YearHi)},
				NumSlots: MaxDateKey - MinDateKey + 1,
				KeysMin:  MinDateKey,
			},
		},
		Probes: []p.Probe{
			{Build: 0, Keys: orders.SuppKey},
			{Build: 1, Keys: orders.CustKey},
			{Build: 2, Keys: orders.OrderDate},
		},
		Aggregate: p.Aggregate{
			Product: []p.Operand{p.Column(orders.Revenue)},
			GroupBy: []p.GroupKey{
				{Operand: p.Payload(0), Min: 0, Cardinality: NumCities},
				{Operand: p.Payload(1), Min: 0, Cardinality: NumCities},
				{Operand: p.Payload(2), Min: MinYear, Cardinality: MaxYear - MinYear + 1},
			},
		},
	}
}

// Q32Row is one output row of Q32.
type Q32Row struct {
	Year     int32
	CustCity int32
	SuppCity int32
	Revenue  int64
}

// Q32Rows converts the groups of a Q32 result, keeping their order: by
// supplier city, then customer city, then year.
func Q32Rows(groups []crystal.Group) []Q32Row {
	return lo.Map(groups, func(g crystal.Group, _ int) Q32Row {
		return Q32Row{
			Year:     g.Attrs[2],
			CustCity: g.Attrs[1],
			SuppCity: g.Attrs[0],
			Revenue:  g.Sum,
		}
	})
}
