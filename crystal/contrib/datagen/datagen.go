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

// Package datagen generates synthetic relations on the host: primary-key
// and foreign-key relations for join benchmarks, and small star schemas
// shaped like the SSB tables. Generation is deterministic for a given seed.
package datagen

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/ajroetker/go-crystal/crystal/contrib/ssb"
)

// Generator produces relations from one seeded random stream.
type Generator struct {
	rng *rand.Rand
}

// New returns a generator seeded with seed.
func New(seed uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Shuffle permutes keys in place with a Knuth shuffle.
func (g *Generator) Shuffle(keys []int32) {
	for i := len(keys) - 1; i > 0; i-- {
		j := g.rng.IntN(i + 1)
		keys[i], keys[j] = keys[j], keys[i]
	}
}

// UniqueKeys returns 1..n in random order.
func (g *Generator) UniqueKeys(n int) []int32 {
	keys := make([]int32, n)
	g.fillUnique(keys)
	return keys
}

func (g *Generator) fillUnique(keys []int32) {
	for i := range keys {
		keys[i] = int32(i + 1)
	}
	g.Shuffle(keys)
}

func sequence(n int) []int32 {
	vals := make([]int32, n)
	for i := range vals {
		vals[i] = int32(i)
	}
	return vals
}

// RelationPK returns n rows with unique keys 1..n in random order and
// values 0..n-1.
func (g *Generator) RelationPK(n int) ssb.Relation {
	return ssb.Relation{Keys: g.UniqueKeys(n), Vals: sequence(n)}
}

// RelationFK returns n rows whose keys reference a primary key in
// [1, maxID]. Keys are laid out as consecutive random permutations of
// 1..maxID; a final partial run is a permutation of 1..n%maxID. Values are
// 0..n-1. It panics if n > 0 and maxID <= 0, as no key can be drawn.
func (g *Generator) RelationFK(n, maxID int) ssb.Relation {
	if n > 0 && maxID <= 0 {
		panic(fmt.Sprintf("datagen: RelationFK of %d rows needs maxID > 0, got %d", n, maxID))
	}
	keys := make([]int32, n)
	for start := 0; start < n; start += maxID {
		g.fillUnique(keys[start:min(start+maxID, n)])
	}
	return ssb.Relation{Keys: keys, Vals: sequence(n)}
}

// Dates returns one row per calendar day from MinDateKey to MaxDateKey.
func Dates() *ssb.Date {
	d := &ssb.Date{}
	first := time.Date(ssb.MinYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(ssb.MaxYear, time.December, 30, 0, 0, 0, 0, time.UTC)
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		d.DateKey = append(d.DateKey, int32(day.Year()*10000+int(day.Month())*100+day.Day()))
		d.Year = append(d.Year, int32(day.Year()))
	}
	return d
}

// Nations and cities follow the SSB encoding: 25 nations in 5 regions of 5,
// and 10 cities per nation numbered nation*10 + k.
const (
	NumNations       = 25
	NationsPerRegion = 5
	CitiesPerNation  = 10
)

func (g *Generator) geography(n int) (nation, region, city []int32) {
	nation = make([]int32, n)
	region = make([]int32, n)
	city = make([]int32, n)
	for i := range n {
		nat := g.rng.Int32N(NumNations)
		nation[i] = nat
		region[i] = nat / NationsPerRegion
		city[i] = nat*CitiesPerNation + g.rng.Int32N(CitiesPerNation)
	}
	return nation, region, city
}

// Suppliers returns n suppliers keyed 1..n.
func (g *Generator) Suppliers(n int) *ssb.Supplier {
	nation, region, city := g.geography(n)
	return &ssb.Supplier{SuppKey: sequence1(n), Nation: nation, Region: region, City: city}
}

// Customers returns n customers keyed 1..n.
func (g *Generator) Customers(n int) *ssb.Customer {
	nation, region, city := g.geography(n)
	return &ssb.Customer{CustKey: sequence1(n), Nation: nation, Region: region, City: city}
}

func sequence1(n int) []int32 {
	keys := make([]int32, n)
	for i := range keys {
		keys[i] = int32(i + 1)
	}
	return keys
}

// LineOrders returns n orders referencing dates, numSupp suppliers and
// numCust customers uniformly. Quantity is in [1, 50], discount in
// [0, 10], extended price in [100, 10000], and revenue is
// price × (100 - discount) / 100.
func (g *Generator) LineOrders(n int, dates *ssb.Date, numSupp, numCust int) *ssb.LineOrder {
	lo := &ssb.LineOrder{
		OrderDate:     make([]int32, n),
		CustKey:       make([]int32, n),
		SuppKey:       make([]int32, n),
		Quantity:      make([]int32, n),
		Discount:      make([]int32, n),
		ExtendedPrice: make([]int32, n),
		Revenue:       make([]int32, n),
	}
	for i := range n {
		lo.OrderDate[i] = dates.DateKey[g.rng.IntN(dates.Len())]
		lo.CustKey[i] = int32(g.rng.IntN(numCust) + 1)
		lo.SuppKey[i] = int32(g.rng.IntN(numSupp) + 1)
		lo.Quantity[i] = g.rng.Int32N(50) + 1
		lo.Discount[i] = g.rng.Int32N(11)
		price := g.rng.Int32N(9901) + 100
		lo.ExtendedPrice[i] = price
		lo.Revenue[i] = price * (100 - lo.Discount[i]) / 100
	}
	return lo
}

// Sizes sets the row counts of a generated star schema.
type Sizes struct {
	Orders    int `toml:"orders"`
	Suppliers int `toml:"suppliers"`
	Customers int `toml:"customers"`
}

// DefaultSizes is a star small enough for unit tests and quick runs.
func DefaultSizes() Sizes {
	return Sizes{Orders: 1 << 20, Suppliers: 2000, Customers: 30000}
}

// Star is a generated star schema.
type Star struct {
	LineOrder *ssb.LineOrder
	Date      *ssb.Date
	Supplier  *ssb.Supplier
	Customer  *ssb.Customer
}

// Star generates a star schema of the given sizes.
func (g *Generator) Star(sizes Sizes) *Star {
	s := &Star{
		Date:     Dates(),
		Supplier: g.Suppliers(sizes.Suppliers),
		Customer: g.Customers(sizes.Customers),
	}
	s.LineOrder = g.LineOrders(sizes.Orders, s.Date, sizes.Suppliers, sizes.Customers)
	return s
}
