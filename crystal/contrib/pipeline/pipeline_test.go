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
	"strings"
	"testing"

	"github.com/ajroetker/go-crystal/crystal"
	"github.com/ajroetker/go-crystal/crystal/device"
	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newPipeline(t *testing.T, opts ...device.Option) *Pipeline {
	t.Helper()
	opts = append([]device.Option{device.WithWorkers(4), device.WithLogger(zaptest.NewLogger(t))}, opts...)
	dev := device.New(opts...)
	t.Cleanup(dev.Close)
	return New(dev, crystal.DefaultConfig())
}

func joinQuery(dimKey, dimVal, factKey, factVal []int32) Query {
	return Query{
		Name: "join",
		Rows: len(factKey),
		Builds: []Build{{
			Name:     "dim",
			Keys:     dimKey,
			Values:   dimVal,
			NumSlots: len(dimKey),
			KeysMin:  1,
		}},
		Probes: []Probe{{Build: 0, Keys: factKey}},
		Aggregate: Aggregate{
			Product: []Operand{Column(factVal), Payload(0)},
		},
	}
}

func TestRunJoin(t *testing.T) {
	p := newPipeline(t)
	res, err := p.Run(joinQuery([]int32{1, 2}, []int32{10, 20}, []int32{1, 2}, []int32{5, 7}))
	require.NoError(t, err)
	require.Equal(t, uint64(190), res.Sum)
	require.Equal(t, []int{2}, res.BuildRows)
}

func TestRunJoinSizes(t *testing.T) {
	p := newPipeline(t)
	s := p.Config().TileSize()
	for _, n := range []int{0, 1, s - 1, s, s + 1, 1_000_000} {
		dimKey := make([]int32, n)
		dimVal := make([]int32, n)
		factKey := make([]int32, n)
		ones := make([]int32, n)
		var want uint64
		for i := range n {
			dimKey[i] = int32(n - i)
			dimVal[i] = int32(i % 1000)
			factKey[i] = int32(i%n + 1)
			ones[i] = 1
		}
		// Fact key k matches dim row n-k.
		for i := range n {
			want += uint64(dimVal[n-int(factKey[i])])
		}
		res, err := p.Run(joinQuery(dimKey, dimVal, factKey, ones))
		require.NoError(t, err, "n=%d", n)
		require.Equal(t, want, res.Sum, "n=%d", n)

		// Every fact row hits.
		q := joinQuery(dimKey, dimVal, factKey, ones)
		q.Aggregate.Product = nil
		res, err = p.Run(q)
		require.NoError(t, err)
		require.Equal(t, uint64(n), res.Sum, "n=%d hits", n)
	}
}

func q11Query(date, qty, disc, price []int32) Query {
	return Query{
		Name: "q11",
		Rows: len(date),
		Filters: []Filter{
			Where(date, Ge(19930000), Lt(19940000)),
			Where(qty, Lt(25)),
			Between(disc, 1, 3),
		},
		Aggregate: Aggregate{Product: []Operand{Column(disc), Column(price)}},
	}
}

func TestRunFilteredScan(t *testing.T) {
	p := newPipeline(t)
	tests := []struct {
		name                   string
		date, qty, disc, price []int32
		want                   uint64
	}{
		{
			name:  "one qualifying row",
			date:  []int32{19930615, 19920101, 19930615, 19940101},
			qty:   []int32{10, 10, 30, 10},
			disc:  []int32{2, 2, 2, 2},
			price: []int32{100, 100, 100, 100},
			want:  200,
		},
		{
			name:  "none qualify",
			date:  []int32{19920615, 19930615, 19930615},
			qty:   []int32{10, 25, 10},
			disc:  []int32{2, 2, 4},
			price: []int32{100, 100, 100},
			want:  0,
		},
		{
			name:  "lower bound inclusive",
			date:  []int32{19930000, 19939999},
			qty:   []int32{24, 24},
			disc:  []int32{1, 3},
			price: []int32{10, 10},
			want:  40,
		},
	}
	for _, tt := range tests {
		res, err := p.Run(q11Query(tt.date, tt.qty, tt.disc, tt.price))
		require.NoError(t, err, tt.name)
		require.Equal(t, tt.want, res.Sum, tt.name)
		require.Empty(t, res.BuildRows, tt.name)
	}
}

func TestRunOrFilter(t *testing.T) {
	p := newPipeline(t)
	col := []int32{1, 2, 3, 4, 5, 6}
	res, err := p.Run(Query{
		Name:      "or",
		Rows:      len(col),
		Filters:   []Filter{{Column: col, Preds: []Pred{Eq(2), Ge(5)}, Any: true}},
		Aggregate: Aggregate{Product: []Operand{Column(col)}},
	})
	require.NoError(t, err)
	require.Equal(t, uint64(2+5+6), res.Sum)
}

func TestRunSemiJoin(t *testing.T) {
	p := newPipeline(t)
	dimKey := []int32{1, 2, 3, 4}
	region := []int32{0, 1, 1, 0}
	fact := []int32{1, 2, 3, 4, 2, 9}
	rev := []int32{1, 10, 100, 1000, 10000, 5}
	res, err := p.Run(Query{
		Name: "semi",
		Rows: len(fact),
		Builds: []Build{{
			Name:     "dim",
			Keys:     dimKey,
			Filters:  []Filter{Where(region, Eq(1))},
			NumSlots: 10,
			KeysMin:  1,
		}},
		Probes:    []Probe{{Build: 0, Keys: fact}},
		Aggregate: Aggregate{Product: []Operand{Column(rev)}},
	})
	require.NoError(t, err)
	require.Equal(t, uint64(10+100+10000), res.Sum)
	require.Equal(t, []int{2}, res.BuildRows)
}

func TestRunGrouped(t *testing.T) {
	p := newPipeline(t)
	dimKey := []int32{1, 2, 3}
	dimYear := []int32{1992, 1993, 1994}
	fact := []int32{1, 2, 2, 3, 3, 3}
	kind := []int32{0, 1, 1, 0, 1, 1}
	rev := []int32{5, 6, 7, 8, 9, 10}
	res, err := p.Run(Query{
		Name:   "grouped",
		Rows:   len(fact),
		Builds: []Build{{Name: "date", Keys: dimKey, Values: dimYear, NumSlots: 3, KeysMin: 1}},
		Probes: []Probe{{Build: 0, Keys: fact}},
		Aggregate: Aggregate{
			Product: []Operand{Column(rev)},
			GroupBy: []GroupKey{
				{Operand: Payload(0), Min: 1992, Cardinality: 3},
				{Operand: Column(kind), Min: 0, Cardinality: 2},
			},
		},
	})
	require.NoError(t, err)
	require.Zero(t, res.Sum)
	want := []crystal.Group{
		{Index: 0, Attrs: []int32{1992, 0}, Count: 1, Sum: 5},
		{Index: 3, Attrs: []int32{1993, 1}, Count: 2, Sum: 13},
		{Index: 4, Attrs: []int32{1994, 0}, Count: 1, Sum: 8},
		{Index: 5, Attrs: []int32{1994, 1}, Count: 2, Sum: 19},
	}
	if diff := cmp.Diff(want, res.Groups); diff != "" {
		t.Errorf("groups mismatch (-want +got):\n%s", diff)
	}
}

func TestRunGroupOutOfRange(t *testing.T) {
	p := newPipeline(t)
	col := []int32{0, 1, 7}
	_, err := p.Run(Query{
		Name: "bad_group",
		Rows: len(col),
		Aggregate: Aggregate{
			GroupBy: []GroupKey{{Operand: Column(col), Min: 0, Cardinality: 2}},
		},
	})
	require.True(t, errors.Is(err, crystal.ErrGroupOutOfRange), "%v", err)
}

func TestRunBuildViolations(t *testing.T) {
	p := newPipeline(t)
	tests := []struct {
		name string
		keys []int32
		want error
	}{
		{"zero key", []int32{1, 0}, crystal.ErrEmptyKey},
		{"below min", []int32{1, -3}, crystal.ErrKeyOutOfRange},
		{"past capacity", []int32{1, 3}, crystal.ErrKeyOutOfRange},
	}
	for _, tt := range tests {
		q := joinQuery(tt.keys, []int32{1, 1}, []int32{1}, []int32{1})
		_, err := p.Run(q)
		require.True(t, errors.Is(err, tt.want), "%s: %v", tt.name, err)
	}
}

// A build with several kinds of bad keys reports every kind.
func TestRunMixedBuildViolations(t *testing.T) {
	p := newPipeline(t)
	_, err := p.Run(joinQuery([]int32{0, -3, 1}, []int32{1, 1, 1}, []int32{1}, []int32{1}))
	require.Error(t, err)
	require.True(t, errors.Is(err, crystal.ErrEmptyKey), "%v", err)
	require.True(t, errors.Is(err, crystal.ErrKeyOutOfRange), "%v", err)
	require.Contains(t, err.Error(), "1 build keys skipped")
	require.Contains(t, err.Error(), "1 build keys outside [1, 4)")
}

func TestRunValidatedBuild(t *testing.T) {
	p := newPipeline(t)
	keys := []int32{1, 2, 2}
	vals := []int32{10, 20, 21}
	live := []int32{1, 1, 0}

	q := joinQuery(keys, vals, []int32{1, 2}, []int32{1, 1})
	_, err := p.Run(q.WithValidation())
	require.True(t, errors.Is(err, crystal.ErrPayloadConflict), "%v", err)
	require.Contains(t, err.Error(), "validate build dim")
	require.Zero(t, p.dev.Reserved())

	// Without the host check the device build still reports the conflict.
	_, err = p.Run(q)
	require.True(t, errors.Is(err, crystal.ErrPayloadConflict), "%v", err)

	// Rows removed by the build filter are not checked.
	q.Builds[0].Filters = []Filter{Where(live, Eq(1))}
	res, err := p.Run(q.WithValidation())
	require.NoError(t, err)
	require.Equal(t, uint64(30), res.Sum)

	q.Builds[0].Keys = []int32{1, 0, 2}
	_, err = p.Run(q.WithValidation())
	require.True(t, errors.Is(err, crystal.ErrEmptyKey), "%v", err)
}

func TestRunInvalidQuery(t *testing.T) {
	p := newPipeline(t)
	col := []int32{1, 2}
	tests := []struct {
		name string
		q    Query
	}{
		{"probe without build", Query{Rows: 2, Probes: []Probe{{Build: 0, Keys: col}}}},
		{"short column", Query{Rows: 3, Aggregate: Aggregate{Product: []Operand{Column(col)}}}},
		{"payload of presence table", Query{
			Rows:      2,
			Builds:    []Build{{Name: "d", Keys: col, NumSlots: 2, KeysMin: 1}},
			Probes:    []Probe{{Build: 0, Keys: col}},
			Aggregate: Aggregate{Product: []Operand{Payload(0)}},
		}},
		{"bad operator", Query{Rows: 2, Filters: []Filter{{Column: col, Preds: []Pred{{Op: 42}}}}}},
		{"empty group domain", Query{Rows: 2, Aggregate: Aggregate{GroupBy: []GroupKey{{Operand: Column(col)}}}}},
	}
	for _, tt := range tests {
		_, err := p.Run(tt.q)
		require.True(t, errors.Is(err, ErrInvalidQuery), "%s: %v", tt.name, err)
	}
}

func TestRunOutOfMemory(t *testing.T) {
	p := newPipeline(t, device.WithMemoryLimit(1<<10))
	n := 1000
	keys := make([]int32, n)
	for i := range keys {
		keys[i] = int32(i + 1)
	}
	_, err := p.Run(joinQuery(keys, keys, keys, keys))
	require.True(t, errors.Is(err, device.ErrOutOfMemory), "%v", err)
	require.Zero(t, p.dev.Reserved())
}

// Running the same query twice starts from zeroed state and must give
// bit-identical results.
func TestRunIdempotent(t *testing.T) {
	p := newPipeline(t)
	n := 10*p.Config().TileSize() + 17
	keys := make([]int32, n)
	vals := make([]int32, n)
	for i := range keys {
		keys[i] = int32(i + 1)
		vals[i] = int32(i*31%977 - 400)
	}
	q := joinQuery(keys, vals, keys, vals)
	first, err := p.Run(q)
	require.NoError(t, err)
	second, err := p.Run(q)
	require.NoError(t, err)
	require.Equal(t, first.Sum, second.Sum)
	require.Zero(t, p.dev.Reserved())
}

func TestTimingsString(t *testing.T) {
	s := Timings{}.String()
	require.True(t, strings.HasPrefix(s, `{"time_memset":0.000`), s)
}
