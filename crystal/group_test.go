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
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestGroupDimsIndex(t *testing.T) {
	dims := GroupDims{{Min: 0, Cardinality: 250}, {Min: 0, Cardinality: 250}, {Min: 1992, Cardinality: 7}}
	require.Equal(t, 250*250*7, dims.NumGroups())
	tests := []struct {
		attrs []int32
		want  int
		ok    bool
	}{
		{[]int32{0, 0, 1992}, 0, true},
		{[]int32{0, 0, 1998}, 6, true},
		{[]int32{0, 1, 1992}, 7, true},
		{[]int32{1, 0, 1992}, 250 * 7, true},
		{[]int32{249, 249, 1998}, 250*250*7 - 1, true},
		{[]int32{0, 0, 1999}, 0, false},
		{[]int32{-1, 0, 1992}, 0, false},
		{[]int32{250, 0, 1992}, 0, false},
	}
	for _, tt := range tests {
		got, ok := dims.Index(tt.attrs)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Index(%v): got (%d, %v), want (%d, %v)", tt.attrs, got, ok, tt.want, tt.ok)
		}
	}
}

func TestGroupTableConcurrentUpdates(t *testing.T) {
	g := NewGroupTable(GroupDims{{Min: 1992, Cardinality: 7}, {Min: 0, Cardinality: 3}})
	var wg sync.WaitGroup
	for w := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				g.Update([]int32{1993, int32(i % 2)}, int64(w))
			}
		}()
	}
	wg.Wait()
	require.NoError(t, g.Err())

	want := []Group{
		{Index: 3, Attrs: []int32{1993, 0}, Count: 800, Sum: 50 * (15 * 16 / 2)},
		{Index: 4, Attrs: []int32{1993, 1}, Count: 800, Sum: 50 * (15 * 16 / 2)},
	}
	if diff := cmp.Diff(want, g.Groups()); diff != "" {
		t.Errorf("Groups() mismatch (-want +got):\n%s", diff)
	}
}

func TestGroupTableOutOfRange(t *testing.T) {
	g := NewGroupTable(GroupDims{{Min: 0, Cardinality: 2}})
	g.Update([]int32{5}, 1)
	require.True(t, errors.Is(g.Err(), ErrGroupOutOfRange))
	require.Empty(t, g.Groups())
	g.Reset()
	require.NoError(t, g.Err())
	require.Equal(t, int64(2*3*8), g.Bytes())
}
