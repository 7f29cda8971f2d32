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

//go:build amd64

package device

import "golang.org/x/sys/cpu"

func init() {
	detectCPUFeatures()
}

func detectCPUFeatures() {
	x := cpu.X86
	for _, f := range []struct {
		name string
		has  bool
	}{
		{"sse4.2", x.HasSSE42},
		{"popcnt", x.HasPOPCNT},
		{"avx2", x.HasAVX2},
		{"fma", x.HasFMA},
		{"bmi2", x.HasBMI2},
		{"avx512f", x.HasAVX512F},
		{"avx512bw", x.HasAVX512BW},
	} {
		if f.has {
			currentHost.Features = append(currentHost.Features, f.name)
		}
	}
}
