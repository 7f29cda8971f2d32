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

package device

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	launches *prometheus.CounterVec
	duration *prometheus.HistogramVec
	faults   *prometheus.CounterVec
	reserved prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		launches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crystal",
			Name:      "kernel_launches_total",
			Help:      "Number of kernel launches.",
		}, []string{"kernel"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "crystal",
			Name:      "kernel_duration_seconds",
			Help:      "Wall time of kernel launches, from first block start to last block end.",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 12),
		}, []string{"kernel"}),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crystal",
			Name:      "kernel_faults_total",
			Help:      "Number of kernel launches aborted by a faulting block.",
		}, []string{"kernel"}),
		reserved: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "crystal",
			Name:      "device_reserved_bytes",
			Help:      "Device memory currently reserved.",
		}),
	}
	reg.MustRegister(m.launches, m.duration, m.faults, m.reserved)
	return m
}

func (m *metrics) observeLaunch(kernel string, elapsed time.Duration, faulted bool) {
	m.launches.WithLabelValues(kernel).Inc()
	m.duration.WithLabelValues(kernel).Observe(elapsed.Seconds())
	if faulted {
		m.faults.WithLabelValues(kernel).Inc()
	}
}
