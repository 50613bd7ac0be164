// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pathbuilder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus counters of the path builders, labelled by builder kind. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	// propagations counts the abstractions visited by the builders.
	// Labels: builder
	propagations *prometheus.CounterVec

	// results counts the results written to the sinks.
	// Labels: builder
	results *prometheus.CounterVec

	// sinks counts the sink occurrences the builders have been started on.
	// Labels: builder
	sinks *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them on reg. It panics if the counters are already registered on
// reg, so it should be called once per registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		propagations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "argot",
			Subsystem: "paths",
			Name:      "propagations_total",
			Help:      "Total abstractions visited during path reconstruction",
		}, []string{"builder"}),
		results: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "argot",
			Subsystem: "paths",
			Name:      "results_total",
			Help:      "Total source to sink results reported by the path builders",
		}, []string{"builder"}),
		sinks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "argot",
			Subsystem: "paths",
			Name:      "sinks_total",
			Help:      "Total sink occurrences processed by the path builders",
		}, []string{"builder"}),
	}
}

// kindMetrics are the counters of one builder kind. Nil counters record nothing.
type kindMetrics struct {
	propagations prometheus.Counter
	results      prometheus.Counter
	sinkCount    prometheus.Counter
}

func (m *Metrics) forKind(k Kind) kindMetrics {
	if m == nil {
		return kindMetrics{}
	}
	label := k.String()
	return kindMetrics{
		propagations: m.propagations.WithLabelValues(label),
		results:      m.results.WithLabelValues(label),
		sinkCount:    m.sinks.WithLabelValues(label),
	}
}

func (m kindMetrics) propagation() {
	if m.propagations != nil {
		m.propagations.Inc()
	}
}

func (m kindMetrics) result() {
	if m.results != nil {
		m.results.Inc()
	}
}

func (m kindMetrics) sinks(n int) {
	if m.sinkCount != nil {
		m.sinkCount.Add(float64(n))
	}
}
