// Copyright 2026 The gVisor Authors.
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

package metric

import (
	"fmt"
	"io"
	"sort"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"
)

// ExportOptions configures WritePrometheus.
type ExportOptions struct {
	// Prefix is prepended to every metric name.
	Prefix string

	// Labels are added to every sample, e.g. the kernel boot id.
	Labels map[string]string
}

func (o ExportOptions) labelPairs(names []string, values []string) []*dto.LabelPair {
	var pairs []*dto.LabelPair
	keys := make([]string, 0, len(o.Labels))
	for k := range o.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		pairs = append(pairs, &dto.LabelPair{Name: proto.String(k), Value: proto.String(o.Labels[k])})
	}
	for i, n := range names {
		pairs = append(pairs, &dto.LabelPair{Name: proto.String(n), Value: proto.String(values[i])})
	}
	return pairs
}

func fieldNames(f fieldMapper) []string {
	names := make([]string, len(f.fields))
	for i, field := range f.fields {
		names[i] = field.name
	}
	return names
}

func (m *Uint64Metric) family(opts ExportOptions) *dto.MetricFamily {
	mf := &dto.MetricFamily{
		Name: proto.String(opts.Prefix + m.name),
		Help: proto.String(m.description),
		Type: dto.MetricType_COUNTER.Enum(),
	}
	names := fieldNames(m.fieldMapper)
	for key := range m.fields {
		mf.Metric = append(mf.Metric, &dto.Metric{
			Label:   opts.labelPairs(names, m.fieldMapper.keyToMultiField(key)),
			Counter: &dto.Counter{Value: proto.Float64(float64(m.fields[key].Load()))},
		})
	}
	return mf
}

func (d *DistributionMetric) family(opts ExportOptions) *dto.MetricFamily {
	mf := &dto.MetricFamily{
		Name: proto.String(opts.Prefix + d.name),
		Help: proto.String(d.description),
		Type: dto.MetricType_HISTOGRAM.Enum(),
	}
	names := fieldNames(d.fieldMapper)
	n := d.bucketer.NumFiniteBuckets()
	for key, samples := range d.samples {
		// Underflow samples count toward every bucket.
		cum := samples[0].Load()
		h := &dto.Histogram{SampleSum: proto.Float64(float64(d.sums[key].Load()))}
		for i := 0; i < n; i++ {
			cum += samples[i+1].Load()
			// Buckets are [lower, next lower); Prometheus bounds are
			// inclusive.
			h.Bucket = append(h.Bucket, &dto.Bucket{
				CumulativeCount: proto.Uint64(cum),
				UpperBound:      proto.Float64(float64(d.bucketer.LowerBound(i+1) - 1)),
			})
		}
		cum += samples[n+1].Load()
		h.SampleCount = proto.Uint64(cum)
		mf.Metric = append(mf.Metric, &dto.Metric{
			Label:     opts.labelPairs(names, d.fieldMapper.keyToMultiField(key)),
			Histogram: h,
		})
	}
	return mf
}

// Families returns every registered metric as Prometheus metric families,
// sorted by name.
func (r *Registry) Families(opts ExportOptions) []*dto.MetricFamily {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*dto.MetricFamily
	for _, m := range r.uint64Metrics {
		out = append(out, m.family(opts))
	}
	for _, d := range r.distributionMetrics {
		out = append(out, d.family(opts))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GetName() < out[j].GetName() })
	return out
}

// WritePrometheus writes every metric to w in the Prometheus text
// exposition format.
func (r *Registry) WritePrometheus(w io.Writer, opts ExportOptions) error {
	for _, mf := range r.Families(opts) {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("writing metric %q: %w", mf.GetName(), err)
		}
	}
	return nil
}
