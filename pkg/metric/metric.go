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

// Package metric provides primitives for collecting kernel metrics.
//
// Metrics live in a Registry owned by one kernel, so independent kernels in
// the same process never share counters.
package metric

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

var (
	// ErrNameInUse indicates that another metric is already defined for
	// the given name.
	ErrNameInUse = errors.New("metric name already in use")

	// ErrInvalidName indicates that a metric or field name is not a valid
	// Prometheus name.
	ErrInvalidName = errors.New("invalid metric name")

	// ErrFieldHasNoAllowedValues indicates that the field needs to define some
	// allowed values to be a valid and useful field.
	ErrFieldHasNoAllowedValues = errors.New("metric field does not define any allowed values")

	// ErrTooManyFieldCombinations indicates that the number of unique
	// combinations of fields is too large to support.
	ErrTooManyFieldCombinations = errors.New("metric has too many combinations of allowed field values")
)

var validName = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)

// Field contains the field name and allowed values for a metric with
// fields.
type Field struct {
	// name is the metric field name.
	name string

	// allowedValues is the list of allowed values for the field.
	allowedValues []string
}

// NewField defines a new Field that can be used to break down a metric.
func NewField(name string, allowedValues []string) Field {
	return Field{
		name:          name,
		allowedValues: allowedValues,
	}
}

// Name returns the field name.
func (f Field) Name() string {
	return f.name
}

// fieldMapper maps field value combinations to dense indexes and back.
type fieldMapper struct {
	fields []Field

	// numFieldCombinations is the number of unique keys for all possible field
	// combinations.
	numFieldCombinations int
}

func newFieldMapper(fields ...Field) (fieldMapper, error) {
	numFieldCombinations := 1
	for _, f := range fields {
		if !validName.MatchString(f.name) {
			return fieldMapper{}, fmt.Errorf("field %q: %w", f.name, ErrInvalidName)
		}
		if len(f.allowedValues) == 0 {
			return fieldMapper{}, ErrFieldHasNoAllowedValues
		}
		numFieldCombinations *= len(f.allowedValues)
		if numFieldCombinations > math.MaxUint32 || numFieldCombinations < 0 {
			return fieldMapper{}, ErrTooManyFieldCombinations
		}
	}
	return fieldMapper{
		fields:               fields,
		numFieldCombinations: numFieldCombinations,
	}, nil
}

// lookup returns the key of a field value combination. It panics if the
// number of values is wrong or a value is not allowed.
func (m fieldMapper) lookup(fields ...string) int {
	if len(fields) != len(m.fields) {
		panic("invalid field lookup depth")
	}
	idx := 0
	remainingCombinationBucket := m.numFieldCombinations
IdxLookup:
	for i, val := range fields {
		for valIdx, allowedVal := range m.fields[i].allowedValues {
			if val == allowedVal {
				remainingCombinationBucket /= len(m.fields[i].allowedValues)
				idx += remainingCombinationBucket * valIdx
				continue IdxLookup
			}
		}
		panic(fmt.Sprintf("disallowed value %q for field %q", val, m.fields[i].name))
	}
	return idx
}

func (m fieldMapper) numKeys() int {
	return m.numFieldCombinations
}

// keyToMultiField is the reverse of lookup.
func (m fieldMapper) keyToMultiField(key int) []string {
	if len(m.fields) == 0 && key == 0 {
		return nil
	}
	depth := len(m.fields)
	fields := make([]string, depth)
	remainingCombinationBucket := m.numFieldCombinations
	for i := 0; i < depth; i++ {
		remainingCombinationBucket /= len(m.fields[i].allowedValues)
		fields[i] = m.fields[i].allowedValues[key/remainingCombinationBucket]
		key = key % remainingCombinationBucket
	}
	return fields
}

// Uint64Metric encapsulates a uint64 that represents some kind of metric to be
// monitored.
type Uint64Metric struct {
	name        string
	description string

	// fields holds one counter per field value combination.
	fields []atomic.Uint64

	fieldMapper fieldMapper
}

// Value returns the current value of the metric for the given set of fields.
// This must be called with the correct number of field values or it will panic.
func (m *Uint64Metric) Value(fieldValues ...string) uint64 {
	return m.fields[m.fieldMapper.lookup(fieldValues...)].Load()
}

// Increment increments the metric field by 1.
func (m *Uint64Metric) Increment(fieldValues ...string) {
	m.IncrementBy(1, fieldValues...)
}

// IncrementBy increments the metric by v.
func (m *Uint64Metric) IncrementBy(v uint64, fieldValues ...string) {
	m.fields[m.fieldMapper.lookup(fieldValues...)].Add(v)
}

// Bucketer is an interface to bucket values into finite, distinct buckets.
type Bucketer interface {
	// NumFiniteBuckets is the number of finite buckets in the distribution.
	NumFiniteBuckets() int

	// LowerBound takes the index of a bucket (within [0, NumFiniteBuckets()])
	// and returns the inclusive lower bound of that bucket. The last bucket
	// is infinite.
	LowerBound(bucketIndex int) int64

	// BucketIndex returns the index of the bucket sample falls into, or -1
	// if it is below every bucket.
	BucketIndex(sample int64) int
}

// ExponentialBucketer implements Bucketer, with the first bucket starting
// with 0 as lowest bound with `Width` width, and each subsequent bucket being
// wider by a scaled exponentially-growing series, until `NumFiniteBuckets`
// buckets exist.
type ExponentialBucketer struct {
	numFiniteBuckets int
	width            float64
	scale            float64
	growth           float64

	// maxSample is the max sample value which can be represented in a finite
	// bucket.
	maxSample int64

	// lowerBounds[numFiniteBuckets] is the lower bound of the overflow
	// bucket.
	lowerBounds []int64
}

// Minimum/maximum finite buckets for exponential bucketers.
const (
	exponentialMinBuckets = 1
	exponentialMaxBuckets = 100
)

// NewExponentialBucketer returns a new Bucketer with exponential buckets.
func NewExponentialBucketer(numFiniteBuckets int, width uint64, scale, growth float64) *ExponentialBucketer {
	if numFiniteBuckets < exponentialMinBuckets || numFiniteBuckets > exponentialMaxBuckets {
		panic(fmt.Sprintf("number of finite buckets must be in [%d, %d]", exponentialMinBuckets, exponentialMaxBuckets))
	}
	if scale < 0 || growth < 0 {
		panic(fmt.Sprintf("scale and growth for exponential buckets must be >0, got scale=%f and growth=%f", scale, growth))
	}
	b := &ExponentialBucketer{
		numFiniteBuckets: numFiniteBuckets,
		width:            float64(width),
		scale:            scale,
		growth:           growth,
		lowerBounds:      make([]int64, numFiniteBuckets+1),
	}
	for i := 1; i <= numFiniteBuckets; i++ {
		b.lowerBounds[i] = int64(b.width*float64(i) + b.scale*math.Pow(b.growth, float64(i-1)))
		if b.lowerBounds[i] < 0 {
			panic(fmt.Sprintf("encountered bucket width overflow at bucket %d", i))
		}
	}
	b.maxSample = b.lowerBounds[numFiniteBuckets] - 1
	return b
}

// NumFiniteBuckets implements Bucketer.NumFiniteBuckets.
func (b *ExponentialBucketer) NumFiniteBuckets() int {
	return b.numFiniteBuckets
}

// LowerBound implements Bucketer.LowerBound.
func (b *ExponentialBucketer) LowerBound(bucketIndex int) int64 {
	return b.lowerBounds[bucketIndex]
}

// BucketIndex implements Bucketer.BucketIndex.
func (b *ExponentialBucketer) BucketIndex(sample int64) int {
	if sample < 0 {
		return -1
	}
	if sample > b.maxSample {
		return b.numFiniteBuckets
	}
	// lowerBounds is sorted; find the last bound <= sample.
	return sort.Search(b.numFiniteBuckets+1, func(i int) bool {
		return b.lowerBounds[i] > sample
	}) - 1
}

var _ Bucketer = (*ExponentialBucketer)(nil)

// DistributionMetric represents a distribution of values in finite buckets.
type DistributionMetric struct {
	name        string
	description string
	bucketer    Bucketer
	fieldMapper fieldMapper

	// samples[key][0] is the underflow bucket, samples[key][i] the (i-1)-th
	// finite bucket and the last entry the overflow bucket.
	samples [][]atomic.Uint64

	// sums[key] is the sum of all samples.
	sums []atomic.Int64
}

// AddSample adds a sample to the distribution.
func (d *DistributionMetric) AddSample(sample int64, fields ...string) {
	key := d.fieldMapper.lookup(fields...)
	d.samples[key][d.bucketer.BucketIndex(sample)+1].Add(1)
	d.sums[key].Add(sample)
}

// Count returns the number of samples recorded for fields.
func (d *DistributionMetric) Count(fields ...string) uint64 {
	buckets := d.samples[d.fieldMapper.lookup(fields...)]
	var n uint64
	for i := range buckets {
		n += buckets[i].Load()
	}
	return n
}

// Registry is a set of metrics.
type Registry struct {
	mu sync.Mutex

	// +checklocks:mu
	uint64Metrics map[string]*Uint64Metric

	// +checklocks:mu
	distributionMetrics map[string]*DistributionMetric
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		uint64Metrics:       make(map[string]*Uint64Metric),
		distributionMetrics: make(map[string]*DistributionMetric),
	}
}

// +checklocks:r.mu
func (r *Registry) checkNameLocked(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("metric %q: %w", name, ErrInvalidName)
	}
	if _, ok := r.uint64Metrics[name]; ok {
		return fmt.Errorf("metric %q: %w", name, ErrNameInUse)
	}
	if _, ok := r.distributionMetrics[name]; ok {
		return fmt.Errorf("metric %q: %w", name, ErrNameInUse)
	}
	return nil
}

// NewUint64Metric creates and registers a new counter.
func (r *Registry) NewUint64Metric(name, description string, fields ...Field) (*Uint64Metric, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkNameLocked(name); err != nil {
		return nil, err
	}
	f, err := newFieldMapper(fields...)
	if err != nil {
		return nil, err
	}
	m := &Uint64Metric{
		name:        name,
		description: description,
		fields:      make([]atomic.Uint64, f.numKeys()),
		fieldMapper: f,
	}
	r.uint64Metrics[name] = m
	return m, nil
}

// MustCreateNewUint64Metric calls NewUint64Metric and panics if it returns
// an error.
func (r *Registry) MustCreateNewUint64Metric(name, description string, fields ...Field) *Uint64Metric {
	m, err := r.NewUint64Metric(name, description, fields...)
	if err != nil {
		panic(fmt.Sprintf("Unable to create metric %q: %s", name, err))
	}
	return m
}

// NewDistributionMetric creates and registers a new distribution metric.
func (r *Registry) NewDistributionMetric(name, description string, bucketer Bucketer, fields ...Field) (*DistributionMetric, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkNameLocked(name); err != nil {
		return nil, err
	}
	f, err := newFieldMapper(fields...)
	if err != nil {
		return nil, err
	}
	d := &DistributionMetric{
		name:        name,
		description: description,
		bucketer:    bucketer,
		fieldMapper: f,
		samples:     make([][]atomic.Uint64, f.numKeys()),
		sums:        make([]atomic.Int64, f.numKeys()),
	}
	for i := range d.samples {
		d.samples[i] = make([]atomic.Uint64, bucketer.NumFiniteBuckets()+2)
	}
	r.distributionMetrics[name] = d
	return d, nil
}

// MustCreateNewDistributionMetric calls NewDistributionMetric and panics if
// it returns an error.
func (r *Registry) MustCreateNewDistributionMetric(name, description string, bucketer Bucketer, fields ...Field) *DistributionMetric {
	d, err := r.NewDistributionMetric(name, description, bucketer, fields...)
	if err != nil {
		panic(fmt.Sprintf("Unable to create metric %q: %s", name, err))
	}
	return d
}

// Uint64Values returns a snapshot of every counter, keyed by metric name and
// then by the comma-joined field values ("" for metrics without fields).
// Zero values are omitted.
func (r *Registry) Uint64Values() map[string]map[string]uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]map[string]uint64, len(r.uint64Metrics))
	for name, m := range r.uint64Metrics {
		vals := make(map[string]uint64)
		for key := range m.fields {
			if v := m.fields[key].Load(); v != 0 {
				vals[strings.Join(m.fieldMapper.keyToMultiField(key), ",")] = v
			}
		}
		out[name] = vals
	}
	return out
}
