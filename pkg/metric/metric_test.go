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
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/common/expfmt"
)

func TestNameInUse(t *testing.T) {
	r := NewRegistry()
	if _, err := r.NewUint64Metric("foo", "Foo!"); err != nil {
		t.Fatalf("NewUint64Metric: %v", err)
	}
	if _, err := r.NewUint64Metric("foo", "again"); !errors.Is(err, ErrNameInUse) {
		t.Errorf("duplicate NewUint64Metric = %v, want ErrNameInUse", err)
	}
	if _, err := r.NewDistributionMetric("foo", "again", NewExponentialBucketer(3, 10, 0, 1)); !errors.Is(err, ErrNameInUse) {
		t.Errorf("duplicate NewDistributionMetric = %v, want ErrNameInUse", err)
	}
	if _, err := r.NewUint64Metric("/bad/name", "bad"); !errors.Is(err, ErrInvalidName) {
		t.Errorf("NewUint64Metric(/bad/name) = %v, want ErrInvalidName", err)
	}
	if _, err := r.NewUint64Metric("nofields", "x", NewField("kind", nil)); !errors.Is(err, ErrFieldHasNoAllowedValues) {
		t.Errorf("empty field = %v, want ErrFieldHasNoAllowedValues", err)
	}
}

func TestFieldsAreIndependent(t *testing.T) {
	r := NewRegistry()
	m := r.MustCreateNewUint64Metric("faults", "Faults by kind.",
		NewField("kind", []string{"page", "illegal"}),
		NewField("fatal", []string{"yes", "no"}))
	m.Increment("page", "yes")
	m.IncrementBy(3, "illegal", "no")
	m.Increment("illegal", "no")

	if got := m.Value("page", "yes"); got != 1 {
		t.Errorf("Value(page, yes) = %d, want 1", got)
	}
	if got := m.Value("illegal", "no"); got != 4 {
		t.Errorf("Value(illegal, no) = %d, want 4", got)
	}
	if got := m.Value("page", "no"); got != 0 {
		t.Errorf("Value(page, no) = %d, want 0", got)
	}
	want := map[string]map[string]uint64{
		"faults": {"page,yes": 1, "illegal,no": 4},
	}
	if diff := cmp.Diff(want, r.Uint64Values()); diff != "" {
		t.Errorf("Uint64Values mismatch (-want +got):\n%s", diff)
	}
}

func TestDisallowedFieldValuePanics(t *testing.T) {
	r := NewRegistry()
	m := r.MustCreateNewUint64Metric("x", "x", NewField("kind", []string{"a"}))
	defer func() {
		if recover() == nil {
			t.Errorf("Increment with a disallowed value did not panic")
		}
	}()
	m.Increment("b")
}

func TestExponentialBucketer(t *testing.T) {
	// Bounds: 0, 10, 20, 30.
	b := NewExponentialBucketer(3, 10, 0, 1)
	for _, tc := range []struct {
		sample int64
		want   int
	}{
		{-1, -1},
		{0, 0},
		{9, 0},
		{10, 1},
		{29, 2},
		{30, 3},
		{1000, 3},
	} {
		if got := b.BucketIndex(tc.sample); got != tc.want {
			t.Errorf("BucketIndex(%d) = %d, want %d", tc.sample, got, tc.want)
		}
	}
}

func TestWritePrometheus(t *testing.T) {
	r := NewRegistry()
	c := r.MustCreateNewUint64Metric("syscalls_total", "Syscalls by name.", NewField("name", []string{"exit", "getpid"}))
	c.IncrementBy(2, "getpid")
	s := r.MustCreateNewUint64Metric("context_switches_total", "Context switches.")
	s.IncrementBy(5)
	d := r.MustCreateNewDistributionMetric("slice_cycles", "Cycles per slice.", NewExponentialBucketer(3, 10, 0, 1))
	d.AddSample(5)
	d.AddSample(25)
	d.AddSample(500)

	var buf bytes.Buffer
	if err := r.WritePrometheus(&buf, ExportOptions{Prefix: "rvkernel_", Labels: map[string]string{"boot": "b1"}}); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	families, err := (&expfmt.TextParser{}).TextToMetricFamilies(&buf)
	if err != nil {
		t.Fatalf("parsing exported metrics: %v\n%s", err, buf.String())
	}

	sc, ok := families["rvkernel_syscalls_total"]
	if !ok {
		t.Fatalf("syscalls metric missing: %v", families)
	}
	got := map[string]float64{}
	for _, m := range sc.GetMetric() {
		var name, boot string
		for _, l := range m.GetLabel() {
			switch l.GetName() {
			case "name":
				name = l.GetValue()
			case "boot":
				boot = l.GetValue()
			}
		}
		if boot != "b1" {
			t.Errorf("sample %v has boot label %q, want b1", m, boot)
		}
		got[name] = m.GetCounter().GetValue()
	}
	if diff := cmp.Diff(map[string]float64{"exit": 0, "getpid": 2}, got); diff != "" {
		t.Errorf("syscalls mismatch (-want +got):\n%s", diff)
	}

	if v := families["rvkernel_context_switches_total"].GetMetric()[0].GetCounter().GetValue(); v != 5 {
		t.Errorf("context switches = %v, want 5", v)
	}

	h := families["rvkernel_slice_cycles"].GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 3 || h.GetSampleSum() != 530 {
		t.Errorf("histogram count/sum = %d/%v, want 3/530", h.GetSampleCount(), h.GetSampleSum())
	}
	var cums []uint64
	for _, b := range h.GetBucket() {
		if b.GetUpperBound() < 100 {
			cums = append(cums, b.GetCumulativeCount())
		}
	}
	if diff := cmp.Diff([]uint64{1, 1, 2}, cums); diff != "" {
		t.Errorf("bucket counts mismatch (-want +got):\n%s", diff)
	}
}
