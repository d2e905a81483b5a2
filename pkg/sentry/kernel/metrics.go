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

package kernel

import (
	"gvisor.dev/rvkernel/pkg/metric"
)

// Fault kinds, used as metric field values.
const (
	faultPage    = "page_fault"
	faultIllegal = "illegal_instruction"
	faultUnknown = "unknown"
)

const unknownSyscall = "unknown"

type kernelMetrics struct {
	registry *metric.Registry

	syscalls        *metric.Uint64Metric
	faults          *metric.Uint64Metric
	contextSwitches *metric.Uint64Metric
	tasksSpawned    *metric.Uint64Metric
	spawnFailures   *metric.Uint64Metric
	timerTicks      *metric.Uint64Metric
	idleCycles      *metric.Uint64Metric
	deadlocks       *metric.Uint64Metric
	sliceCycles     *metric.DistributionMetric
}

func newKernelMetrics(st *SyscallTable) *kernelMetrics {
	r := metric.NewRegistry()
	names := append(st.Names(), unknownSyscall)
	return &kernelMetrics{
		registry:        r,
		syscalls:        r.MustCreateNewUint64Metric("syscalls_total", "Syscalls executed, by name.", metric.NewField("name", names)),
		faults:          r.MustCreateNewUint64Metric("faults_total", "Tasks terminated by a fault, by kind.", metric.NewField("kind", []string{faultPage, faultIllegal, faultUnknown})),
		contextSwitches: r.MustCreateNewUint64Metric("context_switches_total", "Switches of the hart to a different task."),
		tasksSpawned:    r.MustCreateNewUint64Metric("tasks_spawned_total", "Tasks created, the root included."),
		spawnFailures:   r.MustCreateNewUint64Metric("spawn_failures_total", "Failed spawn attempts."),
		timerTicks:      r.MustCreateNewUint64Metric("timer_ticks_total", "Timer interrupts taken."),
		idleCycles:      r.MustCreateNewUint64Metric("idle_cycles_total", "Cycles skipped while every task slept."),
		deadlocks:       r.MustCreateNewUint64Metric("deadlocks_detected_total", "Lock and down calls refused with EDEADLK, by object.", metric.NewField("object", []string{deadlockMutex, deadlockSemaphore})),
		sliceCycles:     r.MustCreateNewDistributionMetric("slice_cycles", "User cycles run between two traps.", metric.NewExponentialBucketer(12, 16, 16, 2)),
	}
}

func (m *kernelMetrics) syscall(st *SyscallTable, sysno uintptr) {
	if _, ok := st.Table[sysno]; ok {
		m.syscalls.Increment(st.Table[sysno].Name)
		return
	}
	m.syscalls.Increment(unknownSyscall)
}
