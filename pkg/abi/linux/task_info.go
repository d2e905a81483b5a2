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

package linux

import (
	"fmt"

	"gvisor.dev/rvkernel/pkg/hostarch"
)

// TaskStatus is the task state reported by task_info.
type TaskStatus uint32

// Task statuses, as seen by user programs.
const (
	TaskUnknown TaskStatus = iota
	TaskReady
	TaskRunning
	TaskBlocked
	TaskZombie
)

var taskStatusNames = [...]string{"Unknown", "Ready", "Running", "Blocked", "Zombie"}

// String implements fmt.Stringer.String.
func (s TaskStatus) String() string {
	if int(s) < len(taskStatusNames) {
		return taskStatusNames[s]
	}
	return fmt.Sprintf("TaskStatus(%d)", uint32(s))
}

// SizeOfTaskInfo is the size of a marshalled TaskInfo.
const SizeOfTaskInfo = 8 + 4*MaxSyscallNum + 8

// TaskInfo is the record written by task_info(2).
//
// Layout: status u32 at 0, 4 bytes of padding, syscall counts [500]u32 at 8,
// run time in milliseconds u64 at 2008.
type TaskInfo struct {
	Status       TaskStatus
	SyscallTimes [MaxSyscallNum]uint32
	TimeMS       uint64
}

// SizeBytes returns the marshalled size of a TaskInfo.
func (*TaskInfo) SizeBytes() int {
	return SizeOfTaskInfo
}

// MarshalBytes serializes ti into dst, which must be at least
// SizeOfTaskInfo bytes long.
func (ti *TaskInfo) MarshalBytes(dst []byte) {
	hostarch.ByteOrder.PutUint32(dst[0:], uint32(ti.Status))
	hostarch.ByteOrder.PutUint32(dst[4:], 0)
	for i, n := range ti.SyscallTimes {
		hostarch.ByteOrder.PutUint32(dst[8+4*i:], n)
	}
	hostarch.ByteOrder.PutUint64(dst[8+4*MaxSyscallNum:], ti.TimeMS)
}

// UnmarshalBytes deserializes src into ti.
func (ti *TaskInfo) UnmarshalBytes(src []byte) {
	ti.Status = TaskStatus(hostarch.ByteOrder.Uint32(src[0:]))
	for i := range ti.SyscallTimes {
		ti.SyscallTimes[i] = hostarch.ByteOrder.Uint32(src[8+4*i:])
	}
	ti.TimeMS = hostarch.ByteOrder.Uint64(src[8+4*MaxSyscallNum:])
}
