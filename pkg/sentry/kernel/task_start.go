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
	"fmt"

	"gvisor.dev/rvkernel/pkg/abi/linux"
	"gvisor.dev/rvkernel/pkg/cleanup"
	"gvisor.dev/rvkernel/pkg/errors/linuxerr"
	"gvisor.dev/rvkernel/pkg/sentry/arch"
	"gvisor.dev/rvkernel/pkg/sentry/loader"
)

// Spawn creates a task running the program called name as a child of
// parent, or as the root task if parent is nil. The new task is built
// directly from the image: nothing of the parent is copied. It starts
// Ready with a frame that resumes at the image entry point.
//
// On error no task is registered and everything allocated is freed. Errors
// are ENOENT for an unknown program, ENOEXEC for a bad image, EAGAIN when
// the task table or the kernel stacks are full and ENOMEM when physical
// memory is exhausted.
func (k *Kernel) Spawn(parent *Task, name string) (*Task, error) {
	t, err := k.spawn(parent, name)
	if err != nil {
		k.metrics.spawnFailures.Increment()
		return nil, err
	}
	k.metrics.tasksSpawned.Increment()
	return t, nil
}

func (k *Kernel) spawn(parent *Task, name string) (*Task, error) {
	data, ok := k.apps[name]
	if !ok {
		return nil, fmt.Errorf("no program named %q: %w", name, linuxerr.ENOENT)
	}
	img, err := loader.Load(data, k.config.StackPages)
	if err != nil {
		return nil, fmt.Errorf("loading %q: %w", name, err)
	}
	if n := k.tasks.Len(); n >= k.tasks.limit {
		return nil, fmt.Errorf("%d tasks exist: %w", n, linuxerr.EAGAIN)
	}

	as, err := k.platform.NewAddressSpace(img.Segments)
	if err != nil {
		return nil, fmt.Errorf("creating address space for %q: %w", name, err)
	}
	cu := cleanup.Make(as.Release)
	defer cu.Clean()

	tf := arch.NewUserFrame(img.Entry, img.Stack)
	if _, err := k.platform.NewKernelStack(tf); err != nil {
		return nil, fmt.Errorf("%v: %w", err, linuxerr.EAGAIN)
	}
	cu.Add(func() { k.platform.ReleaseKernelStack(tf) })

	t := &Task{
		k:        k,
		name:     name,
		tf:       tf,
		as:       as,
		children: make(map[ThreadID]struct{}),
		state:    TaskReady,
		priority: linux.DefaultSchedPrio,

		heapBottom: img.Brk,
		brk:        img.Brk,
	}
	if parent != nil {
		t.parent = parent.tid
	}

	// Make the new task visible to the rest of the system atomically.
	k.tasks.mu.Lock()
	tid, err := k.tasks.reserveTIDLocked()
	if err != nil {
		k.tasks.mu.Unlock()
		return nil, err
	}
	if parent == nil && tid != InitTID {
		k.tasks.mu.Unlock()
		panic(fmt.Sprintf("creating a second root task (tid %d)", tid))
	}
	t.tid = tid
	t.updateLogPrefix()
	k.tasks.insertLocked(t)
	k.tasks.mu.Unlock()
	cu.Release()

	k.sched.Ready(t)
	if parent != nil {
		parent.Debugf("Spawned %q as task %d", name, tid)
	}
	t.Debugf("Created: entry %v, stack %v, %d segments", img.Entry, img.Stack, len(img.Segments))
	return t, nil
}
