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

// Package kernel provides an emulation of a small process-management
// kernel: a tree of tasks, each with its own address space and trap frame,
// multiplexed onto one simulated hart by a pluggable scheduler.
//
// All kernel state is mutated by the dispatch loop (Kernel.Run) between
// traps, so no locking is needed for task state transitions. TaskSet keeps
// a lock only so that other goroutines may take snapshots.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/btree"
	"github.com/google/uuid"
	"gvisor.dev/rvkernel/pkg/abi/linux"
	"gvisor.dev/rvkernel/pkg/log"
	"gvisor.dev/rvkernel/pkg/metric"
	"gvisor.dev/rvkernel/pkg/sentry/kernel/sched"
	"gvisor.dev/rvkernel/pkg/sentry/ktime"
	"gvisor.dev/rvkernel/pkg/sentry/loader"
	"gvisor.dev/rvkernel/pkg/sentry/platform"
)

// Defaults for Config fields left zero.
const (
	DefaultHz       = 1_000_000
	DefaultQuantum  = 1000
	DefaultTrapCost = 10
)

var (
	// ErrDeadlock is returned by Run when no task can ever run again.
	ErrDeadlock = errors.New("all tasks are blocked with nothing to wake them")

	// ErrCycleLimit is returned by Run when Config.CycleLimit is exceeded.
	ErrCycleLimit = errors.New("cycle limit exceeded")
)

// Config configures a Kernel.
type Config struct {
	// Platform provides the hart, address spaces and kernel stacks.
	Platform platform.Platform

	// Scheduler is the scheduling policy.
	Scheduler sched.Scheduler

	// SyscallTable is the syscall ABI exposed to tasks.
	SyscallTable *SyscallTable

	// Apps maps program names to executable images. spawn looks names up
	// here.
	Apps map[string][]byte

	// Init is the name of the program run as the root task.
	Init string

	// Hz is the hart frequency, used to convert cycles to time.
	Hz uint64

	// Quantum is the scheduling time slice in cycles.
	Quantum uint64

	// TrapCost is the number of cycles charged for handling one trap.
	TrapCost uint64

	// MaxTasks bounds the number of tasks, zombies included.
	MaxTasks int

	// StackPages is the user stack size of each task.
	StackPages int

	// CycleLimit stops Run once the hart has run this many cycles. Zero
	// means no limit.
	CycleLimit uint64

	// DeadlockDetect turns on deadlock detection at boot. Tasks can change
	// it with enable_deadlock_detect.
	DeadlockDetect bool
}

func (c *Config) setDefaults() {
	if c.Hz == 0 {
		c.Hz = DefaultHz
	}
	if c.Quantum == 0 {
		c.Quantum = DefaultQuantum
	}
	if c.TrapCost == 0 {
		c.TrapCost = DefaultTrapCost
	}
	if c.MaxTasks == 0 {
		c.MaxTasks = TasksLimit
	}
	if c.StackPages == 0 {
		c.StackPages = loader.DefaultStackPages
	}
}

// sleeper is an entry in the sleep queue.
type sleeper struct {
	deadline uint64
	tid      ThreadID
}

func sleeperLess(a, b sleeper) bool {
	if a.deadline != b.deadline {
		return a.deadline < b.deadline
	}
	return a.tid < b.tid
}

// Kernel represents an emulated kernel.
type Kernel struct {
	// bootID identifies this boot in logs and exported metrics.
	bootID uuid.UUID

	platform platform.Platform
	ctx      platform.Context
	sched    sched.Scheduler
	syscalls *SyscallTable
	apps     map[string][]byte
	clock    ktime.Clock
	config   Config

	tasks *TaskSet

	// current is the task that owns the hart, or nil.
	current *Task

	// lastRun is the task that ran most recently.
	lastRun *Task

	// rearm is set when the timer must be re-armed before the next switch.
	rearm bool

	// sleepers are blocked in nanosleep, ordered by deadline.
	sleepers *btree.BTreeG[sleeper]

	// runCtx is the context passed to Run while it executes.
	runCtx context.Context

	// runErr is the error Run returns.
	runErr error

	// pending is the state Run resumes from after an interruption.
	pending trapRunState

	// faultLog throttles per-fault messages.
	faultLog log.Logger

	// syncObjs are the mutexes, semaphores and condition variables shared
	// by all tasks.
	syncObjs *syncObjects

	metrics *kernelMetrics
}

// New boots a kernel: it creates the root task from cfg.Init. The kernel
// does not run until Run is called.
func New(cfg Config) (*Kernel, error) {
	cfg.setDefaults()
	if cfg.Platform == nil || cfg.Scheduler == nil || cfg.SyscallTable == nil {
		return nil, fmt.Errorf("kernel config needs a platform, a scheduler and a syscall table")
	}
	k := &Kernel{
		bootID:   uuid.New(),
		platform: cfg.Platform,
		ctx:      cfg.Platform.NewContext(),
		sched:    cfg.Scheduler,
		syscalls: cfg.SyscallTable,
		apps:     cfg.Apps,
		clock:    ktime.Clock{Hz: cfg.Hz},
		config:   cfg,
		tasks:    newTaskSet(cfg.MaxTasks),
		sleepers: btree.NewG(8, sleeperLess),
		faultLog: log.BasicRateLimitedLogger(time.Second),
		syncObjs: newSyncObjects(cfg.DeadlockDetect),
		rearm:    true,
	}
	k.metrics = newKernelMetrics(cfg.SyscallTable)
	log.Infof("Booting kernel %v: scheduler %s, quantum %d cycles, %d Hz", k.bootID, k.sched.Name(), cfg.Quantum, cfg.Hz)
	if _, err := k.Spawn(nil, cfg.Init); err != nil {
		return nil, fmt.Errorf("creating root task %q: %w", cfg.Init, err)
	}
	return k, nil
}

// BootID returns the kernel's boot id.
func (k *Kernel) BootID() uuid.UUID {
	return k.bootID
}

// TaskSet returns the kernel's tasks.
func (k *Kernel) TaskSet() *TaskSet {
	return k.tasks
}

// Scheduler returns the scheduling policy.
func (k *Kernel) Scheduler() sched.Scheduler {
	return k.sched
}

// SyscallTable returns the syscall table.
func (k *Kernel) SyscallTable() *SyscallTable {
	return k.syscalls
}

// Platform returns the platform.
func (k *Kernel) Platform() platform.Platform {
	return k.platform
}

// Cycles returns the hart's cycle counter.
func (k *Kernel) Cycles() uint64 {
	return k.ctx.Cycles()
}

// Now returns the time since boot.
func (k *Kernel) Now() ktime.Time {
	return k.clock.Time(k.ctx.Cycles())
}

// Clock returns the cycle clock.
func (k *Kernel) Clock() ktime.Clock {
	return k.clock
}

// Current returns the task that owns the hart, or nil.
func (k *Kernel) Current() *Task {
	return k.current
}

// Metrics returns the kernel's metric registry.
func (k *Kernel) Metrics() *metric.Registry {
	return k.metrics.registry
}

// WriteMetrics writes the kernel's metrics in Prometheus text format.
func (k *Kernel) WriteMetrics(w io.Writer) error {
	return k.metrics.registry.WritePrometheus(w, metric.ExportOptions{
		Prefix: "rvkernel_",
		Labels: map[string]string{"boot_id": k.bootID.String()},
	})
}

// TaskInfo returns the task_info record of t.
func (k *Kernel) TaskInfo(t *Task) linux.TaskInfo {
	info := linux.TaskInfo{
		Status:       t.state.Status(),
		SyscallTimes: t.stats.Syscalls,
	}
	if t.stats.Dispatched {
		info.TimeMS = uint64(k.clock.Time(k.ctx.Cycles() - t.stats.FirstRun).Milliseconds())
	}
	return info
}
