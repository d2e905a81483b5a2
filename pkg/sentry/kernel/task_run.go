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
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"gvisor.dev/rvkernel/pkg/abi/linux"
	"gvisor.dev/rvkernel/pkg/log"
	"gvisor.dev/rvkernel/pkg/sentry/arch"
	"gvisor.dev/rvkernel/pkg/sentry/platform"
)

// A trapRunState is a reified state of the dispatch loop. Between traps the
// loop is in runDispatch; each trap then goes through runEntered,
// runClassified and runHandled and ends in runResuming of whatever task is
// to run next.
type trapRunState interface {
	// execute executes the code associated with this state and returns
	// the following state. If execute returns nil, Run returns.
	execute(k *Kernel) trapRunState
}

// trapKind is the classification of a trap.
type trapKind int

const (
	trapSyscall trapKind = iota
	trapPageFault
	trapIllegalInstruction
	trapTimerTick
	trapUnknownFault
)

func (tk trapKind) String() string {
	switch tk {
	case trapSyscall:
		return "syscall"
	case trapPageFault:
		return "page fault"
	case trapIllegalInstruction:
		return "illegal instruction"
	case trapTimerTick:
		return "timer tick"
	default:
		return "unknown fault"
	}
}

func classify(c arch.Cause) trapKind {
	switch {
	case c == arch.CauseUserEcall:
		return trapSyscall
	case c == arch.CauseSupervisorTimer:
		return trapTimerTick
	case c.IsPageFault(),
		c == arch.CauseInstructionAccessFault,
		c == arch.CauseLoadAccessFault,
		c == arch.CauseStoreAccessFault:
		return trapPageFault
	case c == arch.CauseIllegalInstruction:
		return trapIllegalInstruction
	default:
		return trapUnknownFault
	}
}

// Run runs tasks until the root task exits and returns its exit status.
//
// Run returns ErrDeadlock if every task is blocked and nothing can wake
// them, ErrCycleLimit if Config.CycleLimit is reached, and ctx.Err() if ctx
// is cancelled. ctx is only checked between traps. After an error other
// than ErrDeadlock, Run may be called again to continue.
func (k *Kernel) Run(ctx context.Context) (ExitStatus, error) {
	k.runCtx = ctx
	k.runErr = nil
	state := k.pending
	k.pending = nil
	if state == nil {
		state = runDispatch{}
	}
	for state != nil {
		state = state.execute(k)
	}
	k.runCtx = nil
	if k.runErr != nil {
		return ExitStatus{}, k.runErr
	}
	root := k.tasks.Root()
	if root == nil {
		return ExitStatus{}, fmt.Errorf("root task was reaped")
	}
	return root.exitStatus, nil
}

// rootExited returns true once the root task is a zombie.
func (k *Kernel) rootExited() bool {
	root := k.tasks.Root()
	return root == nil || root.state == TaskZombie
}

// runDispatch selects the next task.
type runDispatch struct{}

func (runDispatch) execute(k *Kernel) trapRunState {
	if k.rootExited() {
		return nil
	}
	t, err := k.pickNext()
	if err != nil {
		k.runErr = err
		return nil
	}
	t.state = TaskRunning
	return &runResuming{t: t}
}

// runResuming restores a task's frame and runs it until the next trap.
type runResuming struct {
	t *Task
}

func (r *runResuming) execute(k *Kernel) trapRunState {
	t := r.t
	if err := k.runCtx.Err(); err != nil {
		k.runErr = err
		k.pending = r
		return nil
	}
	if k.config.CycleLimit != 0 && k.ctx.Cycles() >= k.config.CycleLimit {
		k.runErr = fmt.Errorf("%w: %d cycles", ErrCycleLimit, k.ctx.Cycles())
		k.pending = r
		return nil
	}

	now := k.ctx.Cycles()
	if t != k.lastRun {
		if k.lastRun != nil {
			k.metrics.contextSwitches.Increment()
		}
		k.rearm = true
	}
	if k.current != t {
		t.sliceStart = now
	}
	if !t.stats.Dispatched {
		t.stats.Dispatched = true
		t.stats.FirstRun = now
	}
	if k.rearm {
		k.ctx.SetTimer(now + k.config.Quantum)
		k.rearm = false
	}
	k.current = t
	k.lastRun = t

	trap, err := k.ctx.Switch(t.as, t.tf)
	if err != nil {
		panic(fmt.Sprintf("switching to task %d: %v", t.tid, err))
	}
	return &runEntered{t: t, trap: trap}
}

// runEntered accounts for a trap that was just taken.
type runEntered struct {
	t    *Task
	trap platform.Trap
}

func (r *runEntered) execute(k *Kernel) trapRunState {
	r.t.stats.UserCycles += r.trap.Cycles
	k.metrics.sliceCycles.AddSample(int64(r.trap.Cycles))
	k.ctx.Advance(k.config.TrapCost)
	r.t.stats.KernelCycles += k.config.TrapCost
	return &runClassified{t: r.t, trap: r.trap, kind: classify(r.trap.Cause)}
}

// runClassified handles a classified trap.
type runClassified struct {
	t    *Task
	trap platform.Trap
	kind trapKind
}

func (r *runClassified) execute(k *Kernel) trapRunState {
	t := r.t
	switch r.kind {
	case trapSyscall:
		k.doSyscall(t)
	case trapTimerTick:
		k.metrics.timerTicks.Increment()
		t.preempted = true
	case trapPageFault:
		k.fault(t, r, ExitStatus{Code: ExitCodePageFault, Signo: linux.SIGSEGV}, faultPage)
	case trapIllegalInstruction:
		k.fault(t, r, ExitStatus{Code: ExitCodeIllegal, Signo: linux.SIGILL}, faultIllegal)
	default:
		k.fault(t, r, ExitStatus{Code: ExitCodeUnknownTrap, Signo: linux.SIGBUS}, faultUnknown)
	}
	return &runHandled{t: t}
}

// fault terminates t. A faulting task is never resumed.
func (k *Kernel) fault(t *Task, r *runClassified, es ExitStatus, kind string) {
	k.faultLog.Warningf("%s%v at pc %v (%v), terminating", t.logPrefix, r.kind, t.tf.IP(), r.trap)
	if log.IsLogging(log.Debug) {
		t.Debugf("Registers:%s", dumpRegisters(t.tf))
	}
	k.metrics.faults.Increment(kind)
	k.Exit(t, es)
}

// dumpRegisters formats every register in tf as " name=value", sorted by
// name.
func dumpRegisters(tf *arch.TrapFrame) string {
	regs := tf.RegisterMap()
	var b strings.Builder
	for _, name := range slices.Sorted(maps.Keys(regs)) {
		fmt.Fprintf(&b, " %s=%#x", name, regs[name])
	}
	return b.String()
}

// runHandled decides which task runs next.
type runHandled struct {
	t *Task
}

func (r *runHandled) execute(k *Kernel) trapRunState {
	t := r.t
	if k.rootExited() {
		k.current = nil
		return nil
	}
	k.wakeSleepers()
	if t.state == TaskRunning && !t.preempted && !t.yielded {
		return &runResuming{t: t}
	}

	// Switch out t. The next task gets a fresh quantum.
	k.sched.Ran(t, k.ctx.Cycles()-t.sliceStart)
	if t.state == TaskRunning {
		t.state = TaskReady
		k.sched.Ready(t)
	}
	t.preempted = false
	t.yielded = false
	k.current = nil
	k.rearm = true
	return runDispatch{}
}
