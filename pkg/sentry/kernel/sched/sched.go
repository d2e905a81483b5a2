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

// Package sched contains the scheduling policies of the kernel.
//
// A Scheduler only tracks Ready tasks. The task selected by Next is Running
// and no longer known to the policy until it is made Ready again, so a
// Blocked or Zombie task can never be selected.
package sched

import (
	"fmt"
	"sort"
)

// Slot holds policy-private metadata for one task. Only the policy that
// stored the data interprets it.
type Slot struct {
	data any
}

// Entity is a schedulable task.
type Entity interface {
	// SchedID returns the task's id. Ids are unique and are used for
	// deterministic tie-breaking.
	SchedID() int32

	// SchedSlot returns the task's scheduling slot.
	SchedSlot() *Slot
}

// Scheduler is a scheduling policy.
type Scheduler interface {
	// Name returns the policy name.
	Name() string

	// Ready is called when e becomes Ready.
	Ready(e Entity)

	// Block is called when e leaves the Ready set without being selected,
	// or when a task is Blocked or becomes a Zombie.
	Block(e Entity)

	// Next removes and returns the id of the Ready task to run next. ok is
	// false if no task is Ready.
	Next() (id int32, ok bool)

	// Ran is called when e stops running after cycles cycles.
	Ran(e Entity, cycles uint64)

	// SetPriority changes e's priority. Policies without priorities ignore
	// it.
	SetPriority(e Entity, prio int64)
}

var policies = map[string]func() Scheduler{
	"rr":     func() Scheduler { return NewRoundRobin() },
	"stride": func() Scheduler { return NewStride() },
}

// Names returns the names accepted by New.
func Names() []string {
	names := make([]string, 0, len(policies))
	for n := range policies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New returns a new Scheduler implementing the named policy.
func New(name string) (Scheduler, error) {
	f, ok := policies[name]
	if !ok {
		return nil, fmt.Errorf("unknown scheduler %q, valid values are %v", name, Names())
	}
	return f(), nil
}
