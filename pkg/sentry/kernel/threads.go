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
	"sort"
	"sync"

	"gvisor.dev/rvkernel/pkg/errors/linuxerr"
)

// TasksLimit is the default maximum number of live tasks, zombies included.
const TasksLimit = 64

// ThreadID is a task identifier.
type ThreadID int32

// String returns a decimal representation of the ThreadID.
func (tid ThreadID) String() string {
	return fmt.Sprintf("%d", tid)
}

// InitTID is the TID given to the first task, which is the root of the task
// tree. The death of the root task stops the kernel.
const InitTID ThreadID = 1

// A TaskSet comprises all tasks in a system. It holds the only strong
// references to tasks; everything else refers to tasks by ThreadID.
//
// TaskSet is only mutated by the dispatch loop. mu allows other goroutines
// to take snapshots.
type TaskSet struct {
	mu sync.RWMutex

	// +checklocks:mu
	tasks map[ThreadID]*Task

	// nextTID is the next id to hand out. Ids are never reused.
	//
	// +checklocks:mu
	nextTID ThreadID

	// limit is the maximum number of tasks in the set.
	limit int
}

func newTaskSet(limit int) *TaskSet {
	if limit <= 0 {
		limit = TasksLimit
	}
	return &TaskSet{
		tasks:   make(map[ThreadID]*Task),
		nextTID: InitTID,
		limit:   limit,
	}
}

// TaskWithID returns the task with the given id, or nil.
func (ts *TaskSet) TaskWithID(tid ThreadID) *Task {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.tasks[tid]
}

// Root returns the root task, or nil if it has been reaped.
func (ts *TaskSet) Root() *Task {
	return ts.TaskWithID(InitTID)
}

// Tasks returns every task in the set ordered by id.
func (ts *TaskSet) Tasks() []*Task {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	tasks := make([]*Task, 0, len(ts.tasks))
	for _, t := range ts.tasks {
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].tid < tasks[j].tid })
	return tasks
}

// Len returns the number of tasks in the set.
func (ts *TaskSet) Len() int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return len(ts.tasks)
}

// Parent returns t's parent, or nil for the root.
func (ts *TaskSet) Parent(t *Task) *Task {
	if t.parent == 0 {
		return nil
	}
	return ts.TaskWithID(t.parent)
}

// Children returns t's children ordered by id.
func (ts *TaskSet) Children(t *Task) []*Task {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	children := make([]*Task, 0, len(t.children))
	for _, tid := range t.childIDs() {
		children = append(children, ts.tasks[tid])
	}
	return children
}

// reserveTIDLocked returns the next id, or EAGAIN if the set is full.
//
// +checklocks:ts.mu
func (ts *TaskSet) reserveTIDLocked() (ThreadID, error) {
	if len(ts.tasks) >= ts.limit {
		return 0, fmt.Errorf("%d tasks exist: %w", len(ts.tasks), linuxerr.EAGAIN)
	}
	tid := ts.nextTID
	ts.nextTID++
	return tid, nil
}

// insertLocked makes t visible and links it to its parent.
//
// +checklocks:ts.mu
func (ts *TaskSet) insertLocked(t *Task) {
	ts.tasks[t.tid] = t
	if p := ts.tasks[t.parent]; p != nil {
		p.children[t.tid] = struct{}{}
	}
}

// reparentChildrenLocked moves t's children to the root task. It returns
// the zombies among them.
//
// +checklocks:ts.mu
func (ts *TaskSet) reparentChildrenLocked(t *Task) []*Task {
	root := ts.tasks[InitTID]
	var zombies []*Task
	for _, tid := range t.childIDs() {
		child := ts.tasks[tid]
		delete(t.children, tid)
		if root == nil || root == t {
			child.parent = 0
			continue
		}
		child.parent = InitTID
		root.children[tid] = struct{}{}
		if child.state == TaskZombie {
			zombies = append(zombies, child)
		}
	}
	return zombies
}

// reap removes a zombie from the set and from its parent's children.
func (ts *TaskSet) reap(t *Task) {
	if t.state != TaskZombie {
		panic(fmt.Sprintf("reaping task %d in state %v", t.tid, t.state))
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if p := ts.tasks[t.parent]; p != nil {
		delete(p.children, t.tid)
	}
	delete(ts.tasks, t.tid)
}
