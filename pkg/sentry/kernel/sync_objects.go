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
	"slices"

	"gvisor.dev/rvkernel/pkg/errors/linuxerr"
	"gvisor.dev/rvkernel/pkg/sentry/kernel/deadlock"
)

// MaxSyncObjects bounds the number of mutexes, semaphores and condition
// variables. Each kind has its own limit.
const MaxSyncObjects = 64

// Deadlock kinds, used as metric field values.
const (
	deadlockMutex     = "mutex"
	deadlockSemaphore = "semaphore"
)

// waitQueue is a FIFO of blocked tasks.
type waitQueue []*Task

func (q *waitQueue) push(t *Task) {
	*q = append(*q, t)
}

func (q *waitQueue) pop() (*Task, bool) {
	if len(*q) == 0 {
		return nil, false
	}
	t := (*q)[0]
	*q = (*q)[1:]
	return t, true
}

func (q *waitQueue) remove(t *Task) {
	if i := slices.Index(*q, t); i >= 0 {
		*q = slices.Delete(*q, i, i+1)
	}
}

// syncMutex is a mutex shared by every task of the kernel.
type syncMutex struct {
	id int

	// blocking mutexes put contending tasks to sleep; spinning ones make
	// them yield and retry.
	blocking bool

	// holder is nil while the mutex is unlocked.
	holder *Task

	// waiters are handed the mutex in order by unlock.
	waiters waitQueue
}

// syncSemaphore is a counting semaphore. While count is negative, -count
// tasks wait in waiters.
type syncSemaphore struct {
	id      int
	count   int64
	waiters waitQueue
}

// condWaiter is a task blocked on a condition variable and the mutex it
// reacquires when signalled.
type condWaiter struct {
	t *Task
	m *syncMutex
}

type syncCondvar struct {
	id      int
	waiters []condWaiter
}

// syncObjects holds the kernel's synchronization objects. Ids index the
// slices and are never reused.
type syncObjects struct {
	mutexes    []*syncMutex
	semaphores []*syncSemaphore
	condvars   []*syncCondvar

	// banker accounts semaphore units, keyed by semaphore id.
	banker *deadlock.Banker[ThreadID, int]

	// detect enables deadlock detection in lock and down.
	detect bool
}

func newSyncObjects(detect bool) *syncObjects {
	return &syncObjects{
		banker: deadlock.NewBanker[ThreadID, int](),
		detect: detect,
	}
}

// lookup returns objs[id], or EINVAL if there is no such object.
func lookup[T any](objs []*T, id int64) (*T, error) {
	if id < 0 || id >= int64(len(objs)) {
		return nil, linuxerr.EINVAL
	}
	return objs[id], nil
}
