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

	"gvisor.dev/rvkernel/pkg/errors/linuxerr"
	"gvisor.dev/rvkernel/pkg/sentry/kernel/deadlock"
)

// SetDeadlockDetect turns deadlock detection on or off for every task.
func (k *Kernel) SetDeadlockDetect(enabled bool) {
	k.syncObjs.detect = enabled
}

// DeadlockDetect returns true if deadlock detection is on.
func (k *Kernel) DeadlockDetect() bool {
	return k.syncObjs.detect
}

// MutexCreate creates an unlocked mutex and returns its id. A blocking mutex
// puts contending tasks to sleep until it is handed to them; otherwise they
// yield and retry.
func (k *Kernel) MutexCreate(t *Task, blocking bool) (int, error) {
	s := k.syncObjs
	if len(s.mutexes) >= MaxSyncObjects {
		return 0, fmt.Errorf("%d mutexes exist: %w", len(s.mutexes), linuxerr.ENOSPC)
	}
	m := &syncMutex{id: len(s.mutexes), blocking: blocking}
	s.mutexes = append(s.mutexes, m)
	t.Debugf("Created mutex %d (blocking %t)", m.id, blocking)
	return m.id, nil
}

// MutexLock locks mutex id for t.
//
// If the mutex is held and deadlock detection is on, MutexLock fails with
// EDEADLK when the holder is t or waits, directly or through other
// mutexes, for t. Otherwise a blocking mutex blocks t until unlock hands the
// mutex over, and a spinning mutex yields and returns ERESTARTSYS.
func (k *Kernel) MutexLock(t *Task, id int64) error {
	m, err := lookup(k.syncObjs.mutexes, id)
	if err != nil {
		return err
	}
	if m.holder == nil {
		m.holder = t
		t.lockWait = nil
		return nil
	}
	if k.syncObjs.detect && k.lockCycle(t, m) {
		t.Warningf("Deadlock locking mutex %d held by task %d", m.id, m.holder.tid)
		k.metrics.deadlocks.Increment(deadlockMutex)
		t.lockWait = nil
		return linuxerr.EDEADLK
	}
	t.lockWait = m
	if !m.blocking {
		k.Yield(t)
		return linuxerr.ERESTARTSYS
	}
	m.waiters.push(t)
	k.block(t)
	t.Debugf("Waiting for mutex %d held by task %d", m.id, m.holder.tid)
	return nil
}

// lockCycle returns true if t waiting for m would close a cycle of tasks
// waiting for each other's mutexes.
func (k *Kernel) lockCycle(t *Task, m *syncMutex) bool {
	return deadlock.Cycle(m.holder.tid, t.tid, func(tid ThreadID) (ThreadID, bool) {
		w := k.tasks.TaskWithID(tid)
		if w == nil || w.lockWait == nil || w.lockWait.holder == nil {
			return 0, false
		}
		return w.lockWait.holder.tid, true
	})
}

// MutexUnlock unlocks mutex id, which t must hold; otherwise it returns
// EPERM. The first waiter, if any, becomes the holder.
func (k *Kernel) MutexUnlock(t *Task, id int64) error {
	m, err := lookup(k.syncObjs.mutexes, id)
	if err != nil {
		return err
	}
	if m.holder != t {
		return linuxerr.EPERM
	}
	k.unlockMutex(m)
	return nil
}

func (k *Kernel) unlockMutex(m *syncMutex) {
	w, ok := m.waiters.pop()
	if !ok {
		m.holder = nil
		return
	}
	m.holder = w
	w.lockWait = nil
	w.Debugf("Handed mutex %d", m.id)
	k.makeReady(w)
}

// SemaphoreCreate creates a semaphore with count free units and returns its
// id.
func (k *Kernel) SemaphoreCreate(t *Task, count int64) (int, error) {
	if count < 0 {
		return 0, linuxerr.EINVAL
	}
	s := k.syncObjs
	if len(s.semaphores) >= MaxSyncObjects {
		return 0, fmt.Errorf("%d semaphores exist: %w", len(s.semaphores), linuxerr.ENOSPC)
	}
	sem := &syncSemaphore{id: len(s.semaphores), count: count}
	s.semaphores = append(s.semaphores, sem)
	s.banker.AddResource(sem.id, int(count))
	t.Debugf("Created semaphore %d with %d units", sem.id, count)
	return sem.id, nil
}

// SemaphoreUp returns a unit to semaphore id. If tasks are waiting, the
// first one is given the unit and woken.
func (k *Kernel) SemaphoreUp(t *Task, id int64) error {
	sem, err := lookup(k.syncObjs.semaphores, id)
	if err != nil {
		return err
	}
	sem.count++
	k.syncObjs.banker.Release(t.tid, sem.id)
	if sem.count <= 0 {
		w, ok := sem.waiters.pop()
		if !ok {
			panic(fmt.Sprintf("semaphore %d has count %d and no waiters", sem.id, sem.count))
		}
		w.semWait = nil
		k.syncObjs.banker.Grant(w.tid, sem.id)
		w.Debugf("Handed a unit of semaphore %d", sem.id)
		k.makeReady(w)
	}
	return nil
}

// SemaphoreDown takes a unit of semaphore id, blocking t until one is handed
// to it if none is free.
//
// With deadlock detection on, SemaphoreDown fails with EDEADLK if waiting
// could leave some task unable to ever get the units it waits for.
func (k *Kernel) SemaphoreDown(t *Task, id int64) error {
	sem, err := lookup(k.syncObjs.semaphores, id)
	if err != nil {
		return err
	}
	b := k.syncObjs.banker
	b.Request(t.tid, sem.id)
	if k.syncObjs.detect && !b.Safe() {
		b.Cancel(t.tid, sem.id)
		t.Warningf("Deadlock waiting for semaphore %d", sem.id)
		k.metrics.deadlocks.Increment(deadlockSemaphore)
		return linuxerr.EDEADLK
	}
	sem.count--
	if sem.count >= 0 {
		b.Grant(t.tid, sem.id)
		return nil
	}
	sem.waiters.push(t)
	t.semWait = sem
	k.block(t)
	t.Debugf("Waiting for semaphore %d", sem.id)
	return nil
}

// CondvarCreate creates a condition variable and returns its id.
func (k *Kernel) CondvarCreate(t *Task) (int, error) {
	s := k.syncObjs
	if len(s.condvars) >= MaxSyncObjects {
		return 0, fmt.Errorf("%d condition variables exist: %w", len(s.condvars), linuxerr.ENOSPC)
	}
	cv := &syncCondvar{id: len(s.condvars)}
	s.condvars = append(s.condvars, cv)
	t.Debugf("Created condition variable %d", cv.id)
	return cv.id, nil
}

// CondvarSignal wakes the first task waiting on condition variable id. The
// woken task runs again once it holds its mutex. Signalling a condition
// variable nobody waits on does nothing.
func (k *Kernel) CondvarSignal(t *Task, id int64) error {
	cv, err := lookup(k.syncObjs.condvars, id)
	if err != nil {
		return err
	}
	if len(cv.waiters) == 0 {
		return nil
	}
	w := cv.waiters[0]
	cv.waiters = cv.waiters[1:]
	w.t.condWait = nil
	if w.m.holder == nil {
		w.m.holder = w.t
		k.makeReady(w.t)
		return nil
	}
	// Still blocked, now on the mutex.
	w.m.waiters.push(w.t)
	w.t.lockWait = w.m
	return nil
}

// CondvarWait unlocks mutex mid, which t must hold, and blocks t on
// condition variable cvid until it is signalled and has reacquired the
// mutex.
func (k *Kernel) CondvarWait(t *Task, cvid, mid int64) error {
	cv, err := lookup(k.syncObjs.condvars, cvid)
	if err != nil {
		return err
	}
	m, err := lookup(k.syncObjs.mutexes, mid)
	if err != nil {
		return err
	}
	if m.holder != t {
		return linuxerr.EPERM
	}
	k.unlockMutex(m)
	cv.waiters = append(cv.waiters, condWaiter{t: t, m: m})
	t.condWait = cv
	k.block(t)
	t.Debugf("Waiting on condition variable %d with mutex %d", cv.id, m.id)
	return nil
}

// releaseSyncObjects withdraws an exiting task from every wait queue and
// unlocks the mutexes it holds. Semaphore units it holds stay taken.
func (k *Kernel) releaseSyncObjects(t *Task) {
	s := k.syncObjs
	if m := t.lockWait; m != nil {
		m.waiters.remove(t)
		t.lockWait = nil
	}
	if sem := t.semWait; sem != nil {
		sem.waiters.remove(t)
		sem.count++
		t.semWait = nil
	}
	if cv := t.condWait; cv != nil {
		for i, w := range cv.waiters {
			if w.t == t {
				cv.waiters = append(cv.waiters[:i], cv.waiters[i+1:]...)
				break
			}
		}
		t.condWait = nil
	}
	for _, m := range s.mutexes {
		if m.holder == t {
			t.Debugf("Releasing mutex %d on exit", m.id)
			k.unlockMutex(m)
		}
	}
	s.banker.Forget(t.tid)
}
