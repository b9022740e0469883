package service

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

const defaultGuardWeight = 64

// runGuard serialises allocation runs. A full run, or a targeted run that reads seats held by
// others, holds the whole weight and therefore excludes every other run; a nominal-capacity
// targeted run holds one unit plus a per-student lock for each affected student, so runs with
// overlapping students serialise while disjoint ones proceed together.
type runGuard struct {
	weight int64
	all    *semaphore.Weighted

	mu       sync.Mutex
	students map[string]*studentLock
}

type studentLock struct {
	sem  *semaphore.Weighted
	refs int
}

func newRunGuard(weight int64) *runGuard {
	if weight <= 0 {
		weight = defaultGuardWeight
	}
	return &runGuard{
		weight:   weight,
		all:      semaphore.NewWeighted(weight),
		students: make(map[string]*studentLock),
	}
}

// acquireAll blocks until no other run is active.
func (g *runGuard) acquireAll(ctx context.Context) (func(), error) {
	if err := g.all.Acquire(ctx, g.weight); err != nil {
		return nil, err
	}
	return func() { g.all.Release(g.weight) }, nil
}

// acquireStudents locks studentIDs, which must be sorted and unique so that concurrent callers
// acquire in the same order.
func (g *runGuard) acquireStudents(ctx context.Context, studentIDs []string) (func(), error) {
	if err := g.all.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	held := make([]string, 0, len(studentIDs))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			g.unlockStudent(held[i])
		}
		g.all.Release(1)
	}

	for _, id := range studentIDs {
		lock := g.ref(id)
		if err := lock.sem.Acquire(ctx, 1); err != nil {
			g.unref(id)
			release()
			return nil, err
		}
		held = append(held, id)
	}
	return release, nil
}

func (g *runGuard) ref(id string) *studentLock {
	g.mu.Lock()
	defer g.mu.Unlock()
	lock, ok := g.students[id]
	if !ok {
		lock = &studentLock{sem: semaphore.NewWeighted(1)}
		g.students[id] = lock
	}
	lock.refs++
	return lock
}

func (g *runGuard) unref(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	lock, ok := g.students[id]
	if !ok {
		return
	}
	lock.refs--
	if lock.refs == 0 {
		delete(g.students, id)
	}
}

func (g *runGuard) unlockStudent(id string) {
	g.mu.Lock()
	lock := g.students[id]
	g.mu.Unlock()
	if lock != nil {
		lock.sem.Release(1)
	}
	g.unref(id)
}

// tracked returns how many per-student locks are alive.
func (g *runGuard) tracked() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.students)
}
