package sched

// Mutex is a recursive lock for tasks running under a Scheduler.
//
// Because only one task ever runs at a time under cooperative scheduling,
// Mutex needs no internal locking of its own beyond the serialization the
// Scheduler's baton protocol already gives it; the correctness property
// that matters here is the hand-off on Release, not mutual exclusion of
// concurrent Go code.
type Mutex struct {
	s *Scheduler

	owner   *Task
	depth   int
	waiters []*Task
}

// NewMutex returns an unlocked Mutex for tasks scheduled by s.
func NewMutex(s *Scheduler) *Mutex {
	return &Mutex{s: s}
}

// TryAcquire acquires the mutex without blocking, reporting whether it
// succeeded. A task that already holds the mutex always succeeds and
// increments the recursion depth.
func (m *Mutex) TryAcquire() bool {
	cur := m.s.Current()
	switch {
	case m.owner == nil:
		m.owner = cur
		m.depth = 1
		return true
	case m.owner == cur:
		m.depth++
		return true
	default:
		return false
	}
}

// Acquire blocks the current task until the mutex is held. Waiters queue
// FIFO: the longest-waiting task is handed ownership directly by
// Release, closing the race where a newly woken waiter could lose the
// mutex to a task that calls TryAcquire between the wakeup and the
// waiter's next turn.
func (m *Mutex) Acquire() {
	if m.TryAcquire() {
		return
	}
	cur := m.s.Current()
	m.waiters = append(m.waiters, cur)
	m.s.Suspend()
	// Release already set m.owner = cur and m.depth = 1 before waking us.
}

// Release gives up one level of recursive ownership. Once the depth
// reaches zero, ownership passes to the longest-waiting task (if any)
// before that task is woken, so ownership transfer is atomic from every
// other task's point of view.
func (m *Mutex) Release() {
	cur := m.s.Current()
	if m.owner != cur {
		panic("sched: Release called by a task that does not hold the mutex")
	}
	m.depth--
	if m.depth > 0 {
		return
	}
	if len(m.waiters) == 0 {
		m.owner = nil
		return
	}
	next := m.waiters[0]
	m.waiters = m.waiters[1:]
	m.owner = next
	m.depth = 1
	m.s.Wakeup(next)
}
