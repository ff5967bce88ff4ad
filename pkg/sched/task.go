// Package sched implements the non-preemptive, cooperative task scheduler
// that hosts the lpcnor media engine, EBML codec, and HDLC framer in task
// context.
//
// Each Task is backed by one goroutine that only ever advances past a
// checkpoint when handed an explicit unbuffered baton channel by the
// Scheduler: exactly one task logically runs at a time, and switches
// happen only at well-defined voluntary points (Yield, Suspend,
// Mutex.Acquire). On a microcontroller the same contract would be kept by
// saving callee-preserved registers and the stack pointer; here the Go
// runtime holds each parked task's stack for us.
package sched

// State mirrors the two states a task can be in.
type State uint8

const (
	// Run means the task is either currently executing or waiting in the
	// run queue for its turn.
	Run State = iota
	// Suspended means the task is parked in the sleep queue.
	Suspended
)

// Task is one cooperatively scheduled unit of work.
type Task struct {
	Name string

	state State

	fn       func()
	proceed  chan struct{}
	paused   chan struct{}
	finished bool
}

// NewTask creates a task that will run fn once the scheduler dispatches it
// for the first time. The task's goroutine is started immediately but
// blocks until the scheduler hands it the baton.
func NewTask(name string, fn func()) *Task {
	t := &Task{
		Name:    name,
		state:   Run,
		fn:      fn,
		proceed: make(chan struct{}),
		paused:  make(chan struct{}),
	}
	go func() {
		<-t.proceed
		t.fn()
		t.finished = true
		t.paused <- struct{}{}
	}()
	return t
}

// State reports whether the task is currently runnable or suspended.
func (t *Task) State() State {
	return t.state
}
