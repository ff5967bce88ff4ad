package sched

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundRobinYield(t *testing.T) {
	s := New()
	var order []string

	a := NewTask("a", func() {
		order = append(order, "a1")
		s.Yield()
		order = append(order, "a2")
	})
	b := NewTask("b", func() {
		order = append(order, "b1")
		s.Yield()
		order = append(order, "b2")
	})
	s.Add(a)
	s.Add(b)

	s.Start()

	require.Equal(t, []string{"a1", "b1", "a2", "b2"}, order)
}

func TestYieldWithSingleTaskIsNoOp(t *testing.T) {
	s := New()
	ran := false
	a := NewTask("solo", func() {
		s.Yield()
		ran = true
	})
	s.Add(a)
	s.Start()
	require.True(t, ran)
}

func TestCriticalSectionSuppressesYield(t *testing.T) {
	s := New()
	var order []string

	a := NewTask("a", func() {
		s.EnterCriticalSection()
		order = append(order, "a1")
		s.Yield() // must be a no-op: b must not run here
		order = append(order, "a2")
		s.LeaveCriticalSection()
		s.Yield()
		order = append(order, "a3")
	})
	b := NewTask("b", func() {
		order = append(order, "b1")
	})
	s.Add(a)
	s.Add(b)
	s.Start()

	require.Equal(t, []string{"a1", "a2", "b1", "a3"}, order)
}

func TestSuspendAndWakeup(t *testing.T) {
	s := New()
	var order []string
	var sleeper *Task

	sleeper = NewTask("sleeper", func() {
		order = append(order, "sleep-before")
		s.Suspend()
		order = append(order, "sleep-after")
	})
	waker := NewTask("waker", func() {
		order = append(order, "wake1")
		s.Wakeup(sleeper)
		order = append(order, "wake2")
		s.Yield()
		order = append(order, "wake3")
	})

	s.Add(sleeper)
	s.Add(waker)
	s.Start()

	require.Equal(t, []string{
		"sleep-before",
		"wake1", "wake2",
		"sleep-after",
		"wake3",
	}, order)
}

func TestWakeupDoesNotSwitchImmediately(t *testing.T) {
	s := New()
	var order []string
	var sleeper *Task

	sleeper = NewTask("sleeper", func() {
		s.Suspend()
		order = append(order, "resumed")
	})
	waker := NewTask("waker", func() {
		s.Wakeup(sleeper)
		order = append(order, "still-running")
	})

	s.Add(sleeper)
	s.Add(waker)
	s.Start()

	require.Equal(t, []string{"still-running", "resumed"}, order)
}

func TestTaskFinishingRemovesItFromRunQueue(t *testing.T) {
	s := New()
	count := 0

	short := NewTask("short", func() {
		count++
	})
	long := NewTask("long", func() {
		count++
		s.Yield()
		count++
	})

	s.Add(short)
	s.Add(long)
	s.Start()

	require.Equal(t, 3, count)
}
