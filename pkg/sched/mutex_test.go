package sched

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMutexExcludesConcurrentTasks(t *testing.T) {
	s := New()
	m := NewMutex(s)
	var order []string

	a := NewTask("a", func() {
		m.Acquire()
		order = append(order, "a-enter")
		s.Yield()
		order = append(order, "a-exit")
		m.Release()
	})
	b := NewTask("b", func() {
		order = append(order, "b-try")
		m.Acquire()
		order = append(order, "b-enter")
		m.Release()
	})

	s.Add(a)
	s.Add(b)
	s.Start()

	require.Equal(t, []string{"a-enter", "b-try", "a-exit", "b-enter"}, order)
}

func TestMutexIsRecursive(t *testing.T) {
	s := New()
	m := NewMutex(s)

	a := NewTask("a", func() {
		m.Acquire()
		m.Acquire()
		m.Release()
		m.Release()
	})
	s.Add(a)
	s.Start()

	require.True(t, m.TryAcquire())
	m.Release()
}

func TestMutexTryAcquireFailsWhenHeld(t *testing.T) {
	s := New()
	m := NewMutex(s)
	var bResult bool

	a := NewTask("a", func() {
		m.Acquire()
		s.Yield()
		m.Release()
	})
	b := NewTask("b", func() {
		bResult = m.TryAcquire()
	})

	s.Add(a)
	s.Add(b)
	s.Start()

	require.False(t, bResult)
}

func TestMutexFIFOHandoff(t *testing.T) {
	s := New()
	m := NewMutex(s)
	var order []string

	holder := NewTask("holder", func() {
		m.Acquire()
		order = append(order, "holder-enter")
		s.Yield()
		s.Yield()
		order = append(order, "holder-exit")
		m.Release()
	})
	first := NewTask("first", func() {
		order = append(order, "first-wait")
		m.Acquire()
		order = append(order, "first-enter")
		m.Release()
	})
	second := NewTask("second", func() {
		order = append(order, "second-wait")
		m.Acquire()
		order = append(order, "second-enter")
		m.Release()
	})

	s.Add(holder)
	s.Add(first)
	s.Add(second)
	s.Start()

	require.Equal(t, []string{
		"holder-enter",
		"first-wait",
		"second-wait",
		"holder-exit",
		"first-enter",
		"second-enter",
	}, order)
}
