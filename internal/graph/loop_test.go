package graph

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop_MicrotasksBeforeMacrotasks(t *testing.T) {
	l := NewLoop(WithVirtualTime())

	var got []string
	l.Submit(func() {
		got = append(got, "macro 1")
		l.EnqueueMicrotask(func() { got = append(got, "micro of 1") })
	})
	l.Submit(func() { got = append(got, "macro 2") })
	l.EnqueueMicrotask(func() { got = append(got, "micro") })

	require.NoError(t, l.Settle(context.Background()))
	assert.Equal(t, []string{"micro", "macro 1", "micro of 1", "macro 2"}, got)
	assert.Equal(t, int64(4), l.TasksRun())
	assert.Equal(t, 0, l.Pending())
}

func TestLoop_TimersFireInDeadlineOrder(t *testing.T) {
	l := NewLoop(WithVirtualTime())
	start := l.Now()

	var got []string
	l.SetTimer(30*time.Millisecond, func() { got = append(got, "c") })
	l.SetTimer(10*time.Millisecond, func() { got = append(got, "a") })
	l.SetTimer(10*time.Millisecond, func() { got = append(got, "b") })
	cleared := l.SetTimer(20*time.Millisecond, func() { got = append(got, "cleared") })
	l.ClearTimer(cleared)
	l.ClearTimer(999) // unknown ids are ignored

	require.NoError(t, l.Settle(context.Background()))
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, 30*time.Millisecond, l.Now().Sub(start))
}

func TestLoop_RealTimeTimer(t *testing.T) {
	l := NewLoop()

	fired := false
	l.SetTimer(5*time.Millisecond, func() { fired = true })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, l.Settle(ctx))
	assert.True(t, fired)
}

func TestLoop_SettleHonorsContext(t *testing.T) {
	l := NewLoop(WithVirtualTime())

	var rearm func()
	rearm = func() { l.SetTimer(time.Second, rearm) }
	rearm()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := l.Settle(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLoop_PanickingTaskDoesNotStopLoop(t *testing.T) {
	l := NewLoop()

	ran := false
	l.Submit(func() { panic("boom") })
	l.Submit(func() { ran = true })

	require.NoError(t, l.Settle(context.Background()))
	assert.True(t, ran)
}

func TestLoop_RunAndClose(t *testing.T) {
	l := NewLoop()

	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()

	ran := make(chan struct{})
	require.True(t, l.Submit(func() { close(ran) }))

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("submitted task did not run")
	}

	l.Close()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}

	assert.False(t, l.Submit(func() {}), "submit after close should fail")
}

func TestLoop_RunStopsOnCancel(t *testing.T) {
	l := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestLoop_ExclusiveDefersMicrotasks(t *testing.T) {
	l := NewLoop()

	var got []string
	l.Exclusive(func() {
		l.EnqueueMicrotask(func() { got = append(got, "micro") })
		got = append(got, "exclusive")
	})
	assert.Equal(t, []string{"exclusive"}, got)
	assert.Equal(t, 1, l.Pending())

	require.NoError(t, l.Settle(context.Background()))
	assert.Equal(t, []string{"exclusive", "micro"}, got)
}
