package frame

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepRunsTasksBeforeFrames(t *testing.T) {
	l := NewLoop()
	var order []string

	l.RequestFrame(func(time.Time) { order = append(order, "frame") })
	l.Post(func() { order = append(order, "task") })

	l.Step(time.Now())
	assert.Equal(t, []string{"task", "frame"}, order)
	assert.Equal(t, 0, l.Pending())
}

func TestFramesRequestedDuringStepWait(t *testing.T) {
	l := NewLoop()
	count := 0
	var tick Callback
	tick = func(time.Time) {
		count++
		l.RequestFrame(tick)
	}
	l.RequestFrame(tick)

	l.Step(time.Now())
	l.Step(time.Now())
	l.Step(time.Now())
	assert.Equal(t, 3, count)
	assert.Equal(t, 1, l.Pending())
}

func TestCancelFrame(t *testing.T) {
	l := NewLoop()
	ran := false
	id := l.RequestFrame(func(time.Time) { ran = true })
	l.CancelFrame(id)
	l.Step(time.Now())
	assert.False(t, ran)
}

func TestCancelFrameFromEarlierCallbackInSameStep(t *testing.T) {
	l := NewLoop()
	ran := false
	var second ID
	l.RequestFrame(func(time.Time) { l.CancelFrame(second) })
	second = l.RequestFrame(func(time.Time) { ran = true })

	l.Step(time.Now())
	assert.False(t, ran)
}

func TestPostFromOtherGoroutines(t *testing.T) {
	l := NewLoop()
	var wg sync.WaitGroup
	total := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Post(func() { total++ })
		}()
	}
	wg.Wait()
	l.RunTasks()
	assert.Equal(t, 20, total)
}

func TestRunAndDo(t *testing.T) {
	l := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	frames := make(chan struct{}, 1)
	l.RequestFrame(func(time.Time) { frames <- struct{}{} })
	go l.Run(ctx, 5*time.Millisecond)

	select {
	case <-frames:
	case <-time.After(2 * time.Second):
		t.Fatal("frame callback never ran")
	}

	value := 0
	require.NoError(t, l.Do(ctx, func() { value = 7 }))
	assert.Equal(t, 7, value)
}
