package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunParallel_Empty(t *testing.T) {
	assert.NoError(t, RunParallel(context.Background(), nil))
}

func TestRunParallel_AllSucceed(t *testing.T) {
	var count atomic.Int32
	tasks := []Task{
		{Name: "a", Func: func(context.Context) error { count.Add(1); return nil }},
		{Name: "b", Func: func(context.Context) error { count.Add(1); return nil }},
		{Name: "c", Func: func(context.Context) error { count.Add(1); return nil }},
	}

	require.NoError(t, RunParallel(context.Background(), tasks))
	assert.Equal(t, int32(3), count.Load())
}

func TestRunParallel_CollectsAllErrors(t *testing.T) {
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	tasks := []Task{
		{Name: "a", Func: func(context.Context) error { return errA }},
		{Name: "ok", Func: func(context.Context) error { return nil }},
		{Name: "b", Func: func(context.Context) error { return errB }},
	}

	err := RunParallel(context.Background(), tasks)
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Contains(t, err.Error(), "a: ")
	assert.Contains(t, err.Error(), "b: ")
}

func TestRunParallel_WaitsForSlowTasks(t *testing.T) {
	done := make(chan struct{})
	var finished atomic.Bool
	tasks := []Task{
		{Name: "slow", Func: func(context.Context) error {
			<-done
			finished.Store(true)
			return nil
		}},
	}

	go close(done)
	require.NoError(t, RunParallel(context.Background(), tasks))
	assert.True(t, finished.Load())
}
