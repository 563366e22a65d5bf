// Package async provides a small helper for running independent tasks in
// parallel. The orchestrator uses it for entities at the same dependency
// depth, which have no ordering constraint between them.
package async

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Task is a named asynchronous operation.
type Task struct {
	Name string
	Func func(context.Context) error
}

// RunParallel starts all tasks concurrently and waits for every one to
// finish. All task errors are collected and joined, not just the first:
// the caller needs the full failure set to decide which dependents to
// block.
func RunParallel(ctx context.Context, tasks []Task) error {
	if len(tasks) == 0 {
		return nil
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for _, task := range tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := task.Func(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", task.Name, err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	return errors.Join(errs...)
}
