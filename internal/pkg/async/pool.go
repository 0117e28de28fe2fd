// Package async runs a fixed set of named tasks on a bounded number of goroutines.
package async

import (
	"context"
	"fmt"
	"sync"
)

type Task struct {
	Name    string
	Execute func(ctx context.Context) (any, error)
}

type Result struct {
	Name string
	Data any
	Err  error
}

// Results maps task names to their outcome.
type Results map[string]Result

type Pool struct {
	workerCount int
}

func NewPool(workerCount int) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Pool{workerCount: workerCount}
}

func (p *Pool) worker(ctx context.Context, tasks <-chan Task, results chan<- Result, wg *sync.WaitGroup) {
	defer wg.Done()
	for task := range tasks {
		if err := ctx.Err(); err != nil {
			results <- Result{Name: task.Name, Err: err}
			continue
		}
		data, err := task.Execute(ctx)
		results <- Result{Name: task.Name, Data: data, Err: err}
	}
}

// Execute runs every task and returns once all of them have finished.
// Tasks still queued when ctx is cancelled report ctx.Err().
func (p *Pool) Execute(ctx context.Context, tasks []Task) Results {
	queue := make(chan Task, len(tasks))
	out := make(chan Result, len(tasks))
	for _, task := range tasks {
		queue <- task
	}
	close(queue)

	var wg sync.WaitGroup
	for i := 0; i < min(p.workerCount, len(tasks)); i++ {
		wg.Add(1)
		go p.worker(ctx, queue, out, &wg)
	}
	wg.Wait()
	close(out)

	results := make(Results, len(tasks))
	for result := range out {
		results[result.Name] = result
	}
	return results
}

// Err returns the first failure among names, in the order given.
// A name with no result counts as a failure.
func (r Results) Err(names ...string) error {
	for _, name := range names {
		result, ok := r[name]
		if !ok {
			return fmt.Errorf("%s: no result", name)
		}
		if result.Err != nil {
			return fmt.Errorf("%s: %w", name, result.Err)
		}
	}
	return nil
}
