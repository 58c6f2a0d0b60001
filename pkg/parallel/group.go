package parallel

import (
	"sync"
)

// RunBounded executes the tasks with at most limit running concurrently and
// joins them all before returning. Every task runs to completion even when
// a sibling fails; the first error in submission order is returned so a
// batch partial-failure is never converted into a silent success.
func RunBounded(limit int, tasks []func() error) error {
	if len(tasks) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = 1
	}

	errs := make([]error, len(tasks))
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for i, task := range tasks {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, task func() error) {
			defer wg.Done()
			defer func() { <-sem }()
			errs[i] = task()
		}(i, task)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
