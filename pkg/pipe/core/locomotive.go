package core

import "sync"

// Locomotive pulls values from inputCh and runs engine on each until the
// channel is closed. onDone, when set, observes every processed value.
func Locomotive[T any](inputCh <-chan T, engine func(in T), onDone func(in T), wg *sync.WaitGroup) {
	defer wg.Done()

	for in := range inputCh {
		engine(in)

		if onDone != nil {
			onDone(in)
		}
	}
}

// Drive runs engine over every value of inputCh with the given number of
// lines and blocks until the channel is drained and all lines returned.
func Drive[T any](inputCh <-chan T, engine func(in T), onDone func(in T), lines int) {
	if lines <= 0 {
		lines = 1
	}

	wg := &sync.WaitGroup{}
	for range lines {
		wg.Add(1)
		go Locomotive(inputCh, engine, onDone, wg)
	}
	wg.Wait()
}
