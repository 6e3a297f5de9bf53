package monitor

import (
	"fmt"
	"sync"
	"time"

	"github.com/ib-77/workpipe/pkg/pipe"
)

// Summary counts settled units. It is safe for concurrent use.
type Summary struct {
	mu      sync.Mutex
	passed  int
	failed  int
	skipped int
	busy    time.Duration
	errs    []error
}

func NewSummary() *Summary {
	return &Summary{}
}

// Track subscribes s to m and returns a function that stops tracking.
func (s *Summary) Track(m *Monitor) (stop func()) {
	stopPass := m.OnWorkUnitPass().Listen(func(e pipe.PassEvent) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.passed++
		s.busy += elapsed(e.Unit)
	})
	stopFail := m.OnWorkUnitFail().Listen(func(e pipe.FailEvent) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.failed++
		s.busy += elapsed(e.Unit)
		s.errs = append(s.errs, e.Err)
	})
	stopSkip := m.OnWorkUnitSkip().Listen(func(pipe.SkipEvent) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.skipped++
	})

	return func() {
		stopPass()
		stopFail()
		stopSkip()
	}
}

func (s *Summary) Passed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.passed
}

func (s *Summary) Failed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

func (s *Summary) Skipped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skipped
}

// Busy is the summed running time of all settled units.
func (s *Summary) Busy() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Errors returns the failures in the order they were reported.
func (s *Summary) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errs...)
}

func (s *Summary) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("%d passed, %d failed, %d skipped in %s",
		s.passed, s.failed, s.skipped, s.busy.Round(time.Millisecond))
}
