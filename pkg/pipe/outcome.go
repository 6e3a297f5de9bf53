package pipe

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is the settled result of one unit run inside an aggregating
// strategy.
type Outcome struct {
	id        uuid.UUID
	createdAt time.Time
	unit      WorkUnit
	value     any
	err       error
	skipped   bool
}

// Settle records what a unit's Run returned.
func Settle(unit WorkUnit, value any, err error) Outcome {
	o := Outcome{
		id:        uuid.New(),
		createdAt: time.Now().UTC(),
		unit:      unit,
		err:       err,
	}
	if err == nil {
		o.value = value
		o.skipped = unit != nil && unit.IsSkipped()
	}
	return o
}

func (o Outcome) ID() uuid.UUID {
	return o.id
}

// CreatedAt is the settle time (UTC).
func (o Outcome) CreatedAt() time.Time {
	return o.createdAt
}

func (o Outcome) Unit() WorkUnit {
	return o.unit
}

// Value is the unit's output, or its input when the unit was skipped.
func (o Outcome) Value() any {
	return o.value
}

func (o Outcome) Err() error {
	return o.err
}

// IsSuccess is true for passed and skipped units.
func (o Outcome) IsSuccess() bool {
	return o.err == nil
}

func (o Outcome) IsSkipped() bool {
	return o.skipped
}

// AggregatedResult is what the pool and synchronize strategies resolve with.
type AggregatedResult struct {
	Results []any
	Errors  []error
}

// Aggregate splits outcomes, keeping their order, into results and errors.
func Aggregate(outcomes []Outcome) AggregatedResult {
	res := AggregatedResult{
		Results: make([]any, 0, len(outcomes)),
		Errors:  make([]error, 0),
	}

	for _, o := range outcomes {
		if o.IsSuccess() {
			res.Results = append(res.Results, o.Value())
		} else {
			res.Errors = append(res.Errors, o.Err())
		}
	}

	return res
}

// Failed reports whether any unit failed.
func (r AggregatedResult) Failed() bool {
	return len(r.Errors) > 0
}

// Err joins every collected error, or returns nil.
func (r AggregatedResult) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return joinErrors(r.Errors)
}
