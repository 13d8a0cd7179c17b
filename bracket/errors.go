package bracket

import (
	"errors"
	"fmt"
)

var (
	// ErrDataInconsistency means the inputs contradict each other, for
	// example a decided game whose feeders are still open.
	ErrDataInconsistency = errors.New("data inconsistency")
	// ErrNumericDegeneracy means a head-to-head probability came out as NaN.
	ErrNumericDegeneracy = errors.New("numeric degeneracy")
)

type InconsistencyError struct {
	Game   int
	Reason string
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("%v: game %d: %s", ErrDataInconsistency, e.Game, e.Reason)
}

func (e *InconsistencyError) Unwrap() error {
	return ErrDataInconsistency
}

func Inconsistent(game int, format string, args ...any) error {
	return &InconsistencyError{Game: game, Reason: fmt.Sprintf(format, args...)}
}

type DegeneracyError struct {
	First, Second TeamID
	FirstProb     float64
	SecondProb    float64
	Round         int
}

func (e *DegeneracyError) Error() string {
	return fmt.Sprintf("%v: teams %d (%v) and %d (%v) in %s", ErrNumericDegeneracy,
		e.First, e.FirstProb, e.Second, e.SecondProb, RoundName(e.Round))
}

func (e *DegeneracyError) Unwrap() error {
	return ErrNumericDegeneracy
}
