package engine

import "fmt"

// ConfigError reports a precondition violation detected during validation,
// before any evaluation happens.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + e.Reason
}

// BoundsError reports that a supplied initial grid or resumed log contains
// a row outside the declared bounds. Detected at validation time.
type BoundsError struct {
	Source string
	Row    int
	Params []float64
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("%s row %d is outside the declared bounds: %v", e.Source, e.Row, e.Params)
}

// EvaluationError wraps a failure raised by the scoring function for one
// candidate. It aborts the whole run; no partial batch is kept.
type EvaluationError struct {
	Index  int
	Params []float64
	Err    error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluating candidate %d %v: %v", e.Index, e.Params, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }
