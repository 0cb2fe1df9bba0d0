package domain

import "fmt"

// InsufficientHistoryError reports that a symbol has too few bars for the
// required indicator or sequence windows.
type InsufficientHistoryError struct {
	Symbol string
	Need   int
	Have   int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history for %s: need %d bars, have %d", e.Symbol, e.Need, e.Have)
}

// MissingScalerError reports an inference attempt for a symbol whose
// scalers were never fitted.
type MissingScalerError struct {
	Symbol string
}

func (e *MissingScalerError) Error() string {
	return fmt.Sprintf("no fitted scaler for %s: train first", e.Symbol)
}

// MissingModelError reports an inference attempt for a symbol with no
// trained model bundle.
type MissingModelError struct {
	Symbol string
}

func (e *MissingModelError) Error() string {
	return fmt.Sprintf("no trained model bundle for %s", e.Symbol)
}

// FeatureMismatchError reports that the feature schema stored at training
// time cannot be reproduced from the columns available at inference.
type FeatureMismatchError struct {
	Symbol  string
	Missing []string
}

func (e *FeatureMismatchError) Error() string {
	return fmt.Sprintf("feature schema mismatch for %s: missing columns %v", e.Symbol, e.Missing)
}

// TrainingError wraps a per-symbol training failure. Batch training
// reports it alongside successful symbols rather than aborting.
type TrainingError struct {
	Symbol string
	Err    error
}

func (e *TrainingError) Error() string {
	return fmt.Sprintf("training failed for %s: %v", e.Symbol, e.Err)
}

func (e *TrainingError) Unwrap() error { return e.Err }
