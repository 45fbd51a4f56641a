package models

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientHistory = errors.New("insufficient history")
	ErrInsufficientSamples = errors.New("insufficient samples")
	ErrUnknownTimeframe    = errors.New("unknown timeframe")
	ErrModelNotTrained     = errors.New("model not trained")
	ErrInvalidInput        = errors.New("invalid input")
	ErrSymbolNotFound      = errors.New("symbol not found")
	ErrTrainingTimeout     = errors.New("training timed out")
)

// InsufficientHistoryError is returned when a price series is too short for the
// longest feature lookback plus the label horizon.
type InsufficientHistoryError struct {
	Have int
	Need int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history: have %d usable points, need at least %d", e.Have, e.Need)
}

func (e *InsufficientHistoryError) Unwrap() error { return ErrInsufficientHistory }

// InsufficientSamplesError is returned when the chronological test split is too small.
type InsufficientSamplesError struct {
	Timeframe string
	Have      int
	Need      int
}

func (e *InsufficientSamplesError) Error() string {
	return fmt.Sprintf("insufficient samples for %s: test split has %d rows, need %d", e.Timeframe, e.Have, e.Need)
}

func (e *InsufficientSamplesError) Unwrap() error { return ErrInsufficientSamples }

// UnknownTimeframeError is returned for a horizon outside 1M, 6M, 1Y, 5Y.
type UnknownTimeframeError struct {
	Value string
}

func (e *UnknownTimeframeError) Error() string {
	return fmt.Sprintf("unknown timeframe %q: must be one of 1M, 6M, 1Y, 5Y", e.Value)
}

func (e *UnknownTimeframeError) Unwrap() error { return ErrUnknownTimeframe }

// ModelNotTrainedError is returned when a forecast is requested for a key with no cached model.
type ModelNotTrainedError struct {
	Symbol    string
	Timeframe string
}

func (e *ModelNotTrainedError) Error() string {
	return fmt.Sprintf("no trained model for %s/%s", e.Symbol, e.Timeframe)
}

func (e *ModelNotTrainedError) Unwrap() error { return ErrModelNotTrained }

// InvalidInputError reports a rejected input value.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid input: %s %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }
