package repository

import (
	"strings"

	"FinCast/internal/domain/models"
)

// Timeframe represents a prediction horizon.
type Timeframe string

const (
	TF1M Timeframe = "1M"
	TF6M Timeframe = "6M"
	TF1Y Timeframe = "1Y"
	TF5Y Timeframe = "5Y"
)

// AllTimeframes returns the supported horizons, shortest first.
func AllTimeframes() []Timeframe {
	return []Timeframe{TF1M, TF6M, TF1Y, TF5Y}
}

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	switch tf {
	case TF1M, TF6M, TF1Y, TF5Y:
		return true
	default:
		return false
	}
}

// DefaultTimeframe returns the default timeframe.
func DefaultTimeframe() Timeframe { return TF1M }

// ParseTimeframe converts raw input to a timeframe. Empty input yields the default;
// anything else outside the four horizons is an UnknownTimeframeError.
func ParseTimeframe(s string) (Timeframe, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultTimeframe(), nil
	}
	tf := Timeframe(strings.ToUpper(s))
	if !IsValidTimeframe(tf) {
		return "", &models.UnknownTimeframeError{Value: s}
	}
	return tf, nil
}

func (tf Timeframe) String() string { return string(tf) }
