// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// ScorePlaces is the fixed number of decimal places kept for score values.
const ScorePlaces = 2

// Limits on untrusted score text. Rounding rescales to ScorePlaces, which
// costs time and memory proportional to the exponent, so values far
// outside [0, 100] are settled from their digit count alone.
const (
	maxValueLength   = 32
	maxIntegerDigits = 3
	excerptLength    = 32
)

var (
	minScore = decimal.Zero
	maxScore = decimal.NewFromInt(100)
)

// Score is a single observation for one subject. Values are immutable once
// recorded.
type Score struct {
	Subject string          // lower-cased subject name
	Value   decimal.Decimal // fixed to ScorePlaces, within [0, 100]
}

// NewScore builds a Score from a raw subject and a raw value string.
func NewScore(subject, rawValue string) (Score, error) {
	subject = NormalizeSubject(subject)
	if subject == "" {
		return Score{}, ErrEmptySubject
	}
	if !utf8.ValidString(subject) {
		return Score{}, fmt.Errorf("subject %s: %w", Excerpt(subject), ErrInvalidText)
	}
	value, err := ParseValue(rawValue)
	if err != nil {
		return Score{}, err
	}
	return Score{Subject: subject, Value: value}, nil
}

// ParseValue parses raw as a decimal fixed to two places and checks the range.
func ParseValue(raw string) (decimal.Decimal, error) {
	text := strings.TrimSpace(raw)
	if len(text) > maxValueLength {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidNumber, Excerpt(raw))
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidNumber, Excerpt(raw))
	}
	switch digits := integerDigits(d); {
	case d.IsZero(), digits < -ScorePlaces:
		// |d| < 0.001 rounds to zero
		return decimal.Zero, nil
	case digits > maxIntegerDigits:
		return decimal.Zero, fmt.Errorf("%w: %s", ErrOutOfRange, Excerpt(raw))
	}
	d = d.Round(ScorePlaces)
	if !InRange(d) {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrOutOfRange, Excerpt(raw))
	}
	return d, nil
}

// Bounded reports whether v is small enough in magnitude and scale to be
// rounded and compared cheaply. Every valid score is bounded.
func Bounded(v decimal.Decimal) bool {
	return integerDigits(v) <= maxIntegerDigits && int64(v.Exponent()) >= -maxValueLength
}

// integerDigits is the position of the leading digit relative to the
// decimal point: 3 for 123.4, 0 for 0.5, -1 for 0.05.
func integerDigits(v decimal.Decimal) int64 {
	return int64(v.NumDigits()) + int64(v.Exponent())
}

// Excerpt quotes s for an error message, cut to a fixed length.
func Excerpt(s string) string {
	if len(s) > excerptLength {
		return fmt.Sprintf("%q...", s[:excerptLength])
	}
	return fmt.Sprintf("%q", s)
}

// InRange reports whether v lies in [0, 100].
func InRange(v decimal.Decimal) bool {
	return v.GreaterThanOrEqual(minScore) && v.LessThanOrEqual(maxScore)
}

// HasScorePrecision reports whether v carries at most ScorePlaces decimals.
func HasScorePrecision(v decimal.Decimal) bool {
	return v.Equal(v.Round(ScorePlaces))
}

// FormatValue renders v with exactly two decimal places.
func FormatValue(v decimal.Decimal) string {
	return v.StringFixed(ScorePlaces)
}

// NormalizeSubject trims and lower-cases a subject for storage and comparison.
func NormalizeSubject(subject string) string {
	return strings.ToLower(strings.TrimSpace(subject))
}

// NormalizeName trims surrounding whitespace from a student name.
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}
