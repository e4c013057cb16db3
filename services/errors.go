package services

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

var (
	// ErrInvalidRequest marks a missing or malformed request field.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNotFound marks a reference to a marker or user that does not exist.
	ErrNotFound = errors.New("not found")

	ErrMarkerNotFound = fmt.Errorf("marker %w", ErrNotFound)
	ErrUserNotFound   = fmt.Errorf("user %w", ErrNotFound)
)

// ParseSeconds parses a form value holding a duration in seconds.
func ParseSeconds(field, raw string) (float64, error) {
	if raw == "" {
		return 0, fmt.Errorf("%w: missing '%s' field", ErrInvalidRequest, field)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid '%s' value", ErrInvalidRequest, field)
	}
	if err := checkSeconds(field, v); err != nil {
		return 0, err
	}
	return v, nil
}

func checkSeconds(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("%w: invalid '%s' value", ErrInvalidRequest, field)
	}
	return nil
}
