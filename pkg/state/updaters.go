package state

import (
	"errors"
	"fmt"

	"github.com/spf13/cast"
)

// MaxCounter bounds the values Add produces. Stores decode JSON numbers as
// float64, which holds every integer up to 2^53 exactly and nothing beyond.
const MaxCounter = 1 << 53

// ErrCounterRange is returned by Add when the counter would leave
// [-MaxCounter, MaxCounter].
var ErrCounterRange = errors.New("counter out of exact range")

// Add returns an Updater that adds delta to a numeric value. Absent keys count as 0.
// Results beyond MaxCounter in magnitude fail with ErrCounterRange instead of
// being rounded on the next read.
func Add(delta int64) Updater {
	return func(current any) (any, error) {
		var n int64
		if current != nil {
			var err error
			if n, err = cast.ToInt64E(current); err != nil {
				return nil, fmt.Errorf("value is not a number: %w", err)
			}
		}
		if n > MaxCounter || n < -MaxCounter ||
			(delta > 0 && n > MaxCounter-delta) ||
			(delta < 0 && n < -MaxCounter-delta) {
			return nil, fmt.Errorf("%w: %d%+d", ErrCounterRange, n, delta)
		}
		return n + delta, nil
	}
}

// Replace returns an Updater that ignores the current value.
func Replace(value any) Updater {
	return func(any) (any, error) {
		return value, nil
	}
}

// Merge returns an Updater that shallow-merges fields into an object value.
// Absent keys start from an empty object.
func Merge(fields map[string]any) Updater {
	return func(current any) (any, error) {
		out := map[string]any{}
		if current != nil {
			m, err := cast.ToStringMapE(current)
			if err != nil {
				return nil, fmt.Errorf("value is not an object: %w", err)
			}
			for k, v := range m {
				out[k] = v
			}
		}
		for k, v := range fields {
			out[k] = v
		}
		return out, nil
	}
}
