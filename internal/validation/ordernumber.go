package validation

import (
	"errors"
	"fmt"
	"strconv"
	"unicode"
	"unicode/utf8"
)

// ErrOrderNumberFormat is returned for order numbers that are not a single
// non-digit marker followed by digits.
var ErrOrderNumberFormat = errors.New("malformed order number")

// ErrMixedOrderPrefix is returned when order numbers in one dataset use
// different marker characters.
var ErrMixedOrderPrefix = errors.New("order numbers use more than one prefix")

// OrderNumber is a parsed order number such as "#1001".
type OrderNumber struct {
	Prefix string
	Number int64
}

// String renders the order number with its prefix.
func (o OrderNumber) String() string {
	return o.Prefix + strconv.FormatInt(o.Number, 10)
}

// ParseOrderNumber splits s into its marker character and numeric suffix.
func ParseOrderNumber(s string) (OrderNumber, error) {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || unicode.IsDigit(r) {
		return OrderNumber{}, fmt.Errorf("%w: %q has no prefix", ErrOrderNumberFormat, s)
	}

	digits := s[size:]
	if digits == "" {
		return OrderNumber{}, fmt.Errorf("%w: %q has no number", ErrOrderNumberFormat, s)
	}
	for _, d := range digits {
		if d < '0' || d > '9' {
			return OrderNumber{}, fmt.Errorf("%w: %q", ErrOrderNumberFormat, s)
		}
	}

	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return OrderNumber{}, fmt.Errorf("%w: %q: %v", ErrOrderNumberFormat, s, err)
	}
	return OrderNumber{Prefix: s[:size], Number: n}, nil
}

// ParseOrderNumbers parses every value and checks that they share one prefix.
// It returns that prefix and the numbers in input order. An empty input
// yields an empty prefix and no numbers.
func ParseOrderNumbers(values []string) (string, []int64, error) {
	var prefix string
	numbers := make([]int64, 0, len(values))
	for i, v := range values {
		on, err := ParseOrderNumber(v)
		if err != nil {
			return "", nil, err
		}
		if i == 0 {
			prefix = on.Prefix
		} else if on.Prefix != prefix {
			return "", nil, fmt.Errorf("%w: %q and %q", ErrMixedOrderPrefix, prefix, on.Prefix)
		}
		numbers = append(numbers, on.Number)
	}
	return prefix, numbers, nil
}
