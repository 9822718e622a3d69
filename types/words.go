// Package types provides common value types used across wordledger.
package types

import (
	"fmt"
	"strconv"
	"unicode/utf8"
)

// Words is a quantity of word allowance. All arithmetic is integer-only.
//
// Examples:
//   - Words(500000).String() = "500K"
//   - Words(2000000).String() = "2M"
//   - Words(1500000).String() = "1.5M"
type Words int64

// Common pack sizes.
const (
	Words500K Words = 500_000
	Words2M   Words = 2_000_000
	Words6M   Words = 6_000_000
)

// Arithmetic operations

// Add adds two word quantities.
func (w Words) Add(other Words) Words { return w + other }

// Sub subtracts other from w. The result may be negative; callers that need
// a floor use Min/Max.
func (w Words) Sub(other Words) Words { return w - other }

// Comparison methods

// IsZero returns true if the quantity is zero.
func (w Words) IsZero() bool { return w == 0 }

// IsPositive returns true if the quantity is greater than zero.
func (w Words) IsPositive() bool { return w > 0 }

// IsNegative returns true if the quantity is less than zero.
func (w Words) IsNegative() bool { return w < 0 }

// Min returns the smaller of two quantities.
func (w Words) Min(other Words) Words {
	if w < other {
		return w
	}
	return other
}

// Max returns the larger of two quantities.
func (w Words) Max(other Words) Words {
	if w > other {
		return w
	}
	return other
}

// Int64 returns the raw count.
func (w Words) Int64() int64 { return int64(w) }

// Formatting

// String returns a compact human-readable form: "999", "12.5K", "500K", "2M".
func (w Words) String() string {
	n := int64(w)
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}

	switch {
	case n >= 1_000_000:
		return sign + compact(n, 1_000_000) + "M"
	case n >= 1_000:
		return sign + compact(n, 1_000) + "K"
	default:
		return sign + strconv.FormatInt(n, 10)
	}
}

// compact renders n/unit with at most one decimal, dropping a trailing ".0".
func compact(n, unit int64) string {
	whole := n / unit
	tenth := (n % unit) * 10 / unit
	if tenth == 0 {
		return strconv.FormatInt(whole, 10)
	}
	return fmt.Sprintf("%d.%d", whole, tenth)
}

// CountWords returns the number of words charged for text. Every character
// counts as one word: a CJK character, a letter, a digit, a punctuation mark
// or a space.
func CountWords(text string) Words {
	return Words(utf8.RuneCountInString(text))
}

// Sum calculates the sum of multiple word quantities.
func Sum(values ...Words) Words {
	var total Words
	for _, v := range values {
		total += v
	}
	return total
}
