package merge

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// MinKeyLength is the shortest normalized CNIC that is eligible for indexing.
const MinKeyLength = 13

// NormalizeID strips every non-digit from the cell's text form.
// It never fails and is idempotent.
func NormalizeID(c Cell) string {
	return NormalizeIDString(c.String())
}

// NormalizeIDString is NormalizeID for an already-coerced string.
func NormalizeIDString(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if ch := s[i]; ch >= '0' && ch <= '9' {
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// ParseCycle reads a loan cycle the way a lenient integer prefix parser would:
// leading whitespace, an optional sign, then digits. Anything else yields 0.
// "3" -> 3, 3.9 -> 3, "12th" -> 12, "" -> 0, "n/a" -> 0.
func ParseCycle(c Cell) int {
	s := strings.TrimLeft(c.String(), " \t\r\n\v\f")

	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}

	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			if s[0] == '-' {
				return math.MinInt
			}
			return math.MaxInt
		}
		return 0
	}
	return int(n)
}
