package merge

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		name string
		in   Cell
		want string
	}{
		{"empty", Empty(), ""},
		{"dashed cnic", Text("12345-6789012-3"), "1234567890123"},
		{"spaces and letters", Text(" CNIC: 35202 1234567 1 "), "3520212345671"},
		{"number", Number(1234567890123), "1234567890123"},
		{"unicode digits dropped", Text("١٢٣4"), "4"},
		{"no digits", Text("N/A"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeID(tt.in))
		})
	}
}

func TestNormalizeID_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"abc",
		"12345-6789012-3",
		"+92 (300) 111-1111",
		"1.5e10",
		"\x00\xff9\t8",
		"٣٤٥-678",
	}

	for _, s := range inputs {
		once := NormalizeIDString(s)
		assert.Equal(t, once, NormalizeIDString(once), "input %q", s)
		for _, r := range once {
			assert.True(t, r >= '0' && r <= '9', "non-digit %q in %q", r, once)
		}
	}
}

func TestParseCycle(t *testing.T) {
	tests := []struct {
		name string
		in   Cell
		want int
	}{
		{"plain", Text("3"), 3},
		{"number", Number(9), 9},
		{"fraction truncates", Number(3.9), 3},
		{"leading space", Text("  12"), 12},
		{"suffix ignored", Text("12th"), 12},
		{"negative", Text("-2"), -2},
		{"plus sign", Text("+4"), 4},
		{"empty", Empty(), 0},
		{"blank string", Text(""), 0},
		{"not a number", Text("n/a"), 0},
		{"sign only", Text("-"), 0},
		{"overflow", Text("99999999999999999999999"), math.MaxInt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCycle(tt.in))
		})
	}
}
