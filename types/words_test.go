package types

import "testing"

func TestWordsString(t *testing.T) {
	tests := []struct {
		name  string
		words Words
		want  string
	}{
		{"Zero", 0, "0"},
		{"Small", 999, "999"},
		{"Thousands", 12_500, "12.5K"},
		{"Pack500K", Words500K, "500K"},
		{"Pack2M", Words2M, "2M"},
		{"Pack6M", Words6M, "6M"},
		{"FractionalMillion", 1_500_000, "1.5M"},
		{"TruncatesSecondDecimal", 1_999_999, "1.9M"},
		{"Negative", -2_000, "-2K"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.words.String(); got != tt.want {
				t.Errorf("String(): got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestWordsArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       func() Words
		expected Words
	}{
		{"Add", func() Words { return Words(100).Add(200) }, 300},
		{"Sub", func() Words { return Words(500).Sub(200) }, 300},
		{"Min", func() Words { return Words(500).Min(200) }, 200},
		{"Max", func() Words { return Words(500).Max(200) }, 500},
		{"Sum", func() Words { return Sum(100, 200, 300) }, 600},
		{"SumEmpty", func() Words { return Sum() }, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.op(); got != tt.expected {
				t.Errorf("got %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestWordsPredicates(t *testing.T) {
	if !Words(0).IsZero() {
		t.Error("0 should be zero")
	}
	if !Words(1).IsPositive() {
		t.Error("1 should be positive")
	}
	if !Words(-1).IsNegative() {
		t.Error("-1 should be negative")
	}
}

func TestCountWords(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Words
	}{
		{"Empty", "", 0},
		{"ASCII", "hello, world", 12},
		{"CJK", "你好世界", 4},
		{"Mixed", "AI写作 2025!", 10},
		{"Spaces", "   ", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CountWords(tt.text); got != tt.want {
				t.Errorf("CountWords(%q): got %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}
