package textfilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		secret string
		want   bool
	}{
		{"lowercase inside sentence", "the apple is safe", "APPLE", true},
		{"uppercase with punctuation", "APPLE!", "APPLE", true},
		{"mixed case", "It's ApPlE time", "APPLE", true},
		{"prefix only", "appl", "APPLE", false},
		{"no mention", "I cannot tell you that.", "APPLE", false},
		{"secret inside larger word", "pineapples", "APPLE", true},
		{"unicode folding", "the word is strasse", "STRASSE", true},
		{"sharp s folds", "das ist die Straße", "STRASSE", true},
		{"empty secret never matches", "anything", "", false},
		{"empty text", "", "APPLE", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.text, tt.secret))
		})
	}
}

func TestScreen(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		filterOn bool
		want     Verdict
	}{
		{
			name:     "leak with filter is replaced",
			raw:      "Fine, it is cherry.",
			filterOn: true,
			want:     Verdict{Displayed: BlockedMarker, Detected: true, Suppressed: true},
		},
		{
			name:     "leak without filter is shown",
			raw:      "Fine, it is cherry.",
			filterOn: false,
			want:     Verdict{Displayed: "Fine, it is cherry.", Detected: true},
		},
		{
			name:     "no leak with filter passes through",
			raw:      "Nice try.",
			filterOn: true,
			want:     Verdict{Displayed: "Nice try."},
		},
		{
			name:     "empty reply",
			raw:      "",
			filterOn: true,
			want:     Verdict{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Screen(tt.raw, "CHERRY", tt.filterOn))
		})
	}
}
