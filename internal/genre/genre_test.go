package genre

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Science Fiction", "science-fiction"},
		{"Sci-Fi/Fantasy", "sci-fi-fantasy"},
		{"Crème Brûlée", "creme-brulee"},
		{"  Historical  Fiction  ", "historical-fiction"},
		{"LitRPG", "litrpg"},
		{"---", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.input))
		})
	}
}

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"science fiction", "Science Fiction"},
		{"SCIENCE FICTION", "Science Fiction"},
		{"classic", "Classic"},
		{"refactoring", "Refactoring"},
		{"Space Opera", "Space Opera"}, // unknown labels pass through trimmed
		{"  Noir  ", "Noir"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Canonicalize(tt.input))
		})
	}
}
