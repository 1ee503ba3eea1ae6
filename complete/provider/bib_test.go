package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBib(t *testing.T) {
	src := `
% a comment line
@string{tug = "TeX Users Group"}
@comment{ @misc{notreal, title={x}} }
@Book{knuth84,
  author    = {Donald E. Knuth},
  title     = {The {\TeX}book},
  publisher = "Addison-Wesley",
  year      = 1984,
}
@article(lamport86,
  title = "A {Document} Preparation " # "System",
  journal = tug
)
@misc{broken title = {x}}
@inproceedings{tail, title={Unterminated}
@misc{next, title={After}}
`
	entries := ParseBib(src)

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	assert.Equal(t, []string{"knuth84", "lamport86", "broken", "tail", "next"}, keys)

	require.GreaterOrEqual(t, len(entries), 2)
	knuth := entries[0]
	assert.Equal(t, "book", knuth.Type)
	assert.Equal(t, "Donald E. Knuth", knuth.Fields["author"])
	assert.Equal(t, `The \TeXbook`, knuth.Title())
	assert.Equal(t, "Addison-Wesley", knuth.Fields["publisher"])
	assert.Equal(t, "1984", knuth.Fields["year"])
	assert.Equal(t, "Donald E. Knuth (1984)", knuth.Summary())

	lamport := entries[1]
	assert.Equal(t, "A Document Preparation System", lamport.Title())
	assert.Equal(t, "tug", lamport.Fields["journal"])
}

func TestBibEntry_Summary(t *testing.T) {
	tests := []struct {
		fields map[string]string
		want   string
	}{
		{map[string]string{"author": "A", "year": "2000"}, "A (2000)"},
		{map[string]string{"author": "A"}, "A"},
		{map[string]string{"year": "2000"}, "2000"},
		{nil, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BibEntry{Fields: tt.fields}.Summary())
	}
}
