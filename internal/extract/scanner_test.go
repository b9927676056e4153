package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanBalanced(t *testing.T) {
	tests := []struct {
		name  string
		input string
		start int
		want  string
		ok    bool
	}{
		{
			name:  "flat object",
			input: `{"a":1}`,
			start: 0,
			want:  `{"a":1}`,
			ok:    true,
		},
		{
			name:  "nested objects and arrays",
			input: `{"a":{"b":[1,2,{"c":3}]}}trailing`,
			start: 0,
			want:  `{"a":{"b":[1,2,{"c":3}]}}`,
			ok:    true,
		},
		{
			name:  "unbalanced brace inside string ignored",
			input: `{"desc":"unit 4B } tower {"}rest`,
			start: 0,
			want:  `{"desc":"unit 4B } tower {"}`,
			ok:    true,
		},
		{
			name:  "escaped quote does not toggle string state",
			input: `{"desc":"she said \"}\" loudly"}more`,
			start: 0,
			want:  `{"desc":"she said \"}\" loudly"}`,
			ok:    true,
		},
		{
			name:  "double backslash before closing quote",
			input: `{"path":"C:\\\\"}x`,
			start: 0,
			want:  `{"path":"C:\\\\"}`,
			ok:    true,
		},
		{
			name:  "single quoted string with brace",
			input: `{'a':'}','b':1}`,
			start: 0,
			want:  `{'a':'}','b':1}`,
			ok:    true,
		},
		{
			name:  "array start",
			input: `[1,{"a":"]"},3] tail`,
			start: 0,
			want:  `[1,{"a":"]"},3]`,
			ok:    true,
		},
		{
			name:  "mid-string start offset",
			input: `prefix {"a":1} suffix`,
			start: 7,
			want:  `{"a":1}`,
			ok:    true,
		},
		{
			name:  "never closes",
			input: `{"a":{"b":1}`,
			start: 0,
			ok:    false,
		},
		{
			name:  "start not an opener",
			input: `"a"`,
			start: 0,
			ok:    false,
		},
		{
			name:  "start out of range",
			input: `{}`,
			start: 99,
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			end, ok := ScanBalanced(tt.input, tt.start)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, tt.input[tt.start:end])
			}
		})
	}
}

func TestFirstBalanced(t *testing.T) {
	got, ok := FirstBalanced(`The model said: {"a": "{not a brace}"} thanks!`)
	require.True(t, ok)
	assert.Equal(t, `{"a": "{not a brace}"}`, got)

	_, ok = FirstBalanced("no json here at all")
	assert.False(t, ok)
}
