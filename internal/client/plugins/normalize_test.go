package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"decomposed accent is composed", "Cafe\u0301", "caf\u00e9"},
		{"trim", "  hello  ", "hello"},
		{"collapse whitespace", "a \t\n  b", "a b"},
		{"lowercase", "ÉTÉ Indien", "été indien"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
	assert.Equal(t, Normalize("cafe\u0301"), Normalize("caf\u00e9"))
}

func TestCompositeKey(t *testing.T) {
	assert.Equal(t, "2024-05-01|morning run", CompositeKey(" 2024-05-01", "Morning   RUN "))
	assert.Equal(t, "||", CompositeKey("", "", ""))
}

func TestField(t *testing.T) {
	p := Plain{"s": "x", "whole": float64(3), "frac": 2.5, "b": true}
	assert.Equal(t, "x", field(p, "s"))
	assert.Equal(t, "3", field(p, "whole"))
	assert.Equal(t, "2.5", field(p, "frac"))
	assert.Equal(t, "true", field(p, "b"))
	assert.Equal(t, "", field(p, "missing"))
}
