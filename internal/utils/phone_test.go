package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatPhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"+79990000000", "+79990000000"},
		{"79990000000", "+79990000000"},
		{"89990000000", "+79990000000"},
		{"8 (999) 000-00-00", "+79990000000"},
		{"+7 999 000 00 00", "+79990000000"},
		{"+1-202-555-0104", "+12025550104"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatPhone(tc.in), "input %q", tc.in)
	}
}

func TestGenerateCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code := GenerateCode(6)
		assert.Len(t, code, 6)
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9')
		}
		seen[code] = true
	}
	// 50 draws from a million values collide rarely; identical output for
	// every draw would mean a broken generator
	assert.Greater(t, len(seen), 1)
}

func TestRandomHexLength(t *testing.T) {
	assert.Len(t, RandomHex(20), 40)
	assert.NotEqual(t, RandomHex(20), RandomHex(20))
}
