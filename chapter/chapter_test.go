package chapter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"12", "12"},
		{" 12 ", "12"},
		{"007.10", "7.1"},
		{"10.50", "10.5"},
		{"10,50", "10.5"},
		{"12.0", "12"},
		{"12.", "12"},
		{"0", "0"},
		{"000", "0"},
		{"0.5", "0.5"},
		{"007", "7"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := Sanitize(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitize_Malformed(t *testing.T) {
	for _, raw := range []string{"", "   ", "abc", "12a", ".5", "1.2.3", "1.x", "-3"} {
		t.Run(raw, func(t *testing.T) {
			_, err := Sanitize(raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed))

			var me *MalformedError
			require.True(t, errors.As(err, &me))
			assert.Equal(t, raw, me.Raw)
		})
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	for _, raw := range []string{"007.10", "10,50", "1", "999.5", "0.0", "42.000"} {
		once, err := Sanitize(raw)
		require.NoError(t, err)
		twice, err := Sanitize(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice, "raw %q", raw)
	}
}

func TestParse(t *testing.T) {
	assert.Equal(t, Identifier{Major: 10, Minor: 5}, Parse("10.5"))
	assert.Equal(t, Identifier{Major: 10, Minor: 5}, Parse("10,5"))
	assert.Equal(t, Identifier{Major: 12}, Parse("12"))
	assert.Equal(t, Invalid, Parse(""))
	assert.Equal(t, Invalid, Parse("?"))
	assert.Equal(t, Invalid, Parse("ch12"))
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"9", "10", -1},
		{"10", "9", 1},
		{"10", "10", 0},
		{"10.5", "10", 1},
		{"10.1", "10.2", -1},
		{"1", "", 1},
		{"", "0", -1},
		{"", "", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Compare(tt.a, tt.b), "Compare(%q, %q)", tt.a, tt.b)
	}

	a, err := Sanitize("10.5")
	require.NoError(t, err)
	b, err := Sanitize("10.50")
	require.NoError(t, err)
	assert.Equal(t, 0, Compare(a, b))
}

func TestIsPlausible(t *testing.T) {
	assert.False(t, IsPlausible("10000"))
	assert.False(t, IsPlausible("1500"))
	assert.False(t, IsPlausible("771093"))
	assert.False(t, IsPlausible("1001"))
	assert.False(t, IsPlausible("abc"))
	assert.True(t, IsPlausible("999.5"))
	assert.True(t, IsPlausible("1000"))
	assert.True(t, IsPlausible("0"))
	assert.True(t, IsPlausible("12,5"))
}

func TestMax(t *testing.T) {
	got, ok := Max([]string{"3", "12", "9.5", "12.1", "11"})
	require.True(t, ok)
	assert.Equal(t, "12.1", got)

	_, ok = Max(nil)
	assert.False(t, ok)
}

func TestIdentifierString(t *testing.T) {
	assert.Equal(t, "7.1", Identifier{Major: 7, Minor: 1}.String())
	assert.Equal(t, "7", Identifier{Major: 7}.String())
	assert.Equal(t, "?", Invalid.String())
}
