package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringReflectsBuildVersion(t *testing.T) {
	cleanup := ForTesting("1.2.3-test")
	t.Cleanup(cleanup)

	assert.Equal(t, "1.2.3-test", String())
}

func TestStripV(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"v1.21.0":  "1.21.0",
		"V1.21.0":  "1.21.0",
		"1.21.0":   "1.21.0",
		" v1.0.0 ": "1.0.0",
		"vv1.0.0":  "v1.0.0",
		"":         "",
		"latest":   "latest",
	}
	for in, want := range tests {
		assert.Equal(t, want, StripV(in), "StripV(%q)", in)
	}
}

func TestFormatVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{"1.2.3", "v1.2.3"},
		{"v1.2.3", "v1.2.3"},
		{"dev", "dev"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatVersion(tt.input), "FormatVersion(%q)", tt.input)
	}
}

func TestTag(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "v1.21.0", Tag("v", "1.21.0"))
	assert.Equal(t, "v1.21.0", Tag("v", "v1.21.0"))
	assert.Equal(t, "1.21.0", Tag("", "v1.21.0"))
}

func TestCompare(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want int
	}{
		{"1.20.0", "1.20.0", 0},
		{"v1.20.0", "1.20.0", 0},
		{"1.21.3", "1.20.0", 1},
		{"1.19.0", "1.20.0", -1},
		{"1.10.0", "1.9.0", 1},
		{"2.0.0", "1.99.99", 1},
		{"1.2", "1.2.0", 0},
		{"1.21.0-beta.1", "1.21.0", -1},
	}
	for _, tt := range tests {
		got, err := Compare(tt.a, tt.b)
		require.NoError(t, err, "Compare(%q, %q)", tt.a, tt.b)
		assert.Equal(t, tt.want, got, "Compare(%q, %q)", tt.a, tt.b)
	}
}

func TestCompareRejectsNonSemver(t *testing.T) {
	t.Parallel()

	for _, bad := range []string{"latest", "", "1.2.3.4", "release-1"} {
		_, err := Compare(bad, "1.0.0")
		assert.Error(t, err, bad)
		_, err = Compare("1.0.0", bad)
		assert.Error(t, err, bad)
	}
}

func TestAtLeast(t *testing.T) {
	t.Parallel()

	ok, err := AtLeast("v1.20.0", "1.20.0")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = AtLeast("v1.19.9", "1.20.0")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = AtLeast("0.0.1", "")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = AtLeast("nightly", "")
	assert.Error(t, err)
}
