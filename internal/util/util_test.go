package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrimQuotes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"no quotes", "hello", "hello"},
		{"double quoted", `"hello"`, "hello"},
		{"single quotes only", "'hello'", "'hello'"},
		{"quotes in middle", `he"llo`, `he"llo`},
		{"only quotes", `""`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := TrimQuotes(tt.input)
			if result != tt.expected {
				t.Errorf("TrimQuotes(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFixEscapeQuotes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"no escaped quotes", "hello", "hello"},
		{"single escaped quote", `he""llo`, `he"llo`},
		{"multiple escaped quotes", `a""b""c`, `a"b"c`},
		{"consecutive escaped", `a""""b`, `a""b`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FixEscapeQuotes(tt.input)
			if result != tt.expected {
				t.Errorf("FixEscapeQuotes(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestCleanArg(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain wkt", "POLYGON((0 0,1 0,1 1,0 0))", "POLYGON((0 0,1 0,1 1,0 0))"},
		{"surrounding space", "  [[1,2]]\n", "[[1,2]]"},
		{"spreadsheet quoted", `"{""type"":""Polygon""}"`, `{"type":"Polygon"}`},
		{"lone quote kept", `"`, `"`},
		{"inner quotes untouched", `{"type":"Polygon"}`, `{"type":"Polygon"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanArg(tt.input))
		})
	}
}

func TestReadArg(t *testing.T) {
	path := filepath.Join(t.TempDir(), "field.wkt")
	require.NoError(t, os.WriteFile(path, []byte("POLYGON((0 0,1 0,1 1,0 0))\n"), 0o644))

	got, err := ReadArg("@"+path, nil)
	require.NoError(t, err)
	assert.Equal(t, "POLYGON((0 0,1 0,1 1,0 0))", got)

	got, err = ReadArg("-", strings.NewReader(" [[10,45],[10.1,45],[10.1,45.1]] "))
	require.NoError(t, err)
	assert.Equal(t, "[[10,45],[10.1,45],[10.1,45.1]]", got)

	got, err = ReadArg("literal", nil)
	require.NoError(t, err)
	assert.Equal(t, "literal", got)

	_, err = ReadArg("@"+filepath.Join(t.TempDir(), "missing"), nil)
	assert.ErrorContains(t, err, "reading")
}
