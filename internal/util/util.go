// Package util cleans up command-line input for the siting tools.
package util

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// FixEscapeQuotes replaces escaped double quotes ("") with single double quotes (").
// Spreadsheet exports of GeoJSON arrive this way.
func FixEscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `""`, `"`)
}

// CleanArg undoes spreadsheet-style quoting of a single argument.
func CleanArg(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = FixEscapeQuotes(s[1 : len(s)-1])
	}
	return s
}

// ReadArg resolves an argument that may name its content indirectly:
// "-" reads stdin, "@path" reads a file, anything else is taken literally.
// The result is passed through CleanArg.
func ReadArg(arg string, stdin io.Reader) (string, error) {
	switch {
	case arg == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return CleanArg(string(b)), nil
	case strings.HasPrefix(arg, "@"):
		b, err := os.ReadFile(arg[1:])
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", arg[1:], err)
		}
		return CleanArg(string(b)), nil
	default:
		return CleanArg(arg), nil
	}
}
