package utils

import (
	"path/filepath"
	"regexp"
	"strings"
)

// maxComponentLen caps a single sanitized filename component.
const maxComponentLen = 100

var (
	pathSeparators = regexp.MustCompile(`[/\\]`)
	hostileChars   = regexp.MustCompile(`[<>:"|?*]`)
	squeezeRuns    = regexp.MustCompile(`[\s_]+`)
)

// SanitizeFilename makes a string safe to use as one filename component.
// Path separators, control characters and filesystem-hostile characters are
// replaced, whitespace/underscore runs collapse to one underscore, and the
// result is length-capped. An empty input comes back as "unknown".
func SanitizeFilename(name string) string {
	if name == "" {
		return "unknown"
	}

	var clean strings.Builder
	for _, r := range name {
		if r == 0 || r < 0x20 || r == 0x7f {
			continue
		}
		clean.WriteRune(r)
	}

	out := pathSeparators.ReplaceAllString(clean.String(), "_")
	out = hostileChars.ReplaceAllString(out, "_")
	out = squeezeRuns.ReplaceAllString(out, "_")
	out = strings.Trim(out, "._")

	if out == "" {
		return "unknown"
	}
	if runes := []rune(out); len(runes) > maxComponentLen {
		out = string(runes[:maxComponentLen])
	}
	return out
}

// AllowedExtension reports whether the filename's extension (lowercased) is in
// the allowed set. Entries in allowed carry the leading dot.
func AllowedExtension(filename string, allowed map[string]bool) bool {
	return allowed[strings.ToLower(filepath.Ext(filename))]
}
