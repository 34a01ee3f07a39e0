package utils

import "strings"

// forbiddenRunes are path/protocol delimiters that may not appear in names.
const forbiddenRunes = "£€$\"[]<>|*¤?§µ#`@^²°¨"

var escaper = func() *strings.Replacer {
	pairs := make([]string, 0, 2*len([]rune(forbiddenRunes)))
	for _, r := range forbiddenRunes {
		pairs = append(pairs, string(r), "_")
	}
	return strings.NewReplacer(pairs...)
}()

// Escape replaces every forbidden rune in name with '_'.
func Escape(name string) string {
	if name == "" {
		return name
	}
	return escaper.Replace(name)
}

// EscapePath escapes every segment of path into a new slice.
func EscapePath(path []string) []string {
	if path == nil {
		return nil
	}
	out := make([]string, len(path))
	for i, p := range path {
		out[i] = Escape(p)
	}
	return out
}
