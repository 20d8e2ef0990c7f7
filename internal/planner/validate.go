package planner

import (
	"fmt"
	"strings"
)

// shellMetachars are the characters spec.md §4.5's argv validation forbids
// outside a filter-graph argument.
const shellMetachars = ";><|`$"

// filterGraphFlags are the flags whose very next token is a filter-graph
// (ffmpeg's mini-language), where ';' is a filter-chain separator and the
// rest can legitimately appear inside expressions.
var filterGraphFlags = map[string]bool{
	"-filter_complex": true,
	"-vf":             true,
	"-af":             true,
	"-filter:v":       true,
	"-filter:a":       true,
}

// ValidateArgv enforces spec.md §4.5's argv validation: every occurrence of
// a shell metacharacter must appear inside the token immediately following
// a filter-graph flag, never anywhere else. "&&" and "||" are checked as
// substrings since they aren't single runes.
func ValidateArgv(argv []string) error {
	inFilterGraph := false
	for i, tok := range argv {
		if inFilterGraph {
			// This token IS the filter-graph argument; its content is
			// exempt, then we return to plain-flag scanning.
			inFilterGraph = false
			continue
		}
		if filterGraphFlags[tok] && i+1 < len(argv) {
			inFilterGraph = true
			continue
		}
		if strings.ContainsAny(tok, shellMetachars) {
			return fmt.Errorf("argv token %q at index %d contains a shell metacharacter outside a filter-graph argument", tok, i)
		}
		if strings.Contains(tok, "&&") || strings.Contains(tok, "||") {
			return fmt.Errorf("argv token %q at index %d contains a shell control sequence outside a filter-graph argument", tok, i)
		}
	}
	return nil
}
