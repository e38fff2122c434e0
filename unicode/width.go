// Package unicode answers the one Unicode question a screen component
// needs: how many terminal cells a codepoint occupies. OpenComputers
// screens advance the cursor by 2 cells for wide (East Asian fullwidth
// and wide) characters instead of 1, matching how a real terminal
// emulator lays out text; golang.org/x/text/width classifies exactly
// this.
package unicode

import (
	"golang.org/x/text/width"
)

// CellWidth returns 2 for a fullwidth or wide codepoint, 1 otherwise.
// Control characters and combining marks still report 1; callers that
// care about zero-width runes should filter those separately.
func CellWidth(r rune) int {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2
	default:
		return 1
	}
}

// StringCells returns the total number of terminal cells s occupies.
func StringCells(s string) int {
	n := 0
	for _, r := range s {
		n += CellWidth(r)
	}
	return n
}
