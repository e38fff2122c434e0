package unicode_test

import (
	"testing"

	"github.com/speedy-lex/neonucleus/unicode"
)

func TestCellWidthASCII(t *testing.T) {
	if w := unicode.CellWidth('a'); w != 1 {
		t.Errorf("CellWidth('a') = %d, want 1", w)
	}
}

func TestCellWidthFullwidth(t *testing.T) {
	// U+FF21 FULLWIDTH LATIN CAPITAL LETTER A
	if w := unicode.CellWidth('Ａ'); w != 2 {
		t.Errorf("CellWidth(fullwidth A) = %d, want 2", w)
	}
}

func TestStringCellsMixed(t *testing.T) {
	s := "aＡb"
	if n := unicode.StringCells(s); n != 4 {
		t.Errorf("StringCells(%q) = %d, want 4", s, n)
	}
}
