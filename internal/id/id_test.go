package id

import (
	"strings"
	"testing"
)

func TestGenerate(t *testing.T) {
	a := MustGenerate("bm")
	b := MustGenerate("bm")

	if !strings.HasPrefix(a, "bm-") {
		t.Errorf("id %q missing prefix", a)
	}
	if a == b {
		t.Error("two generated ids must differ")
	}
}

func TestForPathIsStable(t *testing.T) {
	a := ForPath("book", "/library/Author/Book A")
	b := ForPath("book", "/library/Author/Book A")
	c := ForPath("book", "/library/Author/Book B")

	if a != b {
		t.Errorf("same path produced different ids: %q vs %q", a, b)
	}
	if a == c {
		t.Error("different paths produced the same id")
	}
	if !strings.HasPrefix(a, "book-") {
		t.Errorf("id %q missing prefix", a)
	}
}
