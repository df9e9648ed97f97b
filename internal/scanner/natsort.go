package scanner

import (
	"strings"
	"unicode"
)

// naturalLess reports whether a sorts before b in natural order: digit runs
// compare by numeric value, so "Chapter 2" < "Chapter 3" < "Chapter 20".
// Comparison is case-insensitive outside digit runs.
func naturalLess(a, b string) bool {
	for len(a) > 0 && len(b) > 0 {
		if isDigit(a[0]) && isDigit(b[0]) {
			aNum, aRest := splitLeadingNumber(a)
			bNum, bRest := splitLeadingNumber(b)
			if aNum != bNum {
				return numberLess(aNum, bNum)
			}
			a, b = aRest, bRest
			continue
		}
		ar := unicode.ToLower(rune(a[0]))
		br := unicode.ToLower(rune(b[0]))
		if ar != br {
			return ar < br
		}
		a, b = a[1:], b[1:]
	}
	return len(a) < len(b)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// splitLeadingNumber splits off the leading digit run, stripped of leading
// zeros.
func splitLeadingNumber(s string) (num, rest string) {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	num = strings.TrimLeft(s[:i], "0")
	if num == "" {
		num = "0"
	}
	return num, s[i:]
}

// numberLess compares two digit strings by value. Longer means larger once
// leading zeros are stripped.
func numberLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
