package scanner

import (
	"sort"
	"testing"
)

func TestNaturalLess(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"Chapter 2", "Chapter 10", true},
		{"Chapter 10", "Chapter 2", false},
		{"Chapter 2", "Chapter 2", false},
		{"02", "3", true},
		{"track1", "track01a", true},
		{"a", "b", true},
		{"A", "b", true}, // case-insensitive
		{"disc 1 track 9", "disc 1 track 10", true},
		{"", "a", true},
		{"10", "9a", false},
	}
	for _, tt := range tests {
		if got := naturalLess(tt.a, tt.b); got != tt.want {
			t.Errorf("naturalLess(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestNaturalSortOrder(t *testing.T) {
	names := []string{"Chapter 30", "Chapter 3", "Chapter 20", "Chapter 1", "Chapter 2"}
	sort.SliceStable(names, func(i, j int) bool { return naturalLess(names[i], names[j]) })

	want := []string{"Chapter 1", "Chapter 2", "Chapter 3", "Chapter 20", "Chapter 30"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("order = %v, want %v", names, want)
		}
	}
}
