package audiometa

import (
	"fmt"
	"sort"
	"time"
)

// Mark is one chapter mark within a file: a named start position.
// Consumers derive a mark's end from the next mark's start (or the file
// duration for the last one).
type Mark struct {
	Start time.Duration `json:"start"`
	Name  string        `json:"name"`
}

// Metadata is the normalized result of analyzing one audio file.
type Metadata struct {
	// Basic info. Title falls back to the file's base name without extension
	// when the container carries no title.
	Title  string
	Artist string
	Album  string
	Genre  string

	// Audiobook-specific
	Narrator string `json:"narrator,omitempty"`
	Series   string `json:"series,omitempty"`
	Part     string `json:"part,omitempty"`

	// Technical info
	Duration time.Duration

	// File info
	FileSize int64
	Format   Format

	// Chapter marks, normalized: unique ascending starts.
	Chapters []Mark `json:"chapters,omitempty"`

	// Warnings contains non-fatal errors encountered during parsing.
	// These indicate partial data loss but don't prevent metadata extraction.
	Warnings []string `json:"warnings,omitempty"`
}

// AddWarning adds a non-fatal warning to the metadata.
func (m *Metadata) AddWarning(format string, args ...any) {
	m.Warnings = append(m.Warnings, fmt.Sprintf(format, args...))
}

// NormalizeMarks sorts marks ascending, drops duplicate start positions
// (first name wins), and synthesizes a mark at zero when marks exist but none
// starts there, so span derivation always works.
func NormalizeMarks(marks []Mark) []Mark {
	if len(marks) == 0 {
		return nil
	}
	sort.SliceStable(marks, func(i, j int) bool { return marks[i].Start < marks[j].Start })
	out := marks[:0]
	var last time.Duration = -1
	for _, m := range marks {
		if m.Start == last {
			continue
		}
		out = append(out, m)
		last = m.Start
	}
	if out[0].Start > 0 {
		out = append([]Mark{{Start: 0, Name: ""}}, out...)
	}
	return out
}
