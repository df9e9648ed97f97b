// Package id generates the two kinds of identifiers the catalog uses:
// random NanoIDs for records with independent lifecycles (bookmarks, scan
// runs) and deterministic path-derived IDs for books and chapters, so the
// same folder or file always maps to the same record across scans.
package id

import (
	"fmt"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Namespace for path-derived IDs. Never change this: every stored book and
// chapter key depends on it.
var pathNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// Generate creates a prefixed unique ID using NanoID
// Format: prefix-nanoid (e.g., "bm-V1StGXR8_Z5jdHi6B-myT")
//
// Returns an error if the system has insufficient entropy for secure random
// generation.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// ForPath derives a stable ID from a filesystem path. The same path always
// yields the same ID, which is what lets a rescan find the book it produced
// last time.
func ForPath(prefix, path string) string {
	return prefix + "-" + uuid.NewSHA1(pathNamespace, []byte(path)).String()
}
