// Package numbering formats human-readable sequence numbers and their revision suffixes.
package numbering

import (
	"fmt"
	"regexp"
	"strconv"
)

// revisionSuffix matches a trailing "_r" followed by two or more digits
var revisionSuffix = regexp.MustCompile(`_r(\d{2,})$`)

// ExtractBase strips a trailing revision suffix: "NOI-007_r02" -> "NOI-007"
func ExtractBase(seq string) string {
	loc := revisionSuffix.FindStringIndex(seq)
	if loc == nil {
		return seq
	}
	return seq[:loc[0]]
}

// Revision returns the revision encoded in seq, or 0 when it has no suffix
func Revision(seq string) int {
	m := revisionSuffix.FindStringSubmatch(seq)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// NextRevision returns the revision that follows seq: no suffix -> 1, "_rNN" -> NN+1
func NextRevision(seq string) int {
	return Revision(seq) + 1
}

// FormatWithRevision appends a zero-padded revision suffix to base.
// Revision 0 leaves the base untouched.
func FormatWithRevision(base string, rev int) string {
	if rev <= 0 {
		return base
	}
	return fmt.Sprintf("%s_r%02d", base, rev)
}
