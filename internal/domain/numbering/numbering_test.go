package numbering

import "testing"

func TestExtractBase(t *testing.T) {
	tests := []struct {
		seq  string
		want string
	}{
		{"NOI-007", "NOI-007"},
		{"NOI-007_r02", "NOI-007"},
		{"NOI-007_r10", "NOI-007"},
		{"NOI-007_r123", "NOI-007"},
		{"NOI-007_r2", "NOI-007_r2"},
		{"NOI_r01-007", "NOI_r01-007"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.seq, func(t *testing.T) {
			if got := ExtractBase(tt.seq); got != tt.want {
				t.Errorf("ExtractBase(%q) = %q, want %q", tt.seq, got, tt.want)
			}
		})
	}
}

func TestNextRevision(t *testing.T) {
	tests := []struct {
		seq  string
		want int
	}{
		{"NOI-007", 1},
		{"NOI-007_r01", 2},
		{"NOI-007_r09", 10},
		{"NOI-007_r99", 100},
	}

	for _, tt := range tests {
		t.Run(tt.seq, func(t *testing.T) {
			if got := NextRevision(tt.seq); got != tt.want {
				t.Errorf("NextRevision(%q) = %d, want %d", tt.seq, got, tt.want)
			}
		})
	}
}

func TestFormatWithRevision(t *testing.T) {
	tests := []struct {
		base string
		rev  int
		want string
	}{
		{"NOI-007", 0, "NOI-007"},
		{"NOI-007", 1, "NOI-007_r01"},
		{"NOI-007", 12, "NOI-007_r12"},
		{"NOI-007", 100, "NOI-007_r100"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatWithRevision(tt.base, tt.rev); got != tt.want {
				t.Errorf("FormatWithRevision(%q, %d) = %q, want %q", tt.base, tt.rev, got, tt.want)
			}
		})
	}
}

// Resubmitting repeatedly always yields the same base with the next revision.
func TestRevisionChain(t *testing.T) {
	seq := "NOI-007"
	for i := 1; i <= 12; i++ {
		next := FormatWithRevision(ExtractBase(seq), NextRevision(seq))
		if ExtractBase(next) != "NOI-007" {
			t.Fatalf("revision %d: base = %q, want NOI-007", i, ExtractBase(next))
		}
		if Revision(next) != i {
			t.Fatalf("revision %d: got %d", i, Revision(next))
		}
		seq = next
	}
}

func TestScheme_Format(t *testing.T) {
	tests := []struct {
		scheme Scheme
		n      int
		want   string
	}{
		{Scheme{Prefix: "NOI", Padding: 3}, 7, "NOI-007"},
		{Scheme{Prefix: "fo", Padding: 3}, 42, "FO-042"},
		{Scheme{Prefix: "FT", Padding: 2}, 123, "FT-123"},
		{Scheme{Prefix: "", Padding: 4}, 5, "0005"},
		{Scheme{Prefix: "FO"}, 5, "FO-5"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.scheme.Format(tt.n); got != tt.want {
				t.Errorf("Format(%d) = %q, want %q", tt.n, got, tt.want)
			}
		})
	}
}
