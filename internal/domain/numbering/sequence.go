package numbering

import (
	"fmt"
	"strings"
)

// Scheme describes how a module renders its sequence numbers
type Scheme struct {
	Prefix  string `mapstructure:"prefix"`
	Padding int    `mapstructure:"padding"`
}

// Format renders the n-th sequence number, e.g. Scheme{"NOI", 3}.Format(7) = "NOI-007"
func (s Scheme) Format(n int) string {
	padding := s.Padding
	if padding <= 0 {
		padding = 1
	}
	number := fmt.Sprintf("%0*d", padding, n)
	if s.Prefix == "" {
		return number
	}
	return strings.ToUpper(s.Prefix) + "-" + number
}
