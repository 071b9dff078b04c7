package reads

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultForwardMarker = "_r1"
	DefaultReverseMarker = "_r2"
)

// Matcher tags file names with a read role. Markers match case-insensitively
// and only when not followed by another letter or digit, so "_r1" matches
// "s_R1.fastq" and "s_r1_001.fq.gz" but not "s_r10.fastq".
type Matcher struct {
	Forward string
	Reverse string
}

// NewMatcher validates the two markers.
func NewMatcher(forward, reverse string) (Matcher, error) {
	if forward == "" || reverse == "" {
		return Matcher{}, fmt.Errorf("read markers must not be empty (forward=%q reverse=%q)", forward, reverse)
	}
	if strings.EqualFold(forward, reverse) {
		return Matcher{}, fmt.Errorf("forward and reverse markers are identical: %q", forward)
	}
	return Matcher{Forward: forward, Reverse: reverse}, nil
}

// DefaultMatcher matches the _r1/_r2 convention.
func DefaultMatcher() Matcher {
	return Matcher{Forward: DefaultForwardMarker, Reverse: DefaultReverseMarker}
}

// Match returns the role of name and its pairing key (name without the
// marker). Names carrying neither marker return RoleNone and the name itself.
func (m Matcher) Match(name string) (Role, string, error) {
	fi := lastMarker(name, m.Forward)
	ri := lastMarker(name, m.Reverse)

	switch {
	case fi >= 0 && ri >= 0:
		return RoleNone, "", &AmbiguousNameError{
			Name:   name,
			Reason: fmt.Sprintf("matches both %q and %q", m.Forward, m.Reverse),
		}
	case fi >= 0:
		return RoleForward, name[:fi] + name[fi+len(m.Forward):], nil
	case ri >= 0:
		return RoleReverse, name[:ri] + name[ri+len(m.Reverse):], nil
	default:
		return RoleNone, name, nil
	}
}

func lastMarker(name, marker string) int {
	for i := len(name) - len(marker); i >= 0; i-- {
		if !strings.EqualFold(name[i:i+len(marker)], marker) {
			continue
		}
		if atBoundary(name, i+len(marker)) {
			return i
		}
	}
	return -1
}

func atBoundary(name string, end int) bool {
	if end >= len(name) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(name[end:])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
