package reads

import (
	"fmt"
	"strings"
)

// AmbiguousNameError reports a name that cannot be given a single role:
// it carries both markers, or another file already claims the same role and key.
type AmbiguousNameError struct {
	Name   string
	Reason string
}

func (e *AmbiguousNameError) Error() string {
	return fmt.Sprintf("ambiguous read name %q: %s", e.Name, e.Reason)
}

// UnpairedReadError reports reads whose mate is missing in paired mode.
type UnpairedReadError struct {
	Key     string
	Present Role
	Name    string
}

func (e *UnpairedReadError) Error() string {
	missing := RoleReverse
	if e.Present == RoleReverse {
		missing = RoleForward
	}
	return fmt.Sprintf("unpaired read %s for key %s: no %s read", e.Name, e.Key, missing)
}

// OutputCollisionError reports derived outputs that would overwrite each
// other or an input file.
type OutputCollisionError struct {
	Output string
	Owners []string
}

func (e *OutputCollisionError) Error() string {
	return fmt.Sprintf("output %s collides between %s", e.Output, strings.Join(e.Owners, " and "))
}
