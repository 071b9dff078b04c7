// Package reads turns a directory listing of sequencing read files into
// forward/reverse pairs (or singles) and derives the output file names each
// trimming job will produce.
package reads

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Mode selects how a listing is grouped.
type Mode string

const (
	ModeSingle Mode = "SE"
	ModePaired Mode = "PE"
)

// ParseMode accepts "SE"/"PE" and the long forms "single"/"paired", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PE", "PAIRED":
		return ModePaired, nil
	case "SE", "SINGLE":
		return ModeSingle, nil
	default:
		return "", fmt.Errorf("unknown read type %q (want SE or PE)", s)
	}
}

// Role is the read direction a file name carries.
type Role int

const (
	RoleNone Role = iota
	RoleForward
	RoleReverse
)

func (r Role) String() string {
	switch r {
	case RoleForward:
		return "forward"
	case RoleReverse:
		return "reverse"
	default:
		return "none"
	}
}

// ReadFile references one read file. Path is where the file was listed;
// Origin is the remote reference it came from, if any.
type ReadFile struct {
	Name   string
	Path   string
	Origin string
}

// Input is a unit of trimming work: either a ReadPair or a ReadSingle.
type Input interface {
	PairKey() string
	Mode() Mode
	// Reads returns the inputs in command order (forward first).
	Reads() []ReadFile
}

// ReadPair is a forward and reverse read sharing a pairing key.
type ReadPair struct {
	Key     string
	Forward ReadFile
	Reverse ReadFile
}

func (p ReadPair) PairKey() string   { return p.Key }
func (p ReadPair) Mode() Mode        { return ModePaired }
func (p ReadPair) Reads() []ReadFile { return []ReadFile{p.Forward, p.Reverse} }

// ReadSingle is a read trimmed on its own.
type ReadSingle struct {
	Key  string
	Read ReadFile
}

func (s ReadSingle) PairKey() string   { return s.Key }
func (s ReadSingle) Mode() Mode        { return ModeSingle }
func (s ReadSingle) Reads() []ReadFile { return []ReadFile{s.Read} }

// WithPaths returns a copy of in whose reads point at the given local paths,
// in Reads() order. It is used once remote reads have been fetched.
func WithPaths(in Input, paths []string) (Input, error) {
	switch v := in.(type) {
	case ReadPair:
		if len(paths) != 2 {
			return nil, fmt.Errorf("pair %s: want 2 paths, got %d", v.Key, len(paths))
		}
		v.Forward.Path = paths[0]
		v.Reverse.Path = paths[1]
		return v, nil
	case ReadSingle:
		if len(paths) != 1 {
			return nil, fmt.Errorf("single %s: want 1 path, got %d", v.Key, len(paths))
		}
		v.Read.Path = paths[0]
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported input type %T", in)
	}
}

const (
	TrimmedPrefix   = "trimmed_"
	UntrimmedPrefix = "untrimmed_"
)

// OutputSpec holds the files a job must produce. For singles only the
// forward fields are set.
type OutputSpec struct {
	TrimmedForward   string
	UntrimmedForward string
	TrimmedReverse   string
	UntrimmedReverse string
}

// Paths returns the declared outputs in engine order:
// trimmed_fwd, untrimmed_fwd, trimmed_rev, untrimmed_rev.
func (o OutputSpec) Paths() []string {
	paths := []string{o.TrimmedForward, o.UntrimmedForward}
	if o.TrimmedReverse != "" || o.UntrimmedReverse != "" {
		paths = append(paths, o.TrimmedReverse, o.UntrimmedReverse)
	}
	return paths
}

// Roles names each entry of Paths().
func (o OutputSpec) Roles() []string {
	roles := []string{"trimmed_forward", "untrimmed_forward"}
	if o.TrimmedReverse != "" || o.UntrimmedReverse != "" {
		roles = append(roles, "trimmed_reverse", "untrimmed_reverse")
	}
	return roles
}

// OutputsFor derives the output spec of in inside workspace.
func OutputsFor(in Input, workspace string) OutputSpec {
	reads := in.Reads()
	spec := OutputSpec{
		TrimmedForward:   filepath.Join(workspace, TrimmedPrefix+reads[0].Name),
		UntrimmedForward: filepath.Join(workspace, UntrimmedPrefix+reads[0].Name),
	}
	if len(reads) > 1 {
		spec.TrimmedReverse = filepath.Join(workspace, TrimmedPrefix+reads[1].Name)
		spec.UntrimmedReverse = filepath.Join(workspace, UntrimmedPrefix+reads[1].Name)
	}
	return spec
}

// Unit is a resolved input together with its derived outputs.
type Unit struct {
	Input   Input
	Outputs OutputSpec
}
