package reads

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Resolver groups a directory listing into trimming units.
type Resolver struct {
	Matcher Matcher
	// Dir is joined with each listed name to form ReadFile.Path unless Locate is set.
	Dir string
	// Workspace is the directory derived outputs are written to.
	Workspace string
	// Locate overrides how a listed name becomes a ReadFile.
	Locate func(name string) ReadFile
}

// Resolution is the outcome of a successful Resolve.
type Resolution struct {
	Mode      Mode
	Units     []Unit
	Unmatched []string
	Warnings  []string
}

// pairs returns the paired inputs of the resolution.
func (r *Resolution) pairs() []ReadPair {
	var pairs []ReadPair
	for _, u := range r.Units {
		if p, ok := u.Input.(ReadPair); ok {
			pairs = append(pairs, p)
		}
	}
	return pairs
}

type bucket struct {
	forward *ReadFile
	reverse *ReadFile
}

// Resolve partitions listing by role and pairing key. Units are ordered by
// pairing key, independent of listing order. Any pairing defect is returned
// as an error and no units are produced.
func (r Resolver) Resolve(listing []string, mode Mode) (*Resolution, error) {
	names := normalizeListing(listing)
	res := &Resolution{Mode: mode}

	var err error
	switch mode {
	case ModePaired:
		res.Units, res.Unmatched, err = r.resolvePaired(names)
	case ModeSingle:
		res.Units, res.Warnings, err = r.resolveSingle(names)
	default:
		return nil, fmt.Errorf("resolve: unknown mode %q", mode)
	}
	if err != nil {
		return nil, err
	}

	if err := checkCollisions(res.Units, names); err != nil {
		return nil, err
	}
	return res, nil
}

func (r Resolver) resolvePaired(names []string) ([]Unit, []string, error) {
	buckets := make(map[string]*bucket)
	var unmatched []string

	for _, name := range names {
		role, key, err := r.Matcher.Match(name)
		if err != nil {
			return nil, nil, err
		}
		if role == RoleNone {
			unmatched = append(unmatched, name)
			continue
		}

		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
		}
		rf := r.locate(name)
		slot := &b.forward
		if role == RoleReverse {
			slot = &b.reverse
		}
		if *slot != nil {
			return nil, nil, &AmbiguousNameError{
				Name:   name,
				Reason: fmt.Sprintf("%s read for key %s already provided by %q", role, key, (*slot).Name),
			}
		}
		*slot = &rf
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	units := make([]Unit, 0, len(keys))
	for _, key := range keys {
		b := buckets[key]
		switch {
		case b.reverse == nil:
			return nil, nil, &UnpairedReadError{Key: key, Present: RoleForward, Name: b.forward.Name}
		case b.forward == nil:
			return nil, nil, &UnpairedReadError{Key: key, Present: RoleReverse, Name: b.reverse.Name}
		}
		pair := ReadPair{Key: key, Forward: *b.forward, Reverse: *b.reverse}
		units = append(units, Unit{Input: pair, Outputs: OutputsFor(pair, r.Workspace)})
	}
	return units, unmatched, nil
}

func (r Resolver) resolveSingle(names []string) ([]Unit, []string, error) {
	var units []Unit
	var warnings []string

	for _, name := range names {
		role, _, err := r.Matcher.Match(name)
		if err != nil {
			return nil, nil, err
		}
		if role == RoleReverse {
			warnings = append(warnings, fmt.Sprintf("ignoring reverse read %s in single-end mode", name))
			continue
		}
		single := ReadSingle{Key: name, Read: r.locate(name)}
		units = append(units, Unit{Input: single, Outputs: OutputsFor(single, r.Workspace)})
	}
	return units, warnings, nil
}

func (r Resolver) locate(name string) ReadFile {
	if r.Locate != nil {
		return r.Locate(name)
	}
	return ReadFile{Name: name, Path: filepath.Join(r.Dir, name)}
}

// checkCollisions compares output base names case-insensitively against each
// other and against the listed inputs.
func checkCollisions(units []Unit, inputs []string) error {
	owners := make(map[string]string, len(inputs))
	for _, name := range inputs {
		owners[strings.ToLower(name)] = "input " + name
	}

	for _, u := range units {
		owner := "key " + u.Input.PairKey()
		for _, p := range u.Outputs.Paths() {
			base := filepath.Base(p)
			lower := strings.ToLower(base)
			if prev, ok := owners[lower]; ok {
				return &OutputCollisionError{Output: base, Owners: []string{prev, owner}}
			}
			owners[lower] = owner
		}
	}
	return nil
}

func normalizeListing(listing []string) []string {
	seen := make(map[string]struct{}, len(listing))
	names := make([]string, 0, len(listing))
	for _, name := range listing {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
