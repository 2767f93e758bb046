// Package cpuset parses and formats kernel-style CPU list strings
// ("0-3,7,9-11") as used by sysfs cpulist attributes and per-profile
// active-CPU restrictions.
package cpuset

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Set is an immutable, sorted collection of logical CPU indexes.
type Set struct {
	cpus []int
}

// Parse converts a CPU list string into a Set. Elements are single
// indexes or inclusive ranges separated by commas. Whitespace around
// elements is tolerated. An empty string yields an error: callers use
// nil to mean "unrestricted", never an empty Set.
func Parse(s string) (*Set, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("cpuset: empty cpu list")
	}

	seen := map[int]struct{}{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("cpuset: empty element in %q", s)
		}
		lo, hi, ok := strings.Cut(part, "-")
		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil || start < 0 {
			return nil, fmt.Errorf("cpuset: bad cpu %q in %q", part, s)
		}
		end := start
		if ok {
			end, err = strconv.Atoi(strings.TrimSpace(hi))
			if err != nil || end < start {
				return nil, fmt.Errorf("cpuset: bad range %q in %q", part, s)
			}
		}
		for c := start; c <= end; c++ {
			seen[c] = struct{}{}
		}
	}

	cpus := make([]int, 0, len(seen))
	for c := range seen {
		cpus = append(cpus, c)
	}
	sort.Ints(cpus)
	return &Set{cpus: cpus}, nil
}

// CPUs returns the member indexes in ascending order. The returned
// slice is a copy.
func (s *Set) CPUs() []int {
	out := make([]int, len(s.cpus))
	copy(out, s.cpus)
	return out
}

// Count returns the number of CPUs in the set.
func (s *Set) Count() int { return len(s.cpus) }

// Contains reports whether cpu is a member.
func (s *Set) Contains(cpu int) bool {
	i := sort.SearchInts(s.cpus, cpu)
	return i < len(s.cpus) && s.cpus[i] == cpu
}

// String renders the canonical cpu list form, collapsing consecutive
// indexes into ranges.
func (s *Set) String() string {
	if len(s.cpus) == 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i < len(s.cpus); {
		j := i
		for j+1 < len(s.cpus) && s.cpus[j+1] == s.cpus[j]+1 {
			j++
		}
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		if j > i {
			fmt.Fprintf(&b, "%d-%d", s.cpus[i], s.cpus[j])
		} else {
			fmt.Fprintf(&b, "%d", s.cpus[i])
		}
		i = j + 1
	}
	return b.String()
}
