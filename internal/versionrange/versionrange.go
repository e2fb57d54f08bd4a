// Package versionrange parses NuGet-style interval notation over four-part
// dotted versions and selects the best matching candidate.
//
// Versions are compared as strings after padding to four segments. This is
// only correct when every producer pads segments to the same width.
package versionrange

import (
	"regexp"
	"strings"

	"github.com/365businessdev/alget/internal/domain"
)

var (
	bareVersion     = regexp.MustCompile(`^\d+\.\d+(\.\d+)?(\.\d+)?$`)
	bracketedExact  = regexp.MustCompile(`^\[\d+\.\d+(\.\d+)?(\.\d+)?\]$`)
	generalInterval = regexp.MustCompile(`^[\[(](.*?),(.*?)[\])]$`)
)

// Range is an interval. An empty Min or Max means unbounded on that side.
type Range struct {
	Min          string
	Max          string
	MinInclusive bool
	MaxInclusive bool
}

func exact(v string) *Range {
	return &Range{Min: v, Max: v, MinInclusive: true, MaxInclusive: true}
}

// Parse returns nil when expr is not a recognized range.
func Parse(expr string) *Range {
	expr = strings.TrimSpace(expr)

	if len(strings.Split(expr, ".")) == 4 && !strings.ContainsAny(expr, "[](),") {
		return exact(expr)
	}

	if bareVersion.MatchString(expr) {
		return &Range{Min: domain.PadVersion(expr), MinInclusive: true}
	}

	if bracketedExact.MatchString(expr) {
		return exact(domain.PadVersion(strings.Trim(expr, "[]")))
	}

	m := generalInterval.FindStringSubmatch(expr)
	if m == nil {
		return nil
	}
	return &Range{
		Min:          domain.PadVersion(strings.TrimSpace(m[1])),
		Max:          domain.PadVersion(strings.TrimSpace(m[2])),
		MinInclusive: strings.HasPrefix(expr, "["),
		MaxInclusive: strings.HasSuffix(expr, "]"),
	}
}

// Contains reports whether v satisfies the range.
//
// A single-point range with mixed bounds keeps the historical meaning used by
// the feeds' clients: "[v,v)" selects versions above v, "(v,v]" versions
// below v and "(v,v)" every version except v.
func (r *Range) Contains(v string) bool {
	v = domain.PadVersion(v)

	if r.Min != "" && r.Min == r.Max {
		c := strings.Compare(v, r.Min)
		switch {
		case r.MinInclusive && r.MaxInclusive:
			return c == 0
		case r.MinInclusive:
			return c > 0
		case r.MaxInclusive:
			return c < 0
		default:
			return c != 0
		}
	}

	if r.Min != "" {
		c := strings.Compare(v, r.Min)
		if c < 0 || (c == 0 && !r.MinInclusive) {
			return false
		}
	}
	if r.Max != "" {
		c := strings.Compare(v, r.Max)
		if c > 0 || (c == 0 && !r.MaxInclusive) {
			return false
		}
	}
	return true
}

// IsExact reports whether the range pins a single version.
func (r *Range) IsExact() bool {
	return r.Min != "" && r.Min == r.Max && r.MinInclusive && r.MaxInclusive
}

// Best returns the greatest candidate inside the range.
func (r *Range) Best(candidates []domain.VersionEntry) (string, bool) {
	best := ""
	for _, c := range candidates {
		v := domain.PadVersion(c.Version)
		if !r.Contains(v) {
			continue
		}
		if best == "" || strings.Compare(v, best) > 0 {
			best = v
		}
	}
	return best, best != ""
}

func (r *Range) String() string {
	if r.Min == r.Max && r.MinInclusive && r.MaxInclusive {
		return "[" + r.Min + "]"
	}
	lo, hi := "(", ")"
	if r.MinInclusive {
		lo = "["
	}
	if r.MaxInclusive {
		hi = "]"
	}
	return lo + r.Min + "," + r.Max + hi
}
