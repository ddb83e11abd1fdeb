// Package dashboard computes the figures shown on the machine dashboard:
// filtered views, YTD totals, monthly development, rankings, product mix and
// the 80/20 scan of machines that cost money without earning any.
package dashboard

import (
	"sort"
	"strings"

	"github.com/agrof66/machine-dashboard/internal/sheet"
	"github.com/agrof66/machine-dashboard/pkg/constants"
)

// Filter holds the sidebar selections.
type Filter struct {
	ActiveOnly bool   `json:"activeOnly"`
	Branch     string `json:"branch,omitempty"`
	Family     string `json:"family,omitempty"`
	Group      string `json:"group,omitempty"`
}

// Apply returns the machines matching f. The input is not modified.
func (f Filter) Apply(machines []sheet.Machine) []sheet.Machine {
	out := make([]sheet.Machine, 0, len(machines))
	for _, m := range machines {
		if f.ActiveOnly && m.CostYTD == 0 && m.RevenueYTD == 0 {
			continue
		}
		if !isAll(f.Branch) && m.Branch != f.Branch {
			continue
		}
		if !isAll(f.Family) && m.ProductFamily != f.Family {
			continue
		}
		if !isAll(f.Group) && m.ProductGroup != f.Group {
			continue
		}
		out = append(out, m)
	}
	return out
}

func isAll(v string) bool {
	switch strings.TrimSpace(v) {
	case "", constants.BranchAll, constants.OptionAll:
		return true
	}
	return false
}

// RestrictBranches keeps the machines whose branch is in allowed. The
// sentinel "alle" grants every branch; an empty list grants none.
func RestrictBranches(machines []sheet.Machine, allowed []string) []sheet.Machine {
	if len(allowed) == 0 {
		return []sheet.Machine{}
	}
	set := make(map[string]struct{}, len(allowed))
	for _, b := range allowed {
		if strings.EqualFold(strings.TrimSpace(b), constants.BranchUnrestricted) {
			return machines
		}
		set[b] = struct{}{}
	}

	out := make([]sheet.Machine, 0, len(machines))
	for _, m := range machines {
		if _, ok := set[m.Branch]; ok {
			out = append(out, m)
		}
	}
	return out
}

// Branches returns the sorted distinct branch names, without blanks and the
// "Unbekannt" placeholder.
func Branches(machines []sheet.Machine) []string {
	return distinct(machines, func(m sheet.Machine) string { return m.Branch }, constants.BranchUnknown)
}

// Families returns the sorted distinct product families.
func Families(machines []sheet.Machine) []string {
	return distinct(machines, func(m sheet.Machine) string { return m.ProductFamily }, "nan")
}

// Groups returns the sorted distinct product groups within family, or all
// groups when family is "Alle".
func Groups(machines []sheet.Machine, family string) []string {
	if !isAll(family) {
		machines = Filter{Family: family}.Apply(machines)
	}
	return distinct(machines, func(m sheet.Machine) string { return m.ProductGroup }, "nan")
}

func distinct(machines []sheet.Machine, key func(sheet.Machine) string, skip string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range machines {
		v := strings.TrimSpace(key(m))
		if v == "" || v == skip {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// NormalizeBranch maps free-form input ("leipzig", "NL Leipzig ") onto one
// of the known branch names by case-insensitive substring match in either
// direction. An exact case-insensitive match wins over a substring match.
func NormalizeBranch(name string, known []string) (string, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return name, false
	}
	for _, k := range known {
		if strings.ToLower(strings.TrimSpace(k)) == needle {
			return k, true
		}
	}
	for _, k := range known {
		candidate := strings.ToLower(strings.TrimSpace(k))
		if candidate == "" {
			continue
		}
		if strings.Contains(needle, candidate) || strings.Contains(candidate, needle) {
			return k, true
		}
	}
	return name, false
}

// NormalizeBranches maps a user-directory branch list onto the known branch
// names. The "alle" sentinel is kept; entries matching no known branch are
// kept verbatim so they still grant nothing.
func NormalizeBranches(branches, known []string) []string {
	out := make([]string, 0, len(branches))
	seen := make(map[string]struct{}, len(branches))
	for _, b := range branches {
		name := strings.TrimSpace(b)
		if strings.EqualFold(name, constants.BranchUnrestricted) {
			name = constants.BranchUnrestricted
		} else if match, ok := NormalizeBranch(name, known); ok {
			name = match
		}
		if _, dup := seen[name]; dup || name == "" {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
