package core

import "strings"

// ElementPath is an XPath locator built from a base and a sequence of
// suffixes. Suffixes starting with "[" refine the last step; anything else
// is a child step.
type ElementPath struct {
	steps []string
}

// NewElementPath parses a base locator. A trailing slash is ignored.
func NewElementPath(base string) ElementPath {
	base = strings.TrimSuffix(base, "/")
	if base == "" {
		return ElementPath{}
	}
	return ElementPath{steps: []string{base}}
}

// Join returns a new path with suffix appended; p is left untouched.
func (p ElementPath) Join(suffix string) ElementPath {
	suffix = strings.TrimSuffix(suffix, "/")
	if suffix == "" {
		return p
	}

	steps := make([]string, len(p.steps), len(p.steps)+1)
	copy(steps, p.steps)

	if strings.HasPrefix(suffix, "[") && len(steps) > 0 {
		steps[len(steps)-1] += suffix
		return ElementPath{steps: steps}
	}

	suffix = strings.TrimPrefix(suffix, "/")
	if len(steps) == 0 {
		// A bare suffix with no base is an absolute path.
		return ElementPath{steps: []string{"/" + suffix}}
	}
	return ElementPath{steps: append(steps, suffix)}
}

// String renders the XPath expression
func (p ElementPath) String() string {
	return strings.Join(p.steps, "/")
}
