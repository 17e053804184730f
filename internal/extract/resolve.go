package extract

import (
	"path"
	"strings"
)

// Candidates lists the qualified names a spelling may refer to when used
// inside scope, innermost scope first. A spelling with a leading "::" only
// refers to the global namespace.
//
//	Candidates("a::B", "n::C") == ["n::C::a::B", "n::a::B", "a::B"]
func Candidates(spelling, scope string) []string {
	if rest, ok := strings.CutPrefix(spelling, "::"); ok {
		return []string{rest}
	}
	if scope == "" {
		return []string{spelling}
	}
	segs := strings.Split(scope, "::")
	out := make([]string, 0, len(segs)+1)
	for i := len(segs); i > 0; i-- {
		out = append(out, strings.Join(segs[:i], "::")+"::"+spelling)
	}
	return append(out, spelling)
}

// IncludeResolver maps the spelling of a quoted #include to the unit paths
// it may name.
type IncludeResolver struct {
	// Dirs are include directories relative to the analysis root.
	Dirs []string
	// Exists reports whether a root-relative path is a known unit. A nil
	// Exists accepts every candidate.
	Exists func(rel string) bool
}

// Resolve returns the candidate paths for an include of spelling from the
// unit at from: first relative to the including file, then each include
// directory, then the analysis root. Only existing candidates are returned.
func (r IncludeResolver) Resolve(from, spelling string) []string {
	spelling = strings.TrimSpace(spelling)
	if spelling == "" || path.IsAbs(spelling) {
		return nil
	}
	cands := make([]string, 0, len(r.Dirs)+2)
	cands = append(cands, path.Join(path.Dir(from), spelling))
	for _, d := range r.Dirs {
		cands = append(cands, path.Join(d, spelling))
	}
	cands = append(cands, path.Clean(spelling))

	seen := make(map[string]bool, len(cands))
	out := cands[:0]
	for _, c := range cands {
		if strings.HasPrefix(c, "../") || seen[c] {
			continue
		}
		seen[c] = true
		if r.Exists != nil && !r.Exists(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}
