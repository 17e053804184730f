package rules

import (
	"strings"

	"github.com/jward/strata/internal/store"
)

// LakosianResult classifies a node against the package and component
// naming conventions. It is advisory and never blocks a mutation.
type LakosianResult uint8

const (
	IsLakosian LakosianResult = iota
	PackageNameInvalidNumberOfChars
	PackageParentIsNotGroup
	PackagePrefixDiffersFromGroup
	PackageGroupNameInvalidNumberOfChars
	ComponentHasNoPackage
	ComponentDoesntStartWithParentName
)

var lakosianNames = [...]string{
	IsLakosian:                           "lakosian",
	PackageNameInvalidNumberOfChars:      "package name must have 3 to 6 characters",
	PackageParentIsNotGroup:              "package parent is not a package group",
	PackagePrefixDiffersFromGroup:        "package name does not start with its group name",
	PackageGroupNameInvalidNumberOfChars: "package group name must have 3 characters",
	ComponentHasNoPackage:                "component has no package",
	ComponentDoesntStartWithParentName:   "component name does not start with its package name",
}

func (r LakosianResult) String() string {
	if int(r) < len(lakosianNames) {
		return lakosianNames[r]
	}
	return "unknown"
}

// IsLakosian classifies uid. Standalone packages named s_xxx carry 3 to 6
// characters after the prefix; packages inside a group start with the
// group name and have 3 to 6 characters; groups have exactly 3. A '+' at
// index 3 marks an externally named package and only the prefix counts.
// Components must start with their package's name and an underscore.
// Logical entities are always Lakosian.
func (e *Engine) IsLakosian(uid store.UniqueID) (LakosianResult, error) {
	n := e.load(uid)
	if n == nil {
		return 0, fail("is lakosian", ErrInvalidEntity, uid.String())
	}
	switch n.kind() {
	case store.KindPackage:
		return e.packageLakosian(n), nil
	case store.KindComponent:
		p := e.load(n.parent)
		if !p.is(store.KindPackage) {
			return ComponentHasNoPackage, nil
		}
		if prefix, _ := canonicalName(p.name); !strings.HasPrefix(n.name, prefix+"_") {
			return ComponentDoesntStartWithParentName, nil
		}
	}
	return IsLakosian, nil
}

func (e *Engine) packageLakosian(n *node) LakosianResult {
	if n.parent.IsZero() {
		if strings.HasPrefix(n.name, "s_") {
			if l := len(n.name) - 2; l < 3 || l > 6 {
				return PackageNameInvalidNumberOfChars
			}
			return IsLakosian
		}
		if len(n.name) != 3 {
			return PackageGroupNameInvalidNumberOfChars
		}
		return IsLakosian
	}

	p := e.load(n.parent)
	if !p.isGroup() {
		return PackageParentIsNotGroup
	}
	active, plus := canonicalName(n.name)
	if plus && active != p.name || !plus && !strings.HasPrefix(active, p.name) {
		return PackagePrefixDiffersFromGroup
	}
	if len(active) < 3 || len(active) > 6 {
		return PackageNameInvalidNumberOfChars
	}
	return IsLakosian
}

// canonicalName strips the externally driven suffix of names like
// "bsl+bslhdrs". The bool reports whether there was one; such a name must
// then be exactly its group's name.
func canonicalName(name string) (string, bool) {
	if strings.IndexByte(name, '+') == 3 {
		return name[:3], true
	}
	return name, false
}
