package extract

import (
	"path"
	"regexp"
	"strings"
)

// NonLakosianGroup is the package group collecting code that does not
// follow the package naming convention.
const NonLakosianGroup = "non-lakosian group"

var standaloneComponentRe = regexp.MustCompile(`/([a-zA-Z]{1,2})_([a-zA-Z0-9_]+)\.`)

// ThirdPartyRule maps paths matching Pattern to the package group Group.
type ThirdPartyRule struct {
	Pattern *regexp.Regexp
	Group   string
}

// PackageInfo describes a package or package group to create.
type PackageInfo struct {
	QualifiedName string
	Name          string
	DiskPath      string
}

// Placement is the physical home of a file: its component, the package
// owning the component and, unless the package is standalone, the group
// owning the package.
type Placement struct {
	Group     *PackageInfo
	Package   PackageInfo
	Component PackageInfo
}

// Namer places files into the package hierarchy by their path.
type Namer struct {
	// NonLakosianDirs are root-relative directories whose contents go to
	// the non-Lakosian group regardless of naming.
	NonLakosianDirs []string
	ThirdParty      []ThirdPartyRule
}

// Place computes the placement of the root-relative, slash-separated file
// path p. Rules are tried in order: third-party mapping, non-Lakosian
// directories, standalone package, package inside a group, and finally the
// non-Lakosian group.
func (n Namer) Place(p string) Placement {
	p = path.Clean(p)
	dir := path.Dir(p)
	if dir == "." {
		dir = ""
	}
	base := path.Base(p)
	stem := strings.TrimSuffix(base, path.Ext(base))
	dirName := path.Base(dir)
	if dir == "" {
		dirName = ""
	}

	var pl Placement
	lakosian := false
	groupQN, groupName := "", ""

	switch tp := n.thirdParty(p); {
	case tp != "":
		groupQN, groupName = tp, tp
	case n.nonLakosian(dir):
		groupQN, groupName = NonLakosianGroup, NonLakosianGroup
	case isStandaloneComponent(p):
		pl.Package = PackageInfo{QualifiedName: "standalones/" + dirName, Name: dirName, DiskPath: dir}
		pl.Component = PackageInfo{QualifiedName: pl.Package.QualifiedName + "/" + stem, Name: stem, DiskPath: dir}
		return pl
	case isGroupedComponent(p):
		grp := path.Base(path.Dir(dir))
		groupQN, groupName = "groups/"+grp, grp
		lakosian = true
	default:
		groupQN, groupName = NonLakosianGroup, NonLakosianGroup
	}

	group := PackageInfo{QualifiedName: groupQN, Name: groupName}
	if d := path.Dir(dir); d != "." {
		group.DiskPath = d
	}
	if dirName == "" {
		pl.Package = group
	} else {
		pl.Group = &group
		pl.Package = PackageInfo{QualifiedName: groupQN + "/" + dirName, Name: dirName, DiskPath: dir}
	}

	compQN := path.Join(dir, stem)
	if lakosian {
		compQN = pl.Package.QualifiedName + "/" + stem
	}
	pl.Component = PackageInfo{QualifiedName: compQN, Name: stem, DiskPath: dir}
	return pl
}

func (n Namer) thirdParty(p string) string {
	for _, r := range n.ThirdParty {
		if r.Pattern != nil && r.Pattern.MatchString(p) {
			return r.Group
		}
	}
	return ""
}

func (n Namer) nonLakosian(dir string) bool {
	for _, d := range n.NonLakosianDirs {
		d = strings.Trim(path.Clean(d), "/")
		if d == "." || d == "" {
			return true
		}
		if dir == d || strings.HasPrefix(dir, d+"/") {
			return true
		}
	}
	return false
}

// isStandaloneComponent matches <prefix>_<pkg>_<comp> files living in a
// directory named after their prefix, or after the package part of their
// name.
func isStandaloneComponent(p string) bool {
	if !standaloneComponentRe.MatchString(p) {
		return false
	}
	comp := path.Base(p)
	pkg := path.Base(path.Dir(p))
	if strings.HasPrefix(comp, pkg) {
		return true
	}
	parts := strings.Split(comp, "_")
	return len(parts) >= 3 && parts[1] == pkg
}

// isGroupedComponent matches <grp>/<pkg>/<pkg>_<comp> where the group name
// has three characters and the package name starts with it. A "+" in the
// package name separates an optional suffix.
func isGroupedComponent(p string) bool {
	comp := path.Base(p)
	dir := path.Dir(p)
	pkg := path.Base(dir)
	grp := path.Base(path.Dir(dir))
	if dir == "." || path.Dir(dir) == "." || len(grp) != 3 {
		return false
	}
	if strings.HasPrefix(comp, pkg+"_") && strings.HasPrefix(pkg, grp) {
		return true
	}
	if head, _, ok := strings.Cut(pkg, "+"); ok && !strings.Contains(pkg[len(head)+1:], "+") {
		return strings.HasPrefix(comp, head+"_") && strings.HasPrefix(head, grp)
	}
	return false
}
