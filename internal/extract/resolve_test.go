package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCandidates(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"n::C::a::B", "n::a::B", "a::B"}, Candidates("a::B", "n::C"))
	assert.Equal(t, []string{"B"}, Candidates("B", ""))
	assert.Equal(t, []string{"a::B"}, Candidates("::a::B", "n::C"))
}

func TestIncludeResolver(t *testing.T) {
	t.Parallel()

	known := map[string]bool{
		"src/a/b.h":        true,
		"include/common.h": true,
		"top.h":            true,
	}
	r := IncludeResolver{Dirs: []string{"include"}, Exists: func(p string) bool { return known[p] }}

	assert.Equal(t, []string{"src/a/b.h"}, r.Resolve("src/a/main.cpp", "b.h"))
	assert.Equal(t, []string{"include/common.h"}, r.Resolve("src/a/main.cpp", "common.h"))
	assert.Equal(t, []string{"top.h"}, r.Resolve("src/a/main.cpp", "top.h"))
	assert.Equal(t, []string{"src/a/b.h"}, r.Resolve("src/x/main.cpp", "../a/b.h"))
	assert.Empty(t, r.Resolve("src/a/main.cpp", "missing.h"))
	assert.Empty(t, r.Resolve("src/a/main.cpp", "/usr/include/stdio.h"))
}

func TestIncludeResolver_NoExistsAcceptsAll(t *testing.T) {
	t.Parallel()

	r := IncludeResolver{}
	assert.Equal(t, []string{"src/b.h", "b.h"}, r.Resolve("src/a.cpp", "b.h"))
}
