package runtime

import (
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
)

// extToLanguage maps file extensions to grammar names. Headers are parsed
// as C++ since a .h file in a C++ tree is almost always C++.
var extToLanguage = map[string]string{
	".c":   "c",
	".h":   "cpp",
	".hh":  "cpp",
	".hpp": "cpp",
	".hxx": "cpp",
	".cpp": "cpp",
	".cc":  "cpp",
	".cxx": "cpp",
	".ipp": "cpp",
	".tpp": "cpp",
}

var (
	langToGrammar map[string]*sitter.Language
	grammarsOnce  sync.Once
)

func initGrammars() {
	grammarsOnce.Do(func() {
		langToGrammar = map[string]*sitter.Language{
			"c":   c.GetLanguage(),
			"cpp": cpp.GetLanguage(),
		}
	})
}

// LanguageForFile returns the grammar name for a file path based on its
// extension. Returns ("", false) if the extension is not recognized.
func LanguageForFile(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	lang, ok := extToLanguage[ext]
	return lang, ok
}

// ParserForLanguage returns the tree-sitter Language for a grammar name.
// Returns (nil, false) if the language is not supported.
func ParserForLanguage(lang string) (*sitter.Language, bool) {
	initGrammars()
	l, ok := langToGrammar[lang]
	return l, ok
}
