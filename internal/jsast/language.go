package jsast

import (
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Language selects the tree-sitter grammar used to parse a program.
type Language string

const (
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
)

// grammar returns the tree-sitter language for l.
func (l Language) grammar() *sitter.Language {
	switch l {
	case LangTypeScript:
		return typescript.GetLanguage()
	case LangTSX:
		return tsx.GetLanguage()
	default:
		return javascript.GetLanguage()
	}
}

// LanguageForPath picks a grammar from a file extension.
// Returns false for files that are not plain script modules (including .svelte,
// whose scripts are located with ScriptBlocks first).
func LanguageForPath(path string) (Language, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".mjs", ".cjs", ".jsx":
		return LangJavaScript, true
	case ".ts", ".mts", ".cts":
		return LangTypeScript, true
	case ".tsx":
		return LangTSX, true
	default:
		return "", false
	}
}

// IsSvelte reports whether path is a Svelte component.
func IsSvelte(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".svelte")
}

// Supported reports whether the rewriter understands files at path.
func Supported(path string) bool {
	if IsSvelte(path) {
		return true
	}
	_, ok := LanguageForPath(path)
	return ok
}
