package jsparse

import (
	"path/filepath"
	"strings"
	"sync"
	"unsafe"

	"github.com/alexaandru/go-sitter-forest/javascript"
	"github.com/alexaandru/go-sitter-forest/tsx"
	"github.com/alexaandru/go-sitter-forest/typescript"
	sitter "github.com/alexaandru/go-tree-sitter-bare"
	"github.com/src-d/enry/v2"
)

// Grammar names a tree-sitter grammar used for module sources.
type Grammar string

// Supported grammars.
const (
	JavaScript Grammar = "javascript"
	TypeScript Grammar = "typescript"
	TSX        Grammar = "tsx"
)

var grammarFuncs = map[Grammar]func() unsafe.Pointer{
	JavaScript: javascript.GetLanguage,
	TypeScript: typescript.GetLanguage,
	TSX:        tsx.GetLanguage,
}

var languageCache sync.Map

// language returns the tree-sitter Language for grammar, or nil if unknown.
func language(grammar Grammar) *sitter.Language {
	if cached, ok := languageCache.Load(grammar); ok {
		lang, castOK := cached.(*sitter.Language)
		if castOK {
			return lang
		}
	}

	fn, ok := grammarFuncs[grammar]
	if !ok {
		return nil
	}

	lang := sitter.NewLanguage(fn())
	languageCache.Store(grammar, lang)

	return lang
}

// extensionGrammars covers extensions linguist does not classify as JS/TS
// or classifies ambiguously.
var extensionGrammars = map[string]Grammar{
	".js":  JavaScript,
	".jsx": JavaScript,
	".mjs": JavaScript,
	".cjs": JavaScript,
	".ts":  TypeScript,
	".mts": TypeScript,
	".cts": TypeScript,
	".tsx": TSX,
}

// Detect picks the grammar for a file. Content-based classification from
// enry decides ambiguous extensions (a `.ts` file may be a Qt translation
// XML document); ok is false when the file is not JavaScript or TypeScript.
func Detect(filename string, content []byte) (Grammar, bool) {
	ext := strings.ToLower(filepath.Ext(filename))

	fallback, known := extensionGrammars[ext]
	if !known {
		return "", false
	}

	if ext == ".tsx" {
		return TSX, true
	}

	switch enry.GetLanguage(filepath.Base(filename), content) {
	case "TypeScript":
		return TypeScript, true
	case "TSX":
		return TSX, true
	case "JavaScript", "JSX":
		return JavaScript, true
	case "":
		return fallback, true
	default:
		return "", false
	}
}

// Supported reports whether filename has a JavaScript or TypeScript extension.
func Supported(filename string) bool {
	_, ok := extensionGrammars[strings.ToLower(filepath.Ext(filename))]

	return ok
}
