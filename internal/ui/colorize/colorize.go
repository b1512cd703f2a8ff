// Package colorize renders instruction listings and run summaries for a
// terminal.
package colorize

import (
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// IL lexes the textual listings written by the listing package.
var IL = lexers.Register(chroma.MustNewLexer(
	&chroma.Config{
		Name:      "IL",
		Aliases:   []string{"il", "cil", "msil"},
		Filenames: []string{"*.il"},
	},
	func() chroma.Rules {
		return chroma.Rules{
			"root": {
				{Pattern: `(\.method)(\s+)(\S+)`, Type: chroma.ByGroups(chroma.KeywordDeclaration, chroma.Text, chroma.NameFunction)},
				{Pattern: `//[^\n]*`, Type: chroma.CommentSingle},
				{Pattern: `"(\\\\|\\"|[^"])*"`, Type: chroma.LiteralString},
				{Pattern: `(?m)^(\s*)([a-z][a-z0-9]*(?:\.[a-z0-9]+)*)`, Type: chroma.ByGroups(chroma.Text, chroma.Keyword)},
				{Pattern: `\binstance\b`, Type: chroma.KeywordPseudo},
				{Pattern: `!!?\d+`, Type: chroma.NameBuiltinPseudo},
				{Pattern: `::`, Type: chroma.Operator},
				{Pattern: `-?\d+(\.\d+)?([eE][+-]?\d+)?\b`, Type: chroma.LiteralNumber},
				{Pattern: "[A-Za-z_][\\w.`]*", Type: chroma.Name},
				{Pattern: `[(),<>\[\]]`, Type: chroma.Punctuation},
				{Pattern: `\n`, Type: chroma.Text},
				{Pattern: `[^\S\n]+`, Type: chroma.Text},
				{Pattern: `.`, Type: chroma.Text},
			},
		}
	},
))

// Enabled reports whether output should carry ANSI colors.
func Enabled() bool {
	return os.Getenv("INLINER_NO_COLOR") == ""
}

// getListingStyle returns the listing style with fallbacks
func getListingStyle() *chroma.Style {
	candidates := []string{"il-dark", "dracula", "monokai"}
	for _, name := range candidates {
		if style := styles.Get(name); style != nil {
			return style
		}
	}
	return styles.Fallback
}

// getTerminalFormatter returns an appropriate terminal formatter
func getTerminalFormatter() chroma.Formatter {
	candidates := []string{"terminal16m", "terminal256"}
	for _, name := range candidates {
		if formatter := formatters.Get(name); formatter != nil {
			return formatter
		}
	}
	return formatters.Fallback
}

// Listing applies syntax highlighting to an instruction listing. The input
// is returned unchanged when colors are disabled.
func Listing(code string) (string, error) {
	if !Enabled() {
		return code, nil
	}

	iterator, err := IL.Tokenise(nil, code)
	if err != nil {
		return code, err
	}

	var buf strings.Builder
	if err := getTerminalFormatter().Format(&buf, getListingStyle(), iterator); err != nil {
		return code, err
	}
	return buf.String(), nil
}

// StripANSI removes ANSI escape codes.
func StripANSI(s string) string {
	var result strings.Builder
	inEscape := false

	for _, r := range s {
		if r == '\x1b' {
			inEscape = true
		} else if inEscape {
			if r == 'm' {
				inEscape = false
			}
		} else {
			result.WriteRune(r)
		}
	}

	return result.String()
}
