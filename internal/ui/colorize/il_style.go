package colorize

import (
	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"
)

// ILDark is the listing style, matched to the summary palette.
var ILDark = styles.Register(chroma.MustNewStyle("il-dark", chroma.StyleEntries{
	chroma.Text:       "#FFFFFF",
	chroma.Background: "bg:#1e1e1e",
	chroma.Comment:    "#4F4F4F", // block separators in gray

	chroma.Keyword:            "#FFFFFF", // opcodes in white
	chroma.KeywordDeclaration: "#EBC2ED",
	chroma.KeywordPseudo:      "#7C9C9D",
	chroma.NameFunction:       "#FFD700", // method headers in gold
	chroma.Name:               "#7C9C9D", // type and member names in teal
	chroma.NameBuiltinPseudo:  "#7C9C9D",

	chroma.LiteralNumber: "#FF5F87",
	chroma.LiteralString: "#EACD53", // recovered literals stand out

	chroma.Operator:    "#FFFFFF",
	chroma.Punctuation: "#FFFFFF",
}))
