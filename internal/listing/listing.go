// Package listing reads and writes method bodies as textual instruction
// listings, one instruction per line grouped into basic blocks.
//
// The YAML form is
//
//	methods:
//	  - name: Obf.Program::Main
//	    blocks:
//	      - - ldstr "seed"
//	        - call System.String Obf.Strings::D(System.String)
package listing

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"inliner/internal/il"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Document is the serialized form of a set of methods.
type Document struct {
	Methods []Method `yaml:"methods" json:"methods"`
}

// Method is one serialized method body.
type Method struct {
	Name   string     `yaml:"name" json:"name"`
	Blocks [][]string `yaml:"blocks" json:"blocks"`
}

// Load reads a YAML listing from path.
func Load(path string) ([]*il.Method, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening listing: %w", err)
	}
	defer f.Close()

	methods, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return methods, nil
}

// Read decodes a YAML listing.
func Read(r io.Reader) ([]*il.Method, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decoding listing: %w", err)
	}
	return doc.Decode()
}

// Decode parses every instruction of the document.
func (d *Document) Decode() ([]*il.Method, error) {
	methods := make([]*il.Method, 0, len(d.Methods))
	for _, dm := range d.Methods {
		m := &il.Method{Name: dm.Name, Blocks: make([]*il.Block, 0, len(dm.Blocks))}
		for bi, lines := range dm.Blocks {
			b := il.NewBlock()
			for i, line := range lines {
				in, err := il.ParseInstruction(line)
				if err != nil {
					return nil, fmt.Errorf("%s: block %d, instruction %d: %w", dm.Name, bi, i, err)
				}
				b.Instructions = append(b.Instructions, in)
			}
			m.Blocks = append(m.Blocks, b)
		}
		methods = append(methods, m)
	}
	return methods, nil
}

// Encode converts methods back to their serialized form.
func Encode(methods []*il.Method) *Document {
	doc := &Document{Methods: make([]Method, 0, len(methods))}
	for _, m := range methods {
		dm := Method{Name: m.Name, Blocks: make([][]string, 0, len(m.Blocks))}
		for _, b := range m.Blocks {
			lines := make([]string, b.Len())
			for i, in := range b.Instructions {
				lines[i] = in.String()
			}
			dm.Blocks = append(dm.Blocks, lines)
		}
		doc.Methods = append(doc.Methods, dm)
	}
	return doc
}

// Write renders methods in the given format.
func Write(w io.Writer, methods []*il.Method, format string) error {
	switch format {
	case FormatJSON:
		bts, err := json.MarshalIndent(Encode(methods), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal listing: %w", err)
		}
		_, err = fmt.Fprintln(w, string(bts))
		return err
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(Encode(methods)); err != nil {
			return fmt.Errorf("failed to marshal listing: %w", err)
		}
		return enc.Close()
	case FormatText, "":
		_, err := io.WriteString(w, Text(methods))
		return err
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// Text renders methods as a plain listing:
//
//	.method Obf.Program::Main
//	  // block 0
//	  ldstr "x"
func Text(methods []*il.Method) string {
	var sb strings.Builder
	for i, m := range methods {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, ".method %s\n", m.Name)
		for bi, b := range m.Blocks {
			fmt.Fprintf(&sb, "  // block %d\n", bi)
			for _, in := range b.Instructions {
				sb.WriteString("  ")
				sb.WriteString(in.String())
				sb.WriteByte('\n')
			}
		}
	}
	return sb.String()
}
