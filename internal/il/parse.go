package il

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrSyntax is returned for malformed instruction or reference text.
var ErrSyntax = errors.New("syntax error")

// ParseInstruction parses the textual form produced by Instruction.String,
// e.g. `ldstr "abc"` or `call System.String NS.T::M(System.Int32)`.
func ParseInstruction(text string) (Instruction, error) {
	text = strings.TrimSpace(text)
	mnemonic, rest, _ := strings.Cut(text, " ")
	rest = strings.TrimSpace(rest)
	op, ok := LookupOpcode(strings.ToLower(mnemonic))
	if !ok {
		return Instruction{}, fmt.Errorf("%w: unknown opcode %q", ErrSyntax, mnemonic)
	}

	operand, err := parseOperand(op, rest)
	if err != nil {
		return Instruction{}, fmt.Errorf("%s: %w", mnemonic, err)
	}
	return Instruction{Op: op, Operand: operand}, nil
}

func parseOperand(op Opcode, rest string) (any, error) {
	switch op {
	case Ldstr:
		s, err := strconv.Unquote(rest)
		if err != nil {
			return nil, fmt.Errorf("%w: bad string literal %s", ErrSyntax, rest)
		}
		return s, nil
	case LdcI4:
		v, err := strconv.ParseInt(rest, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
		}
		return int32(v), nil
	case LdcI8:
		v, err := strconv.ParseInt(rest, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
		}
		return v, nil
	case LdcR4:
		v, err := strconv.ParseFloat(rest, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
		}
		return float32(v), nil
	case LdcR8:
		v, err := strconv.ParseFloat(rest, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
		}
		return v, nil
	case Ldloc, Stloc:
		n, err := strconv.Atoi(rest)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
		}
		return Local(n), nil
	case Ldarg:
		n, err := strconv.Atoi(rest)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
		}
		return Arg(n), nil
	case Ldsfld, Stsfld, Ldfld, Stfld:
		return ParseFieldRef(rest)
	case Call, Callvirt, Newobj:
		m, gim, err := ParseMethodRef(rest)
		if err != nil {
			return nil, err
		}
		if gim != nil {
			return gim, nil
		}
		return m, nil
	case Ldtoken, Box, UnboxAny, Castclass, Isinst, Newarr, Ldelem, Stelem:
		if rest == "" && (op == Ldelem || op == Stelem) {
			return nil, nil
		}
		return ParseTypeRef(rest)
	case Br, Brtrue, Brfalse, Beq, Bne, Blt, Bgt, Leave:
		n, err := strconv.Atoi(rest)
		if err != nil {
			return nil, fmt.Errorf("%w: bad branch target %q", ErrSyntax, rest)
		}
		return n, nil
	case Switch:
		var targets []int
		for _, f := range strings.Split(rest, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(f))
			if err != nil {
				return nil, fmt.Errorf("%w: bad switch target %q", ErrSyntax, f)
			}
			targets = append(targets, n)
		}
		return targets, nil
	}
	if rest != "" {
		return nil, fmt.Errorf("%w: unexpected operand %q", ErrSyntax, rest)
	}
	return nil, nil
}

// ParseTypeRef parses a type name such as "System.Byte[]" or
// "System.Collections.Generic.List`1<System.String>".
func ParseTypeRef(text string) (*TypeRef, error) {
	p := &refParser{s: strings.TrimSpace(text)}
	t, err := p.typeRef()
	if err != nil {
		return nil, err
	}
	if err := p.end(); err != nil {
		return nil, err
	}
	return t, nil
}

// ParseFieldRef parses "Type Decl::name".
func ParseFieldRef(text string) (*FieldRef, error) {
	p := &refParser{s: strings.TrimSpace(text)}
	typ, err := p.typeRef()
	if err != nil {
		return nil, err
	}
	p.skipSpaces()
	decl, err := p.typeRef()
	if err != nil {
		return nil, err
	}
	if !p.eat("::") {
		return nil, p.errorf("expected ::")
	}
	name := p.name("")
	if name == "" {
		return nil, p.errorf("missing field name")
	}
	if err := p.end(); err != nil {
		return nil, err
	}
	return &FieldRef{DeclaringType: decl, Name: name, Type: typ}, nil
}

// ParseMethodRef parses "[instance] Ret Decl::Name[<Args>|``N](Params)".
// A non-nil MethodSpec is returned when explicit generic arguments are given.
func ParseMethodRef(text string) (*MethodRef, *MethodSpec, error) {
	p := &refParser{s: strings.TrimSpace(text)}
	m := &MethodRef{}
	if p.eat("instance ") {
		m.HasThis = true
		p.skipSpaces()
	}
	ret, err := p.typeRef()
	if err != nil {
		return nil, nil, err
	}
	m.ReturnType = ret
	p.skipSpaces()
	if m.DeclaringType, err = p.typeRef(); err != nil {
		return nil, nil, err
	}
	if !p.eat("::") {
		return nil, nil, p.errorf("expected ::")
	}
	if m.Name = p.name("`<("); m.Name == "" {
		return nil, nil, p.errorf("missing method name")
	}

	var genericArgs []*TypeRef
	switch {
	case p.eat("``"):
		start := p.pos
		for p.pos < len(p.s) && p.s[p.pos] >= '0' && p.s[p.pos] <= '9' {
			p.pos++
		}
		n, err := strconv.Atoi(p.s[start:p.pos])
		if err != nil {
			return nil, nil, p.errorf("bad generic arity")
		}
		m.GenericParams = n
	case p.peek() == '<':
		if genericArgs, err = p.typeList('<', '>'); err != nil {
			return nil, nil, err
		}
		m.GenericParams = len(genericArgs)
	}

	if p.peek() != '(' {
		return nil, nil, p.errorf("expected (")
	}
	if m.Params, err = p.typeList('(', ')'); err != nil {
		return nil, nil, err
	}
	if err := p.end(); err != nil {
		return nil, nil, err
	}
	if genericArgs != nil {
		return m, &MethodSpec{Method: m, GenericArgs: genericArgs}, nil
	}
	return m, nil, nil
}

type refParser struct {
	s   string
	pos int
}

func (p *refParser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s at offset %d in %q", ErrSyntax, fmt.Sprintf(format, args...), p.pos, p.s)
}

func (p *refParser) peek() byte {
	if p.pos >= len(p.s) {
		return 0
	}
	return p.s[p.pos]
}

func (p *refParser) eat(prefix string) bool {
	if strings.HasPrefix(p.s[p.pos:], prefix) {
		p.pos += len(prefix)
		return true
	}
	return false
}

func (p *refParser) skipSpaces() {
	for p.pos < len(p.s) && p.s[p.pos] == ' ' {
		p.pos++
	}
}

func (p *refParser) end() error {
	p.skipSpaces()
	if p.pos != len(p.s) {
		return p.errorf("trailing text")
	}
	return nil
}

// name reads up to a delimiter, "::" or any byte in extra.
func (p *refParser) name(extra string) string {
	start := p.pos
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		if strings.IndexByte("<>,()[] ", c) >= 0 || strings.IndexByte(extra, c) >= 0 {
			break
		}
		if strings.HasPrefix(p.s[p.pos:], "::") {
			break
		}
		p.pos++
	}
	return p.s[start:p.pos]
}

func (p *refParser) typeRef() (*TypeRef, error) {
	name := p.name("")
	if name == "" {
		return nil, p.errorf("expected type name")
	}
	t := &TypeRef{Name: name}
	if p.peek() == '<' {
		args, err := p.typeList('<', '>')
		if err != nil {
			return nil, err
		}
		t.GenericArgs = args
	}
	for p.eat("[]") {
		t.Array++
	}
	return t, nil
}

func (p *refParser) typeList(open, close byte) ([]*TypeRef, error) {
	if p.peek() != open {
		return nil, p.errorf("expected %c", open)
	}
	p.pos++
	list := []*TypeRef{}
	p.skipSpaces()
	if p.peek() == close {
		p.pos++
		return list, nil
	}
	for {
		p.skipSpaces()
		t, err := p.typeRef()
		if err != nil {
			return nil, err
		}
		list = append(list, t)
		p.skipSpaces()
		switch p.peek() {
		case ',':
			p.pos++
		case close:
			p.pos++
			return list, nil
		default:
			return nil, p.errorf("expected , or %c", close)
		}
	}
}
