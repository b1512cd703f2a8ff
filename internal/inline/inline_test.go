package inline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"inliner/internal/il"
	"inliner/internal/logging"
)

const (
	decrypterD  = "System.String Obf.Strings::D(System.String)"
	decrypterD2 = "System.String Obf.Strings::D2(System.String,System.String)"
	internCall  = "call System.String System.String::Intern(System.String)"
)

func mustMethodRef(t *testing.T, text string) *il.MethodRef {
	t.Helper()
	m, _, err := il.ParseMethodRef(text)
	if err != nil {
		t.Fatalf("ParseMethodRef(%q): %v", text, err)
	}
	return m
}

func mustBlock(t *testing.T, lines ...string) *il.Block {
	t.Helper()
	b := il.NewBlock()
	for _, line := range lines {
		in, err := il.ParseInstruction(line)
		if err != nil {
			t.Fatalf("ParseInstruction(%q): %v", line, err)
		}
		b.Instructions = append(b.Instructions, in)
	}
	return b
}

func listing(lines ...string) string {
	return strings.Join(lines, "\n")
}

func constant(v any) Handler {
	return func(*il.MethodRef, *il.MethodSpec, []any) (any, error) {
		return v, nil
	}
}

// prefix returns "A:" + the first string argument.
func prefix(_ *il.MethodRef, _ *il.MethodSpec, args []any) (any, error) {
	return "A:" + args[0].(string), nil
}

func testLogger(buf *bytes.Buffer) *log.Logger {
	lc := logging.NewLoggerWithWriter(buf)
	lc.SetLevel(log.DebugLevel)
	return lc.Logger
}

func TestStringInlinerScenario(t *testing.T) {
	var buf bytes.Buffer
	si := NewStringInliner(WithLogger(testLogger(&buf)))
	d := mustMethodRef(t, decrypterD)
	si.Add(d, constant("token_42"))

	b := mustBlock(t,
		`ldstr "seed"`,
		"call "+decrypterD,
		"castclass System.String",
		internCall,
	)
	changed, err := si.Inline(&il.Method{Name: "M", Blocks: []*il.Block{b}})
	if err != nil {
		t.Fatalf("Inline: %v", err)
	}
	if !changed {
		t.Fatal("Inline reported no change")
	}
	if got, want := b.String(), `ldstr "token_42"`; got != want {
		t.Errorf("block =\n%s\nwant\n%s", got, want)
	}
	if !strings.Contains(buf.String(), "token_42") {
		t.Errorf("log does not mention the literal:\n%s", buf.String())
	}
	if used := si.Used(); len(used) != 1 || used[0] != d.Identity() {
		t.Errorf("Used() = %v", used)
	}
}

func TestStringCleanup(t *testing.T) {
	tests := []struct {
		name  string
		after []string
		want  string
	}{
		{
			name:  "cast removed",
			after: []string{"castclass System.String", "ret"},
			want:  listing(`ldstr "v"`, "ret"),
		},
		{
			name:  "intern removed",
			after: []string{internCall, "ret"},
			want:  listing(`ldstr "v"`, "ret"),
		},
		{
			name:  "cast then intern removed",
			after: []string{"castclass System.String", internCall, "ret"},
			want:  listing(`ldstr "v"`, "ret"),
		},
		{
			name:  "intern before cast keeps cast",
			after: []string{internCall, "castclass System.String"},
			want:  listing(`ldstr "v"`, "castclass System.String"),
		},
		{
			name:  "cast to other type kept",
			after: []string{"castclass System.Object", "ret"},
			want:  listing(`ldstr "v"`, "castclass System.Object", "ret"),
		},
		{
			name:  "other call kept",
			after: []string{"call System.String System.String::Trim(System.String)"},
			want:  listing(`ldstr "v"`, "call System.String System.String::Trim(System.String)"),
		},
		{
			name:  "literal at end of block",
			after: nil,
			want:  `ldstr "v"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			si := NewStringInliner()
			si.Add(mustMethodRef(t, decrypterD), constant("v"))
			lines := append([]string{`ldstr "seed"`, "call " + decrypterD}, tt.after...)
			b := mustBlock(t, lines...)

			if _, err := si.Inline(&il.Method{Name: "M", Blocks: []*il.Block{b}}); err != nil {
				t.Fatal(err)
			}
			if got := b.String(); got != tt.want {
				t.Errorf("block =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestLeftUnchanged(t *testing.T) {
	lines := []string{`ldstr "seed"`, "call " + decrypterD, "castclass System.String", "ret"}
	tests := []struct {
		name     string
		register func(si *StringInliner)
		lines    []string
	}{
		{
			name: "non-string value",
			register: func(si *StringInliner) {
				si.Add(mustMethodRef(t, decrypterD), constant(int32(5)))
			},
			lines: lines,
		},
		{
			name: "nil value",
			register: func(si *StringInliner) {
				si.Add(mustMethodRef(t, decrypterD), constant(nil))
			},
			lines: lines,
		},
		{
			name: "unregistered target",
			register: func(si *StringInliner) {
				si.Add(mustMethodRef(t, "System.String Obf.Strings::Other(System.String)"), constant("x"))
			},
			lines: lines,
		},
		{
			name: "argument from method parameter",
			register: func(si *StringInliner) {
				si.Add(mustMethodRef(t, decrypterD), constant("x"))
			},
			lines: []string{"ldarg 0", "call " + decrypterD, "ret"},
		},
		{
			name: "branch before call",
			register: func(si *StringInliner) {
				si.Add(mustMethodRef(t, decrypterD2), constant("x"))
			},
			lines: []string{`ldstr "a"`, "brtrue 2", `ldstr "b"`, "call " + decrypterD2},
		},
		{
			name: "target cannot return a string",
			register: func(si *StringInliner) {
				si.Add(mustMethodRef(t, "System.Int32 Obf.Strings::N(System.String)"), constant("x"))
			},
			lines: []string{`ldstr "seed"`, "call System.Int32 Obf.Strings::N(System.String)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			si := NewStringInliner()
			tt.register(si)
			b := mustBlock(t, tt.lines...)
			before := b.Clone()

			changed, err := si.Inline(&il.Method{Name: "M", Blocks: []*il.Block{b}})
			if err != nil {
				t.Fatal(err)
			}
			if changed {
				t.Error("Inline reported a change")
			}
			if b.String() != before.String() {
				t.Errorf("block modified:\n%s\nwas\n%s", b, before)
			}
			if len(si.Used()) != 0 {
				t.Errorf("Used() = %v, want none", si.Used())
			}
		})
	}
}

func TestMultipleSitesPerBlock(t *testing.T) {
	si := NewStringInliner()
	si.Add(mustMethodRef(t, decrypterD), prefix)
	si.Add(mustMethodRef(t, decrypterD2), func(_ *il.MethodRef, _ *il.MethodSpec, args []any) (any, error) {
		return args[0].(string) + "|" + args[1].(string), nil
	})

	b := mustBlock(t,
		`ldstr "a"`,
		"call "+decrypterD,
		"stloc 0",
		`ldstr "bb"`,
		`ldstr "x"`,
		"call "+decrypterD2,
		"castclass System.String",
		"stloc 1",
		`ldstr "c"`,
		"call "+decrypterD,
		internCall,
		"stloc 2",
	)
	changed, err := si.Inline(&il.Method{Name: "M", Blocks: []*il.Block{b}})
	if err != nil || !changed {
		t.Fatalf("Inline = %v, %v", changed, err)
	}

	want := listing(
		`ldstr "A:a"`,
		"stloc 0",
		`ldstr "bb|x"`,
		"stloc 1",
		`ldstr "A:c"`,
		"stloc 2",
	)
	if got := b.String(); got != want {
		t.Errorf("block =\n%s\nwant\n%s", got, want)
	}
}

func TestSortForPatching(t *testing.T) {
	results := []*CallResult{
		{BlockIndex: 1, Start: 0},
		{BlockIndex: 0, Start: 2},
		{BlockIndex: 1, Start: 5},
		{BlockIndex: 0, Start: 7},
	}
	sortForPatching(results)
	var got []string
	for _, r := range results {
		got = append(got, fmt.Sprintf("%d:%d", r.BlockIndex, r.Start))
	}
	if want := "0:7 0:2 1:5 1:0"; strings.Join(got, " ") != want {
		t.Errorf("order = %v, want %s", got, want)
	}
}

func TestArgumentsPassedToHandler(t *testing.T) {
	si := NewStringInliner()
	d := mustMethodRef(t, "System.String Obf.Strings::Get(System.String,System.Int32)")
	var gotArgs []any
	si.Add(d, func(m *il.MethodRef, gim *il.MethodSpec, args []any) (any, error) {
		if m.Identity() != d.Identity() || gim != nil {
			return nil, fmt.Errorf("unexpected target %v %v", m, gim)
		}
		gotArgs = args
		return "ok", nil
	})

	b := mustBlock(t,
		`ldstr "key"`,
		"stloc 3",
		"ldloc 3",
		"ldc.i4 5",
		"ldc.i4 3",
		"xor",
		"call System.String Obf.Strings::Get(System.String,System.Int32)",
	)
	if _, err := si.Inline(&il.Method{Name: "M", Blocks: []*il.Block{b}}); err != nil {
		t.Fatal(err)
	}
	if len(gotArgs) != 2 || gotArgs[0] != "key" || gotArgs[1] != int32(6) {
		t.Errorf("handler args = %#v", gotArgs)
	}
	if want := listing(`ldstr "key"`, "stloc 3", `ldstr "ok"`); b.String() != want {
		t.Errorf("block =\n%s\nwant\n%s", b, want)
	}
}

func TestGenericInstantiation(t *testing.T) {
	si := NewStringInliner()
	si.Add(mustMethodRef(t, "!!0 Obf.Strings::G``1(System.Int32)"), func(m *il.MethodRef, gim *il.MethodSpec, args []any) (any, error) {
		if gim == nil || len(gim.GenericArgs) != 1 || !gim.GenericArgs[0].Is(il.TypeString) {
			return nil, fmt.Errorf("missing instantiation: %v", gim)
		}
		return fmt.Sprintf("g%d", args[0]), nil
	})

	b := mustBlock(t, "ldc.i4 7", "call !!0 Obf.Strings::G<System.String>(System.Int32)")
	if _, err := si.Inline(&il.Method{Name: "M", Blocks: []*il.Block{b}}); err != nil {
		t.Fatal(err)
	}
	if got := b.String(); got != `ldstr "g7"` {
		t.Errorf("block = %s", got)
	}
}

func TestIdempotent(t *testing.T) {
	si := NewStringInliner()
	si.Add(mustMethodRef(t, decrypterD), prefix)
	m := &il.Method{Name: "M", Blocks: []*il.Block{
		mustBlock(t, `ldstr "a"`, "call "+decrypterD, "pop"),
		mustBlock(t, `ldstr "b"`, "call "+decrypterD, "ret"),
	}}

	if changed, err := si.Inline(m); err != nil || !changed {
		t.Fatalf("first run = %v, %v", changed, err)
	}
	first := m.Blocks[0].String() + "\n" + m.Blocks[1].String()

	changed, err := si.Inline(m)
	if err != nil || changed {
		t.Fatalf("second run = %v, %v", changed, err)
	}
	if second := m.Blocks[0].String() + "\n" + m.Blocks[1].String(); second != first {
		t.Errorf("second run changed the method:\n%s\nwas\n%s", second, first)
	}
}

func TestHandlerFailureKeepsEarlierPatches(t *testing.T) {
	errBad := errors.New("bad ciphertext")
	si := NewStringInliner(WithLogger(testLogger(new(bytes.Buffer))))
	d := mustMethodRef(t, decrypterD)
	si.Add(d, func(_ *il.MethodRef, _ *il.MethodSpec, args []any) (any, error) {
		if args[0] == "bad" {
			return nil, errBad
		}
		return "A:" + args[0].(string), nil
	})

	m := &il.Method{Name: "Obf.Program::Main", Blocks: []*il.Block{
		mustBlock(t, `ldstr "ok"`, "call "+decrypterD, "pop"),
		mustBlock(t, `ldstr "bad"`, "call "+decrypterD, "pop", `ldstr "late"`, "call "+decrypterD, "pop"),
	}}

	changed, err := si.Inline(m)
	if !changed {
		t.Error("expected patches before the failure to be applied")
	}
	var herr *HandlerError
	if !errors.As(err, &herr) {
		t.Fatalf("error = %v, want *HandlerError", err)
	}
	if !errors.Is(err, errBad) {
		t.Errorf("error does not wrap the handler failure: %v", err)
	}
	if herr.Method != "Obf.Program::Main" || herr.Block != 1 || herr.Index != 1 || herr.Target != d.Identity() {
		t.Errorf("HandlerError = %+v", herr)
	}

	if got, want := m.Blocks[0].String(), listing(`ldstr "A:ok"`, "pop"); got != want {
		t.Errorf("block 0 =\n%s\nwant\n%s", got, want)
	}
	want := listing(`ldstr "bad"`, "call "+decrypterD, "pop", `ldstr "A:late"`, "pop")
	if got := m.Blocks[1].String(); got != want {
		t.Errorf("block 1 =\n%s\nwant\n%s", got, want)
	}
}

func TestHandlerPanicIsReported(t *testing.T) {
	si := NewStringInliner(WithLogger(testLogger(new(bytes.Buffer))))
	si.Add(mustMethodRef(t, decrypterD), func(*il.MethodRef, *il.MethodSpec, []any) (any, error) {
		panic("index out of range")
	})
	b := mustBlock(t, `ldstr "a"`, "call "+decrypterD)

	changed, err := si.Inline(&il.Method{Name: "M", Blocks: []*il.Block{b}})
	var herr *HandlerError
	if changed || !errors.As(err, &herr) {
		t.Fatalf("Inline = %v, %v", changed, err)
	}
	if !strings.Contains(err.Error(), "index out of range") {
		t.Errorf("error = %v", err)
	}
}

func TestValueInliners(t *testing.T) {
	t.Run("int32", func(t *testing.T) {
		vi := NewInt32Inliner()
		vi.Add(mustMethodRef(t, "System.Int32 Obf.Ints::I(System.Int32)"), func(_ *il.MethodRef, _ *il.MethodSpec, args []any) (any, error) {
			return args[0].(int32) * 2, nil
		})
		b := mustBlock(t, "ldc.i4 21", "call System.Int32 Obf.Ints::I(System.Int32)", "ret")
		if _, err := vi.Inline(&il.Method{Name: "M", Blocks: []*il.Block{b}}); err != nil {
			t.Fatal(err)
		}
		if got := b.String(); got != listing("ldc.i4 42", "ret") {
			t.Errorf("block = %s", got)
		}
	})

	t.Run("bool", func(t *testing.T) {
		vi := NewBooleanInliner()
		vi.Add(mustMethodRef(t, "System.Boolean Obf.Ints::B()"), constant(true))
		b := mustBlock(t, "call System.Boolean Obf.Ints::B()", "brtrue 1")
		if _, err := vi.Inline(&il.Method{Name: "M", Blocks: []*il.Block{b}}); err != nil {
			t.Fatal(err)
		}
		if got := b.String(); got != listing("ldc.i4 1", "brtrue 1") {
			t.Errorf("block = %s", got)
		}
	})

	t.Run("wrong kind", func(t *testing.T) {
		vi := NewInt64Inliner()
		vi.Add(mustMethodRef(t, "System.Int64 Obf.Ints::L()"), constant(int32(1)))
		b := mustBlock(t, "call System.Int64 Obf.Ints::L()")
		changed, err := vi.Inline(&il.Method{Name: "M", Blocks: []*il.Block{b}})
		if err != nil || changed {
			t.Fatalf("Inline = %v, %v", changed, err)
		}
		if got := b.String(); got != "call System.Int64 Obf.Ints::L()" {
			t.Errorf("block = %s", got)
		}
	})

	t.Run("double", func(t *testing.T) {
		vi := NewDoubleInliner()
		vi.Add(mustMethodRef(t, "System.Double Obf.Ints::F()"), constant(2.5))
		b := mustBlock(t, "call System.Double Obf.Ints::F()")
		if _, err := vi.Inline(&il.Method{Name: "M", Blocks: []*il.Block{b}}); err != nil {
			t.Fatal(err)
		}
		if got := b.String(); got != "ldc.r8 2.5" {
			t.Errorf("block = %s", got)
		}
	})
}

func TestPass(t *testing.T) {
	errBad := errors.New("bad")
	si := NewStringInliner(WithLogger(testLogger(new(bytes.Buffer))))
	si.Add(mustMethodRef(t, decrypterD), func(_ *il.MethodRef, _ *il.MethodSpec, args []any) (any, error) {
		if args[0] == "bad" {
			return nil, errBad
		}
		return "A:" + args[0].(string), nil
	})

	nested := &il.Method{Name: "Nested", Blocks: []*il.Block{
		mustBlock(t, `ldstr "x"`, "call "+decrypterD, "call "+decrypterD, "ret"),
	}}
	failing := &il.Method{Name: "Failing", Blocks: []*il.Block{
		mustBlock(t, `ldstr "bad"`, "call "+decrypterD, "ret"),
	}}
	untouched := &il.Method{Name: "Untouched", Blocks: []*il.Block{
		mustBlock(t, `ldstr "plain"`, "ret"),
	}}

	p := &Pass{
		Inliners:  []Inliner{si, NewInt32Inliner()},
		Workers:   2,
		MaxPasses: 4,
		Logger:    testLogger(new(bytes.Buffer)),
	}
	report, err := p.Run(context.Background(), []*il.Method{nested, failing, untouched})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := nested.Blocks[0].String(); got != listing(`ldstr "A:A:x"`, "ret") {
		t.Errorf("nested =\n%s", got)
	}
	if r := report.Methods[0]; !r.Changed || r.Passes != 3 || r.Err != nil {
		t.Errorf("nested report = %+v", r)
	}
	if r := report.Methods[1]; r.Changed || !errors.Is(r.Err, errBad) {
		t.Errorf("failing report = %+v", r)
	}
	if r := report.Methods[2]; r.Changed || r.Err != nil || r.Passes != 1 {
		t.Errorf("untouched report = %+v", r)
	}
	if report.Changed() != 1 || !errors.Is(report.Err(), errBad) {
		t.Errorf("Changed() = %d, Err() = %v", report.Changed(), report.Err())
	}
}

func TestPassWithoutHandlers(t *testing.T) {
	m := &il.Method{Name: "M", Blocks: []*il.Block{mustBlock(t, `ldstr "a"`, "call "+decrypterD)}}
	p := &Pass{Inliners: []Inliner{NewStringInliner()}}
	report, err := p.Run(context.Background(), []*il.Method{m})
	if err != nil {
		t.Fatal(err)
	}
	if report.Changed() != 0 || report.Methods[0].Passes != 0 {
		t.Errorf("report = %+v", report.Methods)
	}
}

func TestPassCancelled(t *testing.T) {
	si := NewStringInliner()
	si.Add(mustMethodRef(t, decrypterD), prefix)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := &il.Method{Name: "M", Blocks: []*il.Block{mustBlock(t, `ldstr "a"`, "call "+decrypterD)}}
	_, err := (&Pass{Inliners: []Inliner{si}}).Run(ctx, []*il.Method{m})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
	if m.Blocks[0].Len() != 2 {
		t.Error("cancelled pass modified the method")
	}
}
