package decrypters

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/xxtea/xxtea-go/xxtea"

	"inliner/internal/il"
)

var target = &il.MethodRef{
	DeclaringType: il.NewTypeRef("Obf.Strings"),
	Name:          "D",
	ReturnType:    il.NewTypeRef(il.TypeString),
	Params:        []*il.TypeRef{il.NewTypeRef(il.TypeString)},
}

func TestTable(t *testing.T) {
	h := Table([]string{"zero", "one", "two"})
	tests := []struct {
		name    string
		args    []any
		want    any
		wantErr error
	}{
		{name: "first", args: []any{int32(0)}, want: "zero"},
		{name: "last", args: []any{int32(2)}, want: "two"},
		{name: "negative", args: []any{int32(-1)}, wantErr: ErrBadArgs},
		{name: "past end", args: []any{int32(3)}, wantErr: ErrBadArgs},
		{name: "wrong type", args: []any{"0"}, wantErr: ErrBadArgs},
		{name: "no args", args: nil, wantErr: ErrBadArgs},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h(target, nil, tt.args)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("got %v, %v; want %v", got, err, tt.want)
			}
		})
	}
}

func TestConstant(t *testing.T) {
	v, err := Constant(int32(9))(target, nil, []any{"ignored"})
	if err != nil || v != int32(9) {
		t.Errorf("Constant = %v, %v", v, err)
	}
}

func TestXXTEARoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		plain     string
		key       string
		signature string
	}{
		{name: "simple text", plain: "Hello, World!", key: "KEY123"},
		{name: "with signature", plain: "Test with signature", key: "MYKEY", signature: "TESTSIG"},
		{name: "unicode", plain: "Hello 世界 🌍", key: "UNICODE", signature: "UTF8"},
		{name: "large", plain: strings.Repeat("A", 10000), key: "LARGE", signature: "BIG"},
		{name: "empty", plain: "", key: "EMPTY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := EncryptString(tt.plain, []byte(tt.key), []byte(tt.signature))
			got, err := XXTEA(tt.key, tt.signature)(target, nil, []any{enc})
			if err != nil {
				t.Fatalf("handler: %v", err)
			}
			if got != tt.plain {
				t.Errorf("got %q, want %q", got, tt.plain)
			}
		})
	}
}

func TestXXTEAErrors(t *testing.T) {
	enc := EncryptString("secret", []byte("KEY"), []byte("SIG"))
	tests := []struct {
		name    string
		h       func() (any, error)
		wantErr error
	}{
		{
			name:    "wrong signature",
			h:       func() (any, error) { return XXTEA("KEY", "OTHER")(target, nil, []any{enc}) },
			wantErr: ErrDecrypt,
		},
		{
			name:    "wrong key",
			h:       func() (any, error) { return XXTEA("NOTTHEKEY", "SIG")(target, nil, []any{enc}) },
			wantErr: ErrDecrypt,
		},
		{
			name:    "not base64",
			h:       func() (any, error) { return XXTEA("KEY", "")(target, nil, []any{"%%%"}) },
			wantErr: ErrBadArgs,
		},
		{
			name:    "not a string",
			h:       func() (any, error) { return XXTEA("KEY", "")(target, nil, []any{int32(1)}) },
			wantErr: ErrBadArgs,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.h()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestXXTEAGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte("compressed literal")); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	enc := base64.StdEncoding.EncodeToString(xxtea.Encrypt(buf.Bytes(), []byte("GZ")))

	got, err := DecryptString(enc, []byte("GZ"), nil)
	if err != nil || got != "compressed literal" {
		t.Errorf("DecryptString = %q, %v", got, err)
	}
}

func TestSerialize(t *testing.T) {
	calls := 0
	h := Serialize(func(*il.MethodRef, *il.MethodSpec, []any) (any, error) {
		calls++
		return calls, nil
	})

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h(target, nil, nil)
		}()
	}
	wg.Wait()
	if calls != 50 {
		t.Errorf("calls = %d, want 50", calls)
	}
}

func TestXXTEANotUTF8(t *testing.T) {
	enc := base64.StdEncoding.EncodeToString(xxtea.Encrypt([]byte{0xff, 0xfe, 'x'}, []byte("K")))
	_, err := DecryptString(enc, []byte("K"), nil)
	if !errors.Is(err, ErrDecrypt) || !strings.Contains(err.Error(), `\xFF\xFEx`) {
		t.Errorf("error = %v", err)
	}
}
