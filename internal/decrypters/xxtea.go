package decrypters

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/xxtea/xxtea-go/xxtea"

	"inliner/internal/analysis"
	"inliner/internal/il"
	"inliner/internal/inline"
)

var gzipMagic = []byte{0x1f, 0x8b}

// XXTEA returns a handler for decrypters taking one base64 string argument.
// The decoded bytes are signature followed by the XXTEA ciphertext; a
// non-empty signature must be present. Gzip-compressed plaintext is
// decompressed.
func XXTEA(key, signature string) inline.Handler {
	k := []byte(key)
	sig := []byte(signature)
	return func(method *il.MethodRef, _ *il.MethodSpec, args []any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("%s: %w: want 1 argument, got %d", method.Name, ErrBadArgs, len(args))
		}
		s, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("%s: %w: argument is %T", method.Name, ErrBadArgs, args[0])
		}
		plain, err := DecryptString(s, k, sig)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", method.Name, err)
		}
		return plain, nil
	}
}

// DecryptString decodes and decrypts one literal produced by EncryptString.
func DecryptString(encoded string, key, signature []byte) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadArgs, err)
	}
	if len(signature) > 0 {
		if !bytes.HasPrefix(data, signature) {
			return "", fmt.Errorf("%w: signature %q not found", ErrDecrypt, signature)
		}
		data = data[len(signature):]
	}
	if len(data) == 0 {
		return "", nil
	}

	plain := xxtea.Decrypt(data, key)
	if plain == nil {
		return "", ErrDecrypt
	}
	if bytes.HasPrefix(plain, gzipMagic) {
		zr, err := gzip.NewReader(bytes.NewReader(plain))
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
		}
		defer zr.Close()
		if plain, err = io.ReadAll(zr); err != nil {
			return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
		}
	}
	if !utf8.Valid(plain) {
		return "", fmt.Errorf("%w: plaintext is not UTF-8: %s", ErrDecrypt, analysis.EscapeUnprintable(plain[:min(len(plain), 32)]))
	}
	return string(plain), nil
}

// EncryptString is the inverse of DecryptString.
func EncryptString(plain string, key, signature []byte) string {
	var data []byte
	data = append(data, signature...)
	if plain != "" {
		data = append(data, xxtea.Encrypt([]byte(plain), key)...)
	}
	return base64.StdEncoding.EncodeToString(data)
}
