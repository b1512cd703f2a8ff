package cmd

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"inliner/internal/decrypters"
)

var encryptCmd = &cobra.Command{
	Use:   "encrypt [text...]",
	Short: "Encrypt literals for an xxtea decrypter",
	Long: `Encrypt prints one base64 literal per input, in the format the xxtea
decrypter kind expects: the signature followed by the XXTEA ciphertext.
Inputs are read from stdin, one per line, when no arguments are given.`,
	Example: `
inliner encrypt --key KEY123 --signature SIG "hello" "world"
printf 'a\nb\n' | inliner encrypt --key KEY123
  `,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, _ := cmd.Flags().GetString("key")
		signature, _ := cmd.Flags().GetString("signature")

		texts := args
		if len(texts) == 0 {
			piped, err := MaybeReadStdin()
			if err != nil {
				return err
			}
			texts = splitLines(piped)
		}
		return runEncrypt(cmd.OutOrStdout(), texts, key, signature)
	},
}

func init() {
	encryptCmd.Flags().StringP("key", "k", "", "XXTEA encryption key")
	encryptCmd.Flags().StringP("signature", "s", "", "Signature prepended to the ciphertext")
}

func runEncrypt(w io.Writer, texts []string, key, signature string) error {
	if key == "" {
		return errors.New("--key is required")
	}
	if len(texts) == 0 {
		return errors.New("nothing to encrypt")
	}
	for _, text := range texts {
		if _, err := fmt.Fprintln(w, decrypters.EncryptString(text, []byte(key), []byte(signature))); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func splitLines(data []byte) []string {
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines
}
