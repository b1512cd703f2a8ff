package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"inliner/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "inliner",
	Short: "Replace decrypter calls with the constants they return",
	Long: `Inliner rewrites instruction listings of obfuscated methods. Every call to a
configured decrypter whose arguments are constants is replaced by a single
load of the value the decrypter returns.`,
	Example: `
# Inline the decrypters declared in ./inliner.yaml
inliner run methods.yaml

# Author an encrypted literal for a test listing
inliner encrypt --key KEY123 "secret"
  `,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default: nearest "+config.FileName+")")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Debug")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(encryptCmd)
	rootCmd.AddCommand(schemaCmd)
}

// loadConfig resolves the config for a command working on files in dir.
func loadConfig(cmd *cobra.Command, dir string) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		found, err := config.FindConfig(dir)
		if err != nil {
			return nil, err
		}
		path = found
	}

	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Debug = true
	}
	return cfg, nil
}

func configDir(file string) string {
	abs, err := filepath.Abs(file)
	if err != nil {
		return "."
	}
	return filepath.Dir(abs)
}

func Execute() {
	// Bypass fang when output is being piped
	if !term.IsTerminal(os.Stdout.Fd()) {
		if err := rootCmd.Execute(); err != nil {
			os.Exit(1)
		}
		return
	}

	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}

// MaybeReadStdin returns the lines piped on stdin, or nil when stdin is a
// terminal.
func MaybeReadStdin() ([]byte, error) {
	if term.IsTerminal(os.Stdin.Fd()) {
		return nil, nil
	}
	fi, err := os.Stdin.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Mode()&os.ModeNamedPipe == 0 {
		return nil, nil
	}
	bts, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	return bts, nil
}
