// Package config loads inliner.yaml, which tunes the pass and declares the
// decrypter methods to inline together with how their values are computed.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"inliner/internal/decrypters"
	"inliner/internal/il"
	"inliner/internal/inline"
)

// FileName is the name FindConfig looks for.
const FileName = "inliner.yaml"

// Decrypter kinds.
const (
	KindConstant = "constant"
	KindTable    = "table"
	KindXXTEA    = "xxtea"
)

// Literal kinds.
const (
	LiteralString  = "string"
	LiteralInt32   = "int32"
	LiteralInt64   = "int64"
	LiteralFloat32 = "float32"
	LiteralFloat64 = "float64"
	LiteralBool    = "bool"
)

// Config is the top-level inliner.yaml document.
type Config struct {
	Debug bool `yaml:"debug,omitempty" json:"debug,omitempty" jsonschema:"title=Debug,description=Enable debug logging"`

	// Workers bounds how many methods are processed at once. Zero means
	// GOMAXPROCS.
	Workers int `yaml:"workers,omitempty" json:"workers,omitempty" jsonschema:"title=Workers,description=Methods processed in parallel (0 = GOMAXPROCS),minimum=0"`

	// MaxPasses bounds how often a method is re-run while it keeps changing.
	MaxPasses int `yaml:"max_passes,omitempty" json:"max_passes,omitempty" jsonschema:"title=Max Passes,description=Re-runs per method while it keeps changing (0 = 1),minimum=0"`

	Decrypters []Decrypter `yaml:"decrypters" json:"decrypters" jsonschema:"title=Decrypters,description=Methods whose calls are replaced by their result"`
}

// Decrypter declares one method and the handler computing its results.
type Decrypter struct {
	// Method is the method reference as it appears in a listing, e.g.
	// "System.String Obf.Strings::D(System.Int32)".
	Method string `yaml:"method" json:"method" jsonschema:"title=Method,description=Method reference as written in a listing"`

	Kind string `yaml:"kind" json:"kind" jsonschema:"title=Kind,enum=constant,enum=table,enum=xxtea"`

	// Literal is the kind of value produced. Defaults to string.
	Literal string `yaml:"literal,omitempty" json:"literal,omitempty" jsonschema:"title=Literal,enum=string,enum=int32,enum=int64,enum=float32,enum=float64,enum=bool,default=string"`

	// Value is returned by constant decrypters.
	Value any `yaml:"value,omitempty" json:"value,omitempty" jsonschema:"title=Value,description=Result of a constant decrypter"`

	// Values is indexed by the int32 argument of table decrypters.
	Values []any `yaml:"values,omitempty" json:"values,omitempty" jsonschema:"title=Values,description=Results of a table decrypter by index"`

	// Key and Signature configure xxtea decrypters.
	Key       string `yaml:"key,omitempty" json:"key,omitempty" jsonschema:"title=Key,description=XXTEA key"`
	Signature string `yaml:"signature,omitempty" json:"signature,omitempty" jsonschema:"title=Signature,description=Prefix preceding the XXTEA ciphertext"`
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse parses configuration content. The path is only used in errors.
func Parse(data []byte, path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.setDefaults()
	return &cfg, nil
}

// FindConfig searches for inliner.yaml in dir and its parents. It returns
// an empty path and no error when there is none.
func FindConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

func (c *Config) setDefaults() {
	if c.Workers == 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.MaxPasses == 0 {
		c.MaxPasses = 1
	}
	for i := range c.Decrypters {
		if c.Decrypters[i].Literal == "" {
			c.Decrypters[i].Literal = LiteralString
		}
	}
}

// Validate reports every semantic error in c.
func (c *Config) Validate() error {
	var errs []error
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if c.MaxPasses < 0 {
		errs = append(errs, fmt.Errorf("max_passes must not be negative, got %d", c.MaxPasses))
	}
	for i, d := range c.Decrypters {
		if _, err := d.handler(); err != nil {
			errs = append(errs, fmt.Errorf("decrypters[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Register adds a handler for every decrypter to the inliner of its
// literal kind.
func (c *Config) Register(set *inline.Set) error {
	for i, d := range c.Decrypters {
		method, _, err := il.ParseMethodRef(d.Method)
		if err != nil {
			return fmt.Errorf("decrypters[%d]: %w", i, err)
		}
		h, err := d.handler()
		if err != nil {
			return fmt.Errorf("decrypters[%d]: %w", i, err)
		}
		switch d.literal() {
		case LiteralString:
			set.String.Add(method, h)
		case LiteralInt32:
			set.Int32.Add(method, h)
		case LiteralInt64:
			set.Int64.Add(method, h)
		case LiteralFloat32:
			set.Single.Add(method, h)
		case LiteralFloat64:
			set.Double.Add(method, h)
		case LiteralBool:
			set.Boolean.Add(method, h)
		}
	}
	return nil
}

func (d Decrypter) literal() string {
	if d.Literal == "" {
		return LiteralString
	}
	return d.Literal
}

func (d Decrypter) handler() (inline.Handler, error) {
	if d.Method == "" {
		return nil, errors.New("method is required")
	}
	if _, _, err := il.ParseMethodRef(d.Method); err != nil {
		return nil, err
	}
	lit := d.literal()

	switch d.Kind {
	case KindConstant:
		if d.Value == nil {
			return nil, errors.New("constant decrypter needs a value")
		}
		v, err := convert(d.Value, lit)
		if err != nil {
			return nil, fmt.Errorf("value: %w", err)
		}
		return decrypters.Constant(v), nil

	case KindTable:
		if len(d.Values) == 0 {
			return nil, errors.New("table decrypter needs values")
		}
		values := make([]any, len(d.Values))
		for i, raw := range d.Values {
			v, err := convert(raw, lit)
			if err != nil {
				return nil, fmt.Errorf("values[%d]: %w", i, err)
			}
			values[i] = v
		}
		return decrypters.Table(values), nil

	case KindXXTEA:
		if d.Key == "" {
			return nil, errors.New("xxtea decrypter needs a key")
		}
		if lit != LiteralString {
			return nil, fmt.Errorf("xxtea decrypter produces strings, not %s", lit)
		}
		return decrypters.XXTEA(d.Key, d.Signature), nil

	case "":
		return nil, errors.New("kind is required")
	default:
		return nil, fmt.Errorf("unknown kind %q", d.Kind)
	}
}

// convert turns a YAML scalar into the Go type of a literal kind.
func convert(raw any, literal string) (any, error) {
	switch literal {
	case LiteralString:
		if s, ok := raw.(string); ok {
			return s, nil
		}
	case LiteralBool:
		if b, ok := raw.(bool); ok {
			return b, nil
		}
	case LiteralInt32:
		if n, ok := raw.(int); ok {
			if n < math.MinInt32 || n > math.MaxInt32 {
				return nil, fmt.Errorf("%d overflows int32", n)
			}
			return int32(n), nil
		}
	case LiteralInt64:
		if n, ok := raw.(int); ok {
			return int64(n), nil
		}
	case LiteralFloat32, LiteralFloat64:
		var f float64
		switch v := raw.(type) {
		case float64:
			f = v
		case int:
			f = float64(v)
		default:
			return nil, fmt.Errorf("%v (%T) is not a %s", raw, raw, literal)
		}
		if literal == LiteralFloat32 {
			return float32(f), nil
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unknown literal %q", literal)
	}
	return nil, fmt.Errorf("%v (%T) is not a %s", raw, raw, literal)
}
