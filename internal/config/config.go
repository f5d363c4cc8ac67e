// Package config loads noticeable configuration files.
//
// A configuration file is CUE. It is unified with the embedded #Config
// schema, which supplies defaults and rejects unknown fields, then checked
// with struct validation:
//
//	ignorePrefix:        "///"
//	commentPrefix:       "//"
//	analysisConcurrency: 8
//	logLevel:            "info"
//	settleTimeout:       "10s"
//	builtins: { width: 640 }
//	modules: { "stats": { pi: 3.14159 } }
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/go-playground/validator/v10"

	"github.com/roach88/noticeable/internal/notebook"
)

//go:embed schema.cue
var schemaSource string

// File is a decoded configuration file.
type File struct {
	IgnorePrefix        string                    `json:"ignorePrefix"`
	CommentPrefix       string                    `json:"commentPrefix" validate:"required"`
	AnalysisConcurrency int                       `json:"analysisConcurrency" validate:"min=1,max=256"`
	LogLevel            string                    `json:"logLevel" validate:"oneof=debug info warn error"`
	SettleTimeout       string                    `json:"settleTimeout" validate:"required,duration"`
	Journal             string                    `json:"journal"`
	Builtins            map[string]any            `json:"builtins"`
	Modules             map[string]map[string]any `json:"modules" validate:"dive,keys,required,endkeys"`
}

// Default returns the configuration used when no file is given.
func Default() *File {
	return &File{
		IgnorePrefix:        notebook.DefaultIgnorePrefix,
		CommentPrefix:       notebook.DefaultCommentPrefix,
		AnalysisConcurrency: 8,
		LogLevel:            "info",
		SettleTimeout:       "10s",
		Builtins:            map[string]any{},
		Modules:             map[string]map[string]any{},
	}
}

// Load reads and parses the configuration file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data, path)
}

// Parse parses CUE configuration source. filename is used in error
// positions only.
func Parse(data []byte, filename string) (*File, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("config schema: %w", err)
	}

	value := ctx.CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("parse config: %s", details(err))
	}

	unified := schema.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid config: %s", details(err))
	}

	// Decode through JSON so numbers keep their exact text.
	raw, err := unified.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("export config: %s", details(err))
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		d, err := time.ParseDuration(fl.Field().String())
		return err == nil && d > 0
	})
	return v
}

// Validate checks field constraints the schema cannot express.
func (f *File) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Notebook converts the file to a notebook configuration. Builtins and
// modules are copied so notebooks never share them.
func (f *File) Notebook() notebook.Config {
	cfg := notebook.Config{
		IgnorePrefix:        f.IgnorePrefix,
		CommentPrefix:       f.CommentPrefix,
		AnalysisConcurrency: f.AnalysisConcurrency,
		Builtins:            make(map[string]any, len(f.Builtins)),
		Modules:             make(map[string]any, len(f.Modules)),
	}
	for k, v := range f.Builtins {
		cfg.Builtins[k] = v
	}
	for k, v := range f.Modules {
		cfg.Modules[k] = v
	}
	return cfg
}

// Timeout returns the settle timeout. Validate guarantees it parses.
func (f *File) Timeout() time.Duration {
	d, err := time.ParseDuration(f.SettleTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// Level returns the configured log level.
func (f *File) Level() slog.Level {
	switch f.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// details flattens a CUE error list into one message with positions.
func details(err error) string {
	return strings.TrimSpace(cueerrors.Details(err, nil))
}
