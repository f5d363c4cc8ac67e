package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_EmptyFileUsesDefaults(t *testing.T) {
	f, err := Parse(nil, "empty.cue")
	require.NoError(t, err)
	assert.Equal(t, Default(), f)
}

func TestParse_FullFile(t *testing.T) {
	src := `
ignorePrefix:        "#!"
commentPrefix:       "--"
analysisConcurrency: 2
logLevel:            "debug"
settleTimeout:       "250ms"
journal:             "notebook.db"
builtins: { width: 640, title: "demo" }
modules: { "stats": { pi: 3.14159 } }
`
	f, err := Parse([]byte(src), "full.cue")
	require.NoError(t, err)

	assert.Equal(t, "#!", f.IgnorePrefix)
	assert.Equal(t, "--", f.CommentPrefix)
	assert.Equal(t, 2, f.AnalysisConcurrency)
	assert.Equal(t, slog.LevelDebug, f.Level())
	assert.Equal(t, 250*time.Millisecond, f.Timeout())
	assert.Equal(t, "notebook.db", f.Journal)
	assert.Equal(t, json.Number("640"), f.Builtins["width"])
	assert.Equal(t, "demo", f.Builtins["title"])
	assert.Equal(t, json.Number("3.14159"), f.Modules["stats"]["pi"])
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"syntax", `commentPrefix: `, "parse config"},
		{"unknown field", `colour: "red"`, "invalid config"},
		{"empty comment prefix", `commentPrefix: ""`, "invalid config"},
		{"concurrency too low", `analysisConcurrency: 0`, "invalid config"},
		{"concurrency not int", `analysisConcurrency: 1.5`, "invalid config"},
		{"bad log level", `logLevel: "loud"`, "invalid config"},
		{"bad timeout", `settleTimeout: "soon"`, "invalid config"},
		{"negative timeout", `settleTimeout: "-1s"`, "invalid config"},
		{"module not a struct", `modules: { stats: 1 }`, "invalid config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), "bad.cue")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noticeable.cue")
	require.NoError(t, os.WriteFile(path, []byte(`logLevel: "warn"`), 0o644))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, f.Level())

	_, err = Load(filepath.Join(t.TempDir(), "missing.cue"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestFile_Notebook(t *testing.T) {
	f := Default()
	f.Builtins["width"] = json.Number("640")
	f.Modules["stats"] = map[string]any{"answer": json.Number("42")}

	cfg := f.Notebook()
	assert.Equal(t, "///", cfg.IgnorePrefix)
	assert.Equal(t, "//", cfg.CommentPrefix)
	assert.Equal(t, 8, cfg.AnalysisConcurrency)
	assert.Equal(t, json.Number("640"), cfg.Builtins["width"])
	assert.Equal(t, map[string]any{"answer": json.Number("42")}, cfg.Modules["stats"])

	// The notebook config owns its maps.
	cfg.Builtins["height"] = 1
	assert.NotContains(t, f.Builtins, "height")
}

func TestFile_Level(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.want, (&File{LogLevel: tt.level}).Level())
		})
	}
}

func TestFile_Validate(t *testing.T) {
	f := Default()
	require.NoError(t, f.Validate())

	f.AnalysisConcurrency = 1000
	assert.Error(t, f.Validate())
}
