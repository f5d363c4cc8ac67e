package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/noticeable/internal/analyzer"
	"github.com/roach88/noticeable/internal/ir"
	"github.com/roach88/noticeable/internal/synth"
)

// AnalyzeOptions holds flags for the analyze command.
type AnalyzeOptions struct {
	*RootOptions
	Config string
}

// CellAnalysis is what the analyzer and synthesizer make of one code cell.
type CellAnalysis struct {
	ID           string   `json:"id"`
	Line         int      `json:"line"`
	Expression   bool     `json:"expression"`
	Async        bool     `json:"async"`
	Declarations []string `json:"declarations,omitempty"`
	References   []string `json:"references,omitempty"`
	Imports      []string `json:"imports,omitempty"`
	Inputs       []string `json:"inputs,omitempty"`
	Outputs      []string `json:"outputs,omitempty"`
	Transpiled   string   `json:"transpiled,omitempty"`
	Error        string   `json:"error,omitempty"`
	ErrorLine    int      `json:"error_line,omitempty"` // 1-based document line
}

// AnalyzeResult is the JSON payload of the analyze command.
type AnalyzeResult struct {
	Cells  []CellAnalysis `json:"cells"`
	Total  int            `json:"total"`
	Failed int            `json:"failed"`
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AnalyzeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "analyze <document>",
		Short: "Show the inputs, outputs and transpiled body of each cell",
		Long: `Analyze every code cell of a document without running it.

For each cell prints whether it is an expression, whether it is async,
the names it declares and reads, and the function it is compiled to.
Markdown cells are skipped.

Exit codes:
  0 - Every cell analyzed
  1 - One or more cells have syntax errors
  2 - Command error (missing document, bad config, etc.)

Examples:
  noticeable analyze notebook.js
  noticeable analyze notebook.js --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "path to CUE config file")

	return cmd
}

func runAnalyze(opts *AnalyzeOptions, path string, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.Config)
	if err != nil {
		return err
	}
	text, err := readDocument(path)
	if err != nil {
		return err
	}
	formatter := opts.formatter(cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr(), cfg.Level())

	var code []CellInfo
	for _, c := range segment(text, cfg) {
		if c.Kind == ir.KindCode {
			code = append(code, c)
		}
	}

	a := analyzer.New(analyzer.WithLogger(logger))
	result := AnalyzeResult{Cells: make([]CellAnalysis, len(code)), Total: len(code)}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.AnalysisConcurrency)
	for i, c := range code {
		g.Go(func() error {
			result.Cells[i] = analyzeCell(gctx, a, c)
			return nil
		})
	}
	_ = g.Wait() // failures are per cell

	for _, c := range result.Cells {
		if c.Error != "" {
			result.Failed++
		}
	}

	if formatter.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: result}
		if result.Failed > 0 {
			resp.Status = "error"
			resp.Error = &CLIError{Code: ErrCodeSyntax, Message: fmt.Sprintf("%d cell(s) failed analysis", result.Failed)}
		}
		if err := formatter.Respond(resp); err != nil {
			return err
		}
	} else {
		outputAnalyzeText(formatter, result)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d cell(s) failed analysis", result.Failed))
	}
	return nil
}

func analyzeCell(ctx context.Context, a *analyzer.Analyzer, c CellInfo) CellAnalysis {
	out := CellAnalysis{ID: c.ID, Line: c.Line}

	res, err := a.Analyze(ctx, c.Code)
	if err != nil {
		out.Error = err.Error()
		var se *analyzer.SyntaxError
		if errors.As(err, &se) && se.Line > 0 {
			lead := len(c.Code) - len(strings.TrimLeft(c.Code, " \t\r\n"))
			out.ErrorLine = c.Line + strings.Count(c.Code[:lead], "\n") + se.Line - 1
		}
		return out
	}

	body := synth.Synthesize(res)
	out.Expression = res.Expression
	out.Async = body.Async
	out.Declarations = res.Declarations
	out.References = res.References
	for _, imp := range res.Imports {
		out.Imports = append(out.Imports, imp.Source)
	}
	out.Inputs = body.Inputs
	out.Outputs = body.Outputs
	out.Transpiled = body.Source
	return out
}

func outputAnalyzeText(formatter *OutputFormatter, result AnalyzeResult) {
	w := formatter.Writer
	if result.Total == 0 {
		fmt.Fprintln(w, "No code cells found.")
		return
	}

	for _, c := range result.Cells {
		if c.Error != "" {
			fmt.Fprintf(w, "✗ %s  line %d\n", shortID(c.ID), c.Line)
			if c.ErrorLine > 0 {
				fmt.Fprintf(w, "  line %d: %s\n\n", c.ErrorLine, c.Error)
			} else {
				fmt.Fprintf(w, "  %s\n\n", c.Error)
			}
			continue
		}

		mode := "program"
		if c.Expression {
			mode = "expression"
		}
		if c.Async {
			mode += ", async"
		}
		fmt.Fprintf(w, "✓ %s  line %d  (%s)\n", shortID(c.ID), c.Line, mode)
		if len(c.Inputs) > 0 {
			fmt.Fprintf(w, "  inputs:  %s\n", strings.Join(c.Inputs, ", "))
		}
		if len(c.Outputs) > 0 {
			fmt.Fprintf(w, "  outputs: %s\n", strings.Join(c.Outputs, ", "))
		}
		if len(c.Imports) > 0 {
			fmt.Fprintf(w, "  imports: %s\n", strings.Join(c.Imports, ", "))
		}
		if formatter.Verbose {
			for _, line := range strings.Split(strings.TrimRight(c.Transpiled, "\n"), "\n") {
				fmt.Fprintf(w, "  | %s\n", line)
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "%d cell(s), %d failed\n", result.Total, result.Failed)
}
