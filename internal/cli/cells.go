package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/noticeable/internal/cells"
	"github.com/roach88/noticeable/internal/config"
	"github.com/roach88/noticeable/internal/ir"
)

// CellsOptions holds flags for the cells command.
type CellsOptions struct {
	*RootOptions
	Config string
}

// CellInfo describes one segmented cell.
type CellInfo struct {
	ID       string      `json:"id"`
	Line     int         `json:"line"` // 1-based first line in the document
	Kind     ir.CellKind `json:"kind"`
	Code     string      `json:"code"`
	Markdown string      `json:"markdown,omitempty"`
}

// CellsResult is the JSON payload of the cells command.
type CellsResult struct {
	Cells []CellInfo `json:"cells"`
	Total int        `json:"total"`
}

// NewCellsCommand creates the cells command.
func NewCellsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CellsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cells <document>",
		Short: "Show how a document is cut into cells",
		Long: `Segment a notebook document and print its cells with their ids.

Ignored lines are dropped before segmentation. Cells made only of comment
lines are markdown. Ids are content addresses: a cell keeps its id for as
long as its code is unchanged.

Examples:
  noticeable cells notebook.js
  noticeable cells notebook.js --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCells(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "path to CUE config file")

	return cmd
}

func runCells(opts *CellsOptions, path string, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.Config)
	if err != nil {
		return err
	}
	text, err := readDocument(path)
	if err != nil {
		return err
	}
	formatter := opts.formatter(cmd)

	result := CellsResult{Cells: segment(text, cfg)}
	result.Total = len(result.Cells)
	formatter.VerboseLog("Segmented %s into %d cell(s)", path, result.Total)

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	if result.Total == 0 {
		fmt.Fprintln(w, "No cells found.")
		return nil
	}
	for _, c := range result.Cells {
		fmt.Fprintf(w, "%s  line %d  %s\n", shortID(c.ID), c.Line, c.Kind)
		for _, line := range strings.Split(strings.TrimRight(c.Code, "\n"), "\n") {
			fmt.Fprintf(w, "  | %s\n", line)
		}
	}
	fmt.Fprintf(w, "\n%d cell(s)\n", result.Total)
	return nil
}

// segment cuts text into cells the way a notebook does.
func segment(text string, cfg *config.File) []CellInfo {
	stripped := cells.StripIgnored(text, cfg.IgnorePrefix)
	assigned := cells.AssignIDs(cells.Split(stripped))

	out := make([]CellInfo, len(assigned))
	for i, c := range assigned {
		info := CellInfo{ID: c.ID, Line: c.FirstLineNum + 1, Kind: ir.KindCode, Code: c.Code}
		if md, ok := cells.Markdown(c.Code, cfg.CommentPrefix); ok {
			info.Kind, info.Markdown = ir.KindMarkdown, md
		}
		out[i] = info
	}
	return out
}
