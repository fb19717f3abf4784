package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docsheet/internal/parser"
	"github.com/dgallion1/docsheet/internal/pdfdoc"
	"github.com/dgallion1/docsheet/internal/pipeline"
	"github.com/dgallion1/docsheet/internal/structure"
)

func convertCmd(logger func() *slog.Logger) *cobra.Command {
	var out string
	var metadata bool

	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Convert a PDF or text document into an xlsx workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			a, err := loadApp(cmd.Context(), logger())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Converter.Convert(cmd.Context(), pipeline.Input{
				Filename:        filepath.Base(path),
				Data:            data,
				IncludeMetadata: metadata,
			})
			if err != nil {
				return err
			}
			if out == "" {
				out = filepath.Join(filepath.Dir(path), res.Filename)
			}
			if err := os.WriteFile(out, res.Workbook, 0o644); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"output":   out,
				"rows":     len(res.Rows),
				"degraded": res.Degraded,
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output workbook (default: <name>_content.xlsx next to the input)")
	cmd.Flags().BoolVar(&metadata, "metadata", false, "add Metadata and Summary sheets")
	return cmd
}

func extractCmd(logger func() *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <pdf>",
		Short: "Print the extracted document bundle as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			a, err := loadApp(cmd.Context(), logger())
			if err != nil {
				return err
			}
			defer a.Close()

			bundle, err := a.Assembler.Assemble(cmd.Context(), data)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), bundle)
		},
	}
}

func outlineCmd(logger func() *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "outline <file>",
		Short: "Print the inferred chapter and section outline as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			var text string
			if pipeline.IsPDF(path) {
				res, err := pdfdoc.NewTextExtractor(logger()).Extract(data)
				if err != nil {
					return err
				}
				text = res.Text
			} else {
				p, err := parser.ForFile(path)
				if err != nil {
					return err
				}
				tree, err := p.Parse(bytes.NewReader(data), filepath.Base(path))
				if err != nil {
					return err
				}
				text = tree.Text()
			}
			return printJSON(cmd.OutOrStdout(), structure.Infer(text))
		},
	}
}

func generateCmd(logger func() *slog.Logger) *cobra.Command {
	var topic string

	cmd := &cobra.Command{
		Use:   "generate <textfile>",
		Short: "Generate topic/subtopic/content rows from a text file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			a, err := loadApp(cmd.Context(), logger())
			if err != nil {
				return err
			}
			defer a.Close()

			res := a.Generator.Generate(cmd.Context(), string(data), topic)
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("generation failed: %s", res.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&topic, "topic", "", "topic label (default: inferred)")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
