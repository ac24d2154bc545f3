package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"stockledger/internal/domain/costing"
	"stockledger/internal/domain/units"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	Format string // "json" | "text"

	converter  *units.Converter
	calculator *costing.Calculator
}

var validFormats = []string{"text", "json"}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{
		converter:  units.NewConverter(nil),
		calculator: costing.NewCalculator(),
	}

	cmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Offline tools for the stock ledger",
		Long:  "Convert quantities between units and compare costing methods without a running server.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(newConvertCommand(opts))
	cmd.AddCommand(newSuggestCommand(opts))
	cmd.AddCommand(newCostCommand(opts))

	return cmd
}

// print writes v as indented JSON, or calls text for the text format.
func (o *rootOptions) print(w io.Writer, v any, text func(io.Writer)) error {
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

// readYAML decodes a YAML file into out.
func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
