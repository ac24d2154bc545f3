package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"stockledger/internal/domain/units"
)

// unitOptions returns conversion options, loading a product unit definition
// when --units is set.
func unitOptions(path string) (units.Options, error) {
	if path == "" {
		return units.Options{}, nil
	}
	var def units.Definition
	if err := readYAML(path, &def); err != nil {
		return units.Options{}, err
	}
	if report := units.Validate(def); !report.Valid {
		return units.Options{}, fmt.Errorf("invalid unit definition %s: %v", path, report.Errors)
	}
	return units.Options{Definition: &def}, nil
}

func newConvertCommand(opts *rootOptions) *cobra.Command {
	var unitsFile string

	cmd := &cobra.Command{
		Use:     `convert <"value unit"> <target>`,
		Short:   "Convert a quantity to another unit",
		Example: `  ledgerctl convert "2.5 kg" g
  ledgerctl convert "3 sack" kg --units flour.yaml`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, from, err := units.Parse(args[0])
			if err != nil {
				return err
			}
			uo, err := unitOptions(unitsFile)
			if err != nil {
				return err
			}
			res, err := opts.converter.Convert(value, from, args[1], uo)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), res, func(w io.Writer) {
				fmt.Fprintf(w, "%s = %s\n", units.Format(value, res.From), units.Format(res.Value, res.To))
			})
		},
	}

	cmd.Flags().StringVar(&unitsFile, "units", "", "YAML product unit definition")
	return cmd
}

func newSuggestCommand(opts *rootOptions) *cobra.Command {
	var unitsFile string

	cmd := &cobra.Command{
		Use:   `suggest <"value unit">`,
		Short: "Suggest the most readable unit for a quantity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, from, err := units.Parse(args[0])
			if err != nil {
				return err
			}
			uo, err := unitOptions(unitsFile)
			if err != nil {
				return err
			}
			s, err := opts.converter.Suggest(value, from, uo)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), s, func(w io.Writer) {
				fmt.Fprintln(w, units.Format(s.Value, s.Unit))
				for _, c := range s.Candidates {
					fmt.Fprintf(w, "  %-16s score %.3f\n", units.Format(c.Value, c.Unit), c.Score)
				}
			})
		},
	}

	cmd.Flags().StringVar(&unitsFile, "units", "", "YAML product unit definition")
	return cmd
}
