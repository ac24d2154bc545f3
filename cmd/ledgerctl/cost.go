package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"stockledger/internal/core/entity"
	"stockledger/internal/domain/costing"
)

// batchFile is the YAML layout read by "cost compare".
type batchFile struct {
	Batches []struct {
		BatchID      string     `yaml:"batchId"`
		Quantity     float64    `yaml:"quantity"`
		CostPerUnit  float64    `yaml:"costPerUnit"`
		ReceivedDate time.Time  `yaml:"receivedDate"`
		ExpiryDate   *time.Time `yaml:"expiryDate"`
		Status       string     `yaml:"status"`
	} `yaml:"batches"`
}

func (f batchFile) toBatches() ([]entity.Batch, error) {
	out := make([]entity.Batch, 0, len(f.Batches))
	for i, b := range f.Batches {
		if b.Quantity < 0 || b.CostPerUnit < 0 {
			return nil, fmt.Errorf("batch %d: quantity and cost must not be negative", i+1)
		}
		status := entity.BatchAvailable
		if s := strings.TrimSpace(b.Status); s != "" {
			status = entity.BatchStatus(strings.ToLower(s))
		}
		id := b.BatchID
		if id == "" {
			id = fmt.Sprintf("B%d", i+1)
		}
		out = append(out, entity.Batch{
			BatchID:      id,
			Quantity:     decimal.NewFromFloat(b.Quantity),
			CostPerUnit:  decimal.NewFromFloat(b.CostPerUnit),
			ReceivedDate: b.ReceivedDate,
			ExpiryDate:   b.ExpiryDate,
			Status:       status,
		})
	}
	return out, nil
}

// historyFile is the YAML layout read by "cost project".
type historyFile struct {
	History []struct {
		Date time.Time `yaml:"date"`
		Cost float64   `yaml:"cost"`
	} `yaml:"history"`
}

func (f historyFile) toPoints() []costing.PricePoint {
	out := make([]costing.PricePoint, 0, len(f.History))
	for _, p := range f.History {
		out = append(out, costing.PricePoint{Date: p.Date, Cost: decimal.NewFromFloat(p.Cost)})
	}
	return out
}

func newCostCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cost",
		Short: "Cost what-if analysis over batch files",
	}
	cmd.AddCommand(newCostCompareCommand(opts))
	cmd.AddCommand(newCostProjectCommand(opts))
	return cmd
}

func newCostCompareCommand(opts *rootOptions) *cobra.Command {
	var (
		file string
		qty  float64
	)

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare FIFO, LIFO and weighted average for one consumption",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if qty <= 0 {
				return fmt.Errorf("--qty must be positive")
			}
			var f batchFile
			if err := readYAML(file, &f); err != nil {
				return err
			}
			batches, err := f.toBatches()
			if err != nil {
				return err
			}

			cmp, err := opts.calculator.Compare(batches, decimal.NewFromFloat(qty))
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), cmp, func(w io.Writer) {
				for _, r := range cmp.Results {
					fmt.Fprintf(w, "%-8s total %s  unit %s  consumed %s\n",
						r.Method, r.TotalCost.StringFixed(2), r.UnitCost.StringFixed(4), r.Consumed.String())
				}
				fmt.Fprintf(w, "recommended %s, saves %s\n", cmp.Recommended, cmp.Savings.StringFixed(2))
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with a batches list")
	cmd.Flags().Float64Var(&qty, "qty", 0, "quantity to consume")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("qty")
	return cmd
}

func newCostProjectCommand(opts *rootOptions) *cobra.Command {
	var (
		file    string
		periods int
	)

	cmd := &cobra.Command{
		Use:   "project",
		Short: "Project unit cost from price history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if periods < 1 || periods > 120 {
				return fmt.Errorf("--periods must be between 1 and 120")
			}
			var f historyFile
			if err := readYAML(file, &f); err != nil {
				return err
			}
			if len(f.History) < 2 {
				return fmt.Errorf("%s: at least two history points are required", file)
			}

			fc := opts.calculator.Project(f.toPoints(), periods)
			return opts.print(cmd.OutOrStdout(), fc, func(w io.Writer) {
				fmt.Fprintf(w, "slope %.4f per period\n", fc.Slope)
				for _, p := range fc.Projections {
					fmt.Fprintf(w, "%3d  %s  %s  (confidence %.2f)\n",
						p.Period, p.Date.Format(time.DateOnly), p.Cost.StringFixed(2), p.Confidence)
				}
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with a history list")
	cmd.Flags().IntVar(&periods, "periods", 3, "periods to project")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
