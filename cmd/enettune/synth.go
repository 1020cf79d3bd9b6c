package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/enettune/dataset"
	"github.com/YuminosukeSato/enettune/pkg/errors"
)

func newSynthCmd() *cobra.Command {
	var (
		rows, features int
		noise          float64
		seed           uint64
		out            string
	)
	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Write a synthetic regression dataset",
		Long:  `synth writes predictors x1..xN and a linear outcome "lat" with Gaussian noise, for trying out the tune command.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			tbl, err := dataset.MakeRegression(rows, features, noise, seed)
			if err != nil {
				return err
			}
			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return errors.Wrapf(err, "failed to create %s", out)
				}
				defer func() {
					if cerr := f.Close(); cerr != nil && err == nil {
						err = cerr
					}
				}()
				w = f
			}
			return dataset.WriteCSV(w, tbl)
		},
	}
	f := cmd.Flags()
	f.IntVar(&rows, "rows", 100, "number of rows")
	f.IntVar(&features, "features", 3, "number of predictors")
	f.Float64Var(&noise, "noise", 1.0, "standard deviation of the outcome noise")
	f.Uint64Var(&seed, "seed", 18, "random seed")
	f.StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}
