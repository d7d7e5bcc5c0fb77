package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/listings/internal/seed"
)

var (
	seedFile        string
	seedConcurrency int
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load sample listings from a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("seed"); err != nil {
			return err
		}
		ctx := cmd.Context()

		f, err := seed.LoadFile(seedFile)
		if err != nil {
			return err
		}

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "seed: migrate")
		}

		gc, err := initGeocoder(cfg.Geocode, nil)
		if err != nil {
			return err
		}

		sum, err := seed.New(st, gc, seedConcurrency).Run(ctx, f)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "created %d listings\n", sum.Created)
		if len(sum.Skipped) > 0 {
			fmt.Fprintf(out, "skipped %d: %s\n", len(sum.Skipped), strings.Join(sum.Skipped, ", "))
		}
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "configs/seed.yaml", "seed file")
	seedCmd.Flags().IntVar(&seedConcurrency, "concurrency", 4, "parallel geocoding lookups")
	rootCmd.AddCommand(seedCmd)
}
