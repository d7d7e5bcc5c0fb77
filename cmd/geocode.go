package main

import (
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/listings/pkg/geocode"
)

var geocodeLimit int

var geocodeCmd = &cobra.Command{
	Use:   "geocode <query>",
	Short: "Resolve an address with the configured geocoder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("geocode"); err != nil {
			return err
		}
		gc, err := initGeocoder(cfg.Geocode, nil)
		if err != nil {
			return err
		}

		results := gc.Forward(cmd.Context(), args[0], geocodeLimit)
		if len(results) == 0 {
			return eris.Errorf("geocode: no match for %q", args[0])
		}
		printResults(cmd.OutOrStdout(), results)
		return nil
	},
}

// printResults writes one line per match: formatted address, then [lng, lat].
func printResults(w io.Writer, results []geocode.Result) {
	for _, r := range results {
		fmt.Fprintf(w, "%s\t[%g, %g]\tconfidence=%d\n", r.Formatted, r.Longitude, r.Latitude, r.Confidence)
	}
}

func init() {
	geocodeCmd.Flags().IntVar(&geocodeLimit, "limit", 1, "maximum number of matches")
	rootCmd.AddCommand(geocodeCmd)
}
