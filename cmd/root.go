package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/listings/internal/config"
)

var (
	cfg *config.Config

	// loggerReady is set once the global logger replaces zap's no-op default.
	loggerReady bool
)

var rootCmd = &cobra.Command{
	Use:   "listings",
	Short: "Property listings web app",
	Long:  "Serves the listings site: geocodes addresses on create and update, stores images, and renders map-backed listing pages.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "listings: load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "listings: init logger")
		}
		loggerReady = true

		zap.L().Debug("listings: command starting",
			zap.String("command", cmd.Name()),
			zap.String("store", cfg.Store.Driver),
			zap.String("geocoder", cfg.Geocode.Provider),
		)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		syncLogger()
	},
}

// syncLogger flushes the global logger if this process configured one.
func syncLogger() {
	if !loggerReady {
		return
	}
	// stderr/stdout sinks return EINVAL on sync under some terminals.
	_ = zap.L().Sync()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		syncLogger()
		os.Exit(1)
	}
}
