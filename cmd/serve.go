package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/listings/internal/config"
	"github.com/sells-group/listings/internal/listing"
	"github.com/sells-group/listings/internal/metrics"
	"github.com/sells-group/listings/internal/model"
	"github.com/sells-group/listings/internal/session"
	"github.com/sells-group/listings/internal/store"
	"github.com/sells-group/listings/internal/web"
	"github.com/sells-group/listings/pkg/geocode"
)

const shutdownTimeout = 10 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the listings web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "serve: migrate")
		}

		up, err := initUploader(ctx, cfg.Upload)
		if err != nil {
			return err
		}

		m := metrics.New()
		gc, err := initGeocoder(cfg.Geocode, m)
		if err != nil {
			return err
		}

		handler, err := buildRouter(cfg, st, gc, up, m)
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Error("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// buildRouter wires the listing service, sessions and metrics into the web
// router.
func buildRouter(c *config.Config, st store.Store, gc geocode.Client, up *uploads, m *metrics.Metrics) (http.Handler, error) {
	sessions, err := session.NewManager(c.Server.SessionSecret, c.Server.SecureCookies)
	if err != nil {
		return nil, err
	}

	svc := listing.NewService(st, gc, up.uploader, listing.WithObserver(m.ObserveUpsert))

	srv, err := web.NewServer(web.Deps{
		Listings: svc,
		Store:    st,
		Sessions: sessions,
		Metrics:  m,
		Map: model.MapDefaults{
			Lat:   c.Map.DefaultLat,
			Lng:   c.Map.DefaultLng,
			Zoom:  c.Map.DefaultZoom,
			Label: c.Map.DefaultLabel,
		},
		MaxUploadBytes: int64(c.Server.MaxUploadMB) << 20,
		Uploads:        up.handler,
		UploadPrefix:   up.prefix,
	})
	if err != nil {
		return nil, err
	}
	return srv.Router(), nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
