package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/listings/internal/config"
	"github.com/sells-group/listings/internal/metrics"
	"github.com/sells-group/listings/internal/store"
	"github.com/sells-group/listings/internal/upload"
	"github.com/sells-group/listings/pkg/geocode"
)

func initStore(ctx context.Context, c config.StoreConfig) (store.Store, error) {
	switch c.Driver {
	case "sqlite":
		return store.NewSQLite(c.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, c.DatabaseURL, &store.PoolConfig{
			MaxConns: c.MaxConns,
			MinConns: c.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Driver)
	}
}

// uploads bundles the configured uploader with the handler that serves
// locally stored files. handler is nil for remote backends.
type uploads struct {
	uploader upload.Uploader
	handler  http.Handler
	prefix   string
}

func initUploader(ctx context.Context, c config.UploadConfig) (*uploads, error) {
	switch c.Driver {
	case upload.DriverLocal:
		local, err := upload.NewLocal(c.Dir, c.URLPrefix)
		if err != nil {
			return nil, err
		}
		return &uploads{uploader: local, handler: local.Handler(), prefix: local.URLPrefix()}, nil
	case upload.DriverS3:
		s3u, err := upload.NewS3(ctx, upload.S3Config{
			Bucket:          c.S3.Bucket,
			Region:          c.S3.Region,
			Endpoint:        c.S3.Endpoint,
			AccessKeyID:     c.S3.AccessKeyID,
			SecretAccessKey: c.S3.SecretAccessKey,
			PublicBaseURL:   c.S3.PublicBaseURL,
		})
		if err != nil {
			return nil, err
		}
		return &uploads{uploader: s3u}, nil
	default:
		return nil, eris.Errorf("unsupported upload driver: %s", c.Driver)
	}
}

func initGeocoder(c config.GeocodeConfig, m *metrics.Metrics) (geocode.Client, error) {
	var opts []geocode.Option
	if m != nil {
		opts = append(opts, geocode.WithObserver(m.ObserveGeocode))
	}
	gc, err := geocode.NewClient(geocode.Config{
		Provider:  c.Provider,
		APIKey:    c.APIKey,
		BaseURL:   c.BaseURL,
		Timeout:   c.Timeout(),
		RateLimit: c.RateLimit,

		BreakerThreshold: c.BreakerThreshold,
		BreakerCooldown:  time.Duration(c.BreakerCooldownSecs) * time.Second,
	}, opts...)
	if err != nil {
		return nil, err
	}
	if c.APIKey == "" {
		zap.L().Warn("geocode api key is empty; every lookup will fail", zap.String("provider", c.Provider))
	}
	return gc, nil
}
