package main

import (
	"fmt"

	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/hearthline/hearthline/pkg/assetcache"
	"github.com/hearthline/hearthline/pkg/cache"
	"github.com/hearthline/hearthline/pkg/config"
	"github.com/hearthline/hearthline/pkg/request/httpclient"
	"github.com/hearthline/hearthline/pkg/telemetry"
)

// newAssetManager returns nil when no asset origin is configured
func newAssetManager(cfg *config.AppConfig, c cache.Cache, meter otelmetric.Meter) (*assetcache.Manager, error) {
	if cfg.Assets.Origin == "" {
		return nil, nil
	}

	client, err := httpclient.InitializeClient("hearthline-assets",
		cfg.HttpClient.ConnectionPoolConfig,
		cfg.HttpClient.HystrixResiliencyConfig,
		httpclient.DefaultRetrier(),
		cfg.HttpClient.RetryCount,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize asset client: %w", err)
	}

	metrics, err := telemetry.NewAssetMetrics(meter)
	if err != nil {
		return nil, err
	}

	return assetcache.New(c, client, cfg.Assets.Origin,
		assetcache.WithConcurrency(cfg.Assets.InstallConcurrency),
		assetcache.WithMetrics(metrics),
	)
}

// loadManifest prefers the manifest file and falls back to the inline config
func loadManifest(cfg *config.AppConfig) (*assetcache.Manifest, error) {
	if cfg.Assets.ManifestFile != "" {
		return assetcache.LoadManifest(cfg.Assets.ManifestFile)
	}

	manifest := &assetcache.Manifest{
		Version:   cfg.Assets.Version,
		Fallback:  cfg.Assets.Fallback,
		Resources: cfg.Assets.Resources,
	}
	if err := manifest.Validate(); err != nil {
		return nil, fmt.Errorf("invalid inline asset manifest: %w", err)
	}
	return manifest, nil
}
