package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/hearthline/hearthline/internal/app"
	"github.com/hearthline/hearthline/internal/httpapi/handlers"
	"github.com/hearthline/hearthline/internal/httpapi/server"
	"github.com/hearthline/hearthline/internal/periodicjobs"
	"github.com/hearthline/hearthline/pkg/assetcache"
	"github.com/hearthline/hearthline/pkg/cache"
	"github.com/hearthline/hearthline/pkg/cache/redis"
	"github.com/hearthline/hearthline/pkg/config"
	"github.com/hearthline/hearthline/pkg/connectivity"
	"github.com/hearthline/hearthline/pkg/logger"
	"github.com/hearthline/hearthline/pkg/mesh"
	"github.com/hearthline/hearthline/pkg/request/httpclient"
	"github.com/hearthline/hearthline/pkg/store"
	"github.com/hearthline/hearthline/pkg/syncer"
	"github.com/hearthline/hearthline/pkg/telemetry"
	"github.com/hearthline/hearthline/pkg/types"

	_ "github.com/hearthline/hearthline/pkg/cache/inmemory"
)

const shutdownDrainTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		logrus.WithError(err).Fatal("hearthline exited")
	}
}

func run() error {
	cfg, err := config.GetConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithFields(ctx, logrus.Fields{"service": cfg.App.Name, "environment": cfg.App.Environment})
	log := logger.Logger(ctx)

	if err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.App.Version,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Insecure:       cfg.Telemetry.Insecure,
		Enabled:        cfg.Telemetry.Enabled,
		ExportInterval: cfg.Telemetry.ExportInterval,
	}); err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetry.Shutdown(context.Background()); err != nil {
			log.WithError(err).Warn("telemetry shutdown failed")
		}
	}()
	meter := telemetry.GetMeter("github.com/hearthline/hearthline")

	substrate, err := cache.New(&cfg.Cache)
	if err != nil {
		return err
	}
	defer substrate.Close()

	storeMetrics, err := telemetry.NewStoreMetrics(meter)
	if err != nil {
		return err
	}
	records, err := store.New(substrate,
		store.WithKeys(store.KeysWithPrefix(cfg.Store.KeyPrefix)),
		store.WithDecodeObserver(func(ctx context.Context, skipped *store.DecodeSkipped) {
			storeMetrics.RecordDecodeSkipped(ctx, skipped.Key)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize record store: %w", err)
	}

	network, closeNetwork, err := newNetwork(cfg)
	if err != nil {
		return err
	}
	defer closeNetwork()

	syncMetrics, err := telemetry.NewSyncMetrics(meter)
	if err != nil {
		return err
	}
	events := handlers.NewEventStream()
	coordinator, err := syncer.New(network, records,
		syncer.WithMetrics(syncMetrics),
		syncer.WithReloader(events),
	)
	if err != nil {
		return err
	}

	monitor, err := newMonitor(cfg)
	if err != nil {
		return err
	}
	if _, err := telemetry.NewConnectivityGauge(meter, monitor.Online); err != nil {
		return err
	}

	assets, err := newAssetManager(cfg, substrate, meter)
	if err != nil {
		return err
	}
	backgroundSync := func(ctx context.Context) error {
		_, err := coordinator.Sync(ctx, syncer.TriggerBackground)
		return err
	}
	if assets != nil {
		assets.SetSyncHook(backgroundSync)
		monitor.OnReconnect(func(ctx context.Context) {
			assets.HandleSyncEvent(ctx, assetcache.SyncTagBackground)
		})
	} else {
		monitor.OnReconnect(func(ctx context.Context) {
			if err := backgroundSync(ctx); err != nil {
				logger.Logger(ctx).WithError(err).Warn("background sync failed")
			}
		})
	}

	service, err := app.New(app.Dependencies{
		Store:         records,
		Network:       network,
		Syncer:        coordinator,
		Monitor:       monitor,
		Assets:        assets,
		DefaultSender: cfg.App.DefaultSender,
	})
	if err != nil {
		return err
	}

	if assets != nil {
		manifest, err := loadManifest(cfg)
		if err != nil {
			return err
		}
		if _, err := service.Precache(ctx, manifest); err != nil {
			log.WithError(err).Warn("precache failed, serving from network until the next restart")
		}
	}

	taskManager := periodicjobs.NewPeriodicTaskManager()
	periodicjobs.NewConnectivityPollJob(monitor, cfg.Sync.PollInterval).AddToPeriodicTaskManager(taskManager)
	if announcer, ok := network.(mesh.Announcer); ok {
		periodicjobs.NewPresenceAnnounceJob(announcer, cfg.Mesh.PeerTTL).AddToPeriodicTaskManager(taskManager)
	}
	tasks := periodicjobs.NewPeriodicTasksController(taskManager, 0)

	apiServer := server.NewAPIServer(cfg, handlers.NewHandlers(cfg, service, assets, events))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return apiServer.Start(gctx)
	})
	g.Go(func() error {
		if err := tasks.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	err = g.Wait()

	drain, cancelDrain := context.WithTimeout(context.Background(), shutdownDrainTimeout)
	defer cancelDrain()
	if waitErr := monitor.Wait(drain); waitErr != nil {
		log.WithError(waitErr).Warn("reconnect sync still running at shutdown")
	}
	return err
}

// newNetwork builds the configured mesh transport and its cleanup func
func newNetwork(cfg *config.AppConfig) (mesh.Network, func(), error) {
	switch cfg.Mesh.Transport {
	case "redis":
		client, err := redis.NewClient(&cfg.Mesh.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect mesh transport: %w", err)
		}
		network, err := mesh.NewRedisNetwork(client, cfg.Mesh.NodeID, cfg.Mesh.NodeName, cfg.Mesh.PeerTTL)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return network, func() { _ = client.Close() }, nil
	default:
		peers := make([]types.Device, 0, len(cfg.Mesh.Peers))
		for _, p := range cfg.Mesh.Peers {
			peers = append(peers, types.Device{ID: p.ID, Name: p.Name, Connected: p.Connected})
		}
		return mesh.NewSimulated(peers), func() {}, nil
	}
}

func newMonitor(cfg *config.AppConfig) (*connectivity.Monitor, error) {
	if cfg.Sync.ProbeURL == "" {
		return connectivity.NewMonitor(nil, true), nil
	}

	pool := cfg.HttpClient.ConnectionPoolConfig
	if cfg.Sync.ProbeTimeout > 0 {
		pool.TimeoutInMs = cfg.Sync.ProbeTimeout.Milliseconds()
	}
	client, err := httpclient.InitializeClient("hearthline-probe", pool,
		cfg.HttpClient.HystrixResiliencyConfig, httpclient.DefaultRetrier(), 0, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize probe client: %w", err)
	}
	prober, err := connectivity.NewHTTPProber(client, cfg.Sync.ProbeURL)
	if err != nil {
		return nil, err
	}
	return connectivity.NewMonitor(prober, true), nil
}
