// pilightgw validates pilight daemon traffic against the protocol catalog.
//
// It subscribes to the pilight send and receive topics on an MQTT broker,
// checks every payload against the active catalog, republishes accepted
// payloads under validated/ and reports rejections under rejected/. An HTTP
// API exposes the catalog, one-shot validation and the rejection audit log.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/pilight-gateway/migrations"

	"github.com/nerrad567/pilight-gateway/internal/api"
	"github.com/nerrad567/pilight-gateway/internal/audit"
	"github.com/nerrad567/pilight-gateway/internal/catalogstore"
	"github.com/nerrad567/pilight-gateway/internal/catalogwatch"
	"github.com/nerrad567/pilight-gateway/internal/gateway"
	"github.com/nerrad567/pilight-gateway/internal/infrastructure/config"
	"github.com/nerrad567/pilight-gateway/internal/infrastructure/database"
	"github.com/nerrad567/pilight-gateway/internal/infrastructure/influxdb"
	"github.com/nerrad567/pilight-gateway/internal/infrastructure/logging"
	"github.com/nerrad567/pilight-gateway/internal/infrastructure/mqtt"
	"github.com/nerrad567/pilight-gateway/internal/protocol"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting pilight gateway",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	store := catalogstore.New(db.DB)
	rejections := audit.NewSQLiteRepository(db.DB)

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Build the initial protocol registry
	reg, source, err := loadRegistry(ctx, cfg, store, log)
	if err != nil {
		return fmt.Errorf("loading protocol catalog: %w", err)
	}
	holder := protocol.NewHolder(reg)
	if influxClient != nil {
		influxClient.WriteCatalogLoad(reg.Len(), source)
	}
	log.Info("protocol catalog active", "source", source, "protocols", reg.Len())

	// Watch the catalog file (optional)
	if cfg.Catalog.Watch && cfg.Catalog.Path != "" {
		watcher, watchErr := startWatcher(ctx, cfg, holder, store, influxClient, log)
		if watchErr != nil {
			return fmt.Errorf("starting catalog watcher: %w", watchErr)
		}
		defer func() {
			log.Info("stopping catalog watcher")
			if stopErr := watcher.Stop(); stopErr != nil {
				log.Error("error stopping catalog watcher", "error", stopErr)
			}
		}()
	}

	// Connect to MQTT and start the gateway (optional)
	var mqttClient *mqtt.Client
	var gw *gateway.Gateway
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
			"topic_prefix", mqttClient.Topics().Prefix,
		)

		gw, err = startGateway(cfg, holder, mqttClient, rejections, influxClient, log)
		if err != nil {
			return fmt.Errorf("starting gateway: %w", err)
		}
		defer gw.Stop()
	} else {
		log.Info("MQTT disabled, gateway not started")
	}

	// Prune old rejections
	if cfg.Gateway.AuditRejections && cfg.RejectionRetention() > 0 {
		pruner := audit.NewPruner(rejections, cfg.RejectionRetention(), audit.DefaultPruneInterval, log)
		go pruner.Run(ctx)
	}

	// Start the HTTP API (optional)
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:     cfg.API,
			Logger:     log,
			Holder:     holder,
			Strict:     cfg.Catalog.Strict,
			Catalogs:   store,
			Rejections: rejections,
			Version:    version,
		}
		if gw != nil {
			deps.Gateway = gw
		}
		if mqttClient != nil {
			deps.MQTT = mqttClient
		}
		if influxClient != nil {
			deps.Metrics = influxClient
		}

		server, apiErr := api.New(deps)
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if apiErr = server.Start(ctx); apiErr != nil {
			return fmt.Errorf("starting API server: %w", apiErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	log.Info("pilight gateway stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses PILIGHT_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv(config.EnvConfigPath); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadRegistry builds the startup registry and names where its catalog
// came from.
//
// Order: catalog.path if set; otherwise the latest stored revision when
// catalog.use_store is set; otherwise the embedded catalog. An empty store
// falls back to the embedded catalog.
func loadRegistry(ctx context.Context, cfg *config.Config, store *catalogstore.Store, log *logging.Logger) (*protocol.Registry, string, error) {
	opts := []protocol.Option{
		protocol.WithLogger(log),
		protocol.WithStrict(cfg.Catalog.Strict),
	}

	if cfg.Catalog.Path != "" {
		format, err := protocol.ParseFormat(cfg.Catalog.Format)
		if err != nil {
			return nil, "", err
		}
		cat, err := protocol.FileLoader{Path: cfg.Catalog.Path, Format: format}.Load(ctx)
		if err != nil {
			return nil, "", err
		}
		reg, err := protocol.NewRegistry(ctx, cat, opts...)
		if err != nil {
			return nil, "", err
		}
		log.Info("protocol catalog loaded from file", "path", cfg.Catalog.Path, "protocols", reg.Len())
		return reg, catalogstore.SourceFile, nil
	}

	if cfg.Catalog.UseStore {
		cat, err := store.Loader().Load(ctx)
		switch {
		case err == nil:
			reg, err := protocol.NewRegistry(ctx, cat, opts...)
			if err != nil {
				return nil, "", err
			}
			log.Info("protocol catalog loaded from store", "protocols", reg.Len())
			return reg, catalogstore.SourceAPI, nil
		case !errors.Is(err, catalogstore.ErrNoRevision):
			return nil, "", fmt.Errorf("%w: loading stored catalog: %w", protocol.ErrLoad, err)
		}
		log.Info("no stored catalog revision, using embedded catalog")
	}

	reg, err := protocol.NewRegistry(ctx, nil, opts...)
	if err != nil {
		return nil, "", err
	}
	return reg, catalogstore.SourceEmbedded, nil
}

// startWatcher reloads catalog.path on change. Every successful reload is
// stored as a revision and recorded as a catalog load.
func startWatcher(ctx context.Context, cfg *config.Config, holder *protocol.Holder, store *catalogstore.Store, influxClient *influxdb.Client, log *logging.Logger) (*catalogwatch.Watcher, error) {
	format, err := protocol.ParseFormat(cfg.Catalog.Format)
	if err != nil {
		return nil, err
	}

	hook := func(ctx context.Context, cat *protocol.Catalog, err error) {
		if err != nil {
			return
		}
		if _, saveErr := store.Save(ctx, cat, catalogstore.SourceFile); saveErr != nil {
			log.Error("failed to store reloaded catalog", "error", saveErr)
		}
		if influxClient != nil {
			influxClient.WriteCatalogLoad(len(cat.Protocols), catalogstore.SourceFile)
		}
	}

	watcher, err := catalogwatch.New(catalogwatch.Config{
		Path:     cfg.Catalog.Path,
		Format:   format,
		Strict:   cfg.Catalog.Strict,
		Debounce: cfg.Debounce(),
	}, holder, catalogwatch.WithLogger(log), catalogwatch.WithHook(hook))
	if err != nil {
		return nil, err
	}

	if err := watcher.Start(ctx); err != nil {
		_ = watcher.Stop()
		return nil, err
	}
	return watcher, nil
}

// startGateway creates the validation gateway and subscribes it to the
// inbound topics.
func startGateway(cfg *config.Config, holder *protocol.Holder, mqttClient *mqtt.Client, rejections *audit.SQLiteRepository, influxClient *influxdb.Client, log *logging.Logger) (*gateway.Gateway, error) {
	opts := gateway.Options{
		Holder: holder,
		MQTT:   mqttClient,
		Settings: gateway.Settings{
			Topics:            mqttClient.Topics(),
			SendAsList:        cfg.Gateway.SendAsList,
			ReceiveAsList:     cfg.Gateway.ReceiveAsList,
			PublishRejections: cfg.Gateway.PublishRejections,
			AuditRejections:   cfg.Gateway.AuditRejections,
		},
		Audit:  rejections,
		Logger: log,
	}
	if influxClient != nil {
		opts.Metrics = influxClient
	}

	gw, err := gateway.New(opts)
	if err != nil {
		return nil, err
	}
	if err := gw.Start(); err != nil {
		gw.Stop()
		return nil, err
	}
	log.Info("gateway started",
		"send_topic", opts.Settings.Topics.Send(),
		"receive_topic", opts.Settings.Topics.Receive(),
	)
	return gw, nil
}

// healthCheck verifies all infrastructure connections are healthy.
// mqttClient and influxClient may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
