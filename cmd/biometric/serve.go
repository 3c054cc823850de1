package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-biometric/internal/api"
	"github.com/nerrad567/gray-logic-biometric/internal/audit"
	"github.com/nerrad567/gray-logic-biometric/internal/capture"
	"github.com/nerrad567/gray-logic-biometric/internal/capturelog"
	"github.com/nerrad567/gray-logic-biometric/internal/fanout"
	"github.com/nerrad567/gray-logic-biometric/internal/health"
	"github.com/nerrad567/gray-logic-biometric/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-biometric/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-biometric/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-biometric/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-biometric/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-biometric/internal/quality"
	"github.com/nerrad567/gray-logic-biometric/internal/relay"
	"github.com/nerrad567/gray-logic-biometric/internal/sensor"
	"github.com/nerrad567/gray-logic-biometric/internal/sensor/simdriver"
	"github.com/nerrad567/gray-logic-biometric/internal/snapshot"
	"github.com/nerrad567/gray-logic-biometric/internal/station"
	"github.com/nerrad567/gray-logic-biometric/migrations"
)

// drainTimeout bounds the wait for fan-out listeners to empty their queues.
const drainTimeout = 5 * time.Second

func newServeCmd(configPath func() string) *cobra.Command {
	var startCapture bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the capture station",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath(), startCapture)
		},
	}
	cmd.Flags().BoolVar(&startCapture, "start-capture", false, "start capturing as soon as the station is up")
	return cmd
}

// run wires every component and blocks until ctx is cancelled.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context, configPath string, startCapture bool) error { //nolint:gocognit,gocyclo // Linear wiring of optional components
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := logging.Default()
	log.Info("starting biometric station",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version).With("station_id", cfg.Station.ID)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Capture log
	db, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	captureLog := capturelog.NewSQLiteRepository(db.DB)
	auditLog := audit.NewSQLiteRepository(db.DB)

	// Sensor
	driver, err := newDriver(cfg.Sensor)
	if err != nil {
		return err
	}
	sessionOpts, err := sessionOptions(cfg.Sensor, log.Component("session"))
	if err != nil {
		return err
	}
	session := sensor.NewSession(driver, sessionOpts)

	// MQTT (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT, cfg.Station.ID)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
		mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB (optional)
	influxClient, err := influxdb.Connect(ctx, cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
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
	}

	// Listeners and observers. The dispatcher drains before the MQTT and
	// InfluxDB clients close.
	dispatcher := fanout.New(cfg.Fanout.QueueSize, log.Component("fanout"))
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
		defer cancel()
		if closeErr := dispatcher.Close(drainCtx); closeErr != nil {
			log.Warn("fan-out listeners did not drain", "error", closeErr)
		}
	}()

	relayLog := log.Component("relay")
	hub := api.NewHub(cfg.WebSocket, cfg.Station.ID, log)
	store := relay.NewStore(captureLog, cfg.Station.ID, relayLog)
	defer store.Wait()
	observers := relay.Observers{store, hub}
	listeners := map[string]fanout.Listener{"store": store}

	if mqttClient != nil {
		mqttRelay := relay.NewMQTT(mqttClient, cfg.Station.ID, relayLog)
		observers = append(observers, mqttRelay)
		listeners["mqtt"] = mqttRelay
	}
	if influxClient != nil {
		metrics := relay.NewMetrics(influxClient, cfg.Station.ID)
		observers = append(observers, metrics)
		listeners["metrics"] = metrics
	}
	for name, l := range listeners {
		if _, subErr := dispatcher.Subscribe(name, l); subErr != nil {
			return fmt.Errorf("subscribing %s listener: %w", name, subErr)
		}
	}

	// Capture loop and station
	scorer := quality.NewScorer(scorerParams(cfg.Sensor))
	loop := capture.New(session, scorer, dispatcher, capture.Options{
		PollInterval:     cfg.Sensor.PollInterval(),
		FailureThreshold: cfg.Sensor.FailureThreshold,
		RecoveryDelay:    cfg.Sensor.RecoveryDelay(),
		Observer:         observers,
		Logger:           log.Component("capture"),
	})

	var snapshots *snapshot.Writer
	if cfg.Captures.Dir != "" {
		snapshots = snapshot.NewWriter(cfg.Captures.Dir)
	}
	st := station.New(station.Config{
		StationID:  cfg.Station.ID,
		Session:    session,
		Loop:       loop,
		Snapshots:  snapshots,
		CaptureLog: captureLog,
		Audit:      auditLog,
		Logger:     log.Component("station"),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return st.Run(gctx) })

	// Health reporting and remote commands ride on MQTT.
	var healthSource api.HealthSource
	if mqttClient != nil {
		reporter := health.NewReporter(health.Config{
			StationID: cfg.Station.ID,
			Version:   version,
			Publisher: mqttClient,
			Source:    st,
			Logger:    log.Component("health"),
		})
		if pubErr := reporter.PublishStarting(); pubErr != nil {
			log.Warn("failed to publish starting status", "error", pubErr)
		}
		reporter.Start(gctx)
		defer reporter.Stop()
		healthSource = reporter

		commandTopic := mqtt.Topics{}.Command(cfg.Station.ID)
		if subErr := mqttClient.Subscribe(commandTopic, byte(cfg.MQTT.QoS), st.HandleCommand); subErr != nil {
			return fmt.Errorf("subscribing to %s: %w", commandTopic, subErr)
		}
		log.Info("listening for commands", "topic", commandTopic)
	}

	// HTTP API
	server, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Logger:     log.Component("api"),
		Station:    st,
		Events:     dispatcher,
		CaptureLog: captureLog,
		Audit:      auditLog,
		Health:     healthSource,
		Hub:        hub,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(gctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient, server); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	if startCapture {
		if startErr := st.StartCapture(); startErr != nil {
			log.Warn("capture not started", "error", startErr)
		}
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("biometric station stopped")
	return nil
}

// openDatabase opens the capture log database and applies migrations.
func openDatabase(ctx context.Context, cfg *config.Config, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // Migration error takes precedence
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path)
	return db, nil
}

// newDriver returns the sensor driver named in the config.
func newDriver(cfg config.SensorConfig) (sensor.Driver, error) {
	switch strings.ToLower(cfg.Driver) {
	case "sim":
		// A finger rests on the simulated sensor for 2s out of every 5s at
		// the default poll rate.
		return simdriver.New(simdriver.Options{PresentFrames: 20, AbsentFrames: 30}), nil
	default:
		return nil, fmt.Errorf("unknown sensor driver %q", cfg.Driver)
	}
}

func sessionOptions(cfg config.SensorConfig, logger sensor.Logger) (sensor.Options, error) {
	led, err := sensor.ParseLEDColor(cfg.DefaultLED)
	if err != nil {
		return sensor.Options{}, fmt.Errorf("sensor.default_led: %w", err)
	}
	opts := sensor.DefaultOptions()
	opts.DeviceIndex = cfg.DeviceIndex
	opts.DefaultLED = led
	opts.StartupDelay = cfg.StartupDelay()
	opts.LEDSettle = cfg.LEDSettle()
	opts.LEDRetryDelay = cfg.LEDRetryDelay()
	opts.Speed = cfg.Speed
	opts.Sensitivity = cfg.Sensitivity
	opts.MatchThreshold = cfg.MatchThreshold
	opts.Logger = logger
	return opts, nil
}

func scorerParams(cfg config.SensorConfig) quality.Params {
	params := quality.DefaultParams()
	params.MinDarkPixels = cfg.PresenceMinDarkPixels
	params.MinDarkPct = cfg.PresenceDarkPct
	return params
}

// healthCheck verifies all infrastructure connections are healthy.
// mqttClient and influxClient may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, server *api.Server) error {
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
	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}
