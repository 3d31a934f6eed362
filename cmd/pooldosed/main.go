// PoolDose service
//
// pooldosed connects to a SEKO PoolDose dosing controller, polls its
// instant values and fans every snapshot out to the configured sinks
// (SQLite history, MQTT, InfluxDB, Valkey, Kafka). A REST API serves the
// latest values and accepts validated setpoint writes.
//
// Usage:
//
//	pooldosed                  run the service
//	pooldosed hash-password    read a password from stdin, print its Argon2id hash
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "github.com/lmaertin/pooldose-go/migrations"

	"github.com/lmaertin/pooldose-go/internal/api"
	"github.com/lmaertin/pooldose-go/internal/auth"
	"github.com/lmaertin/pooldose-go/internal/history"
	"github.com/lmaertin/pooldose-go/internal/infrastructure/config"
	"github.com/lmaertin/pooldose-go/internal/infrastructure/database"
	"github.com/lmaertin/pooldose-go/internal/infrastructure/influxdb"
	"github.com/lmaertin/pooldose-go/internal/infrastructure/kafka"
	"github.com/lmaertin/pooldose-go/internal/infrastructure/logging"
	"github.com/lmaertin/pooldose-go/internal/infrastructure/mqtt"
	"github.com/lmaertin/pooldose-go/internal/infrastructure/valkey"
	"github.com/lmaertin/pooldose-go/internal/mapping"
	"github.com/lmaertin/pooldose-go/internal/metrics"
	"github.com/lmaertin/pooldose-go/internal/monitor"
	"github.com/lmaertin/pooldose-go/internal/panel"
	"github.com/lmaertin/pooldose-go/internal/pooldose"
	"github.com/lmaertin/pooldose-go/internal/transport"
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
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		if err := hashPassword(os.Stdin, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting pooldose",
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

	// Open database
	db, err := database.Open(database.ConfigFrom(cfg.Database))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", db.Path())

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	schema, err := db.SchemaStatus(ctx)
	if err != nil {
		return fmt.Errorf("reading schema status: %w", err)
	}
	log.Info("database migrations complete", "schema_version", schema.Version)

	// Connect to the controller
	device, err := connectDevice(ctx, cfg, log)
	if err != nil {
		return err
	}
	static, err := device.StaticValues()
	if err != nil {
		return fmt.Errorf("reading device identity: %w", err)
	}
	deviceID := static.DeviceID
	log.Info("device connected",
		"device_id", deviceID,
		"model_id", static.ModelID,
		"fw_code", static.FWCode,
		"values", device.Mapping().Len(),
	)

	var reg *metrics.Metrics
	if cfg.Metrics.Enabled {
		reg = metrics.New()
	}

	historyRepo := history.NewSQLiteRepository(db.DB)
	sinks := []monitor.Sink{monitor.NewHistorySink(historyRepo)}
	components := map[string]api.HealthChecker{"database": db}

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT, deviceID)
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
		components["mqtt"] = mqttClient
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, err := influxdb.Connect(ctx, cfg.InfluxDB)
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
		sinks = append(sinks, monitor.NewInfluxSink(influxClient))
		components["influxdb"] = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	// Connect to Valkey (optional)
	if cfg.Valkey.Enabled {
		valkeyClient, err := valkey.Connect(ctx, cfg.Valkey)
		if err != nil {
			return fmt.Errorf("connecting to Valkey: %w", err)
		}
		defer func() {
			log.Info("closing Valkey connection")
			if closeErr := valkeyClient.Close(); closeErr != nil {
				log.Error("error closing Valkey", "error", closeErr)
			}
		}()
		sinks = append(sinks, monitor.NewValkeySink(valkeyClient))
		components["valkey"] = valkeyClient
		log.Info("Valkey connected", "address", cfg.Valkey.Address)
	}

	// Connect to Kafka (optional)
	if cfg.Kafka.Enabled {
		producer, err := kafka.Connect(ctx, cfg.Kafka)
		if err != nil {
			return fmt.Errorf("connecting to Kafka: %w", err)
		}
		defer func() {
			sent, failed := producer.Stats()
			log.Info("closing Kafka producer", "sent", sent, "failed", failed)
			if closeErr := producer.Close(); closeErr != nil {
				log.Error("error closing Kafka", "error", closeErr)
			}
		}()
		sinks = append(sinks, monitor.NewKafkaSink(producer))
		log.Info("Kafka connected", "brokers", cfg.Kafka.Brokers, "topic", producer.Topic())
	}

	// Start the monitor
	monOpts := monitor.Options{
		Client:    device,
		DeviceID:  deviceID,
		Interval:  cfg.GetPollInterval(),
		Retention: cfg.GetHistoryRetention(),
		QoS:       byte(cfg.MQTT.QoS), //nolint:gosec // validated to 0..2
		Metrics:   reg,
		Sinks:     sinks,
		Logger:    log,
	}
	if mqttClient != nil {
		monOpts.MQTT = mqttClient
	}
	mon, err := monitor.New(monOpts)
	if err != nil {
		return fmt.Errorf("creating monitor: %w", err)
	}
	defer mon.Stop()

	if cfg.Poll.Enabled {
		if startErr := mon.Start(ctx); startErr != nil {
			return fmt.Errorf("starting monitor: %w", startErr)
		}
	} else {
		log.Warn("polling disabled, serving a single snapshot")
		if pollErr := mon.Poll(ctx); pollErr != nil {
			log.Warn("poll failed", "error", pollErr)
		}
	}

	// Start the API server (optional)
	if cfg.API.Enabled {
		authenticator, err := auth.FromConfig(cfg.Security)
		if err != nil {
			return fmt.Errorf("creating authenticator: %w", err)
		}
		if authenticator.Accounts() == 0 {
			log.Warn("no admin password hash configured, value writes are disabled",
				"hint", "pooldosed hash-password")
		}

		deps := api.Deps{
			Config:      cfg.API,
			Logger:      log,
			Values:      mon,
			Device:      device,
			Version:     version,
			History:     historyRepo,
			Auth:        authenticator,
			Metrics:     reg,
			MetricsPath: cfg.Metrics.Path,
			Components:  components,
			DB:          db,
			Sinks:       mon.SinkNames(),
		}
		if mqttClient != nil {
			deps.MQTT = mqttClient
		}
		if cfg.API.Panel.Enabled {
			deps.Panel, err = panel.Handler(cfg.API.Panel.Dir)
			if err != nil {
				return fmt.Errorf("loading panel: %w", err)
			}
		}
		server, err := api.New(deps)
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: API, monitor, sinks, MQTT, database.

	log.Info("pooldose stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses POOLDOSE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("POOLDOSE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// connectDevice builds the transport for the configured controller or
// mock dump and runs the bootstrap sequence.
func connectDevice(ctx context.Context, cfg *config.Config, log *logging.Logger) (*pooldose.Client, error) {
	var t pooldose.Transport
	if cfg.Device.MockFile != "" {
		mock, err := transport.NewMock(cfg.Device.MockFile, cfg.Device.MockModelID, cfg.Device.MockFWCode)
		if err != nil {
			return nil, fmt.Errorf("loading mock device: %w", err)
		}
		log.Warn("using mock device", "file", cfg.Device.MockFile)
		t = mock
	} else {
		client, err := transport.New(transport.Options{
			Host:      cfg.Device.Host,
			Port:      cfg.Device.Port,
			UseSSL:    cfg.Device.SSL,
			SSLVerify: cfg.Device.SSLVerify,
			Timeout:   cfg.GetDeviceTimeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("creating device transport: %w", err)
		}
		client.SetLogger(log)
		t = client
	}

	device := pooldose.New(t, pooldose.Options{
		IncludeSensitiveData: cfg.Device.IncludeSensitiveData,
		Loader:               mapping.NewLoader(cfg.Device.MappingDir),
		Logger:               log,
	})
	if err := device.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connecting to device: %w", err)
	}
	return device, nil
}

// hashPassword reads one line from r and writes its Argon2id PHC hash to w,
// ready for security.admin.password_hash.
func hashPassword(r io.Reader, w io.Writer) error {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return errors.New("password is empty")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	_, err = fmt.Fprintln(w, hash)
	return err
}
