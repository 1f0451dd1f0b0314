package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	paho_mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jackc/pgx/v5"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mbeckers/knx-weather-integration/internal/pkg/buserr"
	"github.com/mbeckers/knx-weather-integration/internal/pkg/config"
	"github.com/mbeckers/knx-weather-integration/internal/pkg/contxt"
	"github.com/mbeckers/knx-weather-integration/internal/pkg/database"
	"github.com/mbeckers/knx-weather-integration/internal/pkg/database/migration"
	"github.com/mbeckers/knx-weather-integration/internal/pkg/dayphase"
	"github.com/mbeckers/knx-weather-integration/internal/pkg/device"
	"github.com/mbeckers/knx-weather-integration/internal/pkg/forecast"
	"github.com/mbeckers/knx-weather-integration/internal/pkg/knx"
	"github.com/mbeckers/knx-weather-integration/internal/pkg/model"
	"github.com/mbeckers/knx-weather-integration/internal/pkg/mqtt"
	"github.com/mbeckers/knx-weather-integration/internal/pkg/publisher"
	"github.com/mbeckers/knx-weather-integration/internal/pkg/server"
)

func WeatherCommand(ctx *cli.Context) error {
	cfg, err := buildConfig(ctx)
	if err != nil {
		return err
	}
	return run(ctx.Context, cfg, ctx.String("database-url"), ctx.String("migrations-folder"))
}

// buildConfig starts from the environment and lets command line flags
// override individual values.
func buildConfig(ctx *cli.Context) (*config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	if ctx.IsSet("knx-gateway-host") {
		cfg.BusCfg.Host = ctx.String("knx-gateway-host")
	}
	if ctx.IsSet("knx-gateway-ssl") {
		cfg.BusCfg.Ssl = ctx.Bool("knx-gateway-ssl")
	}
	if ctx.IsSet("knx-client-name") {
		cfg.BusCfg.ClientName = ctx.String("knx-client-name")
	}
	if ctx.IsSet("poll-interval") {
		cfg.BusCfg.PollInterval = ctx.Duration("poll-interval")
	}
	if ctx.IsSet("mqtt-host") {
		cfg.MqttCfg.Host = ctx.String("mqtt-host")
	}
	if ctx.IsSet("mqtt-user") {
		cfg.MqttCfg.Username = ctx.String("mqtt-user")
	}
	if ctx.IsSet("mqtt-pass") {
		cfg.MqttCfg.Password = ctx.String("mqtt-pass")
	}
	if ctx.IsSet("devices-file") {
		cfg.DevicesFile = ctx.String("devices-file")
	}
	if ctx.IsSet("log-level") {
		cfg.LogLevel = ctx.String("log-level")
	}
	if ctx.IsSet("api-token-hash") {
		cfg.ApiToken = ctx.String("api-token-hash")
	}

	if cfg.BusCfg.Host == "" {
		return nil, errors.New("knx gateway host is required, set --knx-gateway-host or KNX_GATEWAY_HOST")
	}
	if cfg.DevicesFile == "" {
		return nil, errors.New("devices file is required, set --devices-file or DEVICES_FILE")
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, databaseURL, migrationsFolder string) error {
	errorChan := make(chan error, 1000)
	var err error

	eg, ctx := errgroup.WithContext(ctx)
	logCfg := zap.NewProductionConfig()

	logCfg.Level, err = zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logCfg.OutputPaths = []string{"stdout"}
	logCfg.ErrorOutputPaths = []string{"stdout"}
	logCfg.Sampling = nil
	logger := zap.Must(logCfg.Build(zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)))
	defer func() {
		_ = logger.Sync() // flushes buffer, if any.
	}()
	zap.ReplaceGlobals(logger)

	devicesCfg, err := config.LoadDevices(cfg.DevicesFile)
	if err != nil {
		return err
	}

	registry := device.NewRegistry()
	knxSvc := knx.New(cfg.BusCfg, registry, errorChan)
	if err := populateRegistry(registry, devicesCfg, knxSvc); err != nil {
		return err
	}

	var store server.ReadingsStore
	if databaseURL != "" {
		if migrationsFolder != "" {
			if err := migration.Migrate(databaseURL, migrationsFolder); err != nil {
				return err
			}
		}
		conn, err := pgx.Connect(ctx, databaseURL)
		if err != nil {
			return err
		}
		db := database.NewDatabase(conn)
		defer db.Close()
		store = db

		if err := publisher.RegisterPublisher("postgres", db); err != nil {
			return err
		}
		eg.Go(func() error {
			return cronDbCleanup(db, errorChan)
		})
	}

	if cfg.MqttCfg.Host != "" {
		opts := paho_mqtt.NewClientOptions().
			AddBroker(cfg.MqttCfg.Host).
			SetUsername(cfg.MqttCfg.Username).
			SetPassword(cfg.MqttCfg.Password).
			SetClientID(cfg.BusCfg.ClientName)
		mqttSvc := mqtt.New(paho_mqtt.NewClient(opts))
		if err := mqttSvc.Connect(); err != nil {
			return err
		}
		if err := publisher.RegisterPublisher("mqtt", mqttSvc); err != nil {
			return err
		}
	}

	knxSvc.RegisterDevices()

	eg.Go(func() error {
		for {
			if err := knxSvc.Connect(ctx); err != nil {
				return err
			}
			if err := <-knxSvc.SubscribeToTimeout(); errors.Is(err, buserr.ErrTimeout) {
				logger.Error("timeout error", zap.Error(err))
				continue
			}
		}
	})

	eg.Go(func() error {
		return cronStateSync(knxSvc, cfg.BusCfg.PollInterval, errorChan)
	})

	if devicesCfg.Location.Latitude != 0 || devicesCfg.Location.Longitude != 0 {
		eg.Go(func() error {
			return cronForecast(devicesCfg.Location, errorChan)
		})
	}

	eg.Go(func() error {
		svc := server.New(registry, knxSvc, store)
		srv := &http.Server{
			Handler:      svc.Router(server.LoggingMiddleware, server.AuthMiddleware(cfg.ApiToken)),
			Addr:         "0.0.0.0:8000",
			WriteTimeout: 15 * time.Second,
			ReadTimeout:  15 * time.Second,
		}

		return srv.ListenAndServe()
	})

	eg.Go(func() error {
		// handle any async errors from service
		for {
			select {
			case err := <-errorChan:
				if errors.Is(err, errCron) {
					logger.Error("cron error", zap.Error(err))
					return err
				}
				var commErr *buserr.CommunicationError
				if errors.As(err, &commErr) {
					logger.Error("bus communication error", zap.Error(err))
					continue
				}
				logger.Error("async error", zap.Error(err))
			case <-ctx.Done():
				logger.Info("context done")
				return ctx.Err()
			}
		}
	})

	return eg.Wait()
}

// populateRegistry builds devices from the declarative file. Stations
// without a day_night address fall back to the sunrise calculator when a
// site location is configured.
func populateRegistry(registry *device.Registry, devicesCfg *config.DevicesConfig, writer device.GroupWriter) error {
	var calc *dayphase.Calculator
	if devicesCfg.Location.Latitude != 0 || devicesCfg.Location.Longitude != 0 {
		calc = dayphase.NewCalculator(devicesCfg.Location.Latitude, devicesCfg.Location.Longitude)
	}

	for i := range devicesCfg.Stations {
		stationCfg := &devicesCfg.Stations[i]
		station := device.NewWeatherStation(stationCfg)
		if calc != nil && !stationCfg.GroupAddressDayNight.IsSet() {
			station = station.WithNightFallback(calc.IsNightNow)
		}
		if err := registry.Add(station); err != nil {
			return err
		}
	}
	for i := range devicesCfg.Lights {
		if err := registry.Add(device.NewLight(&devicesCfg.Lights[i], writer)); err != nil {
			return err
		}
	}
	return nil
}

var errCron = errors.New("cron error")

func cronStateSync(knxSvc KnxService, interval time.Duration, errChan chan error) error {
	if interval <= 0 {
		interval = time.Minute
	}
	c := cron.New()
	if _, err := c.AddFunc("@every "+interval.String(), func() {
		if err := knxSvc.SyncAll(contxt.NewContext(time.Second * 30)); err != nil {
			zap.L().Error("error syncing device state", zap.Error(err))
			errChan <- err
			return
		}
		zap.L().Debug("periodic state sync completed")
	}); err != nil {
		return err
	}

	c.Run()
	return nil
}

func cronDbCleanup(db *database.Database, errChan chan error) error {
	if err := db.Cleanup(context.Background()); err != nil {
		return err
	}

	// CRON automation
	c := cron.New()
	if _, err := c.AddFunc("0 3 * * *", func() {
		if err := db.Cleanup(context.Background()); err != nil {
			zap.L().Error("error cleaning up database", zap.Error(err))
			errChan <- errCron
			return
		}
		zap.L().Info("automated cleanup of readings")
	}); err != nil {
		return err
	}

	c.Run()
	return nil
}

func cronForecast(loc config.Location, errChan chan error) error {
	svc := forecast.New("", loc.Latitude, loc.Longitude)

	publish := func() error {
		ctx := contxt.NewContext(time.Second * 30)
		current, err := svc.GetCurrent(ctx)
		if err != nil {
			return err
		}
		dev, statuses := svc.Statuses(current)
		if err := publisher.RegisterDevice(&dev); err != nil {
			return err
		}
		return publisher.PublishData(ctx, map[model.Device][]model.DeviceStatus{dev: statuses})
	}

	if err := publish(); err != nil {
		zap.L().Warn("initial forecast fetch failed", zap.Error(err))
	}

	c := cron.New()
	if _, err := c.AddFunc("*/15 * * * *", func() {
		if err := publish(); err != nil {
			zap.L().Error("error fetching forecast", zap.Error(err))
			errChan <- err
		}
	}); err != nil {
		return err
	}

	c.Run()
	return nil
}
