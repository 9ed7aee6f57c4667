package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "greencure/docs"
	"greencure/internal/button"
	"greencure/internal/config"
	"greencure/internal/device"
	"greencure/internal/handlers"
	"greencure/internal/logger"
	"greencure/internal/remote"
	"greencure/internal/repository"
	"greencure/internal/repository/db"
	"greencure/internal/server"
	"greencure/internal/service"
)

const shutdownTimeout = 10 * time.Second

// @title                       Greencure machine API
// @version                     1.0
// @description                 Observation and override API for the curing enclosure.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	configPath := flag.String("config", "", "config file (default configs/config.yml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.New(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	log := logger.New(cfg.Log.Level)
	defer func() { _ = log.Sync() }()

	sqlDB, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		log.Fatalw("failed to init sqlite", "path", cfg.DB.Path, "err", err)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()
	repos := repository.NewRepository(sqlDB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	linkA, linkB, err := openLinks(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to open device links", "err", err)
	}
	defer func() {
		_ = linkA.Close()
		_ = linkB.Close()
	}()

	mqttClient := connectRemote(cfg.MQTT, log)
	var remoteStore service.RemoteStore
	if mqttClient != nil {
		remoteStore = mqttClient
		defer mqttClient.Close()
	}

	mirror := service.NewMirror(log, repos, repos.Auth, remoteStore)
	machine := service.NewMachine(log, mirror)
	if st, err := repos.StateRepo.Load(ctx); err != nil {
		log.Warnw("state_load_failed", "err", err)
	} else {
		machine.SeedVersion(st.Version)
	}

	actuators := device.NewController(linkA, linkB, log)
	control := service.NewControlService(log, cfg.Control, machine,
		device.NewSensorReader(linkA, linkB),
		actuators,
		device.NewDisplays(linkA, linkB),
		mirror,
	)

	if mqttClient != nil {
		err := mqttClient.SubscribeTrigger(ctx, func() error {
			_, err := machine.ToggleHarvestMode(service.OriginRemote)
			return err
		})
		if err != nil {
			log.Warnw("trigger_subscribe_failed", "err", err)
		}
	}

	if cfg.Button.Enabled {
		btn, err := button.Watch(log, cfg.Button, func() { machine.TogglePower() })
		if err != nil {
			log.Warnw("button_unavailable", "err", err)
		} else {
			defer func() { _ = btn.Close() }()
		}
	}

	auth := service.NewAuthService(repos.Auth, cfg.HTTP.SigningKey, cfg.HTTP.TokenTTL)
	services := service.NewService(repos, machine, actuators, auth)
	apiHandler := handlers.NewHandler(services, log)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		mirror.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		control.Run(ctx, cfg.Control.PollInterval)
	}()

	srv := server.New(cfg.HTTP.Port, apiHandler.InitRoutes())
	runHTTPServer(srv, log)

	waitForShutdown(cancel, srv, log)
	wg.Wait()

	offCtx, offCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer offCancel()
	if err := actuators.AllOff(offCtx); err != nil {
		log.Errorw("actuators_off_failed", "err", err)
	}
}

// openLinks opens both serial links, resets the boards so every actuator
// starts off, and logs each board's identifier.
func openLinks(ctx context.Context, cfg config.Config, log *logger.Logger) (*device.Channel, *device.Channel, error) {
	a, err := openLink(ctx, device.LinkA, cfg.LinkA, cfg.Device, log)
	if err != nil {
		return nil, nil, err
	}
	b, err := openLink(ctx, device.LinkB, cfg.LinkB, cfg.Device, log)
	if err != nil {
		_ = a.Close()
		return nil, nil, err
	}
	return a, b, nil
}

func openLink(ctx context.Context, link device.Link, lc config.LinkConfig, dc config.DeviceConfig, log *logger.Logger) (*device.Channel, error) {
	port, err := device.OpenSerial(lc.Port, lc.Baud)
	if err != nil {
		return nil, err
	}
	ch := device.NewChannel(link, port, log, device.WithResponseTimeout(dc.ResponseTimeout))
	if err := ch.Reset(ctx); err != nil {
		_ = ch.Close()
		return nil, err
	}
	id, err := ch.Identify(ctx)
	if err != nil {
		log.Warnw("link_identify_failed", "link", link.Name, "err", err)
	} else {
		log.Infow("link_ready", "link", link.Name, "port", lc.Port, "id", id)
	}
	return ch, nil
}

// connectRemote returns nil when the broker is disabled or unreachable; the
// machine then runs on local persistence alone.
func connectRemote(cfg config.MQTTConfig, log *logger.Logger) *remote.Client {
	if !cfg.Enabled {
		log.Infow("remote_disabled")
		return nil
	}
	c, err := remote.Dial(log, cfg)
	if err != nil {
		log.Warnw("remote_unavailable", "broker", cfg.Broker, "err", err)
		return nil
	}
	return c
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, log *logger.Logger) {
	go func() {
		log.Infow("http_listening", "addr", srv.Addr())
		if err := srv.Run(); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down")

	// stop background goroutines
	cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
