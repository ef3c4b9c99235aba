package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/outlandnish/FlowMeter/pkg/config"
	"github.com/outlandnish/FlowMeter/pkg/flowmeter"
	"github.com/outlandnish/FlowMeter/pkg/recorder"
	"github.com/outlandnish/FlowMeter/pkg/sensor"
	"github.com/outlandnish/FlowMeter/pkg/telemetry"
)

// daemon bundles the measurement chain that runs behind the HTTP API.
type daemon struct {
	mu         sync.RWMutex
	cfg        *config.Config
	id         string
	device     sensor.Device
	meter      *flowmeter.Meter
	publisher  *telemetry.Publisher
	recorder   *recorder.Recorder
	lastPulses uint32
}

// newDevice selects the frame source from the --source flag.
func newDevice(cfg *config.Config) (sensor.Device, error) {
	switch source {
	case "serial":
		return sensor.New(cfg.Serial.Port, cfg.Serial.BaudRate, cfg.Measurement.BufferSize), nil
	case "gpio":
		return sensor.NewGPIO(cfg.Sensor.Pin, cfg.Measurement.Window, cfg.Measurement.BufferSize), nil
	case "mock":
		return sensor.NewMock(&cfg.Mock, cfg.Measurement.Window), nil
	default:
		return nil, fmt.Errorf("unknown source %q (want serial, gpio or mock)", source)
	}
}

// deviceID names this daemon in telemetry and recorded points.
func deviceID(cfg *config.Config) string {
	switch source {
	case "serial":
		return cfg.Serial.Port
	case "gpio":
		return cfg.Sensor.Pin
	default:
		return source
	}
}

func runDaemon() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Command line overrides
	if serialPort != "" {
		cfg.Serial.Port = serialPort
	}
	if listenAddr != "" {
		cfg.API.Listen = listenAddr
	}

	d := &daemon{
		cfg:   cfg,
		id:    deviceID(cfg),
		meter: flowmeter.New(cfg.Sensor.Pin, cfg.Sensor.Properties()),
	}

	device, err := newDevice(cfg)
	if err != nil {
		return err
	}
	if err := device.Connect(); err != nil {
		return fmt.Errorf("failed to connect %s source: %w", source, err)
	}
	d.device = device
	logrus.Infof("connected to %s source", source)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.MQTT.Enabled {
		pub, err := telemetry.NewPublisher(ctx, &cfg.MQTT)
		if err != nil {
			return fmt.Errorf("failed to start mqtt publisher: %w", err)
		}
		d.publisher = pub
		logrus.Infof("publishing measurements to %s", cfg.MQTT.Topic)
	}
	if cfg.Influx.Enabled {
		rec, err := recorder.New(&cfg.Influx)
		if err != nil {
			return fmt.Errorf("failed to start influx recorder: %w", err)
		}
		d.recorder = rec
		registerRecorderMetrics(rec)
		logrus.Infof("recording measurements to bucket %s", cfg.Influx.Bucket)
	}

	// Feed every frame through the meter
	framesDone := make(chan struct{})
	go func() {
		defer close(framesDone)
		for frame := range device.Frames() {
			d.handleFrame(frame)
		}
	}()

	// Reload calibration when the config file changes or on SIGHUP
	go d.watchConfig(ctx)
	go d.reloadOnSIGHUP()

	router := d.setupRoutes()
	srv := &http.Server{
		Addr:    cfg.API.Listen,
		Handler: router,
	}

	go func() {
		logrus.Infof("http server listening on %s", cfg.API.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal(err)
		}
	}()

	// Handle common process-killing signals, so we can gracefully shut down
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigc
	logrus.Infof("caught signal %q: shutting down", sig)

	logrus.Info("shutting down http server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	shutdownCancel()

	logrus.Info("closing frame source")
	if err := device.Close(); err != nil {
		logrus.Errorf("failed to close frame source: %v", err)
	}
	<-framesDone

	if d.publisher != nil {
		logrus.Info("disconnecting mqtt publisher")
		d.publisher.Close()
	}
	if d.recorder != nil {
		logrus.Info("closing influx recorder")
		d.recorder.Close()
	}

	logrus.Info("exiting")
	return nil
}

// handleFrame runs one measurement window through the meter and fans the
// snapshot out to metrics, MQTT and InfluxDB.
func (d *daemon) handleFrame(frame sensor.Frame) {
	d.meter.AddPulses(frame.Pulses)
	d.meter.Tick(frame.Window)

	d.mu.Lock()
	d.lastPulses = frame.Pulses
	d.mu.Unlock()

	observeWindow(d.meter, frame)

	m := telemetry.Snapshot(d.meter, d.id, frame.Pulses)
	if d.publisher != nil {
		if err := d.publisher.Publish(m); err != nil {
			logrus.Errorf("failed to publish measurement: %v", err)
			publishErrorsTotal.Inc()
		}
	}
	if d.recorder != nil {
		d.recorder.Record(m)
	}

	logrus.WithFields(logrus.Fields{
		"pulses":   frame.Pulses,
		"window":   frame.Window,
		"flowrate": d.meter.CurrentFlowrate(),
		"volume":   d.meter.TotalVolume(),
	}).Debug("window closed")
}

// watchConfig applies calibration changes to the running meter whenever the
// config file is written.
func (d *daemon) watchConfig(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logrus.Errorf("failed creating config watcher: %v", err)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(configPath); err != nil {
		logrus.Errorf("failed watching %s: %v", configPath, err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op == fsnotify.Write {
				d.reloadConfig()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logrus.Errorf("config watcher error: %v", err)
		}
	}
}

// reloadOnSIGHUP forces a config reload on SIGHUP.
func (d *daemon) reloadOnSIGHUP() {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGHUP)
	for range sigc {
		d.reloadConfig()
	}
}

// reloadConfig re-reads the config file and applies the sensor calibration to
// the running meter. Connection settings take effect on the next restart.
func (d *daemon) reloadConfig() {
	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.Errorf("failed to reload config: %v", err)
		return
	}

	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()

	d.meter.SetProperties(cfg.Sensor.Properties())
	logrus.WithFields(logrus.Fields{
		"capacity": cfg.Sensor.Capacity,
		"k_factor": cfg.Sensor.KFactor,
	}).Info("config reloaded")
}
