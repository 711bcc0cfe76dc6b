// Package main provides the energy-system simulation service entry
// point: it loads configuration, builds the engine, and exposes it
// over REST/WebSocket, MQTT, and Modbus TCP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/facis/simulation-service/archive"
	"github.com/facis/simulation-service/config"
	"github.com/facis/simulation-service/engine"
	"github.com/facis/simulation-service/httpapi"
	"github.com/facis/simulation-service/modbus"
	"github.com/facis/simulation-service/mqtt"
	"github.com/facis/simulation-service/timeseries"
	"github.com/facis/simulation-service/wireformat"
)

const (
	publishInterval           = 5 * time.Second
	priceForecastHorizonHours = 24
)

func main() {
	var (
		configFile = flag.String("config", "config.json", "Configuration file path")
		help       = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *help {
		showHelp()
		return
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Println("No configuration file found, using defaults")
			cfg = config.DefaultConfig()
		} else {
			fmt.Println("Error loading configuration:", err)
			return
		}
	}

	logger := log.New(os.Stdout, "[SIMULATION] ", log.LstdFlags)

	eng, err := engine.New(cfg.EngineConfig())
	if err != nil {
		logger.Fatalf("failed to build engine: %v", err)
	}
	eng.Start()

	httpServer := httpapi.NewServer(eng, cfg.HTTP.ListenAddr, logger)
	httpServer.Start()
	logger.Printf("REST/WebSocket server listening on %s", cfg.HTTP.ListenAddr)

	var mqttPublisher *mqtt.Publisher
	if cfg.MQTT.Enabled {
		mqttPublisher, err = mqtt.NewPublisher(cfg.MQTT.BrokerURL, cfg.MQTT.ClientID, logger)
		if err != nil {
			logger.Printf("mqtt: disabled, connection failed: %v", err)
			mqttPublisher = nil
		} else {
			logger.Printf("publishing to MQTT broker at %s", cfg.MQTT.BrokerURL)
		}
	}

	var modbusServer *modbus.Server
	if cfg.Modbus.Enabled {
		modbusServer = modbus.NewServer(logger)
		for _, binding := range cfg.Modbus.Meters {
			if err := modbusServer.RegisterMeter(binding.UnitID, binding.MeterID, eng.MeterProvider()); err != nil {
				logger.Printf("modbus: failed to register meter %q: %v", binding.MeterID, err)
			}
		}
		go func() {
			if err := modbusServer.ListenAndServe(cfg.Modbus.ListenAddr); err != nil {
				logger.Printf("modbus: server error: %v", err)
			}
		}()
		logger.Printf("Modbus TCP server listening on %s", cfg.Modbus.ListenAddr)
	}

	var archiver *archive.Archiver
	if cfg.PostgresConnString != "" {
		archiver, err = archive.NewArchiver(cfg.PostgresConnString, logger)
		if err != nil {
			logger.Printf("archive: disabled, connection failed: %v", err)
			archiver = nil
		} else {
			logger.Printf("archiving snapshots to Postgres")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if mqttPublisher != nil {
		go publishLoop(ctx, eng, mqttPublisher, logger)
	}
	if archiver != nil {
		go archiveLoop(ctx, eng, archiver, logger)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Printf("Simulation service started. Press Ctrl+C to stop...")
	<-sigChan
	logger.Printf("Shutdown signal received, stopping...")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Printf("error stopping http server: %v", err)
	}
	if mqttPublisher != nil {
		mqttPublisher.Close()
	}
	if modbusServer != nil {
		if err := modbusServer.Close(); err != nil {
			logger.Printf("error stopping modbus server: %v", err)
		}
	}
	if archiver != nil {
		if err := archiver.Close(); err != nil {
			logger.Printf("error closing archiver: %v", err)
		}
	}

	logger.Printf("Simulation service stopped successfully")
}

// publishLoop pushes the current reading of every registered entity,
// plus the price forecast, any price-floor alert and the simulation
// status, to MQTT at a fixed real-time cadence.
// The cadence is independent of the simulation's sampling interval:
// acceleration only affects the virtual clock, not how often this
// process talks to the broker.
func publishLoop(ctx context.Context, eng *engine.Engine, publisher *mqtt.Publisher, logger *log.Logger) {
	ticker := time.NewTicker(publishInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			publishOnce(eng, publisher, logger)
		case <-ctx.Done():
			return
		}
	}
}

func publishOnce(eng *engine.Engine, publisher *mqtt.Publisher, logger *log.Logger) {
	for _, id := range eng.WeatherIDs() {
		if reading, ok := eng.WeatherCurrent(id); ok {
			if err := publisher.PublishWeather(wireformat.WeatherPayload(reading)); err != nil {
				logger.Printf("mqtt: %v", err)
			}
		}
	}
	for _, id := range eng.PVIDs() {
		if reading, ok := eng.PVCurrent(id); ok {
			if err := publisher.PublishPV(id, wireformat.PVPayload(reading)); err != nil {
				logger.Printf("mqtt: %v", err)
			}
		}
	}
	for _, id := range eng.MeterIDs() {
		if reading, ok := eng.MeterCurrent(id); ok {
			if err := publisher.PublishMeter(id, wireformat.MeterPayload(reading)); err != nil {
				logger.Printf("mqtt: %v", err)
			}
		}
	}
	for _, id := range eng.LoadIDs() {
		if reading, ok := eng.LoadCurrent(id); ok {
			if err := publisher.PublishLoad(string(reading.DeviceType), wireformat.LoadPayload(reading)); err != nil {
				logger.Printf("mqtt: %v", err)
			}
		}
	}
	for _, id := range eng.PriceIDs() {
		reading, ok := eng.PriceCurrent(id)
		if !ok {
			continue
		}
		if err := publisher.PublishSpotPrice(wireformat.PricePayload(reading)); err != nil {
			logger.Printf("mqtt: %v", err)
		}
		if forecast, ok := eng.PriceForecast(id, priceForecastHorizonHours, timeseries.FifteenMinutes); ok {
			prices := make([]map[string]any, 0, len(forecast))
			for _, p := range forecast {
				prices = append(prices, wireformat.PricePayload(p.Value))
			}
			payload := mqtt.ForecastPayload{
				GeneratedAt:  eng.Now(),
				HorizonHours: priceForecastHorizonHours,
				Prices:       prices,
			}
			if err := publisher.PublishPriceForecast(payload); err != nil {
				logger.Printf("mqtt: %v", err)
			}
		}
		if eng.PriceAtFloor(id, reading) {
			alert := mqtt.AlertEnvelope{
				Timestamp: reading.Timestamp,
				Severity:  "warning",
				EntityID:  id,
				Message:   "price clamped to configured floor",
			}
			if err := publisher.PublishAlert(alert); err != nil {
				logger.Printf("mqtt: %v", err)
			}
		}
	}
	snap := eng.Snapshot()
	if err := publisher.PublishSimulationStatus(map[string]any{
		"state":        snap.State,
		"sim_time":     snap.SimTime.Format(time.RFC3339),
		"seed":         snap.Seed,
		"acceleration": snap.Acceleration,
		"entity_ids":   snap.EntityIDs,
	}); err != nil {
		logger.Printf("mqtt: %v", err)
	}
}

// archiveLoop persists the current correlated snapshot to Postgres at
// the same fixed real-time cadence as the MQTT publish loop.
func archiveLoop(ctx context.Context, eng *engine.Engine, archiver *archive.Archiver, logger *log.Logger) {
	ticker := time.NewTicker(publishInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := archiver.ArchiveSnapshot(ctx, eng.CurrentSnapshot()); err != nil {
				logger.Printf("archive: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func showHelp() {
	fmt.Println("Energy-system simulation service - deterministic synthetic energy telemetry")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Generates deterministic weather, PV, meter, consumer-load, and price readings")
	fmt.Println("  from a seeded RNG, and exposes them over REST, WebSocket, MQTT, and Modbus TCP.")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  simulation-service [OPTIONS]")
	fmt.Println()
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Basic usage with default single-site configuration")
	fmt.Println("  simulation-service")
	fmt.Println()
	fmt.Println("  # Custom configuration")
	fmt.Println("  simulation-service --config=config.json")
}
