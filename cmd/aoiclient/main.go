package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/annel0/aoi-client/internal/aoi"
	"github.com/annel0/aoi-client/internal/assets"
	"github.com/annel0/aoi-client/internal/client"
	"github.com/annel0/aoi-client/internal/config"
	"github.com/annel0/aoi-client/internal/eventbus"
	"github.com/annel0/aoi-client/internal/logging"
	"github.com/annel0/aoi-client/internal/observability"
	"github.com/annel0/aoi-client/internal/protocol"
	"github.com/annel0/aoi-client/internal/stamps"
	"github.com/annel0/aoi-client/internal/world/entity"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию $AOI_CONFIG)")
	flag.Parse()

	if err := logging.InitDefaultLogger("aoiclient"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	logging.SetDefaultLevel(level)
	logging.GetLoggerManager().Configure(cfg.Logging.Dir, level, logging.DEBUG)
	defer logging.GetLoggerManager().CloseAll()

	logging.Info("🎮 Запуск AoI клиента (тик %v)", cfg.Engine.TickInterval())

	if err := run(cfg); err != nil {
		logging.Error("❌ %v", err)
		logging.CloseDefaultLogger()
		os.Exit(1)
	}
	logging.Info("👋 Клиент остановлен")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("телеметрия: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logging.Warn("остановка телеметрии: %v", err)
		}
	}()

	bus, err := openBus(cfg.EventBus)
	if err != nil {
		return err
	}
	defer bus.Close()

	if logging.GetClientLogger().Enabled(logging.TRACE) {
		if sub, err := eventbus.StartLoggingListener(bus); err == nil {
			defer sub.Unsubscribe()
		}
	}

	store, err := openStamps(cfg.Stamps)
	if err != nil {
		return err
	}
	defer store.Close()

	codec, err := protocol.NewFrameCodec(cfg.Protocol.CompressFrames)
	if err != nil {
		return err
	}
	defer codec.Close()

	// Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	exporter := eventbus.NewMetricsExporter(bus, reg)
	exporter.StartHTTP(fmt.Sprintf(":%d", cfg.Server.GetMetricsPort()), reg)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := exporter.Stop(sctx); err != nil {
			logging.Warn("остановка /metrics: %v", err)
		}
	}()

	// Сущности
	loader := assets.NewLoader(cfg.Assets.Root, 4)
	factory := entity.NewFactory(loader, entity.NewLogObserver(nil), 2*cfg.Engine.TickInterval())
	if err := factory.RegisterDefaultTypes(); err != nil {
		return err
	}

	opts := []aoi.Option{aoi.WithMetrics(aoi.NewMetrics(reg))}
	if cfg.Engine.SnapshotsEnabled() {
		opts = append(opts, aoi.WithSnapshotRequester(client.NewBusRequester(bus, codec, store, cfg.EventBus.Source)))
	}
	engine := aoi.NewEngine(factory, aoi.Config{
		ClientOnlyIDBase: aoi.EntityID(cfg.Engine.ClientOnlyIDBase),
		TickInterval:     cfg.Engine.TickInterval(),
		DebugInvariants:  cfg.Engine.DebugInvariants,
	}, opts...)

	dispatcher, err := client.NewDispatcher(bus, engine, codec, store, cfg.EventBus.Buffer)
	if err != nil {
		return fmt.Errorf("подписка на кадры AoI: %w", err)
	}
	defer dispatcher.Stop()

	logging.Info("✅ Клиент готов, ожидание кадров AoI")
	return client.NewDriver(engine, dispatcher, cfg.Engine.TickInterval()).Run(ctx)
}

func openBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	if cfg.URL == "" {
		logging.Info("🚌 In-memory шина событий (buffer=%d)", cfg.Buffer)
		return eventbus.NewMemoryBus(cfg.Buffer), nil
	}
	bus, err := eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, time.Duration(cfg.Retention)*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("шина JetStream: %w", err)
	}
	logging.Info("🚌 JetStream шина %s (stream=%s)", cfg.URL, cfg.Stream)
	return bus, nil
}

func openStamps(cfg config.StampsConfig) (stamps.Store, error) {
	if cfg.Backend == "badger" {
		store, err := stamps.NewBadgerStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("хранилище меток: %w", err)
		}
		return store, nil
	}
	return stamps.NewMemoryStore(), nil
}
