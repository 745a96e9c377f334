package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/annel0/aoi-client/internal/aoi"
	"github.com/annel0/aoi-client/internal/assets"
	"github.com/annel0/aoi-client/internal/client"
	"github.com/annel0/aoi-client/internal/eventbus"
	"github.com/annel0/aoi-client/internal/logging"
	"github.com/annel0/aoi-client/internal/protocol"
	"github.com/annel0/aoi-client/internal/replay"
	"github.com/annel0/aoi-client/internal/stamps"
	"github.com/annel0/aoi-client/internal/world/entity"
)

func main() {
	var (
		scriptPath = flag.String("script", "", "YAML сценарий сообщений AoI")
		assetRoot  = flag.String("assets", "", "каталог ресурсов (пусто: ресурсы готовы сразу)")
		level      = flag.String("log", "warn", "уровень логирования: trace, debug, info, warn, error")
	)
	flag.Parse()

	if *scriptPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	lvl, err := logging.ParseLevel(*level)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	logging.SetDefaultLevel(lvl)
	logging.GetLoggerManager().Configure("", lvl, lvl)

	script, err := replay.Load(*scriptPath)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	bus := eventbus.NewMemoryBus(64)
	defer bus.Close()
	codec, err := protocol.NewFrameCodec(false)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	defer codec.Close()

	loader := assets.NewLoader(*assetRoot, 4)
	factory := entity.NewFactory(loader, entity.NewLogObserver(nil), 2*script.Tick)
	if err := factory.RegisterDefaultTypes(); err != nil {
		log.Fatalf("❌ %v", err)
	}

	store := stamps.NewMemoryStore()
	engine := aoi.NewEngine(factory, aoi.Config{TickInterval: script.Tick, DebugInvariants: true},
		aoi.WithSnapshotRequester(client.NewBusRequester(bus, codec, store, "aoi-replay")))

	dispatcher, err := client.NewDispatcher(bus, engine, codec, store, 1)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	defer dispatcher.Stop()

	start := time.Now()
	if err := replay.NewRunner(engine, dispatcher.Apply, os.Stdout).Run(script); err != nil {
		log.Fatalf("❌ %v", err)
	}
	log.Printf("✅ %d шагов за %v", len(script.Steps), time.Since(start))
}
