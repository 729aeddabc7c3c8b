package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/annel0/gridworld/internal/app"
	"github.com/annel0/gridworld/internal/config"
	"github.com/annel0/gridworld/internal/logging"
	"github.com/annel0/gridworld/internal/observability"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию $GRIDWORLD_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	logging.Configure(cfg.LoggingSettings())
	if err := logging.InitDefaultLogger("gridworld"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	defer logging.GetLoggerManager().CloseAll()

	logging.Info("🌍 Запуск gridworld: потоковая подгрузка кластеров")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdown, err := observability.InitTelemetry(ctx, cfg.Telemetry.ServiceName)
		if err != nil {
			logging.Error("❌ Ошибка инициализации OpenTelemetry: %v", err)
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logging.Warn("Ошибка остановки OpenTelemetry: %v", err)
				}
			}()
		}
	}

	sim, err := app.New(cfg)
	if err != nil {
		logging.Error("❌ Ошибка создания симуляции: %v", err)
		return
	}
	defer sim.Close()

	if err := sim.Run(ctx); err != nil {
		logging.Error("❌ Симуляция завершилась с ошибкой: %v", err)
		return
	}

	logging.Info("👋 gridworld остановлен")
}
