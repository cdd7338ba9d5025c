package main

import (
	"context"
	"flag"
	"log"
	"os"

	"GreyPulse/internal/di"
	"GreyPulse/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s sources=%d ipos=%d", cfg.Environment, len(cfg.Sources.Endpoints), len(cfg.IPOs))

	app, err := di.InitializeApp(context.Background(), cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	log.Printf("clickhouse: connected and schema ready - db: %s", cfg.ClickHouse.Database)
	log.Printf("kafka: brokers=%v spike topic=%s", cfg.Kafka.Brokers, cfg.Kafka.SpikeTopic)

	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
