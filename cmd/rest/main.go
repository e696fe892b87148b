package main

import (
	"context"
	"log"

	"ai-coursegen-be/internal/bootstrap"
	"ai-coursegen-be/internal/config"
	"ai-coursegen-be/internal/server"
	"ai-coursegen-be/internal/tracer"
	"ai-coursegen-be/pkg/database"
)

func main() {
	// 0. Tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Configuration
	cfg := config.Load()

	// 2. Database
	gormDB, err := database.NewGormDB(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 3. Dependency container
	container := bootstrap.NewContainer(gormDB, cfg)

	// 4. Background pipeline
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Println("Background: Starting Embedding Consumer...")
	if err := container.ConsumerService.Consume(ctx); err != nil {
		log.Printf("Background Consumer Error: %v", err)
	}

	log.Println("Background: Starting Worker Pool...")
	if err := container.WorkerPool.Run(ctx); err != nil {
		log.Panicf("Unable to start worker pool: %v", err)
	}

	log.Println("Background: Starting Requeue Loop...")
	go container.RequeueLoop.Run(ctx)

	// 5. HTTP server
	srv := server.New(cfg, container)
	log.Fatal(srv.Run())
}
