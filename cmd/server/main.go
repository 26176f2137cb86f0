package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"bedbug-detector/internal/app"
	"bedbug-detector/internal/config"
)

func main() {
	application, err := app.NewApp(config.Load())
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		log.Printf("Server stopped: %v", err)
	}
}
