package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ai-coursegen-be/internal/config"
	"ai-coursegen-be/pkg/events"
	pktNats "ai-coursegen-be/pkg/nats"

	"github.com/fatih/color"
)

// Tails the pipeline lifecycle stream. Useful when checking whether the
// worker pool actually emits what a downstream consumer expects.
func main() {
	cfg := config.Load()

	sub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Fatalf("Error: failed to connect to NATS: %v", err)
	}
	defer sub.Close()

	err = sub.Subscribe("pipeline.>", "pipeline-tail", func(ctx context.Context, event events.Event) error {
		body, _ := json.Marshal(event.Payload())
		switch event.EventType() {
		case "pipeline.JOB_FAILED":
			color.Red("%s  %s", event.EventType(), body)
		case "pipeline.JOB_REQUEUED":
			color.Yellow("%s  %s", event.EventType(), body)
		default:
			color.Green("%s  %s", event.EventType(), body)
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Error: failed to subscribe: %v", err)
	}

	color.Cyan("Tailing pipeline.> (ctrl-c to stop)")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
}
