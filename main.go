package main

import (
	"context"
	"fmt"
	"os"
	"time"

	auction "auction-engine/internal/auctionService"
	"auction-engine/internal/metrics"
	"auction-engine/internal/notifier"
	"auction-engine/internal/repository"
	"auction-engine/internal/scheduler"
	"auction-engine/internal/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

func main() {

	store := buildStore()

	registry := prometheus.NewRegistry()
	sink := metrics.NewPrometheusSink(registry)

	sched := scheduler.NewMemoryScheduler(time.Second)

	service := auction.NewLifecycleService(
		store,
		sched,
		notifier.NewLogNotifier(),
		notifier.NewStaticDirectory(),
		sink,
	)
	sched.Bind(service.HandleTrigger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "Scheduler stopped: %v\n", err)
		}
	}()

	router := server.SetupRouter(service, registry)

	port := getPort()
	fmt.Printf("Starting auction server on %s...\n", port)
	if err := router.Run(port); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start server: %v\n", err)
		os.Exit(1)
	}
}

// buildStore wires the Redis store when an address is configured and falls
// back to the in-memory store for local development
func buildStore() repository.AuctionStore {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		return repository.NewRedisStore(client)
	}
	return repository.NewMemoryStore()
}

// getPort returns the server port from env or defaults to ":8080"
func getPort() string {
	if p := os.Getenv("PORT"); p != "" {
		return fmt.Sprintf(":%s", p)
	}
	return ":8080"
}
