// Command spark-watch follows session progress from the terminal: it loads
// the session list from a running spark-api, polls every in-flight session,
// and prints status changes until interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sparklabs/spark/internal/config"
	"github.com/sparklabs/spark/internal/logger"
	"github.com/sparklabs/spark/internal/watch"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "spark-watch: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var cfg config.Config
	if err := config.Load(&cfg); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Init(cfg.Logging)
	log := logger.New(&cfg.Logging, "spark-watch")

	client := watch.NewClient(cfg.Watch.BaseURL, 0)
	store := watch.NewStore(client, cfg.Watch, log)
	defer store.StopAll()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err := store.Load(ctx)
	cancel()
	if err != nil {
		return fmt.Errorf("load sessions from %s: %w", cfg.Watch.BaseURL, err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	last := map[string]string{}
	printSessions(store.Sessions(), last)

	for {
		select {
		case <-quit:
			return nil
		case <-ticker.C:
			printSessions(store.Sessions(), last)
		}
	}
}

// printSessions reports sessions whose status changed since the last tick.
func printSessions(sessions []watch.SessionView, last map[string]string) {
	for _, s := range sessions {
		if last[s.ID] == s.Status {
			continue
		}
		last[s.ID] = s.Status
		fmt.Printf("%-36s  %-10s  %s\n", s.ID, s.Status, s.FileName)
	}
}
