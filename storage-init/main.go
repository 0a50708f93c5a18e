// Command storage-init provisions the configured backend ahead of a deploy:
// tables or collections with their indexes, and the activity events queue.
package main

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"todo-app/config"
	"todo-app/events"
	"todo-app/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("storage init starting")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	backend := storage.Backend(cfg.StorageConnectionString)
	store, err := storage.Open(ctx, storage.Options{
		ConnectionString: cfg.StorageConnectionString,
		Database:         cfg.StorageDatabase,
		UsersTable:       cfg.UsersTable,
		TasksTable:       cfg.TasksTable,
	})
	if err != nil {
		log.Fatalf("init %s: %v", backend, err)
	}
	if err := store.Close(ctx); err != nil {
		log.WithError(err).Warn("storage.close")
	}
	log.WithField("backend", backend).Info("storage ready")

	if cfg.EventsQueueConnectionString != "" {
		if _, err := events.EnsureQueue(ctx, cfg.EventsQueueConnectionString, cfg.EventsQueue); err != nil {
			log.Fatalf("create queue %s: %v", cfg.EventsQueue, err)
		}
		log.WithField("queue", cfg.EventsQueue).Info("events queue ready")
	}

	log.Info("storage init complete")
}
