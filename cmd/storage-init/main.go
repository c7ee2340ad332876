// Command storage-init provisions the tables, queue or indexes the API
// expects, so a fresh environment does not pay for it on the first request.
package main

import (
	"context"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"workspace-api/config"
	"workspace-api/storage"
)

func main() {
	cfg, err := config.LoadStorage(os.Getenv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	log.WithField("backend", cfg.StoreBackend).Info("storage init starting")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	switch cfg.StoreBackend {
	case config.BackendTables:
		s, err := storage.New(cfg.StorageConnectionString, cfg.NotesTable, cfg.TasksTable)
		if err != nil {
			log.Fatalf("storage: %v", err)
		}
		if err := s.EnsureTables(ctx); err != nil {
			log.Fatalf("create tables: %v", err)
		}
		log.WithFields(log.Fields{"notes": cfg.NotesTable, "tasks": cfg.TasksTable}).Info("tables ready")
	case config.BackendMongo:
		m, err := storage.NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			log.Fatalf("mongo: %v", err)
		}
		defer m.Close(context.Background())
		if err := m.EnsureIndexes(ctx); err != nil {
			log.Fatalf("create indexes: %v", err)
		}
		log.WithField("database", cfg.MongoDatabase).Info("indexes ready")
	default:
		log.Info("nothing to provision for the memory backend")
	}

	if cfg.EventsQueue != "" {
		q, err := storage.NewEventQueue(cfg.StorageConnectionString, cfg.EventsQueue)
		if err != nil {
			log.Fatalf("events queue: %v", err)
		}
		if err := q.EnsureQueue(ctx); err != nil {
			log.Fatalf("create queue: %v", err)
		}
		log.WithField("queue", cfg.EventsQueue).Info("queue ready")
	}

	log.Info("storage init complete")
}
