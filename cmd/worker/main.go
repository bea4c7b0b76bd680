package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"archive/api/internal/collection"
	"archive/api/internal/config"
	"archive/api/internal/email"
	"archive/api/internal/queue"
	"archive/api/internal/search"
	"archive/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	dataStore := store.NewPostgresStore(db)

	pg := search.NewPg(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	}
	searchService := search.NewService(meiliClient, pg)
	if meiliClient != nil {
		defer meiliClient.Close()
	}

	jobs, err := queue.NewRedisQueue(cfg.RedisURL, cfg.QueueKey)
	if err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}
	defer jobs.Close()

	mail := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	if !mail.IsConfigured() {
		log.Printf("WARNING: SMTP not configured, notification jobs will be no-ops")
	}

	service := collection.New(cfg, dataStore, searchService, jobs, mail)
	worker := queue.NewWorker(jobs, service)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		log.Printf("collection worker consuming %s", cfg.QueueKey)
		worker.Run(runCtx)
		close(done)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("shutting down")
	cancel()
	<-done
}
