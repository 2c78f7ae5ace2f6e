package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-booking-saga.git/internal/config"
	"github.com/ariefcatur/go-booking-saga.git/internal/events"
	kafkax "github.com/ariefcatur/go-booking-saga.git/internal/kafka"
	"github.com/ariefcatur/go-booking-saga.git/internal/postgres"
	"github.com/ariefcatur/go-booking-saga.git/internal/redisx"
	"github.com/ariefcatur/go-booking-saga.git/internal/resource"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024)
	prod.Start(ctx)

	svc := &resource.Service{
		Repo:        &resource.Repo{DB: db},
		Locks:       &redisx.Locker{R: rdb},
		Redis:       rdb,
		Bus:         prod,
		ServiceName: cfg.ServiceName + "-inventory",
		LockTTL:     cfg.LockTTL,
	}

	group := cfg.ConsumerGroup
	if group == "" {
		group = "inventory-svc"
	}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, []string{
		events.TopicReserveResource,
		events.TopicReleaseResource,
	}, cfg.Workers)

	go func() {
		log.Printf("inventory consumer started: group=%s workers=%d", group, cfg.Workers)
		if err := cons.Start(ctx, svc.HandleCommand); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down consumer...")
	cancel()
	time.Sleep(500 * time.Millisecond)
	prod.Close()
	prod.WaitClosed()
}
