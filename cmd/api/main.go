package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-booking-saga.git/internal/booking"
	"github.com/ariefcatur/go-booking-saga.git/internal/config"
	"github.com/ariefcatur/go-booking-saga.git/internal/events"
	"github.com/ariefcatur/go-booking-saga.git/internal/httpx"
	kafkax "github.com/ariefcatur/go-booking-saga.git/internal/kafka"
	"github.com/ariefcatur/go-booking-saga.git/internal/metrics"
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
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer (one per service; messages carry their own topic)
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024)
	prod.Start(ctx)

	sagaMetrics := metrics.NewSaga()
	bookings := &booking.Repo{DB: db}

	saga := &booking.Saga{
		Bookings:    bookings,
		Bus:         prod,
		ServiceName: cfg.ServiceName,
		Metrics:     sagaMetrics,
	}
	ledger := &booking.Ledger{
		Bookings:    bookings,
		Bus:         prod,
		ServiceName: cfg.ServiceName,
	}
	confirmer := &booking.Confirmer{
		Bookings:    bookings,
		Redis:       rdb,
		Bus:         prod,
		ServiceName: cfg.ServiceName,
		Metrics:     sagaMetrics,
	}

	// Outcome consumer: resource and payment results close the saga.
	group := cfg.ConsumerGroup
	if group == "" {
		group = "booking-api"
	}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, []string{
		events.TopicResourceReserved,
		events.TopicResourceRejected,
		events.TopicPaymentCompleted,
		events.TopicPaymentFailed,
	}, cfg.Workers)
	go func() {
		log.Printf("outcome consumer started: group=%s workers=%d", group, cfg.Workers)
		if err := cons.Start(ctx, confirmer.HandleOutcome); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	router := httpx.NewRouter()
	(&httpx.BookingsHandler{Saga: saga, Ledger: ledger, Redis: rdb}).Register(router)
	(&httpx.ResourcesHandler{Repo: &resource.Repo{DB: db}}).Register(router)
	router.Handle("/metrics", metrics.Handler())

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()
	cancel()
	prod.WaitClosed()
}
