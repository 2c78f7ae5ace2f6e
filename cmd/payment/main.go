package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-booking-saga.git/internal/config"
	"github.com/ariefcatur/go-booking-saga.git/internal/events"
	"github.com/ariefcatur/go-booking-saga.git/internal/httpx"
	kafkax "github.com/ariefcatur/go-booking-saga.git/internal/kafka"
	"github.com/ariefcatur/go-booking-saga.git/internal/metrics"
	"github.com/ariefcatur/go-booking-saga.git/internal/payment"
	"github.com/ariefcatur/go-booking-saga.git/internal/postgres"
	"github.com/ariefcatur/go-booking-saga.git/internal/redisx"
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

	svc := &payment.Service{
		Repo:        &payment.Repo{DB: db},
		Gateway:     payment.NewClient(cfg.GatewayURL, payment.DefaultPipelineConfig()),
		Redis:       rdb,
		Bus:         prod,
		ServiceName: cfg.ServiceName + "-payment",
		Metrics:     metrics.NewPayment(),
	}

	group := cfg.ConsumerGroup
	if group == "" {
		group = "payment-svc"
	}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, []string{
		events.TopicInitiatePayment,
		events.TopicCancelPayment,
		events.TopicBookingCancelled,
	}, cfg.Workers)

	go func() {
		log.Printf("payment consumer started: group=%s workers=%d", group, cfg.Workers)
		if err := cons.Start(ctx, svc.HandleCommand); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	// Small HTTP surface: manual refunds, health, metrics.
	router := httpx.NewRouter()
	(&httpx.PaymentsHandler{Service: svc}).Register(router)
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
	cancel()
	time.Sleep(500 * time.Millisecond)
	prod.Close()
	prod.WaitClosed()
}
