package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-shop-checkout.git/internal/cart"
	"github.com/ariefcatur/go-shop-checkout.git/internal/catalog"
	"github.com/ariefcatur/go-shop-checkout.git/internal/checkout"
	"github.com/ariefcatur/go-shop-checkout.git/internal/config"
	"github.com/ariefcatur/go-shop-checkout.git/internal/httpx"
	kafkax "github.com/ariefcatur/go-shop-checkout.git/internal/kafka"
	"github.com/ariefcatur/go-shop-checkout.git/internal/orders"
	"github.com/ariefcatur/go-shop-checkout.git/internal/payment"
	"github.com/ariefcatur/go-shop-checkout.git/internal/postgres"
	"github.com/ariefcatur/go-shop-checkout.git/internal/redisx"
	"github.com/ariefcatur/go-shop-checkout.git/internal/signer"
	"github.com/ariefcatur/go-shop-checkout.git/internal/tracking"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers
	createdProd := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024)
	createdProd.Start(ctx)
	paidProd := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPaid, 1024)
	paidProd.Start(ctx)
	trackProd := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicTrackingUpdated, 1024)
	trackProd.Start(ctx)

	// Payment provider, selected once at startup
	provider, err := payment.FromConfig(cfg.Payment)
	if err != nil {
		log.Fatalf("payment provider: %v", err)
	}

	productRepo := &catalog.Repo{DB: db}
	orderRepo := &orders.Repo{DB: db}
	trackingSvc := &tracking.Service{Repo: &tracking.PGRepo{DB: db}}
	cartSvc := &cart.Service{Store: &cart.RedisStore{R: rdb}, Products: productRepo}
	sessions := &httpx.Sessions{R: rdb}

	checkoutSvc := &checkout.Service{
		Orders:        orderRepo,
		Provider:      provider,
		Tracking:      trackingSvc,
		CreatedEvents: createdProd,
		PaidEvents:    paidProd,
		Currency:      cfg.Currency,
		ServiceName:   cfg.ServiceName,
	}

	receiptSigner := signer.NewReceipt(cfg.SecretKey)
	trackSigner := signer.NewTracking(cfg.SecretKey)

	router := httpx.NewRouter()
	ch := &httpx.CartHandler{Carts: cartSvc, Products: productRepo, Sessions: sessions}
	ch.Register(router)
	co := &httpx.CheckoutHandler{
		Checkout: checkoutSvc,
		Carts:    cartSvc,
		Sessions: sessions,
		Receipt:  receiptSigner,
		Tracking: trackSigner,
		BaseURL:  cfg.BaseURL,
	}
	co.Register(router)
	oh := &httpx.OrdersHandler{
		Orders:         orderRepo,
		Tracking:       trackingSvc,
		Sessions:       sessions,
		Receipt:        receiptSigner,
		Track:          trackSigner,
		StaffKey:       cfg.StaffKey,
		TrackingEvents: trackProd,
		ServiceName:    cfg.ServiceName,
	}
	oh.Register(router)

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

	for _, p := range []*kafkax.Producer{createdProd, paidProd, trackProd} {
		p.Close()
	}
	for _, p := range []*kafkax.Producer{createdProd, paidProd, trackProd} {
		p.WaitClosed()
	}
}
