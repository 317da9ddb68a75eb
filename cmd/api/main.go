package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"waifuhospital/internal/client"
	"waifuhospital/internal/config"
	"waifuhospital/internal/repository"
	"waifuhospital/internal/server"
	"waifuhospital/internal/service"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	db := client.InitMysqlClient(cfg.DatabaseURL)

	// Gateways: real clients when configured, deterministic stubs otherwise.
	var paymentGateway client.PaymentGateway
	if cfg.Stripe.SecretKey != "" {
		paymentGateway = client.NewStripeClient(&cfg.Stripe)
	} else {
		log.Println("No Stripe secret key configured, using stub payment gateway")
		paymentGateway = client.NewStubPaymentGateway()
	}

	var fulfillmentGateway client.FulfillmentGateway
	if cfg.Printful.APIKey != "" {
		fulfillmentGateway = client.NewPrintfulClient(&cfg.Printful)
	} else {
		log.Println("No Printful API key configured, using stub fulfillment gateway")
		fulfillmentGateway = client.NewStubFulfillmentGateway()
	}

	var imageHost client.ImageHost
	if cfg.Cloudflare.APIToken != "" {
		imageHost = client.NewCloudflareImagesClient(&cfg.Cloudflare)
	} else {
		log.Println("No Cloudflare API token configured, using stub image host")
		imageHost = client.NewStubImageHost()
	}

	aiClient := client.NewAIServiceClient(cfg.AIService.URL)

	userRepo := repository.NewUserRepository(db)
	characterRepo := repository.NewCharacterRepository(db)
	chatRepo := repository.NewChatRepository(db)
	merchandiseRepo := repository.NewMerchandiseRepository(db)
	purchaseRepo := repository.NewPurchaseRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)

	userService := service.NewUserService(userRepo, paymentGateway, cfg.BaseURL, cfg.JWTSecret)
	characterService := service.NewCharacterService(characterRepo, aiClient, imageHost)
	chatService := service.NewChatService(chatRepo, characterRepo, aiClient)
	merchandiseService := service.NewMerchandiseService(merchandiseRepo, characterRepo, userRepo, paymentGateway, fulfillmentGateway, imageHost)
	checkoutService := service.NewCheckoutService(db, paymentGateway, fulfillmentGateway, merchandiseRepo, purchaseRepo, userRepo)
	webhookService := service.NewWebhookService(db, paymentGateway, fulfillmentGateway, merchandiseRepo, purchaseRepo, userRepo, webhookEventRepo)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	// Init HTTP server
	srv := server.NewServer(
		cfg.JWTSecret,
		userService,
		characterService,
		chatService,
		merchandiseService,
		checkoutService,
		webhookService,
	)

	log.Println("Starting HTTP server on", serverAddr)
	go func() {
		if err := srv.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	log.Println("Signal received, starting graceful shutdown...")

	_, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(); err != nil {
		log.Fatal("HTTP server shutdown error")
	}
}
