package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"waifuhospital/internal/aiservice"
	"waifuhospital/internal/client"
	"waifuhospital/internal/config"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	var llm client.LLMGateway
	if cfg.OpenAI.ChatAPIKey != "" || cfg.OpenAI.ImageAPIKey != "" {
		llm = client.NewOpenAIClient(&cfg.OpenAI)
	} else {
		log.Println("No OpenAI API keys configured, using stub LLM gateway")
		llm = client.NewStubLLMGateway()
	}

	cache := aiservice.NewCharacterCache(
		aiservice.NewBackendFetcher(cfg.AIService.BackendURL),
		aiservice.SystemClock(),
		time.Duration(cfg.AIService.CacheTTLSeconds)*time.Second,
	)

	srv := aiservice.NewServer(
		aiservice.NewChatService(llm, cache),
		aiservice.NewImageService(llm),
	)

	serverAddr := ":" + cfg.AIService.Port
	log.Println("Starting AI service on", serverAddr)
	go func() {
		if err := srv.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	log.Println("Signal received, starting graceful shutdown...")

	if err := srv.Shutdown(); err != nil {
		log.Fatal("HTTP server shutdown error")
	}
}
