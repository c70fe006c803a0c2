package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/xhad/grounder/pkg/answer"
	"github.com/xhad/grounder/pkg/breaker"
	"github.com/xhad/grounder/pkg/chunker"
	"github.com/xhad/grounder/pkg/config"
	"github.com/xhad/grounder/pkg/ingest"
	"github.com/xhad/grounder/pkg/llm"
	"github.com/xhad/grounder/pkg/store"
	"github.com/xhad/grounder/server"
)

func main() {
	_ = godotenv.Load()

	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			log.Printf("invalid config: %s", e)
		}
		os.Exit(1)
	}

	ctx := context.Background()

	textChunker, err := chunker.New(cfg.Chunker.Size, cfg.Chunker.Overlap)
	if err != nil {
		log.Fatalf("failed to initialize chunker: %v", err)
	}

	embedder, err := llm.NewEmbedder(llm.EmbedderConfig{
		Model:         cfg.LLM.EmbeddingModel,
		BaseURL:       cfg.LLM.BaseURL,
		VectorDim:     cfg.Database.VectorDim,
		MaxTextLength: cfg.Embedding.MaxTextLength,
		MaxAttempts:   cfg.Embedding.MaxAttempts,
		RetryDelay:    time.Duration(cfg.Embedding.RetryDelayMS) * time.Millisecond,
		BatchSize:     cfg.Embedding.BatchSize,
		BatchPause:    time.Duration(cfg.Embedding.BatchPauseMS) * time.Millisecond,
	})
	if err != nil {
		log.Fatalf("failed to initialize embedder: %v", err)
	}

	chatEngine, err := llm.NewChatEngine(llm.ChatConfig{
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	})
	if err != nil {
		log.Fatalf("failed to initialize chat engine: %v", err)
	}

	vectorStore, err := store.New(ctx, store.Config{
		ConnString: cfg.Database.URL,
		VectorDim:  cfg.Database.VectorDim,
	})
	if err != nil {
		log.Fatalf("failed to initialize vector store: %v", err)
	}
	defer vectorStore.Close()

	if err := vectorStore.Init(ctx); err != nil {
		log.Fatalf("failed to initialize schema: %v", err)
	}

	cb := breaker.New(breaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
		Cooldown:         time.Duration(cfg.Breaker.CooldownSeconds) * time.Second,
		RateWindow:       time.Duration(cfg.Breaker.RateWindowSecs) * time.Second,
		MaxRequests:      cfg.Breaker.MaxRequests,
	})

	orchestrator := ingest.New(ingest.Config{
		LargeDocThreshold: cfg.Ingest.LargeDocThreshold,
		StreamBatchSize:   cfg.Ingest.StreamBatchSize,
		BatchPause:        time.Duration(cfg.Ingest.BatchPauseMS) * time.Millisecond,
		Workers:           cfg.Ingest.Workers,
	}, textChunker, embedder, vectorStore, cb)

	answers := answer.New(answer.Config{
		TopK:      cfg.Answer.TopK,
		Threshold: cfg.Answer.Threshold,
	}, embedder, vectorStore, chatEngine)

	s := server.New(cfg.Server.Addr, orchestrator, answers, cb)

	go func() {
		if err := s.Run(); err != nil {
			log.Fatalf("server stopped: %v", err)
		}
	}()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	<-sigch
	log.Println("Received shutdown signal, shutting down server...")
	if err := s.Shutdown(); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
