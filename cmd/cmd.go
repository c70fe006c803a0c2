package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/xhad/grounder/pkg/answer"
	"github.com/xhad/grounder/pkg/breaker"
	"github.com/xhad/grounder/pkg/chunker"
	"github.com/xhad/grounder/pkg/config"
	"github.com/xhad/grounder/pkg/fetch"
	"github.com/xhad/grounder/pkg/ingest"
	"github.com/xhad/grounder/pkg/llm"
	"github.com/xhad/grounder/pkg/store"
)

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func run(flags Flags, cfg *config.Config) error {
	ctx := context.Background()

	textChunker, err := chunker.New(cfg.Chunker.Size, cfg.Chunker.Overlap)
	if err != nil {
		return fmt.Errorf("failed to initialize chunker: %v", err)
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
		return fmt.Errorf("failed to initialize embedder: %v", err)
	}

	chatEngine, err := llm.NewChatEngine(llm.ChatConfig{
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize chat engine: %v", err)
	}

	vectorStore, err := store.New(ctx, store.Config{
		ConnString: cfg.Database.URL,
		VectorDim:  cfg.Database.VectorDim,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %v", err)
	}
	defer vectorStore.Close()

	if err := vectorStore.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %v", err)
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

	if flags.FilePath != "" {
		if err := ingestFile(ctx, orchestrator, flags); err != nil {
			return err
		}
	}
	if flags.PageURL != "" {
		if err := ingestURL(ctx, orchestrator, flags); err != nil {
			return err
		}
	}

	return chatLoop(ctx, answers)
}

func ingestFile(ctx context.Context, orchestrator *ingest.Orchestrator, flags Flags) error {
	data, err := os.ReadFile(flags.FilePath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %v", flags.FilePath, err)
	}

	title := flags.Title
	if title == "" {
		title = filepath.Base(flags.FilePath)
	}

	doc, handle, err := orchestrator.CreateDocument(ctx, title, string(data), "", flags.DocType)
	if err != nil {
		return fmt.Errorf("failed to create document: %v", err)
	}
	if handle == nil {
		color.Yellow("Document %q already ingested (%s)\n", title, doc.ID)
		return nil
	}

	return waitForIngestion(doc.Title, handle)
}

func ingestURL(ctx context.Context, orchestrator *ingest.Orchestrator, flags Flags) error {
	fetchSpinner := getSpinner(" Fetching page...")
	fetcher := fetch.New(fetch.Config{})
	page, err := fetcher.Fetch(ctx, flags.PageURL)
	fetchSpinner.Finish()
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %v", flags.PageURL, err)
	}

	title := flags.Title
	if title == "" {
		title = page.Title
	}

	doc, handle, err := orchestrator.CreateDocument(ctx, title, page.Content, page.SourceURL, page.DocumentType)
	if err != nil {
		return fmt.Errorf("failed to create document: %v", err)
	}
	if handle == nil {
		color.Yellow("Page %s already ingested (%s)\n", page.SourceURL, doc.ID)
		return nil
	}

	return waitForIngestion(doc.Title, handle)
}

func waitForIngestion(title string, handle <-chan ingest.Result) error {
	embedSpinner := getSpinner(" Chunking and embedding...")
	result := <-handle
	embedSpinner.Finish()

	if result.Err != nil {
		return fmt.Errorf("ingestion failed: %v", result.Err)
	}
	color.Green("\n✓ Ingested %q into %d chunks\n", title, len(result.Refs))
	return nil
}

func chatLoop(ctx context.Context, answers *answer.Service) error {
	color.Cyan("\nAsk your knowledge base (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		question := scanner.Text()
		if strings.ToLower(question) == "exit" {
			break
		}

		responseSpinner := getSpinner(" Thinking...")
		response, err := answers.Answer(ctx, question)
		responseSpinner.Finish()
		fmt.Print("\r")

		if err != nil {
			color.Red("Error: %v\n", err)
			continue
		}
		assistantPrompt("Assistant: %s\n", response)
	}

	return nil
}
