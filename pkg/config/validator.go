package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if c.LLM.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "provider base URL is required",
		})
	} else if _, err := url.Parse(c.LLM.BaseURL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "invalid provider base URL",
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 4096 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 4096",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if c.Database.URL != "" {
		if _, err := url.Parse(c.Database.URL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	}

	if c.Database.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	if c.Chunker.Size < 1 {
		errors = append(errors, ValidationError{
			Field:   "chunker.size",
			Message: "size must be positive",
		})
	}

	// An overlap at or above the chunk size would stall the chunk cursor;
	// reject it here rather than clamping at runtime.
	if c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.Size {
		errors = append(errors, ValidationError{
			Field:   "chunker.overlap",
			Message: "overlap must be non-negative and less than size",
		})
	}

	if c.Embedding.MaxAttempts < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedding.max_attempts",
			Message: "max_attempts must be positive",
		})
	}

	if c.Embedding.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedding.batch_size",
			Message: "batch_size must be positive",
		})
	}

	if c.Ingest.StreamBatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "ingest.stream_batch_size",
			Message: "stream_batch_size must be positive",
		})
	}

	if c.Ingest.Workers < 1 {
		errors = append(errors, ValidationError{
			Field:   "ingest.workers",
			Message: "workers must be positive",
		})
	}

	if c.Breaker.FailureThreshold < 1 || c.Breaker.SuccessThreshold < 1 {
		errors = append(errors, ValidationError{
			Field:   "breaker",
			Message: "failure and success thresholds must be positive",
		})
	}

	if c.Answer.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "answer.top_k",
			Message: "top_k must be positive",
		})
	}

	if c.Answer.Threshold <= 0 || c.Answer.Threshold > 2 {
		errors = append(errors, ValidationError{
			Field:   "answer.threshold",
			Message: "threshold must be in (0, 2]",
		})
	}

	return errors
}
