package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration. Durations are expressed as
// integer milliseconds or seconds so the YAML stays plain.
type Config struct {
	LLM struct {
		BaseURL        string  `yaml:"base_url"`
		Model          string  `yaml:"model"`
		EmbeddingModel string  `yaml:"embedding_model"`
		MaxTokens      int     `yaml:"max_tokens"`
		Temperature    float64 `yaml:"temperature"`
	} `yaml:"llm"`

	Database struct {
		URL       string `yaml:"url"`
		VectorDim int    `yaml:"vector_dim"`
	} `yaml:"database"`

	Chunker struct {
		Size    int `yaml:"size"`
		Overlap int `yaml:"overlap"`
	} `yaml:"chunker"`

	Embedding struct {
		MaxTextLength int `yaml:"max_text_length"`
		MaxAttempts   int `yaml:"max_attempts"`
		RetryDelayMS  int `yaml:"retry_delay_ms"`
		BatchSize     int `yaml:"batch_size"`
		BatchPauseMS  int `yaml:"batch_pause_ms"`
	} `yaml:"embedding"`

	Ingest struct {
		LargeDocThreshold int `yaml:"large_doc_threshold"`
		StreamBatchSize   int `yaml:"stream_batch_size"`
		BatchPauseMS      int `yaml:"batch_pause_ms"`
		Workers           int `yaml:"workers"`
	} `yaml:"ingest"`

	Breaker struct {
		FailureThreshold int   `yaml:"failure_threshold"`
		SuccessThreshold int   `yaml:"success_threshold"`
		CooldownSeconds  int   `yaml:"cooldown_seconds"`
		RateWindowSecs   int   `yaml:"rate_window_seconds"`
		MaxRequests      int64 `yaml:"max_requests"`
	} `yaml:"breaker"`

	Answer struct {
		TopK      int     `yaml:"top_k"`
		Threshold float64 `yaml:"threshold"`
	} `yaml:"answer"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
}

// LoadConfig reads the YAML file at path, falling back to default locations
// when path is empty, then merges environment variables and applies
// defaults for anything still unset.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/grounder/config.yaml"),
			"/etc/grounder/config.yaml",
		}
		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)
	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.Model == "" {
		config.LLM.Model = "mistral"
	}
	if config.LLM.EmbeddingModel == "" {
		config.LLM.EmbeddingModel = "nomic-embed-text:latest"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.7
	}

	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 768
	}

	if config.Chunker.Size == 0 {
		config.Chunker.Size = 1000
	}
	if config.Chunker.Overlap == 0 {
		config.Chunker.Overlap = 200
	}

	if config.Embedding.MaxTextLength == 0 {
		config.Embedding.MaxTextLength = 8000
	}
	if config.Embedding.MaxAttempts == 0 {
		config.Embedding.MaxAttempts = 3
	}
	if config.Embedding.RetryDelayMS == 0 {
		config.Embedding.RetryDelayMS = 1000
	}
	if config.Embedding.BatchSize == 0 {
		config.Embedding.BatchSize = 5
	}
	if config.Embedding.BatchPauseMS == 0 {
		config.Embedding.BatchPauseMS = 200
	}

	if config.Ingest.LargeDocThreshold == 0 {
		config.Ingest.LargeDocThreshold = 50000
	}
	if config.Ingest.StreamBatchSize == 0 {
		config.Ingest.StreamBatchSize = 10
	}
	if config.Ingest.BatchPauseMS == 0 {
		config.Ingest.BatchPauseMS = 100
	}
	if config.Ingest.Workers == 0 {
		config.Ingest.Workers = 3
	}

	if config.Breaker.FailureThreshold == 0 {
		config.Breaker.FailureThreshold = 5
	}
	if config.Breaker.SuccessThreshold == 0 {
		config.Breaker.SuccessThreshold = 3
	}
	if config.Breaker.CooldownSeconds == 0 {
		config.Breaker.CooldownSeconds = 60
	}
	if config.Breaker.RateWindowSecs == 0 {
		config.Breaker.RateWindowSecs = 60
	}
	if config.Breaker.MaxRequests == 0 {
		config.Breaker.MaxRequests = 100
	}

	if config.Answer.TopK == 0 {
		config.Answer.TopK = 3
	}
	if config.Answer.Threshold == 0 {
		config.Answer.Threshold = 0.7
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if addr := os.Getenv("SERVER_ADDR"); addr != "" {
		config.Server.Addr = addr
	}
}
