package main

import (
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/xhad/grounder/pkg/config"
)

type Flags struct {
	ConfigPath string
	FilePath   string
	PageURL    string
	Title      string
	DocType    string
	OllamaURL  string
	DBUrl      string
}

func main() {
	// A missing .env file is fine; the config layer has its own defaults.
	_ = godotenv.Load()

	flags := parseFlags()

	cfg, err := config.LoadConfig(flags.ConfigPath)
	if err != nil {
		log.Fatal(err)
	}

	// Command line flags win over file and environment values.
	if flags.OllamaURL != "" {
		cfg.LLM.BaseURL = flags.OllamaURL
	}
	if flags.DBUrl != "" {
		cfg.Database.URL = flags.DBUrl
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			log.Printf("invalid config: %s", e)
		}
		os.Exit(1)
	}

	if err := run(flags, cfg); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() Flags {
	var flags Flags

	flag.StringVar(&flags.ConfigPath, "config", "", "Path to config file")
	flag.StringVar(&flags.FilePath, "file", "", "Text file to ingest")
	flag.StringVar(&flags.PageURL, "url", "", "Web page to fetch and ingest")
	flag.StringVar(&flags.Title, "title", "", "Title for the ingested document (defaults to the file name or page title)")
	flag.StringVar(&flags.DocType, "type", "text", "Document type label")
	flag.StringVar(&flags.OllamaURL, "ollama-url", "", "Ollama server URL")
	flag.StringVar(&flags.DBUrl, "db-url", "", "PostgreSQL connection string")
	flag.Parse()

	return flags
}
