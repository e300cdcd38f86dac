package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/autoclaim/internal/application/port"
	"github.com/garyjia/autoclaim/internal/config"
	"github.com/garyjia/autoclaim/internal/domain/entity"
	"github.com/garyjia/autoclaim/internal/infrastructure/document"
	"github.com/garyjia/autoclaim/internal/infrastructure/external/openai"
)

// Sends one bill to the evaluation API and prints the verdict, without touching the claim store.
func main() {
	configPath := flag.String("config", os.Getenv("AUTOCLAIM_CONFIG"), "Path to config.yaml (optional)")
	name := flag.String("name", "", "Employee name expected on the bill")
	months := flag.String("months", "", "Comma-separated billing months, e.g. January,February")
	claimType := flag.String("type", "WiFi", "WiFi or Mobile")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	if *name == "" || *months == "" || flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: test-evaluation -name 'Alice Tan' -months September [-type Mobile] bill.pdf [bill2.png]")
		os.Exit(2)
	}

	var logger *zap.Logger
	var err error
	if *verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	selected := strings.Split(*months, ",")
	for i := range selected {
		selected[i] = strings.TrimSpace(selected[i])
	}
	if err := entity.ValidateMonths(selected); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid months: %v\n", err)
		os.Exit(2)
	}
	rt := entity.ReimbursementType(*claimType)
	if !rt.IsValid() {
		fmt.Fprintf(os.Stderr, "Invalid type %q\n", *claimType)
		os.Exit(2)
	}

	ctx := context.Background()
	files, err := document.NewEncoder(document.DefaultMaxFileSize, logger).Encode(ctx, document.FromPaths(flag.Args()...), 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read documents: %v\n", err)
		os.Exit(1)
	}

	var prompts *openai.PromptConfig
	if cfg.OpenAI.PromptsPath != "" {
		if prompts, err = openai.LoadPrompts(cfg.OpenAI.PromptsPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load prompts: %v\n", err)
			os.Exit(1)
		}
	}

	evaluator, err := openai.NewEvaluator(openai.Config{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.Model,
		Timeout: cfg.OpenAI.Timeout,
	}, prompts, document.NewRasterizer(cfg.OpenAI.MaxPdfPages, logger), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create evaluator: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Model: %s, documents: %d, months: %v, type: %s\n", cfg.OpenAI.Model, len(files), selected, rt)

	start := time.Now()
	eval, err := evaluator.Evaluate(ctx, port.EvaluationRequest{
		Files:        files,
		Type:         rt,
		Months:       selected,
		ExpectedName: *name,
	})
	duration := time.Since(start)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Evaluation failed after %v: %v\n", duration, err)
		os.Exit(1)
	}

	fmt.Printf("Response time: %v\n", duration)
	out, _ := json.MarshalIndent(eval, "", "  ")
	fmt.Println(string(out))
}
