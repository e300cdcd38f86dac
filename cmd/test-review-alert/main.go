package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/autoclaim/internal/config"
	"github.com/garyjia/autoclaim/internal/domain/entity"
	"github.com/garyjia/autoclaim/internal/infrastructure/external/lark"
)

// Sends a sample "needs review" card to the configured Lark chat.
func main() {
	configPath := flag.String("config", os.Getenv("AUTOCLAIM_CONFIG"), "Path to config.yaml (optional)")
	receiveID := flag.String("to", "", "Override lark.receive_id")
	flag.Parse()

	logger, err := zap.NewDevelopment()
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
	if *receiveID != "" {
		cfg.Lark.ReceiveID = *receiveID
	}
	if cfg.Lark.AppID == "" || cfg.Lark.AppSecret == "" || cfg.Lark.ReceiveID == "" {
		fmt.Fprintln(os.Stderr, "lark app_id, app_secret and receive_id are required")
		os.Exit(2)
	}

	sdk := lark.NewSDKClient(lark.Config{
		AppID:     cfg.Lark.AppID,
		AppSecret: cfg.Lark.AppSecret,
		BaseURL:   cfg.Lark.BaseURL,
	}, logger)
	messenger := lark.NewMessenger(sdk, cfg.Lark.ReceiveIDType, cfg.Lark.ReceiveID, cfg.Lark.ConsoleURL, logger)

	sample := &entity.Claim{
		ID:     "SAMPLE-" + time.Now().Format("150405"),
		UserID: "Sample Employee",
		Details: entity.ClaimDetails{
			Provider:     "Sample Telecom",
			BillingDate:  time.Now().Format("2006-01-02"),
			TotalAmount:  1480,
			CustomerName: "Sample Employee",
		},
		EligibleAmount: 1200,
		Status:         entity.ClaimStatusNeedsReview,
		Reasoning:      "Test alert: billed amount exceeds the monthly cap.",
		Months:         []string{time.Now().Month().String()},
		Type:           entity.ReimbursementTypeMobile,
		SubmittedAt:    time.Now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := messenger.SendReviewAlert(ctx, sample); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to send review alert: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Review alert sent to %s %s\n", cfg.Lark.ReceiveIDType, cfg.Lark.ReceiveID)
}
