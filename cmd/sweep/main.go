package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"inquiry-agent/handler"
	"inquiry-agent/internal/app"
	"inquiry-agent/internal/config"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}
	store, err := app.NewRateLimitStore(cfg, awsdynamodb.NewFromConfig(awsCfg))
	if err != nil {
		logger.Error("failed to create rate limit store", "err", err)
		os.Exit(1)
	}
	limiter, err := app.NewLimiter(cfg, store, logger)
	if err != nil {
		logger.Error("failed to create limiter", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewSweepHandler(limiter, logger)
	if err != nil {
		logger.Error("failed to create sweep handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
