package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"inquiry-agent/internal/app"
	"inquiry-agent/internal/config"
	"inquiry-agent/internal/integrations/paramstore"
	"inquiry-agent/internal/repository"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)
	if err := cfg.Require("PARAM_PREFIX", "INQUIRY_TABLE"); err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		logger.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	secrets, err := app.ResolveSecrets(cfg, ssmClient)
	if err != nil {
		logger.Error("failed to resolve secrets", "err", err)
		os.Exit(1)
	}

	dynamoClient := awsdynamodb.NewFromConfig(awsCfg)
	inquiries, err := repository.NewInquiryStore(dynamoClient, cfg.InquiryTable)
	if err != nil {
		logger.Error("failed to create inquiry store", "err", err)
		os.Exit(1)
	}
	limits, err := app.NewRateLimitStore(cfg, dynamoClient)
	if err != nil {
		logger.Error("failed to create rate limit store", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	svc, err := app.Build(cfg, app.Stores{RateLimit: limits, Inquiries: inquiries}, secrets, logger)
	if err != nil {
		logger.Error("failed to build service", "err", err)
		os.Exit(1)
	}

	lambda.Start(svc.Handler.Handle)
}
