// Package main is the cascade Lambda function.
//
// It is subscribed to the DynamoDB stream of the table backing a doctable
// store and removes the children of removed records. Environment:
//
//	DOCTABLE_TABLE          DynamoDB table (default "doctable")
//	DOCTABLE_KEY_PREFIX     key prefix of the store (default "")
//	DOCTABLE_RELATIONSHIPS  comma-separated parent:child[:foreign_key]
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/jacentio/doctable/kv"
	"github.com/jacentio/doctable/store"
	"github.com/jacentio/doctable/stream"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	h, err := newHandler(context.Background(), os.Getenv, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	lambda.Start(h.HandleCascadeDelete)
}

func newHandler(ctx context.Context, getenv func(string) string, logger *slog.Logger) (*stream.Handler, error) {
	registry, err := parseRelationships(getenv("DOCTABLE_RELATIONSHIPS"))
	if err != nil {
		return nil, err
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	kvCfg := kv.DefaultDynamoDBConfig()
	if t := getenv("DOCTABLE_TABLE"); t != "" {
		kvCfg.Table = t
	}
	backend := kv.NewDynamoDB(dynamodb.NewFromConfig(awsCfg), kvCfg)

	cfg := store.DefaultConfig()
	cfg.KeyPrefix = getenv("DOCTABLE_KEY_PREFIX")
	cfg.Logger = logger
	return stream.NewHandler(store.NewWithRegistry(backend, cfg, registry), logger), nil
}

// parseRelationships parses "author:book,book:review:reviewed_book".
func parseRelationships(s string) (*store.Registry, error) {
	r := store.NewRegistry()
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid relationship %q: want parent:child[:foreign_key]", item)
		}
		rel := store.Relationship{ParentTable: parts[0], ChildTable: parts[1]}
		if len(parts) == 3 {
			rel.ForeignKey = parts[2]
		}
		r.Register(rel)
	}
	return r, nil
}
