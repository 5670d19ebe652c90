package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"gopkg.in/yaml.v3"

	"github.com/jacentio/doctable/kv"
	"github.com/jacentio/doctable/store"
)

// Backend names.
const (
	backendMemory   = "memory"
	backendDir      = "dir"
	backendDynamoDB = "dynamodb"
)

// fileConfig is the layout of the YAML configuration file.
type fileConfig struct {
	Backend       string               `yaml:"backend"`
	Dir           string               `yaml:"dir,omitempty"`
	KeyPrefix     string               `yaml:"key_prefix,omitempty"`
	IDPolicy      string               `yaml:"id_policy,omitempty"`
	LogLevel      string               `yaml:"log_level,omitempty"`
	DynamoDB      dynamoDBConfig       `yaml:"dynamodb,omitempty"`
	Relationships []relationshipConfig `yaml:"relationships,omitempty"`
}

type dynamoDBConfig struct {
	Table    string `yaml:"table,omitempty"`
	Region   string `yaml:"region,omitempty"`
	Profile  string `yaml:"profile,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"` // e.g. http://localhost:8000 for DynamoDB Local
}

type relationshipConfig struct {
	Parent     string `yaml:"parent"`
	Child      string `yaml:"child"`
	ForeignKey string `yaml:"foreign_key,omitempty"` // defaults to <parent>_id
}

func defaultFileConfig() fileConfig {
	return fileConfig{
		Backend:  backendDir,
		Dir:      "./data",
		IDPolicy: "max",
		LogLevel: "info",
		DynamoDB: dynamoDBConfig{Table: kv.DefaultDynamoDBConfig().Table},
	}
}

// loadConfig reads the YAML file at path over the defaults. A missing file
// is only an error when the path was given explicitly.
func loadConfig(path string, explicit bool) (fileConfig, error) {
	cfg := defaultFileConfig()
	data, err := os.ReadFile(path) //nolint:gosec // User-specified config path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	return parseConfig(data, cfg)
}

// parseConfig decodes YAML over base and validates the result.
func parseConfig(data []byte, base fileConfig) (fileConfig, error) {
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *fileConfig) Validate() error {
	switch c.Backend {
	case backendMemory, backendDynamoDB:
	case backendDir:
		if c.Dir == "" {
			return errors.New("dir is required for the dir backend")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if _, err := parseIDPolicy(c.IDPolicy); err != nil {
		return err
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	for i, r := range c.Relationships {
		if r.Parent == "" || r.Child == "" {
			return fmt.Errorf("relationship %d: parent and child are required", i)
		}
	}
	return nil
}

func parseIDPolicy(s string) (store.IDPolicy, error) {
	switch s {
	case "", "max":
		return store.IDPolicyMax, nil
	case "last":
		return store.IDPolicyLast, nil
	default:
		return 0, fmt.Errorf("unknown id_policy %q", s)
	}
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log_level %q", s)
	}
}

// registry builds the relationship registry declared in the file.
func (c *fileConfig) registry() *store.Registry {
	r := store.NewRegistry()
	for _, rel := range c.Relationships {
		r.Register(store.Relationship{
			ParentTable: rel.Parent,
			ChildTable:  rel.Child,
			ForeignKey:  rel.ForeignKey,
		})
	}
	return r
}

// openBackend connects the configured key-value store.
func (c *fileConfig) openBackend(ctx context.Context) (kv.Store, error) {
	switch c.Backend {
	case backendMemory:
		return kv.NewMemory(), nil
	case backendDir:
		return kv.NewDir(c.Dir), nil
	case backendDynamoDB:
		var opts []func(*awsconfig.LoadOptions) error
		if c.DynamoDB.Region != "" {
			opts = append(opts, awsconfig.WithRegion(c.DynamoDB.Region))
		}
		if c.DynamoDB.Profile != "" {
			opts = append(opts, awsconfig.WithSharedConfigProfile(c.DynamoDB.Profile))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if c.DynamoDB.Endpoint != "" {
				o.BaseEndpoint = aws.String(c.DynamoDB.Endpoint)
			}
		})
		cfg := kv.DefaultDynamoDBConfig()
		cfg.Table = c.DynamoDB.Table
		return kv.NewDynamoDB(client, cfg), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", c.Backend)
	}
}

// openStore builds the Store for the configuration.
func (c *fileConfig) openStore(ctx context.Context, logger *slog.Logger) (*store.Store, error) {
	backend, err := c.openBackend(ctx)
	if err != nil {
		return nil, err
	}
	policy, err := parseIDPolicy(c.IDPolicy)
	if err != nil {
		return nil, err
	}
	cfg := store.DefaultConfig()
	cfg.KeyPrefix = c.KeyPrefix
	cfg.IDPolicy = policy
	cfg.Logger = logger
	return store.NewWithRegistry(backend, cfg, c.registry()), nil
}
