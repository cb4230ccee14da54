// Package conn manages the process-wide DynamoDB client. The client is
// built lazily from the ambient AWS configuration on first use and shared
// by every table handle afterwards.
package conn

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

var (
	mu     sync.Mutex
	client *dynamodb.Client
	region string
)

// SetRegion overrides the region used when the shared client is first
// built. Has no effect once the client exists.
func SetRegion(r string) {
	mu.Lock()
	defer mu.Unlock()
	region = r
}

// Set installs a pre-built client as the shared one. Meant for tests and
// for callers that need custom credentials or endpoints.
func Set(c *dynamodb.Client) {
	mu.Lock()
	defer mu.Unlock()
	client = c
}

// Reset drops the shared client so the next [Client] call rebuilds it.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	client = nil
}

// Client returns the shared DynamoDB client, building it from the default
// AWS configuration chain on first call.
func Client(ctx context.Context) (*dynamodb.Client, error) {
	mu.Lock()
	defer mu.Unlock()
	if client != nil {
		return client, nil
	}

	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	client = dynamodb.NewFromConfig(cfg)
	return client, nil
}

// WithEndpoint builds a standalone client pointed at a custom endpoint,
// such as a local emulator. The shared client is untouched.
func WithEndpoint(ctx context.Context, endpoint string) (*dynamodb.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	}), nil
}
