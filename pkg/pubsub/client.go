package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/bundleup/bundleup-backend/pkg/config"
	"github.com/bundleup/bundleup-backend/pkg/logger"
)

var errProjectIDRequired = errors.New("gcp project id is required")

// Client publishes platform events to Pub/Sub topics.
type Client struct {
	client        *pubsub.Client
	projectID     string
	purchaseTopic string
}

// NewClient creates a Pub/Sub v2 client for the configured project.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(gcp.ProjectID) == "" {
		return nil, errProjectIDRequired
	}

	psClient, err := pubsub.NewClient(ctx, gcp.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	if logg != nil {
		logg.Info(ctx, "pubsub client initialized")
	}

	return &Client{
		client:        psClient,
		projectID:     gcp.ProjectID,
		purchaseTopic: strings.TrimSpace(cfg.PurchaseTopic),
	}, nil
}

// PublishPurchaseEvent emits a JSON-encoded purchase event on the purchase
// topic. Publishing is best-effort from the caller's perspective; callers
// decide whether a publish failure is fatal.
func (c *Client) PublishPurchaseEvent(ctx context.Context, event any) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	if c.purchaseTopic == "" {
		return errors.New("purchase topic not configured")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding purchase event: %w", err)
	}

	publisher := c.client.Publisher(c.purchaseTopic)
	result := publisher.Publish(ctx, &pubsub.Message{Data: payload})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publishing purchase event: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
