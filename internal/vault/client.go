package vault

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/vault/api"

	"ark-trading-engine/config"
)

// Secrets the engine reads from Vault
const (
	KeyJWTSecret  = "jwt_secret"
	KeyDBPassword = "db_password"
)

// Client wraps the HashiCorp Vault client. With Vault disabled the
// client serves secrets from its local store only, which keeps
// development setups working without a Vault server.
type Client struct {
	client *api.Client
	config config.VaultConfig
	mu     sync.RWMutex
	cache  map[string]string
}

// NewClient creates a new Vault client
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{
			config: cfg,
			cache:  make(map[string]string),
		}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)

	return &Client{
		client: client,
		config: cfg,
		cache:  make(map[string]string),
	}, nil
}

// StoreSecret writes one named secret. Disabled clients keep it local.
func (c *Client) StoreSecret(ctx context.Context, name, value string) error {
	if !c.config.Enabled {
		c.mu.Lock()
		c.cache[name] = value
		c.mu.Unlock()
		return nil
	}

	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"value": value,
		},
	}

	if _, err := c.client.Logical().WriteWithContext(ctx, c.secretPath(name), secretData); err != nil {
		return fmt.Errorf("failed to store secret %s in vault: %w", name, err)
	}

	c.mu.Lock()
	c.cache[name] = value
	c.mu.Unlock()
	return nil
}

// GetSecret reads one named secret, preferring the local cache.
func (c *Client) GetSecret(ctx context.Context, name string) (string, error) {
	c.mu.RLock()
	if cached, ok := c.cache[name]; ok {
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	if !c.config.Enabled {
		return "", fmt.Errorf("secret %s not found (vault disabled)", name)
	}

	secret, err := c.client.Logical().ReadWithContext(ctx, c.secretPath(name))
	if err != nil {
		return "", fmt.Errorf("failed to read secret %s from vault: %w", name, err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("secret %s not found in vault", name)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("unexpected vault response shape for secret %s", name)
	}
	value, _ := data["value"].(string)
	if value == "" {
		return "", fmt.Errorf("secret %s is empty", name)
	}

	c.mu.Lock()
	c.cache[name] = value
	c.mu.Unlock()
	return value, nil
}

// GetSecretOrDefault reads a secret, falling back to the provided value
// when Vault has nothing. Used for secrets the config can also carry.
func (c *Client) GetSecretOrDefault(ctx context.Context, name, fallback string) string {
	if value, err := c.GetSecret(ctx, name); err == nil {
		return value
	}
	return fallback
}

// IsEnabled reports whether this client talks to a real Vault server.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// Health checks connectivity to the Vault server.
func (c *Client) Health(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}
	if !health.Initialized || health.Sealed {
		return fmt.Errorf("vault not ready: initialized=%v sealed=%v", health.Initialized, health.Sealed)
	}
	return nil
}

// ClearCache drops all locally cached secrets.
func (c *Client) ClearCache() {
	c.mu.Lock()
	c.cache = make(map[string]string)
	c.mu.Unlock()
}

func (c *Client) secretPath(name string) string {
	return fmt.Sprintf("%s/data/%s/%s", c.config.MountPath, c.config.SecretPath, name)
}
