package seeds

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/marcelsud/webhook-outbox/webhook"
)

/* Loader reads pre-provisioned endpoints from endpoints.yaml
 * Lets operators ship a known set of subscriber endpoints with the
 * deployment instead of registering each one through the API
 */

// Config represents the structure of endpoints.yaml
type Config struct {
	Endpoints []EndpointConfig `yaml:"endpoints"`
}

// EndpointConfig represents a single endpoint seed in the YAML file
type EndpointConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`          // Optional: generated when empty
	MaxAttempts    int      `yaml:"max_attempts"`    // Optional: default 3
	TimeoutSeconds int      `yaml:"timeout_seconds"` // Optional: default 30
}

// Loader holds the loaded and validated endpoint seeds
type Loader struct {
	seeds []webhook.CreateEndpointParams
}

// NewLoader creates a new seed loader
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and validates the endpoints YAML file
func (l *Loader) Load(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading seeds file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("parsing seeds YAML: %w", err)
	}

	seeds := make([]webhook.CreateEndpointParams, 0, len(config.Endpoints))
	for i, ec := range config.Endpoints {
		if err := webhook.ValidateURL(ec.URL); err != nil {
			return fmt.Errorf("validating seed %d: %w", i+1, err)
		}
		events, err := webhook.ParseEventTypes(ec.Events)
		if err != nil {
			return fmt.Errorf("validating seed %d: %w", i+1, err)
		}
		if ec.MaxAttempts < 0 {
			return fmt.Errorf("validating seed %d: max_attempts cannot be negative", i+1)
		}
		if ec.TimeoutSeconds < 0 {
			return fmt.Errorf("validating seed %d: timeout_seconds cannot be negative", i+1)
		}

		seeds = append(seeds, webhook.CreateEndpointParams{
			URL:            ec.URL,
			Events:         events,
			Secret:         ec.Secret,
			MaxAttempts:    ec.MaxAttempts,
			TimeoutSeconds: ec.TimeoutSeconds,
		})
	}

	l.seeds = seeds
	return nil
}

// List returns the loaded seeds
func (l *Loader) List() []webhook.CreateEndpointParams {
	return l.seeds
}

/* Apply registers every seed whose URL is not already registered
 * Returns the number of endpoints created; re-running at startup is a
 * no-op for URLs that already exist
 */
func (l *Loader) Apply(ctx context.Context, svc webhook.UseCase) (int, error) {
	existing, err := svc.ListEndpoints(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing existing endpoints: %w", err)
	}
	known := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		known[e.URL] = struct{}{}
	}

	created := 0
	for _, seed := range l.seeds {
		if _, exists := known[seed.URL]; exists {
			continue
		}
		if _, err := svc.CreateEndpoint(ctx, seed); err != nil {
			return created, fmt.Errorf("creating seeded endpoint %s: %w", seed.URL, err)
		}
		created++
	}
	return created, nil
}
