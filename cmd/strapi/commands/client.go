package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/fivetwenty-io/strapi-client/internal/constants"
	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
	"github.com/fivetwenty-io/strapi-client/pkg/strapiclient"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/viper"
)

// loadConfig decodes the merged flag, environment and file settings.
func loadConfig() (*strapi.Config, error) {
	var config strapi.Config

	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("%w: %w", constants.ErrInvalidConfig, err)
	}

	if config.BaseURL == "" {
		return nil, constants.ErrNoBaseURL
	}

	if config.HTTPTimeout == 0 {
		config.HTTPTimeout = constants.DefaultHTTPTimeout
	}

	return &config, nil
}

// newLogger writes to stderr, at debug level with --verbose.
func newLogger() hclog.Logger {
	level := hclog.Warn
	if viper.GetBool("verbose") {
		level = hclog.Debug
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:   "strapi",
		Level:  level,
		Output: os.Stderr,
	})
}

// newClient creates a content API client from the CLI configuration.
func newClient(ctx context.Context) (*strapiclient.Client, error) {
	config, err := loadConfig()
	if err != nil {
		return nil, err
	}

	config.Logger = strapi.NewHCLogger(newLogger())
	config.Debug = config.Debug || viper.GetBool("verbose")

	client, err := strapiclient.New(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return client, nil
}
