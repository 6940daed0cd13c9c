package commands

import (
	"fmt"

	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewCacheCommand creates the cache command group.
func NewCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage cached responses",
		Long:  "Manage responses held by a shared cache backend such as NATS KV",
	}

	cmd.AddCommand(newCacheInvalidateCommand())

	return cmd
}

func newCacheInvalidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "invalidate TAG...",
		Short:   "Invalidate cached responses by tag",
		Long:    "Drop every cached response carrying one of the given tags",
		Example: "  strapi cache invalidate products categories",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			if backend := cacheBackend(); backend != strapi.CacheTypeNATS {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(),
					"Warning: cache type %q is not shared between processes; no shared entries are affected\n", backend)
			}

			removed, err := client.Invalidate(cmd.Context(), args...)
			if err != nil {
				return err //nolint:wrapcheck // names the tags
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached response(s)\n", removed)

			return err //nolint:wrapcheck // terminal write
		},
	}
}

// cacheBackend returns the configured cache type, memory when unset.
func cacheBackend() strapi.CacheType {
	if backend := viper.GetString("cache.type"); backend != "" {
		return strapi.CacheType(backend)
	}

	return strapi.CacheTypeMemory
}
