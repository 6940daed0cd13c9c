package commands

import (
	"fmt"
	"strings"

	"github.com/fivetwenty-io/strapi-client/pkg/strapiclient"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewURLCommand creates the url command, which prints the request a get
// with the same flags would send.
func NewURLCommand() *cobra.Command {
	var query queryFlags

	cmd := &cobra.Command{
		Use:   "url RESOURCE",
		Short: "Print the request URL for a query",
		Long:  "Build the bracket query for the given flags and print it without contacting the server",
		Example: `  strapi url products --filter price:between:10,20 --sort title
  strapi url articles --populate-with author:name,email:deep`,
		Args: func(cmd *cobra.Command, args []string) error {
			if query.builtin() {
				return cobra.NoArgs(cmd, args)
			}

			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var resource string
			if len(args) > 0 {
				resource = args[0]
			}

			request, err := buildRequest[any](nil, resource, &query)
			if err != nil {
				return err
			}

			target, err := request.URL()
			if err != nil {
				return err //nolint:wrapcheck // builder errors name the offending input
			}

			if base := viper.GetString("url"); base != "" {
				target = strings.TrimRight(strapiclient.NormalizeBaseURL(base), "/") + "/" + target
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), target)

			return err //nolint:wrapcheck // terminal write
		},
	}

	query.register(cmd)

	return cmd
}
